package service_test

import (
	"testing"

	"geotask/internal/service"
	"geotask/internal/task"
)

func TestFillCreated(t *testing.T) {
	params := service.CreateParams{
		Title:       "Buy milk",
		Coordinates: &task.Coordinates{Latitude: 1.5, Longitude: 2.5},
		Address:     "Main St",
	}

	got := service.FillCreated(task.Record{"id": "1"}, params, "https://img/x.jpg", "photoUri")
	if got.Title() != "Buy milk" {
		t.Errorf("title = %q", got.Title())
	}
	if u, _ := task.ImageURLOf(got, "photoUri"); u != "https://img/x.jpg" {
		t.Errorf("photo = %q", u)
	}
	if c, ok := task.CoordinatesOf(got); !ok || c != *params.Coordinates {
		t.Errorf("coordinates = %+v %v", c, ok)
	}
	if a, _ := task.AddressOf(got); a != "Main St" {
		t.Errorf("address = %q", a)
	}
}

func TestFillCreated_KeepsServerValues(t *testing.T) {
	params := service.CreateParams{
		Title:       "Buy milk",
		Coordinates: &task.Coordinates{Latitude: 1.5, Longitude: 2.5},
		Address:     "Main St",
	}
	created := task.Record{
		"id":       "1",
		"title":    "Buy milk (server)",
		"location": map[string]any{"lat": 9.0, "lng": 8.0, "address": "Server Address"},
		"imageUrl": "/uploads/1.jpg",
	}

	got := service.FillCreated(created, params, "https://img/x.jpg", "photoUri")
	if got.Title() != "Buy milk (server)" {
		t.Errorf("title overwritten: %q", got.Title())
	}
	if _, ok := got["photoUri"]; ok {
		t.Error("photo URL added although the server returned one")
	}
	if c, _ := task.CoordinatesOf(got); c.Latitude != 9 {
		t.Errorf("coordinates overwritten: %+v", c)
	}
	if a, _ := task.AddressOf(got); a != "Server Address" {
		t.Errorf("address overwritten: %q", a)
	}
}

func TestFillCreated_PartialPosition(t *testing.T) {
	params := service.CreateParams{
		Title:       "Buy milk",
		Coordinates: &task.Coordinates{Latitude: 1.5, Longitude: 2.5},
	}
	got := service.FillCreated(task.Record{"id": "1", "lat": 7.0}, params, "", "photoUri")
	if got["lat"] != 7.0 {
		t.Errorf("lat = %v", got["lat"])
	}
	if _, ok := got["latitude"]; ok {
		t.Error("latitude added although lat is present")
	}
	if got["longitude"] != 2.5 {
		t.Errorf("longitude = %v", got["longitude"])
	}
}
