package overlay

import (
	"context"
	"path/filepath"
	"testing"

	"geotask/internal/task"
)

func TestApply_FillsAbsentFields(t *testing.T) {
	rec := task.Record{"id": "a", "title": "Buy milk"}
	e := Entry{Address: "Main St", Coordinates: &task.Coordinates{Latitude: 1.5, Longitude: 2.5}}

	got := Apply(rec, e)
	if addr, _ := task.AddressOf(got); addr != "Main St" {
		t.Errorf("address = %q", addr)
	}
	if c, ok := task.CoordinatesOf(got); !ok || c.Latitude != 1.5 || c.Longitude != 2.5 {
		t.Errorf("coordinates = %v %v", c, ok)
	}
	if _, ok := rec["address"]; ok {
		t.Error("Apply must not modify its input")
	}
}

func TestApply_NeverOverwrites(t *testing.T) {
	rec := task.Record{
		"id":       "a",
		"address":  "Server Address",
		"location": map[string]any{"lat": 10.0, "lng": 20.0},
	}
	e := Entry{Address: "Local Address", Coordinates: &task.Coordinates{Latitude: 1, Longitude: 2}}

	got := Apply(rec, e)
	if addr, _ := task.AddressOf(got); addr != "Server Address" {
		t.Errorf("address = %q; want Server Address", addr)
	}
	if c, _ := task.CoordinatesOf(got); c.Latitude != 10 || c.Longitude != 20 {
		t.Errorf("coordinates = %v", c)
	}
	if _, ok := got["latitude"]; ok {
		t.Error("latitude should not be added when the record has coordinates")
	}
}

func TestApply_KeepsPartialBackendValues(t *testing.T) {
	rec := task.Record{"id": "a", "latitude": 5.0, "address": ""}
	e := Entry{Address: "Local", Coordinates: &task.Coordinates{Latitude: 1.5, Longitude: 2.5}}

	got := Apply(rec, e)
	if got["latitude"] != 5.0 {
		t.Errorf("latitude = %v; want backend value 5", got["latitude"])
	}
	if got["longitude"] != 2.5 {
		t.Errorf("longitude = %v; want 2.5", got["longitude"])
	}
	if got["address"] != "" {
		t.Errorf("address = %q; want the blank backend value kept", got["address"])
	}
}

func TestApply_KeepsAliasedComponent(t *testing.T) {
	rec := task.Record{"id": "a", "lon": "east"}
	got := Apply(rec, Entry{Coordinates: &task.Coordinates{Latitude: 1.5, Longitude: 2.5}})
	if got["lon"] != "east" {
		t.Errorf("lon = %v", got["lon"])
	}
	if _, ok := got["longitude"]; ok {
		t.Error("longitude added although lon is present")
	}
	if got["latitude"] != 1.5 {
		t.Errorf("latitude = %v", got["latitude"])
	}
}

func TestApply_EmptyEntry(t *testing.T) {
	rec := task.Record{"id": "a"}
	got := Apply(rec, Entry{})
	if len(got) != 1 {
		t.Errorf("got %v", got)
	}
	if !(Entry{}).Empty() {
		t.Error("zero Entry should be empty")
	}
}

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = %v, %v", ok, err)
	}

	want := Entry{Address: "Main St", Coordinates: &task.Coordinates{Latitude: 1.5, Longitude: 2.5}}
	if err := s.Put(ctx, "a", want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "b", Entry{Address: "No coords"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Get(a) = %v, %v", ok, err)
	}
	if got.Address != want.Address || got.Coordinates == nil || *got.Coordinates != *want.Coordinates {
		t.Errorf("Get(a) = %+v", got)
	}

	got, _, _ = s.Get(ctx, "b")
	if got.Coordinates != nil || got.Address != "No coords" {
		t.Errorf("Get(b) = %+v", got)
	}

	if err := s.Put(ctx, "b", Entry{Address: "Replaced"}); err != nil {
		t.Fatal(err)
	}
	if got, _, _ = s.Get(ctx, "b"); got.Address != "Replaced" {
		t.Errorf("Put should replace, got %+v", got)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "overlay.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	testStore(t, s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// Entries survive reopening.
	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if got, ok, _ := s.Get(context.Background(), "a"); !ok || got.Address != "Main St" {
		t.Errorf("after reopen: %+v %v", got, ok)
	}
}
