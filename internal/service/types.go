package service

import "geotask/internal/task"

// CreateParams are the inputs of Service.Create.
type CreateParams struct {
	Title string

	// Photo is a local file path to the captured or selected image.
	Photo string

	// Coordinates is nil when the position is unknown.
	Coordinates *task.Coordinates

	// Address is empty when reverse geocoding produced nothing.
	Address string
}

// FillCreated sets on created every field of params it lacks, so the caller
// never sees a record less complete than its input. photoURL is the uploaded
// image reference and imageProp the property it is stored under.
func FillCreated(created task.Record, params CreateParams, photoURL, imageProp string) task.Record {
	if created == nil {
		created = task.Record{}
	}
	if _, ok := created["title"]; !ok && params.Title != "" {
		created["title"] = params.Title
	}
	if _, ok := task.ImageURLOf(created, imageProp); !ok && photoURL != "" {
		created[imageProp] = photoURL
	}
	if params.Coordinates != nil {
		task.FillCoordinates(created, *params.Coordinates)
	}
	task.FillAddress(created, params.Address)
	return created
}
