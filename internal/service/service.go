// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"context"

	"geotask/internal/task"
)

// Service defines the interface for task backend operations.
// All remote API calls go through this interface.
// The reconciliation engine and commands never import a backend directly.
type Service interface {
	// Login exchanges credentials for a bearer token and persists the session.
	Login(ctx context.Context, email, password string) (string, error)

	// Me returns the signed-in account, or (nil, nil) when the backend
	// has no session-validation endpoint.
	Me(ctx context.Context) (task.Record, error)

	// List returns the task collection in API order.
	// A response that is not list-shaped fails with ErrUnexpectedShape.
	List(ctx context.Context) ([]task.Record, error)

	// Create uploads the photo and creates a task.
	// The returned record is at least as complete as params.
	Create(ctx context.Context, params CreateParams) (task.Record, error)

	// UpdateCompleted sets the completion flag and returns the updated record.
	UpdateCompleted(ctx context.Context, id string, completed bool) (task.Record, error)

	// Remove deletes a task.
	Remove(ctx context.Context, id string) error
}
