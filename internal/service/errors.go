package service

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedShape is returned when the task list response is not a list.
	ErrUnexpectedShape = errors.New("unexpected response shape")

	// ErrImageUploadFailed is returned when an upload response carries no usable URL.
	ErrImageUploadFailed = errors.New("image upload returned no URL")

	// ErrInvalidCredentials is returned when login is rejected.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTokenMissing is returned when a login response carries no token.
	ErrTokenMissing = errors.New("token not received")

	// ErrAPI matches *APIError.
	ErrAPI = errors.New("api error")
)

// APIError is a success-status response whose envelope reports failure
// ({"success": false, ...}).
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s", e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrAPI
}
