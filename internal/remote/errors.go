package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSessionExpired matches *SessionExpiredError.
	ErrSessionExpired = errors.New("session expired")

	// ErrRequestFailed matches *RequestError.
	ErrRequestFailed = errors.New("remote request failed")

	// ErrRequestTimedOut is returned when a call exceeds the configured timeout.
	ErrRequestTimedOut = errors.New("request timed out")
)

// SessionExpiredError is returned for a 401 response. The session has already
// been cleared and the login navigation signalled when the caller sees it.
type SessionExpiredError struct {
	Message string
}

func (e *SessionExpiredError) Error() string {
	if e == nil || e.Message == "" {
		return ErrSessionExpired.Error()
	}
	return ErrSessionExpired.Error() + ": " + e.Message
}

func (e *SessionExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

// RequestError describes a non-success HTTP status.
type RequestError struct {
	Status  int
	Path    string
	Message string
	Header  http.Header
	// Data is the decoded JSON body, when there was one.
	Data any
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s (status %d, %s)", e.Message, e.Status, e.Path)
}

func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Status
	}
	return 0
}
