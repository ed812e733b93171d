// Package exitcode defines exit codes for the CLI.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, unknown task reference, blank title).
	UserError = 1

	// AuthError indicates a missing or expired session, or rejected credentials.
	AuthError = 2

	// BackendError indicates a backend/API/network error.
	BackendError = 3

	// DeviceError indicates a refused device permission or a cancelled photo.
	DeviceError = 4
)
