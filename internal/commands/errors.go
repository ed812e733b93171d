package commands

import (
	"errors"

	"geotask/internal/backend/googletasks"
	"geotask/internal/device"
	"geotask/internal/exitcode"
	"geotask/internal/reconcile"
	"geotask/internal/remote"
	"geotask/internal/service"
	"geotask/internal/session"
)

// exitCode maps an operation error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitcode.Success
	case errors.Is(err, device.ErrPermissionDenied),
		errors.Is(err, device.ErrPhotoCancelled),
		errors.Is(err, device.ErrPositionUnavailable):
		return exitcode.DeviceError
	case errors.Is(err, remote.ErrSessionExpired),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrTokenMissing),
		errors.Is(err, session.ErrNoSession),
		errors.Is(err, googletasks.ErrPasswordLogin):
		return exitcode.AuthError
	case errors.Is(err, reconcile.ErrTitleRequired),
		errors.Is(err, reconcile.ErrTaskNotFound):
		return exitcode.UserError
	}
	return exitcode.BackendError
}
