// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"errors"
	"flag"
	"io"

	"geotask/internal/config"
	"geotask/internal/device"
	"geotask/internal/reconcile"
	"geotask/internal/service"
	"geotask/internal/session"
)

// Deps are the collaborators built for a command that needs the backend.
type Deps struct {
	Service  service.Service
	Engine   *reconcile.Engine
	Sessions *session.Store

	// Photos is the photo source wired into Engine; add sets its gallery file.
	Photos *device.Photos

	// LoggedIn reports whether stored credentials exist for the backend.
	LoggedIn bool

	Closers []io.Closer
}

// Close releases the resources in Closers.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, c := range d.Closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires a signed-in session.
	NeedsAuth() bool

	// NeedsService returns true if the command needs Deps.
	// Commands that need auth always need the service.
	NeedsService() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths, settings).
	// deps is nil if NeedsService() returns false.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int
}
