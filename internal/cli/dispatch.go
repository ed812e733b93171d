// Package cli parses the command line and dispatches to commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"geotask/internal/commands"
	"geotask/internal/config"
	"geotask/internal/exitcode"
	"geotask/internal/remote"
)

// DepsFactory builds the command dependencies from config.
// Errors reported by the engine are written to errOut.
type DepsFactory func(ctx context.Context, cfg *config.Config, errOut io.Writer) (*commands.Deps, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  DepsFactory
}

// NewDispatcher creates a new dispatcher with the given registry and deps factory.
// A nil factory uses DefaultFactory.
func NewDispatcher(registry *commands.Registry, factory DepsFactory) *Dispatcher {
	if factory == nil {
		factory = DefaultFactory
	}
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, out, errOut)
	}

	cmdName := args[0]

	// If first token starts with -, it's an error (flags require a command)
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	// Look up command
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	// Parse flags
	remaining := args[1:]
	return d.dispatchCommand(ctx, cmd, remaining, out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	// Create flag set with custom error handling
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	// Common flags
	var configDir string
	var quiet bool
	var debug bool

	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	// Register command-specific flags
	cmd.RegisterFlags(fs)

	// Parse flags
	if err := fs.Parse(args); err != nil {
		// Handle specific error types
		errStr := err.Error()

		// Check for missing flag value
		if strings.Contains(errStr, "needs a value") || strings.Contains(errStr, "flag needs an argument") {
			// Extract flag name
			parts := strings.Split(errStr, ":")
			flagPart := strings.TrimSpace(parts[len(parts)-1])
			fmt.Fprintf(errOut, "error: flag needs an argument: %s\n", flagPart)
			return exitcode.UserError
		}

		// Check for unknown flag
		if strings.HasPrefix(errStr, "flag provided but not defined:") {
			flagName := strings.TrimPrefix(errStr, "flag provided but not defined: ")
			fmt.Fprintf(errOut, "error: unknown flag: %s\n", flagName)
			return exitcode.UserError
		}

		// Generic error handling for bad flag values
		if strings.Contains(errStr, "invalid value") {
			fmt.Fprintf(errOut, "error: %s\n", errStr)
			return exitcode.UserError
		}

		fmt.Fprintf(errOut, "error: %s\n", errStr)
		return exitcode.UserError
	}

	// Check if first positional arg starts with - (should have been parsed as flag)
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug

	if !cmd.NeedsService() && !cmd.NeedsAuth() {
		return cmd.Run(ctx, cfg, nil, positionalArgs, out, errOut)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}

	deps, err := d.factory(ctx, cfg, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.BackendError
	}
	defer func() {
		if err := deps.Close(); err != nil {
			slog.Debug("close", "err", err)
		}
	}()

	if cmd.NeedsAuth() {
		if code := d.checkSession(ctx, cfg, deps, errOut); code != exitcode.Success {
			return code
		}
	}

	return cmd.Run(ctx, cfg, deps, positionalArgs, out, errOut)
}

// checkSession rejects commands without stored credentials. For the REST
// backend with a profile endpoint, a failing or empty profile call means the
// stored token is no longer accepted, and the session is discarded.
func (d *Dispatcher) checkSession(ctx context.Context, cfg *config.Config, deps *commands.Deps, errOut io.Writer) int {
	if !deps.LoggedIn || deps.Service == nil {
		fmt.Fprintln(errOut, "error: not logged in (run: geotask login)")
		return exitcode.AuthError
	}
	if cfg.Backend != config.BackendREST || cfg.MePath == "" || deps.Sessions == nil {
		return exitcode.Success
	}

	me, err := deps.Service.Me(ctx)
	if err == nil && me != nil {
		return exitcode.Success
	}
	if err != nil && !errors.Is(err, remote.ErrSessionExpired) {
		var re *remote.RequestError
		if !errors.As(err, &re) {
			// Network trouble says nothing about the token.
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.BackendError
		}
	}
	if cerr := deps.Sessions.Clear(); cerr != nil {
		slog.Warn("clear session", "err", cerr)
	}
	fmt.Fprintln(errOut, "error: session expired (run: geotask login)")
	return exitcode.AuthError
}
