package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"geotask/internal/config"
	"geotask/internal/exitcode"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string       { return "rm" }
func (c *RmCmd) Aliases() []string  { return []string{"remove", "delete"} }
func (c *RmCmd) Synopsis() string   { return "Delete a task" }
func (c *RmCmd) Usage() string      { return "geotask rm <ref>" }
func (c *RmCmd) NeedsAuth() bool    { return true }
func (c *RmCmd) NeedsService() bool { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	if _, err := ParseTaskRef(args); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	if err := deps.Engine.Refresh(ctx); err != nil {
		return exitCode(err)
	}
	en, code := lookup(deps.Engine.Entries(), args, errOut)
	if code != exitcode.Success {
		return code
	}

	if err := deps.Engine.Remove(ctx, en.ID); err != nil {
		return exitCode(err)
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
