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
	Register(&DoneCmd{})
}

// DoneCmd implements the done command. It toggles: a completed task is reopened.
type DoneCmd struct{}

func (c *DoneCmd) Name() string       { return "done" }
func (c *DoneCmd) Aliases() []string  { return []string{"toggle"} }
func (c *DoneCmd) Synopsis() string   { return "Toggle a task between open and completed" }
func (c *DoneCmd) Usage() string      { return "geotask done <ref>" }
func (c *DoneCmd) NeedsAuth() bool    { return true }
func (c *DoneCmd) NeedsService() bool { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
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

	rec, err := deps.Engine.Toggle(ctx, en.ID)
	if err != nil {
		return exitCode(err)
	}

	if !cfg.Quiet {
		status := "reopened"
		if rec.Completed() {
			status = "completed"
		}
		fmt.Fprintf(out, "ok %s\n", status)
	}
	return exitcode.Success
}
