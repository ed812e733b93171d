package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"geotask/internal/config"
	"geotask/internal/exitcode"
	"geotask/internal/output"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
type ListCmd struct {
	format string
}

func (c *ListCmd) Name() string       { return "list" }
func (c *ListCmd) Aliases() []string  { return []string{"ls"} }
func (c *ListCmd) Synopsis() string   { return "List tasks" }
func (c *ListCmd) Usage() string      { return "geotask list [--format text|json|yaml]" }
func (c *ListCmd) NeedsAuth() bool    { return true }
func (c *ListCmd) NeedsService() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.format, "format", output.FormatText, "")
	fs.StringVar(&c.format, "f", output.FormatText, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	format := c.format
	if format == "" {
		format = output.FormatText
	}
	switch format {
	case output.FormatText, output.FormatJSON, output.FormatYAML:
	default:
		fmt.Fprintf(errOut, "error: unknown format: %s\n", format)
		return exitcode.UserError
	}

	// The engine has already reported the failure.
	if err := deps.Engine.Refresh(ctx); err != nil {
		return exitCode(err)
	}

	entries := deps.Engine.Entries()
	if len(entries) == 0 && format == output.FormatText {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}

	views := make([]output.TaskView, len(entries))
	for i, en := range entries {
		views[i] = output.NewTaskView(i+1, en.ID, en.Record, en.State.String(), cfg.ImageURLProp)
	}
	if err := output.Write(out, format, views); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
