package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"geotask/internal/config"
	"geotask/internal/exitcode"
	"geotask/internal/task"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	photo  string
	camera bool
}

func (c *AddCmd) Name() string       { return "add" }
func (c *AddCmd) Aliases() []string  { return []string{"create"} }
func (c *AddCmd) Synopsis() string   { return "Create a task with a photo and the current position" }
func (c *AddCmd) Usage() string      { return "geotask add (--photo <file> | --camera) <title...>" }
func (c *AddCmd) NeedsAuth() bool    { return true }
func (c *AddCmd) NeedsService() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.photo, "photo", "", "")
	fs.StringVar(&c.photo, "p", "", "")
	fs.BoolVar(&c.camera, "camera", false, "")
}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	title := strings.TrimSpace(strings.Join(args, " "))
	if title == "" {
		fmt.Fprintln(errOut, "error: title required")
		return exitcode.UserError
	}
	if c.photo == "" && !c.camera {
		fmt.Fprintln(errOut, "error: photo required (--photo <file> or --camera)")
		return exitcode.UserError
	}
	if c.photo != "" && c.camera {
		fmt.Fprintln(errOut, "error: cannot use both --photo and --camera")
		return exitcode.UserError
	}
	if deps.Photos != nil {
		deps.Photos.Gallery = c.photo
	}

	created, err := deps.Engine.CreateAndSync(ctx, title, c.camera)
	if err != nil {
		return exitCode(err)
	}

	if !cfg.Quiet {
		id, _ := created.ID()
		fmt.Fprintf(out, "ok %s\n", id)
		if addr, ok := task.AddressOf(created); ok {
			fmt.Fprintf(out, "   %s\n", addr)
		}
	}
	return exitcode.Success
}
