package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"

	"geotask/internal/config"
	"geotask/internal/exitcode"
)

func init() {
	Register(&WhoamiCmd{})
}

// WhoamiCmd prints the signed-in account.
type WhoamiCmd struct{}

func (c *WhoamiCmd) Name() string       { return "whoami" }
func (c *WhoamiCmd) Aliases() []string  { return []string{"me"} }
func (c *WhoamiCmd) Synopsis() string   { return "Show the signed-in account" }
func (c *WhoamiCmd) Usage() string      { return "geotask whoami" }
func (c *WhoamiCmd) NeedsAuth() bool    { return true }
func (c *WhoamiCmd) NeedsService() bool { return true }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoamiCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	if deps.Sessions != nil {
		if email := deps.Sessions.Current().Email; email != "" {
			fmt.Fprintln(out, email)
		}
	}

	me, err := deps.Service.Me(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitCode(err)
	}

	keys := make([]string, 0, len(me))
	for k := range me {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := me[k].(type) {
		case map[string]any, []any:
			continue
		default:
			fmt.Fprintf(out, "%s: %v\n", k, v)
		}
	}
	return exitcode.Success
}
