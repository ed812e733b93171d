package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"geotask/internal/config"
	"geotask/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string       { return "help" }
func (c *HelpCmd) Aliases() []string  { return nil }
func (c *HelpCmd) Synopsis() string   { return "Print usage" }
func (c *HelpCmd) Usage() string      { return "geotask help" }
func (c *HelpCmd) NeedsAuth() bool    { return false }
func (c *HelpCmd) NeedsService() bool { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, deps *Deps, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	fmt.Fprintln(out, "\nCommands:")
	for _, cmd := range DefaultRegistry.All() {
		name := cmd.Name()
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			name += " (" + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintf(out, "  %-22s %s\n", name, cmd.Synopsis())
	}
	return exitcode.Success
}

const helpText = `Usage:
  geotask                                    List tasks
  geotask list [common flags] [--format text|json|yaml]
  geotask add [common flags] (--photo <file> | --camera) <title...>
  geotask done [common flags] <ref>          Toggle completed
  geotask rm [common flags] <ref>
  geotask login [common flags] [--email <address>] [--password <password>]
  geotask logout [common flags]
  geotask whoami [common flags]
  geotask help
  geotask version

A <ref> is the task number printed by list, or a task id (id:<id> for numeric ids).

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr

Settings are read from config.toml in the config directory, then .env,
then GEOTASK_* environment variables (e.g. GEOTASK_API_URL).
`
