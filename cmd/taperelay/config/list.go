package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/taperelay/pkg/cliui"
	"github.com/papercomputeco/taperelay/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key grouped by section, with its value from
the config.toml file stored in the .taperelay/ directory or its default.
Keys still at their default are dimmed and marked "(default)".

Examples:
  taperelay config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd)
		},
	}
}

func runList(cmd *cobra.Command) error {
	cfger, err := openConfiger(cmd)
	if err != nil {
		return err
	}

	entries, err := cfger.Entries()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printTarget(out, cfger)

	width := 0
	for _, e := range entries {
		width = max(width, len(e.Key))
	}

	section := ""
	for _, e := range entries {
		if s := config.KeySection(e.Key); s != section {
			section = s
			fmt.Fprintf(out, "  %s\n", cliui.HeaderStyle.Render("["+section+"]"))
		}

		line := fmt.Sprintf("    %s  %s", cliui.KeyStyle.Render(fmt.Sprintf("%-*s", width, e.Key)), renderValue(e.Key, e.Value))
		if e.Default {
			line += " " + cliui.DimStyle.Render("(default)")
		}
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	return nil
}
