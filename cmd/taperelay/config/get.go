package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/taperelay/pkg/cliui"
	"github.com/papercomputeco/taperelay/pkg/config"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from the config.toml file stored in the
.taperelay/ directory, falling back to the default. Passwords embedded in
connection URLs are masked unless --raw is given.

With --raw only the bare value is printed, which suits shell scripts.

Examples:
  taperelay config get storage.sink
  taperelay config get --raw storage.postgres_dsn`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd, args[0], raw)
		},
		ValidArgsFunction: completeKeys,
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "Print only the unmasked value")
	return cmd
}

func runGet(cmd *cobra.Command, key string, raw bool) error {
	if !config.IsValidConfigKey(key) {
		return unknownKey(key)
	}

	cfger, err := openConfiger(cmd)
	if err != nil {
		return err
	}

	value, err := cfger.GetConfigValue(key)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if raw {
		fmt.Fprintln(out, value)
		return nil
	}

	printTarget(out, cfger)
	fmt.Fprintf(out, "  %s  %s\n\n", cliui.KeyStyle.Render(key), renderValue(key, value))
	return nil
}

func renderValue(key, value string) string {
	if value == "" {
		return cliui.DimStyle.Render("<not set>")
	}
	return cliui.ValueStyle.Render(fmt.Sprintf("%q", config.Redact(key, value)))
}
