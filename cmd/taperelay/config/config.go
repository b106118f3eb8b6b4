// Package configcmder provides the config command for managing persistent
// taperelay configuration stored in the .taperelay/ directory.
package configcmder

import (
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/taperelay/pkg/cliui"
	"github.com/papercomputeco/taperelay/pkg/config"
)

const configLongHead string = `Manage persistent taperelay configuration.

Configuration is stored as config.toml in the .taperelay/ directory and
provides default values for command flags. CLI flags and TAPERELAY_
environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
`

const configLongTail string = `
Examples:
  taperelay config set storage.sink sqlite
  taperelay config set storage.sqlite_path ./records.db
  taperelay config get --raw proxy.upstream
  taperelay config list`

const configShortDesc string = "Manage persistent taperelay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongHead + keyIndex() + configLongTail,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// keyIndex renders one line per section listing that section's keys.
func keyIndex() string {
	var b strings.Builder
	for section, keys := range keysBySection() {
		fmt.Fprintf(&b, "  %-12s %s\n", section, strings.Join(keys, ", "))
	}
	return b.String()
}

// keysBySection yields sections in TOML order with their keys.
func keysBySection() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		var (
			section string
			keys    []string
		)
		for _, k := range config.ValidConfigKeys() {
			if s := config.KeySection(k); s != section {
				if section != "" && !yield(section, keys) {
					return
				}
				section, keys = s, nil
			}
			keys = append(keys, k)
		}
		if section != "" {
			yield(section, keys)
		}
	}
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func openConfiger(cmd *cobra.Command) (*config.Configer, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfger, nil
}

func printTarget(out io.Writer, cfger *config.Configer) {
	if cfger.Exists() {
		fmt.Fprintf(out, "\n  %s %s\n\n",
			cliui.KeyStyle.Render("Config file:"),
			cliui.DimStyle.Render(cfger.GetTarget()),
		)
		return
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No config file at "+cfger.GetTarget()+". Using defaults."))
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}
