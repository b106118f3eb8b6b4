package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/taperelay/pkg/cliui"
	"github.com/papercomputeco/taperelay/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Validates the value for the given key and writes it to the config.toml
file stored in the .taperelay/ directory. Selecting a sink that needs a
location which is not configured yet prints a hint naming the missing key.

Examples:
  taperelay config set storage.sink postgres
  taperelay config set storage.postgres_dsn postgres://localhost/taperelay
  taperelay config set proxy.models_cache_ttl 30s
  taperelay config set eventstream.brokers kafka-1:9092,kafka-2:9092`

const setShortDesc string = "Set a configuration value"

// sinkLocation names the key each sink reads its location from.
var sinkLocation = map[string]string{
	"file":     "storage.log_dir",
	"sqlite":   "storage.sqlite_path",
	"postgres": "storage.postgres_dsn",
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(cmd, args[0], args[1])
		},
		ValidArgsFunction: completeKeys,
	}
}

func runSet(cmd *cobra.Command, key, value string) error {
	if !config.IsValidConfigKey(key) {
		return unknownKey(key)
	}

	cfger, err := openConfiger(cmd)
	if err != nil {
		return err
	}

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printTarget(out, cfger)
	fmt.Fprintf(out, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		renderValue(key, value),
	)

	if key == "storage.sink" {
		return hintSinkLocation(out, cfger, value)
	}
	return nil
}

func hintSinkLocation(out io.Writer, cfger *config.Configer, sink string) error {
	locKey, ok := sinkLocation[sink]
	if !ok {
		return nil
	}

	loc, err := cfger.GetConfigValue(locKey)
	if err != nil {
		return err
	}
	if loc == "" {
		fmt.Fprintf(out, "  %s %s is not set; run: taperelay config set %s <value>\n\n",
			cliui.WarnStyle.Render("!"), locKey, locKey)
	}
	return nil
}
