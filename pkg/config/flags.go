package config

import (
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag describes one CLI flag and the config key it overrides. Commands
// refer to flags by registry key so the same flag reads identically on
// "taperelay serve" and its subcommands.
type Flag struct {
	Name      string
	Shorthand string

	// ViperKey is the dotted config key, e.g. "proxy.upstream".
	ViperKey string

	Description string

	// Bool registers a boolean flag instead of a string flag.
	Bool bool
}

// FlagSet maps registry keys to flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagProxyListen  = "proxy-listen"
	FlagAPIListen    = "api-listen"
	FlagUpstream     = "upstream"
	FlagSink         = "sink"
	FlagLogDir       = "log-dir"
	FlagSQLite       = "sqlite"
	FlagPostgres     = "postgres"
	FlagImport       = "import"
	FlagImportURL    = "import-url"
	FlagKafkaBrokers = "kafka-brokers"
	FlagKafkaTopic   = "kafka-topic"
	FlagNATSURL      = "nats-url"
	FlagNATSSubject  = "nats-subject"
	FlagCountTokens  = "count-tokens"

	// The standalone servers both call their flag "listen" but bind it
	// to their own key.
	FlagProxyListenStandalone = "proxy-listen-standalone"
	FlagAPIListenStandalone   = "api-listen-standalone"
)

// flagDefaults is a viper holding only NewDefaultConfig, used for flag defaults.
var flagDefaults = sync.OnceValue(func() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
})

// AddStringFlag registers the string flag fs[key] on cmd, defaulting to
// the config default of its key. Unknown keys are ignored.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().StringVarP(target, def.Name, def.Shorthand, flagDefaults().GetString(def.ViperKey), def.Description)
}

// AddBoolFlag registers the bool flag fs[key] on cmd, defaulting to the
// config default of its key. Unknown keys are ignored.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, flagDefaults().GetBool(def.ViperKey), def.Description)
}

// BindRegisteredFlags puts the flags named by keys at the top of v's
// precedence chain. Keys that are unknown or not registered on cmd are
// skipped.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok {
			continue
		}
		if f := cmd.Flags().Lookup(def.Name); f != nil {
			_ = v.BindPFlag(def.ViperKey, f)
		}
	}
}
