// Package sharedcmder holds the flag registry and the service wiring shared by
// the taperelay serve commands.
package sharedcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/taperelay/pkg/config"
	"github.com/papercomputeco/taperelay/pkg/credentials"
	"github.com/papercomputeco/taperelay/pkg/eventstream"
	"github.com/papercomputeco/taperelay/pkg/eventstream/kafka"
	natspub "github.com/papercomputeco/taperelay/pkg/eventstream/nats"
	"github.com/papercomputeco/taperelay/pkg/eventstream/nop"
	"github.com/papercomputeco/taperelay/pkg/logger"
	"github.com/papercomputeco/taperelay/pkg/storage"
	storageutils "github.com/papercomputeco/taperelay/pkg/storage/utils"
)

// Persistent flag names defined on the root command.
const (
	FlagDebug     = "debug"
	FlagJSONLogs  = "json-logs"
	FlagConfigDir = "config-dir"
)

// Flags is the registry of every config-backed flag used by taperelay commands.
var Flags = config.FlagSet{
	config.FlagProxyListen: {
		Name: "proxy-listen", Shorthand: "p", ViperKey: "proxy.listen",
		Description: "Address for proxy to listen on",
	},
	config.FlagAPIListen: {
		Name: "api-listen", Shorthand: "a", ViperKey: "api.listen",
		Description: "Address for API server to listen on",
	},
	config.FlagUpstream: {
		Name: "upstream", Shorthand: "u", ViperKey: "proxy.upstream",
		Description: "Upstream chat-completion API base URL",
	},
	config.FlagSink: {
		Name: "sink", ViperKey: "storage.sink",
		Description: "Record sink (file, sqlite, postgres, memory)",
	},
	config.FlagLogDir: {
		Name: "log-dir", ViperKey: "storage.log_dir",
		Description: "Directory for the file sink's dated JSONL logs",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path",
		Description: "Path to SQLite database for the sqlite sink",
	},
	config.FlagPostgres: {
		Name: "postgres", ViperKey: "storage.postgres_dsn",
		Description: "PostgreSQL connection string for the postgres sink",
	},
	config.FlagImport: {
		Name: "import", ViperKey: "import.enabled", Bool: true,
		Description: "Send records to the Open WebUI chat import endpoint instead of the sink",
	},
	config.FlagImportURL: {
		Name: "import-url", ViperKey: "import.url",
		Description: "Open WebUI chat import endpoint",
	},
	config.FlagKafkaBrokers: {
		Name: "kafka-brokers", ViperKey: "eventstream.brokers",
		Description: "Comma-separated Kafka brokers for record events (empty disables events)",
	},
	config.FlagKafkaTopic: {
		Name: "kafka-topic", ViperKey: "eventstream.topic",
		Description: "Kafka topic for record events",
	},
	config.FlagNATSURL: {
		Name: "nats-url", ViperKey: "eventstream.nats_url",
		Description: "NATS server URL for record events (empty disables NATS)",
	},
	config.FlagNATSSubject: {
		Name: "nats-subject", ViperKey: "eventstream.nats_subject",
		Description: "NATS subject for record events",
	},
	config.FlagCountTokens: {
		Name: "count-tokens", ViperKey: "proxy.count_tokens", Bool: true,
		Description: "Estimate prompt and completion token counts for each record",
	},
	config.FlagProxyListenStandalone: {
		Name: "listen", Shorthand: "l", ViperKey: "proxy.listen",
		Description: "Address for proxy to listen on",
	},
	config.FlagAPIListenStandalone: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for API server to listen on",
	},
}

// SinkFlags are the registry keys for record storage and event publishing.
var SinkFlags = []string{
	config.FlagSink,
	config.FlagLogDir,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagImport,
	config.FlagImportURL,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagNATSURL,
	config.FlagNATSSubject,
}

// FlagValues receives parsed flag values. Commands read resolved settings
// from the Config returned by ResolveConfig, not from these fields.
type FlagValues struct {
	strings map[string]*string
	bools   map[string]*bool
}

// AddFlags registers the given registry keys on cmd.
func AddFlags(cmd *cobra.Command, keys ...string) *FlagValues {
	fv := &FlagValues{
		strings: make(map[string]*string),
		bools:   make(map[string]*bool),
	}

	for _, key := range keys {
		if Flags[key].Bool {
			b := new(bool)
			fv.bools[key] = b
			config.AddBoolFlag(cmd, Flags, key, b)
			continue
		}

		s := new(string)
		fv.strings[key] = s
		config.AddStringFlag(cmd, Flags, key, s)
	}

	return fv
}

// ResolveConfig builds the effective configuration for cmd:
// flags > env > config.toml > defaults.
func ResolveConfig(cmd *cobra.Command, keys ...string) (*config.Config, error) {
	configDir, _ := cmd.Flags().GetString(FlagConfigDir)

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	config.BindRegisteredFlags(v, cmd, Flags, keys)

	return config.FromViper(v), nil
}

// NewLogger builds the logger selected by the persistent logging flags.
func NewLogger(cmd *cobra.Command) (*zap.Logger, error) {
	debug, err := cmd.Flags().GetBool(FlagDebug)
	if err != nil {
		return nil, fmt.Errorf("could not get debug flag: %w", err)
	}

	jsonLogs, _ := cmd.Flags().GetBool(FlagJSONLogs)
	if jsonLogs {
		return logger.NewJSONLogger(debug), nil
	}

	return logger.NewLogger(debug), nil
}

// Credentials resolves the upstream and import API keys. Environment
// variables win over keys stored with "taperelay auth".
type Credentials struct {
	Upstream string
	Import   string
}

// ResolveCredentials loads API keys for cmd's config directory.
func ResolveCredentials(cmd *cobra.Command) (*Credentials, error) {
	configDir, _ := cmd.Flags().GetString(FlagConfigDir)

	mgr, err := credentials.NewManager(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	upstream, err := mgr.Resolve(credentials.ProviderOpenRouter)
	if err != nil {
		return nil, err
	}

	imp, err := mgr.Resolve(credentials.ProviderOpenWebUI)
	if err != nil {
		return nil, err
	}

	return &Credentials{Upstream: upstream, Import: imp}, nil
}

// NewSink builds the record sink selected by cfg.
func NewSink(ctx context.Context, cfg *config.Config, creds *Credentials, log *zap.Logger) (storage.Sink, error) {
	opts := &storageutils.NewSinkOpts{
		Kind:        cfg.Storage.Sink,
		ImportMode:  cfg.Import.Enabled,
		LogDir:      cfg.Storage.LogDir,
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
		ImportURL:   cfg.Import.URL,
		Logger:      log,
	}
	if creds != nil {
		opts.ImportAPIKey = creds.Import
	}

	sink, err := storageutils.NewSink(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("creating %s sink: %w", opts.ResolveKind(), err)
	}

	log.Info("record sink ready", zap.String("sink", sink.Name()))
	return sink, nil
}

// NewPublisher builds the event publishers selected by cfg: Kafka when
// brokers are set, NATS when a server URL is set, both when both are set,
// and a no-op publisher otherwise.
func NewPublisher(cfg *config.Config, log *zap.Logger) (eventstream.Publisher, error) {
	var pubs []eventstream.Publisher

	if brokers := cfg.EventStream.BrokerList(); len(brokers) > 0 {
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   cfg.EventStream.Topic,
			Logger:  log,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}

		log.Info("kafka event stream enabled",
			zap.Strings("brokers", brokers),
			zap.String("topic", cfg.EventStream.Topic),
		)
		pubs = append(pubs, pub)
	}

	if url := cfg.EventStream.NATSURL; url != "" {
		pub, err := natspub.NewPublisher(natspub.Config{
			URL:     url,
			Subject: cfg.EventStream.NATSSubject,
			Logger:  log,
		})
		if err != nil {
			for _, p := range pubs {
				_ = p.Close()
			}
			return nil, fmt.Errorf("creating nats publisher: %w", err)
		}

		log.Info("nats event stream enabled",
			zap.String("url", url),
			zap.String("subject", cfg.EventStream.NATSSubject),
		)
		pubs = append(pubs, pub)
	}

	switch len(pubs) {
	case 0:
		log.Debug("event stream disabled")
		return nop.NewPublisher(), nil
	case 1:
		return pubs[0], nil
	default:
		return eventstream.NewMultiPublisher(pubs...), nil
	}
}
