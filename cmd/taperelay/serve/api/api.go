// Package apicmder provides the review API server cobra command.
package apicmder

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/taperelay/api"
	sharedcmder "github.com/papercomputeco/taperelay/cmd/taperelay/shared"
	"github.com/papercomputeco/taperelay/pkg/config"
)

// Flags lists the registry keys the api command registers and binds.
var Flags = []string{
	config.FlagAPIListenStandalone,
	config.FlagSink,
	config.FlagLogDir,
	config.FlagSQLite,
	config.FlagPostgres,
}

const apiLongDesc string = `Run the taperelay review API for reading captured records.

Records can be read back from the sqlite, postgres and memory sinks. For
other sinks the record routes answer 501 Not Implemented.`

const apiShortDesc string = "Run the taperelay review API server"

func NewAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := sharedcmder.ResolveConfig(cmd, Flags...)
			if err != nil {
				return err
			}

			logger, err := sharedcmder.NewLogger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			return run(cmd.Context(), cfg, logger)
		},
	}

	sharedcmder.AddFlags(cmd, Flags...)

	return cmd
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// The review API never imports, so the import toggle is ignored here.
	readCfg := *cfg
	readCfg.Import.Enabled = false

	sink, err := sharedcmder.NewSink(ctx, &readCfg, nil, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	server := api.NewServer(api.Config{ListenAddr: cfg.API.Listen}, sink, logger)

	return server.Run()
}
