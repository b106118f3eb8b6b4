// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/taperelay/api"
	apicmder "github.com/papercomputeco/taperelay/cmd/taperelay/serve/api"
	proxycmder "github.com/papercomputeco/taperelay/cmd/taperelay/serve/proxy"
	sharedcmder "github.com/papercomputeco/taperelay/cmd/taperelay/shared"
	"github.com/papercomputeco/taperelay/pkg/config"
	"github.com/papercomputeco/taperelay/proxy"
)

// Flags lists the registry keys the serve command registers and binds.
var Flags = append([]string{
	config.FlagProxyListen,
	config.FlagAPIListen,
	config.FlagUpstream,
	config.FlagCountTokens,
}, sharedcmder.SinkFlags...)

type ServeCommander struct {
	cfg    *config.Config
	creds  *sharedcmder.Credentials
	logger *zap.Logger
}

const serveLongDesc string = `Run taperelay services.

Use subcommands to run individual services or all services together:
  taperelay serve          Run both proxy and review API together
  taperelay serve api      Run just the review API server
  taperelay serve proxy    Run just the proxy server

When run together both servers share one record sink, so the review API
sees records as soon as the proxy writes them.`

const serveShortDesc string = "Run taperelay services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.cfg, err = sharedcmder.ResolveConfig(cmd, Flags...)
			if err != nil {
				return err
			}

			cmder.logger, err = sharedcmder.NewLogger(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = cmder.logger.Sync() }()

			cmder.creds, err = sharedcmder.ResolveCredentials(cmd)
			if err != nil {
				return err
			}

			return cmder.run(cmd.Context())
		},
	}

	sharedcmder.AddFlags(cmd, Flags...)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The proxy and the API share one sink.
	sink, err := sharedcmder.NewSink(ctx, c.cfg, c.creds, c.logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	publisher, err := sharedcmder.NewPublisher(c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	proxyConfig, err := proxycmder.NewConfig(c.cfg, c.creds)
	if err != nil {
		return err
	}

	p, err := proxy.New(proxyConfig, sink, publisher, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	apiServer := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, sink, c.logger)
	defer apiServer.Shutdown()

	c.logger.Info("taperelay serving",
		zap.String("proxy_listen", c.cfg.Proxy.Listen),
		zap.String("api_listen", c.cfg.API.Listen),
		zap.String("upstream", c.cfg.Proxy.Upstream),
		zap.String("sink", sink.Name()),
		zap.Strings("kafka_brokers", c.cfg.EventStream.BrokerList()),
		zap.String("nats_url", config.Redact("eventstream.nats_url", c.cfg.EventStream.NATSURL)),
		zap.Bool("count_tokens", c.cfg.Proxy.CountTokens),
	)

	errs := make(chan error, 2)
	go func() { errs <- wrapServeErr("proxy", p.Run()) }()
	go func() { errs <- wrapServeErr("API server", apiServer.Run()) }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down", zap.NamedError("cause", context.Cause(ctx)))
		return nil
	}
}

// wrapServeErr labels a server's exit error. A clean exit is reported as
// an error too, since the servers only return on failure or shutdown.
func wrapServeErr(name string, err error) error {
	if err == nil {
		return fmt.Errorf("%s stopped", name)
	}
	return fmt.Errorf("%s error: %w", name, err)
}
