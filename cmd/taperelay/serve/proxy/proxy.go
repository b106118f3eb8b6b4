// Package proxycmder provides the proxy server command.
package proxycmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	sharedcmder "github.com/papercomputeco/taperelay/cmd/taperelay/shared"
	"github.com/papercomputeco/taperelay/pkg/config"
	"github.com/papercomputeco/taperelay/pkg/tokenizer"
	"github.com/papercomputeco/taperelay/proxy"
)

// Flags lists the registry keys the proxy command registers and binds.
var Flags = append([]string{
	config.FlagProxyListenStandalone,
	config.FlagUpstream,
	config.FlagCountTokens,
}, sharedcmder.SinkFlags...)

const proxyLongDesc string = `Run the proxy server.

The proxy accepts OpenAI-style chat completion requests, forwards them to the
configured upstream with the upstream credential, and relays the response
stream back byte for byte. Once a stream ends the reply is reassembled and a
single record is written to the configured sink.

Requests whose model contains "cloood" are sent upstream as
anthropic/claude-3.5-sonnet:beta.`

const proxyShortDesc string = "Run the taperelay proxy server"

func NewProxyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
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

			creds, err := sharedcmder.ResolveCredentials(cmd)
			if err != nil {
				return err
			}

			return run(cmd.Context(), cfg, creds, logger)
		},
	}

	sharedcmder.AddFlags(cmd, Flags...)

	return cmd
}

func run(ctx context.Context, cfg *config.Config, creds *sharedcmder.Credentials, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	sink, err := sharedcmder.NewSink(ctx, cfg, creds, logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	publisher, err := sharedcmder.NewPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	proxyConfig, err := NewConfig(cfg, creds)
	if err != nil {
		return err
	}

	p, err := proxy.New(proxyConfig, sink, publisher, logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}
	defer p.Close()

	if creds.Upstream == "" {
		logger.Warn("no upstream credential configured; set OPENROUTER_API_KEY or run \"taperelay auth openrouter\"")
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- p.Run()
	}()

	// Wait for interrupt so in-flight streams get persisted by p.Close.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	}
}

// NewConfig maps the resolved configuration onto a proxy.Config.
func NewConfig(cfg *config.Config, creds *sharedcmder.Credentials) (proxy.Config, error) {
	ttl, err := cfg.Proxy.CacheTTL()
	if err != nil {
		return proxy.Config{}, err
	}
	// "0" in config.toml turns the cache off; proxy.Config reads zero as
	// the default.
	if ttl == 0 && cfg.Proxy.ModelsCacheTTL != "" {
		ttl = -1
	}

	c := proxy.Config{
		ListenAddr:     cfg.Proxy.Listen,
		UpstreamURL:    cfg.Proxy.Upstream,
		ModelsCacheTTL: ttl,
	}
	if creds != nil {
		c.APIKey = creds.Upstream
	}
	if cfg.Proxy.CountTokens {
		c.Tokenizer = tokenizer.New()
	}
	return c, nil
}
