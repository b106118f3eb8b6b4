// Package taperelaycmder
package taperelaycmder

import (
	"fmt"

	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/taperelay/cmd/taperelay/auth"
	configcmder "github.com/papercomputeco/taperelay/cmd/taperelay/config"
	servecmder "github.com/papercomputeco/taperelay/cmd/taperelay/serve"
	sharedcmder "github.com/papercomputeco/taperelay/cmd/taperelay/shared"
	versioncmder "github.com/papercomputeco/taperelay/cmd/taperelay/version"
	"github.com/papercomputeco/taperelay/pkg/credentials"
)

const taperelayLongDesc string = `taperelay is a recording relay for chat-completion APIs.

Point an OpenAI-compatible client at the proxy; every streamed completion is
relayed to the upstream unchanged and one record of the exchange is written
to the configured sink.

Run services using:
  taperelay serve api      Run the review API server
  taperelay serve proxy    Run the proxy server
  taperelay serve          Run both servers together`

const taperelayShortDesc string = "taperelay - recording chat-completion relay"

func NewTaperelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "taperelay",
		Short:         taperelayShortDesc,
		Long:          taperelayLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := credentials.LoadDotEnv(); err != nil {
				return fmt.Errorf("loading .env: %w", err)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolP(sharedcmder.FlagDebug, "d", false, "Enable debug logging")
	cmd.PersistentFlags().Bool(sharedcmder.FlagJSONLogs, false, "Emit logs as JSON")
	cmd.PersistentFlags().String(sharedcmder.FlagConfigDir, "", "Override path to .taperelay/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
