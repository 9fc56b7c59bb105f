package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/watchhub/signalhub/internal/agent"
)

// newDeviceAgentCommand builds the `device-agent` subcommand: the edge
// counterpart that runs on a camera alongside its local HTTP service and
// maintains a resilient outbound connection to a signaling hub (spec.md
// §4.6). Unlike `serve`, it is deliberately flag-driven rather than
// configulator-based: a device agent has a handful of required settings and
// no env-file/remote-config surface to speak of.
func newDeviceAgentCommand(version string) *cobra.Command {
	var (
		hubURL       string
		deviceID     string
		deviceSecret string
		localHTTPURL string
	)

	cmd := &cobra.Command{
		Use:               "device-agent",
		Short:             "Run the device-side reconnecting agent",
		SilenceErrors:     true,
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo})))

			if hubURL == "" || deviceID == "" || deviceSecret == "" || localHTTPURL == "" {
				return fmt.Errorf("device-agent: --hub-url, --device-id, --device-secret, and --local-http-url are all required")
			}

			a := agent.New(agent.Config{
				HubURL:       hubURL,
				DeviceID:     deviceID,
				DeviceSecret: deviceSecret,
				AgentVersion: version,
				LocalHTTPURL: localHTTPURL,
			})

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
			go func() {
				sig := <-sigCh
				slog.Info("device agent shutting down due to signal", "signal", sig)
				cancel()
			}()

			a.Run(ctx)
			return nil
		},
	}

	cmd.Flags().StringVar(&hubURL, "hub-url", "", "WebSocket URL of the signaling hub's device endpoint, e.g. wss://hub.example.com/ws/device")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "This device's stable identity")
	cmd.Flags().StringVar(&deviceSecret, "device-secret", "", "Shared secret presented during hello")
	cmd.Flags().StringVar(&localHTTPURL, "local-http-url", "", "Base URL of this device's local HTTP service, e.g. http://127.0.0.1:8555")

	return cmd
}
