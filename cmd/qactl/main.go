// Command qactl drives the scenario runner service and watches live
// extraction state for a voice call.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wolfman30/realty-voice-platform/cmd/mainconfig"
	appconfig "github.com/wolfman30/realty-voice-platform/internal/config"
	"github.com/wolfman30/realty-voice-platform/internal/runnerclient"
	"github.com/wolfman30/realty-voice-platform/internal/transport"
	"github.com/wolfman30/realty-voice-platform/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(mainconfig.Load()).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	cfg       *appconfig.Config
	runnerURL string
	token     string
	jwtSecret string
	output    string
	logLevel  string
}

func newRootCmd(cfg *appconfig.Config) *cobra.Command {
	opts := &rootOptions{cfg: cfg}
	root := &cobra.Command{
		Use:          "qactl",
		Short:        "Scenario runner and extraction resolver CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch opts.output {
			case "text", "json":
				return nil
			default:
				return fmt.Errorf("unknown --output %q (want text or json)", opts.output)
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.runnerURL, "runner-url", cfg.RunnerBaseURL, "scenario runner base URL")
	root.PersistentFlags().StringVar(&opts.token, "token", cfg.RunnerToken, "static bearer token for the runner")
	root.PersistentFlags().StringVar(&opts.jwtSecret, "jwt-secret", cfg.ServiceJWTSecret, "secret for self-minted service tokens")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "text", "output format: text or json")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")

	root.AddCommand(
		newScenariosCmd(opts),
		newRunCmd(opts),
		newGenerateCmd(opts),
		newPromptsCmd(opts),
		newHealthCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

func (o *rootOptions) logger(w io.Writer) *logging.Logger {
	return logging.NewWithWriter(w, o.logLevel, "text")
}

func (o *rootOptions) client(cmd *cobra.Command) (*runnerclient.Client, error) {
	httpClient, err := transport.NewHTTPClient(transport.Options{
		Token:     o.token,
		JWTSecret: o.jwtSecret,
		Subject:   o.cfg.ServiceJWTSubject,
		Audience:  transport.RunnerAudience,
		TokenTTL:  o.cfg.ServiceJWTTTL,
	})
	if err != nil {
		return nil, err
	}
	// run-all is bounded by the server's per-scenario timeout, not ours
	httpClient.Timeout = 0
	return runnerclient.New(o.runnerURL, httpClient, o.logger(cmd.ErrOrStderr())), nil
}

func (o *rootOptions) json() bool { return o.output == "json" }

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
