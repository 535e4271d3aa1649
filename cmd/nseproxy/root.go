package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/nse-proxy/internal/config"
	"github.com/Rajchodisetti/nse-proxy/internal/observ"
	"github.com/Rajchodisetti/nse-proxy/internal/upstream"
)

var (
	configPath string
	logLevel   string
	pretty     bool

	cfg config.Root
)

var rootCmd = &cobra.Command{
	Use:   "nseproxy",
	Short: "Session-aware proxy for NSE index and equity quotes",
	Long: `nseproxy forwards NIFTY 50 and equity quote requests to the NSE website.

It keeps the session cookie the site requires, spaces outbound calls by a
minimum interval and re-handshakes after the site rejects the session.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			c.Log.Level = logLevel
		}
		if cmd.Flags().Changed("pretty") {
			c.Log.Pretty = pretty
		}
		cfg = c
		observ.Setup(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (optional; env vars override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Human readable console logs instead of JSON")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd, indexCmd, quoteCmd)
}

// newUpstream builds the upstream client from the loaded config
func newUpstream() (*upstream.Client, error) {
	client, err := upstream.New(upstream.Options{
		BaseURL:     cfg.Upstream.BaseURL,
		MinInterval: cfg.Upstream.MinInterval(),
		Timeout:     cfg.Upstream.Timeout(),
		Retry: upstream.RetryPolicy{
			MaxAttempts: cfg.Upstream.MaxRetries,
			BaseBackoff: cfg.Upstream.BackoffBase(),
		},
		ProxyURL: cfg.Upstream.ProxyURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create upstream client")
	}
	return client, nil
}
