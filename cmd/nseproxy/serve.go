package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Rajchodisetti/nse-proxy/internal/observ"
	"github.com/Rajchodisetti/nse-proxy/internal/server"
)

var noBanner bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP proxy",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newUpstream()
		if err != nil {
			return err
		}
		if !noBanner {
			displayAppname("nse proxy")
		}

		srv := &http.Server{
			Addr:              ":" + cfg.Server.Port,
			Handler:           server.New(client, cfg.Server),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			observ.Log("server_started", map[string]any{
				"addr":            srv.Addr,
				"upstream":        cfg.Upstream.BaseURL,
				"min_interval_ms": cfg.Upstream.MinIntervalMs,
				"max_retries":     cfg.Upstream.MaxRetries,
				"proxied":         cfg.Upstream.ProxyURL != "",
			})
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- errors.Wrap(err, "listen and serve")
			}
			close(errCh)
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(stop)

		select {
		case err, ok := <-errCh:
			if ok {
				return err
			}
			return nil
		case sig := <-stop:
			observ.Log("server_stopping", map[string]any{"signal": sig.String()})
		}
		return shutdown(srv)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noBanner, "no-banner", false, "Skip the startup banner")
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "server shutdown")
	}
	observ.Log("server_stopped", nil)
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
