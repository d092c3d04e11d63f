package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dhruvdaberao/CROCO/internal/gateway"
	"github.com/dhruvdaberao/CROCO/internal/logging"
)

var serveAddr string

// serveCmd runs the HTTP gateway for web front ends
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the conversation over HTTP",
	Long: `Starts the HTTP gateway so a web front end can drive the
conversation: a JSON state and message API, a WebSocket feed that
pushes streaming progress, and Prometheus metrics on /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = cfg.Gateway.Addr
	}

	srv := gateway.New(a.orch)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, addr)
	})

	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		// Shutdown on signal is a clean exit.
		logging.Get(logging.CategoryGateway).Info("gateway stopped")
		return nil
	}
	return err
}
