// Package serve implements the serve command running the HTTP API.
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pondwatch/pondwatch-go/internal/api"
	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/datastore"
	"github.com/pondwatch/pondwatch-go/internal/logging"
	"github.com/pondwatch/pondwatch-go/internal/telemetry"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the monitoring API server",
		Long:  "Serve the analysis pipeline, alerts, notifications and assistant over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(settings)
		},
	}

	cmd.Flags().StringVar(&settings.Server.Host, "host", settings.Server.Host, "listen address")
	cmd.Flags().StringVar(&settings.Server.Port, "port", settings.Server.Port, "listen port")

	return cmd
}

func run(settings *conf.Settings) error {
	logging.Init()
	if settings.Main.Debug {
		logging.SetLevel(slog.LevelDebug)
	}
	log := logging.ForService("serve")

	if err := telemetry.Init(settings); err != nil {
		log.Warn("error telemetry unavailable", "error", err)
	}

	store, err := datastore.New(settings)
	if err != nil {
		return err
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("closing datastore", "error", err)
		}
	}()

	server := api.NewServer(settings, store)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()
	log.Info("server started",
		"host", settings.Server.Host,
		"port", settings.Server.Port,
		"metrics", settings.Server.EnableMetricsRoute)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	telemetry.Flush(2 * time.Second)
	log.Info("shutdown complete")
	return nil
}
