package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vmoranv/cerise/internal/app"
	"github.com/vmoranv/cerise/internal/config"
	"github.com/vmoranv/cerise/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Cerise runtime and its admin HTTP surface",
	Long: `Start the Cerise runtime: wires the event bus, memory engine, dialogue
engine, proactive scheduler, and plugin manager, then serves the admin
HTTP surface until interrupted.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(dataDir())
	if err != nil {
		return err
	}

	logging.Info().Str("version", Version).Msg("starting Cerise runtime")
	logging.Info().Str("data_dir", cfg.DataDir).Msg("data directory")

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	a.DiscoverPlugins(ctx)
	a.Proactive.Restore()

	go func() {
		logging.Info().Msg("admin HTTP surface listening")
		if err := a.Admin.Start(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("admin server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.Admin.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("admin server shutdown error")
	}

	logging.Info().Msg("stopped")
	return nil
}
