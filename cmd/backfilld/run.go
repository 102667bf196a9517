package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/backfill/pkg/log"
	"github.com/cuemby/backfill/pkg/metrics"
	"github.com/cuemby/backfill/pkg/plugin"
	"github.com/cuemby/backfill/pkg/priority"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the backfill plugin until interrupted",
	Long: `Load the plugin, start the backfill agent and serve /metrics,
/health, /ready and /live until SIGINT or SIGTERM.

SIGHUP reconfigures the backfill agent.

Examples:
  # Run with the default configuration
  backfilld run

  # Run against a local predictor module
  backfilld run --search-path ./models --metrics-addr :9090`,
	RunE: runPlugin,
}

func init() {
	runCmd.Flags().Duration("interval", 0, "Pause between two backfill passes")
	runCmd.Flags().String("metrics-addr", "", "Address for metrics and health endpoints")
}

// hostBackfiller stands in for the workload manager's backfill pass
type hostBackfiller struct {
	logger zerolog.Logger
}

func (b *hostBackfiller) RunPass(ctx context.Context) error {
	b.logger.Debug().Msg("Backfill pass")
	return ctx.Err()
}

func (b *hostBackfiller) Reconfigure() error {
	b.logger.Info().Msg("Backfill parameters reloaded")
	return nil
}

func runPlugin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	metrics.SetVersion(Version)

	p, err := plugin.New(cfg, &hostBackfiller{logger: log.WithComponent("host")}, priority.Identity)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Init(); err != nil {
		log.Logger.Warn().Err(err).Msg("Plugin initialized with errors")
	}

	errCh := make(chan error, 1)
	var server *http.Server
	if cfg.Metrics.Addr != "" {
		server = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           metrics.Mux(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
		log.Logger.Info().Str("addr", cfg.Metrics.Addr).Msg("Serving metrics and health")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	var runErr error
wait:
	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				if err := p.Reconfig(); err != nil {
					log.Logger.Error().Err(err).Msg("Reconfiguration failed")
				}
				continue
			}
			log.Logger.Info().Str("signal", sig.String()).Msg("Shutting down")
			break wait
		case runErr = <-errCh:
			break wait
		}
	}

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Logger.Warn().Err(err).Msg("Metrics server shutdown")
		}
	}

	if err := p.Fini(); err != nil {
		return fmt.Errorf("failed to unload plugin: %w", err)
	}
	return runErr
}
