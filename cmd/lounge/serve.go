package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goodtune/lounge/internal/api"
	"github.com/goodtune/lounge/internal/config"
	"github.com/goodtune/lounge/internal/metrics"
	"github.com/goodtune/lounge/internal/report"
	"github.com/goodtune/lounge/internal/systemd"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Lounge API server",
	Long:  `Start the Lounge HTTP JSON API, the metrics endpoint and the daily rollover scheduler.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Configure logging before anything else logs
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting Lounge")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to get systemd listeners")
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	ctx := context.Background()
	a, err := openApp(ctx, &logger)
	if err != nil {
		return err
	}
	defer a.Close()

	logger.Info().
		Str("type", a.cfg.Storage.Type).
		Int("sessions", len(a.tracker.List())).
		Int("active", len(a.tracker.ListActive())).
		Msg("Ledger loaded")

	recorder := metrics.NewRecorder(func() int { return len(a.tracker.ListActive()) })
	a.tracker.Subscribe(recorder.Observe)

	// Initialize rollover scheduler
	rollover, err := report.NewRolloverScheduler(a.tracker, a.calc, a.location, a.cfg.Reporting.RolloverTime, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize rollover scheduler: %w", err)
	}
	rollover.OnRollover = metrics.RecordRollover
	rollover.Start()

	// Initialize API Server
	apiAddr := fmt.Sprintf("%s:%d", a.cfg.Server.BindAddress, a.cfg.Server.HTTPPort)
	apiServer := api.NewServer(api.Config{
		ListenAddr:      apiAddr,
		Location:        a.location,
		MaxDocumentRows: a.cfg.Reporting.MaxDocumentRows,
	}, a.tracker, a.calc, a.gate, logger)

	if sdListeners.Activated && sdListeners.HTTP != nil {
		apiServer.SetListener(sdListeners.HTTP)
	}

	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API Server: %w", err)
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if a.cfg.Server.MetricsPort > 0 {
		metricsAddr := fmt.Sprintf("%s:%d", a.cfg.Server.BindAddress, a.cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)

		// Use systemd socket-activated listener if available
		if sdListeners.Activated && sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}

		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
		logger.Info().Msgf("Metrics: http://%s/metrics", metricsAddr)
	}

	logger.Info().Msg("Lounge startup complete")
	logger.Info().Msgf("API: http://%s/api", apiAddr)

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	stopWatchdog := make(chan struct{})
	if interval, err := systemd.StartWatchdog(stopWatchdog); err != nil {
		logger.Warn().Err(err).Msg("Failed to start systemd watchdog")
	} else if interval > 0 {
		logger.Debug().Dur("interval", interval).Msg("Systemd watchdog enabled")
	}

	// Wait for signals (shutdown or reload)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan

		if sig == syscall.SIGHUP {
			logger.Info().Msg("SIGHUP received, reloading ledger...")
			_ = systemd.NotifyReloading()
			if err := a.tracker.Reload(ctx); err != nil {
				logger.Error().Err(err).Msg("Failed to reload ledger")
			} else if err := a.gate.Init(ctx); err != nil {
				logger.Error().Err(err).Msg("Failed to reload access PIN")
			} else {
				logger.Info().Int("sessions", len(a.tracker.List())).Msg("Ledger reloaded successfully")
			}
			_ = systemd.NotifyReady()
			continue
		}

		logger.Info().Msg("Shutdown signal received, gracefully stopping...")
		break
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	close(stopWatchdog)
	rollover.Stop()

	if err := apiServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping API Server")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("Lounge stopped")

	return nil
}
