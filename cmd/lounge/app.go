package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/lounge/internal/apperr"
	"github.com/goodtune/lounge/internal/config"
	"github.com/goodtune/lounge/internal/gate"
	"github.com/goodtune/lounge/internal/report"
	"github.com/goodtune/lounge/internal/session"
	"github.com/goodtune/lounge/internal/storage"
	"github.com/goodtune/lounge/internal/storage/bolt"
	"github.com/goodtune/lounge/internal/storage/redis"
	"github.com/rs/zerolog"
)

// app bundles the components every command works with.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	store     storage.Store
	tracker   *session.Tracker
	calc      *report.Calculator
	gate      *gate.Gate
	location  *time.Location
	formatter *report.Formatter
}

// openApp loads configuration, opens storage and loads the ledger. Command
// line tools pass a quiet logger; the server passes its configured one.
func openApp(ctx context.Context, logger *zerolog.Logger) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var l zerolog.Logger
	if logger != nil {
		l = *logger
	} else {
		l = zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
	}

	loc, err := cfg.Billing.Location()
	if err != nil {
		return nil, err
	}

	formatter, err := report.NewFormatter(cfg.Reporting.Locale, cfg.Reporting.Currency)
	if err != nil {
		return nil, err
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	defaults := storage.DefaultSettings()
	defaults.Rates = storage.RateSettings{
		RateOneTwoPlayers:    cfg.Billing.DefaultRateOneTwo,
		RateThreeFourPlayers: cfg.Billing.DefaultRateThreeFour,
	}

	tracker := session.NewTracker(store.Ledger(), session.Config{Defaults: &defaults}, l)
	if err := tracker.Load(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	var fallback *storage.RateSettings
	if cfg.Billing.FallbackToDefaults {
		fallback = &defaults.Rates
	}
	calc, err := report.NewCalculator(cfg.Reporting.CacheSize, fallback)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	tracker.Subscribe(calc.Observe)

	g := gate.New(store.Access(), gate.Config{
		Secret:      cfg.Access.JWTSecret,
		TTL:         parseDuration(cfg.Access.UnlockTTL, gate.DefaultTokenExpiration),
		MaxAttempts: cfg.Access.MaxAttempts,
		Lockout:     parseDuration(cfg.Access.Lockout, gate.DefaultLockout),
	}, l)
	if err := g.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize access gate: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    l,
		store:     store,
		tracker:   tracker,
		calc:      calc,
		gate:      g,
		location:  loc,
		formatter: formatter,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close storage")
	}
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "bolt":
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s (must be 'bolt' or 'redis')", cfg.Type)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// printError reports a command failure, naming its kind when it has one.
func printError(err error) {
	red := color.New(color.FgRed, color.Bold)
	if kind := apperr.KindOf(err); kind != apperr.Unknown {
		_, _ = red.Fprintf(os.Stderr, "❌ %s: ", kind)
		fmt.Fprintln(os.Stderr, err)
		return
	}
	_, _ = red.Fprint(os.Stderr, "❌ ")
	fmt.Fprintln(os.Stderr, err)
}

// requireUnlocked refuses mutating commands while a PIN is set unless the
// PIN was supplied with --pin or LOUNGE_PIN.
func (a *app) requireUnlocked(ctx context.Context, pin string) error {
	if !a.gate.HasPIN() {
		return nil
	}
	if pin == "" {
		pin = os.Getenv("LOUNGE_PIN")
	}
	if pin == "" {
		return fmt.Errorf("a PIN is set: pass --pin or set LOUNGE_PIN")
	}
	_, _, err := a.gate.Unlock(ctx, pin)
	return err
}
