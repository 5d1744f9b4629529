// Package cli provides common CLI initialization utilities.
// This package consolidates the start-up steps shared by cmd/cashbook,
// cmd/cashbook-worker and cmd/cashbook-cli.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"cashbook/internal/amqp"
	"cashbook/internal/backend"
	"cashbook/internal/config"
	"cashbook/internal/core"
	"cashbook/internal/ledger"
	"cashbook/internal/log"
	"cashbook/internal/sheets"
	"cashbook/internal/sheets/google"
	"cashbook/internal/sheets/memory"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(cfg *config.Config, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(cfg.LogLevel),
		Format:    cfg.LogFormat,
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return cfg
}

// Ledger is an opened ledger together with the backend that persists it.
type Ledger struct {
	Store   *ledger.Store
	Backend *backend.BackendResult
}

// Close releases the backend.
func (l *Ledger) Close() error {
	return l.Backend.Close()
}

// Health reports whether the backend is reachable; backends without a check are always healthy.
func (l *Ledger) Health(ctx context.Context) error {
	if l.Backend.Health == nil {
		return nil
	}
	return l.Backend.Health(ctx)
}

// OpenLedger creates the configured backend and loads the ledger from it.
// Loading never fails: unreadable state starts an empty ledger.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *log.Logger, opts ...ledger.Option) (*Ledger, error) {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return nil, fmt.Errorf("create %s backend: %w", backendCfg.Type, err)
	}

	opts = append([]ledger.Option{ledger.WithLogger(logger)}, opts...)
	store := ledger.New(result.Blob, opts...)
	store.Load(ctx)

	return &Ledger{Store: store, Backend: result}, nil
}

// NewAMQPClient connects to the broker when AMQP_URL is set. A nil client
// with a nil error means events are disabled.
func NewAMQPClient(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		logger.Info("AMQP disabled, no AMQP_URL provided")
		return nil, nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to AMQP: %w", err)
	}
	return client, nil
}

// NewCurrencyFormatter builds the formatter for CURRENCY_LOCALE and CURRENCY_SYMBOL.
func NewCurrencyFormatter(cfg *config.Config) *core.CurrencyFormatter {
	f, err := core.NewCurrencyFormatter(cfg.CurrencyLocale, cfg.CurrencySymbol)
	if err != nil {
		return core.DefaultCurrencyFormatter()
	}
	return f
}

// ShutdownContext returns a context cancelled on SIGINT or SIGTERM.
func ShutdownContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// NewSheet returns the Google Sheets export target when GOOGLE_SPREADSHEET_ID
// is set, otherwise an in-memory sheet that keeps exports for this process only.
func NewSheet(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.Sheet, error) {
	if !cfg.ExportEnabled() {
		logger.Warn("Google Sheets disabled, exporting to an in-memory sheet")
		return memory.New(), nil
	}

	client, err := google.New(ctx, google.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		Location:        cfg.Location(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("google sheets client: %w", err)
	}
	if err := client.EnsureHeader(ctx); err != nil {
		return nil, fmt.Errorf("prepare sheet %q: %w", cfg.GoogleSheetName, err)
	}
	logger.Info("Google Sheets export initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	return client, nil
}
