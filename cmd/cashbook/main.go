package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cashbook/internal/cli"
	apphttp "cashbook/internal/http"
	"cashbook/internal/log"
	"cashbook/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	l, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer l.Close()

	amqpClient, err := cli.NewAMQPClient(cfg, logger)
	if err != nil {
		logger.Warn("Continuing without transaction events", log.FieldError, err)
	}

	var publisher services.Publisher
	if amqpClient != nil {
		defer amqpClient.Close()
		publisher = amqpClient
	}
	ledgerService := services.NewLedgerService(l.Store, publisher, logger)

	srv := apphttp.NewServer(ledgerService, apphttp.Options{
		Addr:        ":" + cfg.Port,
		WindowWidth: cfg.WindowWidth,
		Location:    cfg.Location(),
		Formatter:   cli.NewCurrencyFormatter(cfg),
		Logger:      logger,
		Ready:       l.Health,
	})
	srv.MaxHeaderBytes = 1 << 16

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting cashbook server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			"events", amqpClient != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
