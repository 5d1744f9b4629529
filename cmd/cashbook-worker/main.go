package main

import (
	"os"

	"cashbook/internal/cli"
	"cashbook/internal/log"
	"cashbook/internal/services"
	"cashbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting cashbook-worker")

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	if cfg.DataBackend == "memory" {
		logger.Warn("The memory backend is private to each process, the worker will only see its own empty ledger")
	}

	// The store is only used as a read-through source: every catch-up reloads
	// the blob the server writes.
	l, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to open ledger", log.FieldError, err, log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer l.Close()

	sheet, err := cli.NewSheet(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize export target", log.FieldError, err)
		os.Exit(1)
	}

	processor := services.NewExportProcessor(l.Store, sheet, services.ExportProcessorConfig{
		PollInterval: cfg.ExportInterval,
		BatchSize:    cfg.ExportBatchSize,
	}, logger)

	amqpClient, err := cli.NewAMQPClient(cfg, logger)
	if err != nil {
		logger.Warn("Continuing with periodic catch-up only", log.FieldError, err)
	}

	var consumer worker.Consumer
	if amqpClient != nil {
		defer amqpClient.Close()
		consumer = amqpClient
	}

	exportWorker := worker.NewExportWorker(processor, consumer, logger)
	if err := exportWorker.Run(ctx); err != nil {
		logger.Error("Export worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("Worker stopped gracefully")
}
