// Package worker runs the out-of-band spreadsheet export.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"cashbook/internal/amqp"
	"cashbook/internal/core"
	"cashbook/internal/log"
)

const stopTimeout = 10 * time.Second

// Exporter is the part of services.ExportProcessor the worker drives.
type Exporter interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	HandleTransaction(ctx context.Context, t core.Transaction) error
}

// Consumer delivers recorded-transaction events. *amqp.Client satisfies it.
type Consumer interface {
	ConsumeTransactionRecorded(ctx context.Context, handler amqp.Handler) error
}

// ExportWorker exports transactions as events arrive and, independently,
// catches up on anything the events missed.
type ExportWorker struct {
	exporter Exporter
	consumer Consumer
	logger   *log.Logger
}

// NewExportWorker wires the worker. A nil consumer runs catch-up only.
func NewExportWorker(exporter Exporter, consumer Consumer, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Default()
	}
	return &ExportWorker{
		exporter: exporter,
		consumer: consumer,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRecordedMessage exports the transaction carried by msg. Messages that
// do not describe a valid transaction are discarded rather than requeued.
func (w *ExportWorker) HandleRecordedMessage(ctx context.Context, msg *amqp.TransactionRecordedMessage) error {
	w.logger.DebugContext(ctx, "Processing transaction message", log.FieldTransactionID, msg.ID)

	t, err := msg.Transaction()
	if err != nil {
		return fmt.Errorf("%w: %w", amqp.ErrDiscard, err)
	}
	if err := w.exporter.HandleTransaction(ctx, t); err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}
	return nil
}

// Run blocks until ctx is canceled or the consumer fails permanently.
func (w *ExportWorker) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := w.exporter.Start(gctx); err != nil {
			return fmt.Errorf("start export processor: %w", err)
		}
		<-gctx.Done()

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), stopTimeout)
		defer cancel()
		return w.exporter.Stop(stopCtx)
	})

	if w.consumer != nil {
		g.Go(func() error {
			return w.consumer.ConsumeTransactionRecorded(gctx, w.HandleRecordedMessage)
		})
	} else {
		w.logger.InfoContext(ctx, "No message consumer configured, running periodic catch-up only")
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return nil
	}
	return err
}
