package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/log"
	"cashbook/internal/sheets"
)

// TransactionSource reloads the persisted ledger. *ledger.Store satisfies it.
type TransactionSource interface {
	Load(ctx context.Context) []core.Transaction
}

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// PollInterval is how often the ledger is diffed against the sheet (default: 5m)
	PollInterval time.Duration

	// BatchSize is the max number of rows appended per API call (default: 50)
	BatchSize int
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval: 5 * time.Minute,
		BatchSize:    50,
	}
}

// ExportProcessor copies ledger records to a spreadsheet exactly once per id.
// Records arrive either one at a time from the message queue or in bulk from
// the periodic catch-up that covers lost messages.
type ExportProcessor struct {
	source   TransactionSource
	exporter sheets.TransactionExporter
	config   ExportProcessorConfig
	logger   *log.Logger

	// exportMu serializes exports so the same id is never appended twice.
	exportMu sync.Mutex
	exported map[string]struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewExportProcessor creates a new export processor
func NewExportProcessor(source TransactionSource, exporter sheets.TransactionExporter, config ExportProcessorConfig, logger *log.Logger) *ExportProcessor {
	defaults := DefaultExportProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ExportProcessor{
		source:   source,
		exporter: exporter,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins the catch-up loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	p.logger.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion. Only the
// first of concurrent callers closes the loop; the others return at once.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	doneCh := p.doneCh
	p.mu.Unlock()

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	// Catch up immediately on startup
	p.catchUpAndLog(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.catchUpAndLog(ctx)
		}
	}
}

func (p *ExportProcessor) catchUpAndLog(ctx context.Context) {
	n, err := p.CatchUp(ctx)
	if err != nil {
		p.logger.ErrorContext(ctx, "Export catch-up failed",
			log.FieldOperation, log.OpExport,
			log.FieldCount, n,
			log.FieldError, err)
		return
	}
	if n > 0 {
		p.logger.InfoContext(ctx, "Export catch-up complete", log.FieldCount, n)
	}
}

// CatchUp exports every persisted record the sheet does not have yet, in
// ledger order and in batches. It returns how many rows were appended.
func (p *ExportProcessor) CatchUp(ctx context.Context) (int, error) {
	p.exportMu.Lock()
	defer p.exportMu.Unlock()

	ids, err := p.exporter.ExportedIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("read exported ids: %w", err)
	}
	p.exported = ids

	var pending []core.Transaction
	for _, t := range p.source.Load(ctx) {
		if _, done := p.exported[t.ID]; !done {
			pending = append(pending, t)
		}
	}

	exported := 0
	for start := 0; start < len(pending); start += p.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return exported, err
		}
		end := min(start+p.config.BatchSize, len(pending))
		batch := pending[start:end]

		ref, err := p.exporter.ExportTransactions(ctx, batch)
		if err != nil {
			return exported, fmt.Errorf("export batch: %w", err)
		}
		p.markExported(batch)
		exported += len(batch)

		p.logger.DebugContext(ctx, "Exported batch",
			log.FieldCount, len(batch),
			log.FieldExportRef, ref)
	}
	return exported, nil
}

// HandleTransaction exports a single record unless it is already in the sheet.
func (p *ExportProcessor) HandleTransaction(ctx context.Context, t core.Transaction) error {
	p.exportMu.Lock()
	defer p.exportMu.Unlock()

	if p.exported == nil {
		ids, err := p.exporter.ExportedIDs(ctx)
		if err != nil {
			return fmt.Errorf("read exported ids: %w", err)
		}
		p.exported = ids
	}
	if _, done := p.exported[t.ID]; done {
		p.logger.DebugContext(ctx, "Transaction already exported", log.FieldTransactionID, t.ID)
		return nil
	}

	ref, err := p.exporter.ExportTransactions(ctx, []core.Transaction{t})
	if err != nil {
		return fmt.Errorf("export %s: %w", t.ID, err)
	}
	p.markExported([]core.Transaction{t})

	p.logger.InfoContext(ctx, "Exported transaction",
		log.FieldTransactionID, t.ID,
		log.FieldCategory, t.Category.String(),
		log.FieldExportRef, ref)
	return nil
}

func (p *ExportProcessor) markExported(txs []core.Transaction) {
	if p.exported == nil {
		p.exported = make(map[string]struct{}, len(txs))
	}
	for _, t := range txs {
		p.exported[t.ID] = struct{}{}
	}
}
