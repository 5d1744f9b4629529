package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"cashbook/internal/core"
	"cashbook/internal/log"
	"cashbook/internal/sheets"
)

// Ensure interface conformance
var (
	_ sheets.TransactionExporter = (*Client)(nil)
	_ sheets.TransactionReader   = (*Client)(nil)
)

const defaultIDCacheTTL = 2 * time.Minute

// Options configures a Client.
type Options struct {
	SpreadsheetID string
	SheetName     string
	// CredentialsJSON takes precedence over CredentialsFile.
	CredentialsJSON string
	CredentialsFile string
	Location        *time.Location
	IDCacheTTL      time.Duration
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
	logger        *log.Logger

	// Exported ids are cached so every poll does not re-read column F.
	mu            sync.Mutex
	cachedIDs     map[string]struct{}
	cacheExpires  time.Time
	cacheDuration time.Duration
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(opts.SheetName) == "" {
		return nil, errors.New("missing sheet name")
	}
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.WithComponent(log.ComponentSheets)

	svc, err := newSheetsService(ctx, opts, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, opts, logger), nil
}

func newClient(svc *gsheet.Service, opts Options, logger *log.Logger) *Client {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	ttl := opts.IDCacheTTL
	if ttl <= 0 {
		ttl = defaultIDCacheTTL
	}
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(opts.SpreadsheetID),
		sheetName:     strings.TrimSpace(opts.SheetName),
		loc:           loc,
		logger:        logger,
		cacheDuration: ttl,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(opts.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(opts.CredentialsFile)

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		logger.DebugContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		logger.DebugContext(ctx, "Reading service account credentials", "path", serviceAccountFile)
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = data
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// EnsureHeader writes the header row when the sheet is empty.
func (c *Client) EnsureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:F1", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	vr := &gsheet.ValueRange{Values: [][]any{sheets.Header}}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write header to %s: %w", c.sheetName, err)
	}
	c.logger.InfoContext(ctx, "Wrote export sheet header", "sheet", c.sheetName)
	return nil
}

// ExportTransactions appends one row per transaction below the existing data.
// Values are written RAW so dates and ids are not reinterpreted by the sheet.
func (c *Client) ExportTransactions(ctx context.Context, txs []core.Transaction) (string, error) {
	if len(txs) == 0 {
		return "", nil
	}
	rows := make([][]any, 0, len(txs))
	for _, t := range txs {
		if err := t.Validate(); err != nil {
			return "", fmt.Errorf("validation failed for %s: %w", t.ID, err)
		}
		rows = append(rows, sheets.Row(t, c.loc))
	}

	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.sheetName, err)
	}

	c.mu.Lock()
	if c.cachedIDs != nil {
		for _, t := range txs {
			c.cachedIDs[t.ID] = struct{}{}
		}
	}
	c.mu.Unlock()

	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	return ref, nil
}

// ExportedIDs reads the ID column, serving from cache while it is fresh.
func (c *Client) ExportedIDs(ctx context.Context) (map[string]struct{}, error) {
	c.mu.Lock()
	if c.cachedIDs != nil && time.Now().Before(c.cacheExpires) {
		out := copyIDs(c.cachedIDs)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!F2:F", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := parseIDColumn(resp.Values)

	c.mu.Lock()
	c.cachedIDs = ids
	c.cacheExpires = time.Now().Add(c.cacheDuration)
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "Refreshed exported id cache", log.FieldCount, len(ids))
	return copyIDs(ids), nil
}

// InvalidateCache forces the next ExportedIDs call to hit the API.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	c.cachedIDs = nil
	c.mu.Unlock()
}

// ReadTransactions reads every data row back as ledger records.
func (c *Client) ReadTransactions(ctx context.Context) ([]core.Transaction, error) {
	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	return parseTransactionRows(resp.Values, c.loc)
}

func copyIDs(in map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for id := range in {
		out[id] = struct{}{}
	}
	return out
}
