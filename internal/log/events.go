package log

import (
	"context"
	"log/slog"
	"net/http"
)

// EventLogger writes the few well-known events every process emits, so
// their shape stays the same wherever they are logged from.
type EventLogger struct {
	logger *Logger
}

func NewEventLogger(logger *Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// RequestStarted logs an incoming HTTP request.
func (e *EventLogger) RequestStarted(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent"), r.Header.Get("Referer")).
		WithClientIP(clientIP)

	e.logger.WithComponent(ComponentHTTP).InfoContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// RequestCompleted logs the outcome of a request. Client errors are warnings
// and server errors are errors.
func (e *EventLogger) RequestCompleted(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	switch {
	case statusCode >= 500:
		level = slog.LevelError
	case statusCode >= 400:
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "", "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP).
		WithComponent(ComponentHTTP)

	e.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// TransactionRecorded logs a ledger append that reached storage.
func (e *EventLogger) TransactionRecorded(ctx context.Context, id, category, description string, amountCents int64, revision uint64) {
	fields := NewFields().
		WithTransaction(id, category, description, amountCents).
		WithOperation(OpAppend).
		ToSlice()

	e.logger.WithComponent(ComponentLedger).InfoContext(ctx, "Transaction recorded", append(fields, FieldRevision, revision)...)
}
