package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cashbook/internal/log"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to encode JSON response",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	}
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, r, status, map[string]string{"error": message})
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.metrics.startedAt).Round(time.Second).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["ledger_backend"] = "ok"
	default:
		if err := s.ready(ctx); err != nil {
			checks["ledger_backend"] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["ledger_backend"] = "ok"
		}
	}

	_, revision := s.ledger.Snapshot()
	checks["ledger"] = map[string]any{
		"revision": revision,
		"status":   "ok",
	}
	checks["chart_cache"] = map[string]any{
		"entries": s.chartCache.Size(),
		"status":  "ok",
	}
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	writeJSON(w, r, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	cacheStats := s.chartCache.Stats()
	txs, revision := s.ledger.Snapshot()

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_request_duration_avg_microseconds Average response time\n")
	fmt.Fprintf(w, "# TYPE http_request_duration_avg_microseconds gauge\n")
	fmt.Fprintf(w, "http_request_duration_avg_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP transactions_recorded_total Transactions recorded through the web adapter\n")
	fmt.Fprintf(w, "# TYPE transactions_recorded_total counter\n")
	fmt.Fprintf(w, "transactions_recorded_total %d\n\n", s.metrics.recorded.Load())

	fmt.Fprintf(w, "# HELP ledger_persist_failures_total Appends kept in memory but not persisted\n")
	fmt.Fprintf(w, "# TYPE ledger_persist_failures_total counter\n")
	fmt.Fprintf(w, "ledger_persist_failures_total %d\n\n", s.metrics.persistFailed.Load())

	fmt.Fprintf(w, "# HELP ledger_transactions Transactions currently in the ledger\n")
	fmt.Fprintf(w, "# TYPE ledger_transactions gauge\n")
	fmt.Fprintf(w, "ledger_transactions %d\n\n", len(txs))

	fmt.Fprintf(w, "# HELP ledger_revision Current ledger revision\n")
	fmt.Fprintf(w, "# TYPE ledger_revision gauge\n")
	fmt.Fprintf(w, "ledger_revision %d\n\n", revision)

	fmt.Fprintf(w, "# HELP cache_hits_total Total chart cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total %d\n\n", cacheStats.Hits)

	fmt.Fprintf(w, "# HELP cache_misses_total Total chart cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total %d\n\n", cacheStats.Misses)

	fmt.Fprintf(w, "# HELP cache_entries Current chart cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries %d\n\n", cacheStats.Size)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP rate_limit_clients Active rate limited clients\n")
	fmt.Fprintf(w, "# TYPE rate_limit_clients gauge\n")
	fmt.Fprintf(w, "rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP suspicious_requests_total Requests flagged by the security detector\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.metrics.startedAt).Seconds())
}
