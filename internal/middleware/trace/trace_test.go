package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cashbook/internal/log"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Format: "json", Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "10.0.0.1" })

	var seenID string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		log.FromContext(r.Context()).InfoContext(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	if !strings.HasPrefix(seenID, "req_") {
		t.Fatalf("request id = %q, want req_ prefix", seenID)
	}
	if got := rr.Header().Get(RequestIDHeader); got != seenID {
		t.Errorf("%s header = %q, want %q", RequestIDHeader, got, seenID)
	}

	out := buf.String()
	for _, want := range []string{"HTTP request started", "HTTP request completed", `"status_code":418`, `"client_ip":"10.0.0.1"`, seenID} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}

	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Errorf("TotalRequests = %d, want 1", got)
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Errorf("GetRequestID() = %q, want empty", id)
	}
}
