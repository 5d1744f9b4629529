package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
	"cashbook/internal/log"
	"cashbook/internal/middleware/ratelimit"
	"cashbook/internal/services"
	"cashbook/internal/storage"
)

var testNow = time.Date(2025, time.February, 15, 9, 30, 0, 0, time.UTC)

type failingBlob struct{}

func (failingBlob) Read(context.Context) ([]byte, error) { return nil, ledger.ErrBlobNotFound }
func (failingBlob) Write(context.Context, []byte) error  { return errors.New("disk full") }

type testServer struct {
	*Server
	ledger *services.LedgerService
}

func newTestServer(t *testing.T, blob ledger.Blob, mutate func(*Options)) testServer {
	t.Helper()
	store := ledger.New(blob,
		ledger.WithClock(func() time.Time { return testNow }),
		ledger.WithLogger(log.Discard()))
	store.Load(context.Background())
	svc := services.NewLedgerService(store, nil, log.Discard())

	formatter, err := core.NewCurrencyFormatter("en-US", "$")
	if err != nil {
		t.Fatalf("NewCurrencyFormatter() error = %v", err)
	}
	opts := Options{
		Addr:      ":0",
		Location:  time.UTC,
		Formatter: formatter,
		Logger:    log.Discard(),
		Now:       func() time.Time { return testNow },
	}
	if mutate != nil {
		mutate(&opts)
	}

	srv := NewServer(svc, opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testServer{Server: srv, ledger: svc}
}

func (ts testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

func (ts testServer) get(path string) *httptest.ResponseRecorder {
	return ts.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (ts testServer) postForm(path string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return ts.do(req)
}

func (ts testServer) seed(t *testing.T, txs ...core.Transaction) {
	t.Helper()
	if err := ts.ledger.Import(context.Background(), txs); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
}

func (ts testServer) summary(t *testing.T) summaryResponse {
	t.Helper()
	rr := ts.get("/api/summary")
	if rr.Code != http.StatusOK {
		t.Fatalf("/api/summary status = %d", rr.Code)
	}
	var s summaryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	return s
}

func tx(id string, c core.Category, desc string, units int64, at time.Time) core.Transaction {
	return core.Transaction{ID: id, Category: c, Description: desc, Amount: core.Units(units), Timestamp: at}
}

func TestIndex_EmptyLedger(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	rr := ts.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status = %d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"<h1>Cashbook</h1>",
		`class="amount positive">$0<`,
		"No transactions yet. Add your first transaction above!",
		`hx-post="/transactions/credit-card"`,
		"/charts/overview.png?rev=",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID should be set by the trace middleware")
	}
}

func TestIndex_MonthGroups(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)
	ts.seed(t,
		tx("a", core.Income, "Salary", 500, time.Date(2025, time.January, 2, 10, 0, 0, 0, time.UTC)),
		tx("b", core.Expense, "Rent", 700, time.Date(2025, time.January, 3, 10, 0, 0, 0, time.UTC)),
		tx("c", core.Savings, "Fund", 100, time.Date(2025, time.February, 10, 9, 30, 0, 0, time.UTC)),
	)

	rr := ts.get("/ui/dashboard")
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status = %d", rr.Code)
	}
	body := rr.Body.String()

	feb := strings.Index(body, "February 2025")
	jan := strings.Index(body, "January 2025")
	if feb < 0 || jan < 0 || feb > jan {
		t.Fatalf("months should be listed newest first (feb=%d jan=%d)", feb, jan)
	}
	rent := strings.Index(body, "Rent")
	salary := strings.Index(body, "Salary")
	if rent < 0 || salary < 0 || rent > salary {
		t.Errorf("transactions should be listed newest first within a month")
	}

	for _, want := range []string{
		`class="amount negative">-$300<`,
		`month-net negative">Net: $200 💸`,
		"10 Feb 2025, 09:30",
		"&#43;$500", // html/template escapes the plus sign
		"-$700",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
	if strings.Contains(body, "<html") {
		t.Error("partial should not contain the page shell")
	}
}

func TestRecordTransaction_FormRedirects(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	rr := ts.postForm("/transactions/income", url.Values{"description": {"Salary"}, "amount": {"50000"}}, false)
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q", loc)
	}

	s := ts.summary(t)
	if s.Count != 1 || s.Totals["income"] != 5000000 || s.NetCents != 5000000 {
		t.Errorf("summary after income = %+v", s)
	}
}

func TestRecordTransaction_HTMX(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	rr := ts.postForm("/transactions/expense", url.Values{"description": {"Groceries"}, "amount": {"250"}}, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{EventTransactionRecorded, `"category":"expense"`, `"month":"2025-02"`, EventFormReset} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %q: %s", want, trigger)
		}
	}

	body := rr.Body.String()
	for _, want := range []string{`<section id="dashboard"`, "Groceries", "-$250", `class="amount negative">-$250<`} {
		if !strings.Contains(body, want) {
			t.Errorf("partial missing %q", want)
		}
	}
}

func TestRecordTransaction_JSON(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	req := httptest.NewRequest(http.MethodPost, "/transactions/credit-card",
		strings.NewReader(`{"description": "Card bill", "amount": 8000}`))
	req.Header.Set("Content-Type", "application/json")
	rr := ts.do(req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var got transactionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID == "" || got.Category != "credit-card" || got.AmountCents != 800000 || got.Month != "2025-02" {
		t.Errorf("created = %+v", got)
	}
	if !got.Timestamp.Equal(testNow) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, testNow)
	}
}

func TestRecordTransaction_InvalidAmount(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	for _, amount := range []string{"", "abc", "0", "-5", "NaN"} {
		t.Run(amount, func(t *testing.T) {
			rr := ts.postForm("/transactions/expense", url.Values{"description": {"x"}, "amount": {amount}}, true)
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d, want 422", rr.Code)
			}
			if !strings.Contains(rr.Body.String(), `class="error"`) {
				t.Errorf("body = %q", rr.Body.String())
			}
		})
	}

	if s := ts.summary(t); s.Count != 0 || s.Revision != 1 {
		t.Errorf("rejected input must leave the ledger untouched: %+v", s)
	}
}

func TestRecordTransaction_BodyTooLarge(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	form := url.Values{"description": {strings.Repeat("x", maxBodyBytes)}, "amount": {"10"}}
	rr := ts.postForm("/transactions/expense", form, true)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
	if s := ts.summary(t); s.Count != 0 {
		t.Errorf("an oversized body must not record anything: %+v", s)
	}
}

func TestRecordTransaction_InvalidAmountJSON(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	req := httptest.NewRequest(http.MethodPost, "/transactions/income", strings.NewReader(`{"amount": -1}`))
	req.Header.Set("Content-Type", "application/json")
	rr := ts.do(req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestRecordTransaction_UnknownCategory(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	rr := ts.postForm("/transactions/gifts", url.Values{"amount": {"10"}}, true)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestRecordTransaction_PersistFailureKeepsRecord(t *testing.T) {
	ts := newTestServer(t, failingBlob{}, nil)

	rr := ts.postForm("/transactions/savings", url.Values{"description": {"Fund"}, "amount": {"100"}}, true)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}

	s := ts.summary(t)
	if s.Count != 1 || s.Totals["savings"] != 10000 {
		t.Errorf("record should stay in memory after a failed write: %+v", s)
	}

	metrics := ts.get("/metrics").Body.String()
	if !strings.Contains(metrics, "ledger_persist_failures_total 1") {
		t.Errorf("metrics should count the failed write:\n%s", metrics)
	}
}

func TestRecordTransaction_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	rr := ts.get("/transactions/income")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
}

func TestUnknownPath(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	if rr := ts.get("/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestAPISummary_NegativeNet(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)
	ts.seed(t,
		tx("a", core.Income, "Salary", 100, testNow),
		tx("b", core.Expense, "Rent", 250, testNow),
	)

	s := ts.summary(t)
	if s.NetCents != -15000 || s.CashInHand != "-$150" {
		t.Errorf("net = %d (%s), want -15000 (-$150)", s.NetCents, s.CashInHand)
	}
	if s.Shares["expense"] < 71.4 || s.Shares["expense"] > 71.5 {
		t.Errorf("expense share = %v", s.Shares["expense"])
	}
	if s.Revision != 2 {
		t.Errorf("Revision = %d, want 2 (load then import)", s.Revision)
	}
}

func TestAPIMonths(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)
	ts.seed(t,
		tx("dec", core.Income, "Bonus", 10, time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC)),
		tx("feb1", core.Expense, "Early", 1, time.Date(2025, time.February, 1, 8, 0, 0, 0, time.UTC)),
		tx("jan", core.Savings, "Fund", 2, time.Date(2025, time.January, 5, 8, 0, 0, 0, time.UTC)),
		tx("feb2", core.Expense, "Late", 3, time.Date(2025, time.February, 9, 8, 0, 0, 0, time.UTC)),
	)

	rr := ts.get("/api/months")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var months []monthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &months); err != nil {
		t.Fatalf("decode: %v", err)
	}

	var keys []string
	for _, m := range months {
		keys = append(keys, m.Month)
	}
	if strings.Join(keys, ",") != "2025-02,2025-01,2024-12" {
		t.Fatalf("months = %v", keys)
	}
	feb := months[0]
	if len(feb.Transactions) != 2 || feb.Transactions[0].ID != "feb2" {
		t.Errorf("February transactions = %+v", feb.Transactions)
	}
	if feb.NetCents != -400 || feb.Totals["expense"] != 400 {
		t.Errorf("February totals = %+v net %d", feb.Totals, feb.NetCents)
	}
}

func TestAPIMonths_EmptyLedger(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	rr := ts.get("/api/months")
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("body = %q, want []", rr.Body.String())
	}
}

func TestAPIWindow(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)
	ts.seed(t,
		tx("old", core.Income, "Too old", 5, time.Date(2024, time.November, 30, 12, 0, 0, 0, time.UTC)),
		tx("jan", core.Income, "Salary", 50, time.Date(2025, time.January, 5, 8, 0, 0, 0, time.UTC)),
	)

	rr := ts.get("/api/window?width=3")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var w windowResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &w); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if w.Width != 3 || len(w.Months) != 3 {
		t.Fatalf("window = %+v", w)
	}
	want := []string{"2024-12", "2025-01", "2025-02"}
	for i, m := range w.Months {
		if m.Month != want[i] {
			t.Errorf("Months[%d] = %s, want %s", i, m.Month, want[i])
		}
	}
	if w.Months[0].NetCents != 0 || w.Months[1].Totals["income"] != 5000 || w.Months[2].NetCents != 0 {
		t.Errorf("window values = %+v", w.Months)
	}

	if rr := ts.get("/api/window"); rr.Code != http.StatusOK {
		t.Errorf("default width status = %d", rr.Code)
	}
	if rr := ts.get("/api/window?width=0"); rr.Code != http.StatusBadRequest {
		t.Errorf("width=0 status = %d, want 400", rr.Code)
	}
}

func TestCharts(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)
	pngMagic := []byte("\x89PNG\r\n\x1a\n")

	for _, path := range []string{"/charts/overview.png", "/charts/monthly.png", "/charts/monthly.png?width=12", "/charts/monthly.png?width=1"} {
		rr := ts.get(path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s Content-Type = %q", path, ct)
		}
		if !bytes.HasPrefix(rr.Body.Bytes(), pngMagic) {
			t.Errorf("%s did not return a PNG", path)
		}
	}

	before := ts.chartCache.Stats()
	if rr := ts.get("/charts/overview.png"); rr.Code != http.StatusOK {
		t.Fatalf("cached overview status = %d", rr.Code)
	}
	if after := ts.chartCache.Stats(); after.Hits != before.Hits+1 {
		t.Errorf("second overview request should hit the cache: %+v -> %+v", before, after)
	}

	ts.seed(t, tx("a", core.Income, "Salary", 10, testNow))
	before = ts.chartCache.Stats()
	ts.get("/charts/overview.png")
	if after := ts.chartCache.Stats(); after.Misses != before.Misses+1 {
		t.Errorf("a new revision should render a fresh chart: %+v -> %+v", before, after)
	}

	if rr := ts.get("/charts/monthly.png?width=abc"); rr.Code != http.StatusBadRequest {
		t.Errorf("bad width status = %d, want 400", rr.Code)
	}
}

func TestHealthReadyMetrics(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.get(path)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("%s Content-Type = %q", path, ct)
		}
	}

	ts.postForm("/transactions/income", url.Values{"amount": {"1"}}, false)
	rr := ts.get("/metrics")
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d", rr.Code)
	}
	for _, want := range []string{"transactions_recorded_total 1", "ledger_transactions 1", "http_requests_total"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestReady_BackendDown(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("database is locked") }
	})

	rr := ts.get("/readyz")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "database is locked") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestRateLimit_OnlyPosts(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), func(o *Options) {
		o.RateLimit = ratelimit.Config{RequestsPerMinute: 2}
	})

	form := url.Values{"description": {"x"}, "amount": {"1"}}
	for i := 0; i < 2; i++ {
		if rr := ts.postForm("/transactions/expense", form, true); rr.Code != http.StatusOK {
			t.Fatalf("post %d status = %d", i, rr.Code)
		}
	}
	rr := ts.postForm("/transactions/expense", form, true)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rr.Header().Get("Retry-After"))
	}

	for i := 0; i < 5; i++ {
		if rr := ts.get("/api/summary"); rr.Code != http.StatusOK {
			t.Fatalf("GET should not be limited, status = %d", rr.Code)
		}
	}
}

func TestStaticAssets(t *testing.T) {
	ts := newTestServer(t, storage.NewMemoryBlob(), nil)

	rr := ts.get("/static/style.css")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("Cache-Control = %q", cc)
	}
}
