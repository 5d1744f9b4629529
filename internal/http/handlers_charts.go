package http

import (
	"errors"
	"net/http"
	"strconv"

	"cashbook/internal/aggregate"
	"cashbook/internal/cache"
	"cashbook/internal/core"
	"cashbook/internal/log"
)

// Chart images are keyed by ledger revision, so a new transaction never
// serves a stale picture. The monthly key also carries the reference month
// because the window moves with the calendar.
func (s *Server) handleOverviewChart(w http.ResponseWriter, r *http.Request) {
	txs, revision := s.ledger.Snapshot()
	key := cache.RevisionKey("overview", revision)

	png, err := s.chartCache.GetOrLoad(key, func() ([]byte, error) {
		return s.charts.Overview(aggregate.TotalsByCategory(txs))
	})
	s.writePNG(w, r, png, err)
}

func (s *Server) handleMonthlyChart(w http.ResponseWriter, r *http.Request) {
	width, err := ParseWindowWidth(r.URL.Query(), s.width)
	if errors.Is(err, ErrInvalidWindowWidth) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	txs, revision := s.ledger.Snapshot()
	now := s.now()
	key := cache.RevisionKey("monthly", revision, width, core.MonthKeyOf(now, s.loc))

	png, err := s.chartCache.GetOrLoad(key, func() ([]byte, error) {
		return s.charts.Monthly(s.engine.RollingWindow(txs, now, width))
	})
	s.writePNG(w, r, png, err)
}

func (s *Server) writePNG(w http.ResponseWriter, r *http.Request, png []byte, err error) {
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Chart rendering failed",
			log.FieldOperation, log.OpRender,
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
		http.Error(w, "failed to render chart", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
