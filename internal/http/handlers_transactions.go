package http

import (
	"errors"
	"net/http"
	"strings"

	"cashbook/internal/core"
	"cashbook/internal/ledger"
	"cashbook/internal/log"
)

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the caller is an API client posting JSON.
func wantsJSON(r *http.Request) bool {
	return !isHTMX(r) && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// fail writes an HTML fragment for browsers and a JSON error for API clients.
func fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	if wantsJSON(r) {
		writeJSONError(w, r, status, message)
		return
	}
	ErrorResponse(status, message).Write(w)
}

// handleRecordTransaction appends one transaction of the category named in the path.
// HTMX callers get the refreshed dashboard section, JSON callers the created
// record, and plain form posts a redirect back to the page.
func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	p := NewRequestBodyParser(w, r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			fail(w, r, http.StatusRequestEntityTooLarge, "Request is too large")
			return
		}
		logger.WarnContext(ctx, "Parse body error", log.FieldError, err, log.FieldPath, r.URL.Path)
		fail(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	in, err := ParseTransactionInput(r.PathValue("category"), p)
	switch {
	case errors.Is(err, core.ErrInvalidCategory):
		fail(w, r, http.StatusNotFound, "Unknown transaction type")
		return
	case err != nil:
		fail(w, r, http.StatusUnprocessableEntity, "Please enter an amount greater than zero")
		return
	}

	t, err := s.ledger.RecordTransaction(ctx, in.Category, in.Description, in.Amount)
	switch {
	case errors.Is(err, ledger.ErrPersist):
		s.metrics.persistFailed.Add(1)
		fail(w, r, http.StatusInternalServerError, "Transaction recorded but could not be saved")
		return
	case errors.Is(err, core.ErrInvalidAmount), errors.Is(err, core.ErrInvalidCategory):
		fail(w, r, http.StatusUnprocessableEntity, "Invalid transaction")
		return
	case err != nil:
		logger.ErrorContext(ctx, "Record transaction error", log.FieldError, err)
		fail(w, r, http.StatusInternalServerError, "Failed to record transaction")
		return
	}
	s.metrics.recorded.Add(1)
	month := core.MonthKeyOf(t.Timestamp, s.loc)

	switch {
	case wantsJSON(r):
		writeJSON(w, r, http.StatusCreated, newTransactionResponse(t, month))
		return
	case !isHTMX(r):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if s.templates == nil {
		fail(w, r, http.StatusInternalServerError, "Transaction saved, reload the page to see it")
		return
	}
	view := s.dashboardView()
	body, err := s.render(dashboardTemplate, view)
	if err != nil {
		logger.ErrorContext(ctx, "Template execution failed",
			log.FieldOperation, log.OpRender,
			"template", dashboardTemplate,
			log.FieldError, err)
		fail(w, r, http.StatusInternalServerError, "Transaction saved, reload the page to see it")
		return
	}

	NewHTMXResponse().
		TriggerTransactionRecorded(t, month, view.Revision).
		TriggerFormReset().
		TriggerSuccessNotification(t.Category.Label() + " of " + s.formatter.Format(t.Amount) + " recorded").
		BodyHTML(body).
		Write(w)
}
