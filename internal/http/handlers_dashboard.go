package http

import (
	"bytes"
	"net/http"

	"cashbook/internal/log"
)

const (
	pageTemplate      = "index.html"
	dashboardTemplate = "dashboard.html"
)

func (s *Server) dashboardView() dashboardView {
	summary, revision := s.summary(s.width)
	return newDashboardView(summary, revision, s.width, s.loc, s.formatter)
}

// render executes a template into a buffer so a failure never leaves a half
// written page behind.
func (s *Server) render(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Server) writeTemplate(w http.ResponseWriter, r *http.Request, name string, data any) {
	logger := log.FromContext(r.Context())
	if s.templates == nil {
		logger.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	body, err := s.render(name, data)
	if err != nil {
		logger.ErrorContext(r.Context(), "Template execution failed",
			log.FieldOperation, log.OpRender,
			"template", name,
			log.FieldError, err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// handleIndex renders the full dashboard page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.writeTemplate(w, r, pageTemplate, s.dashboardView())
}

// handleDashboard renders only the dashboard section, for HTMX refreshes.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.writeTemplate(w, r, dashboardTemplate, s.dashboardView())
}
