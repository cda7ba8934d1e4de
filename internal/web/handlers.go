package web

import (
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/JonMunkholm/surveyimport/internal/core"
	"github.com/JonMunkholm/surveyimport/internal/web/templates"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":         "ok",
		"active_imports": s.service.ActiveImports(),
	})
}

func (s *Server) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	templ.Handler(templates.ImportPage(s.cfg.Import.MaxUploadBytes)).ServeHTTP(w, r)
}

func (s *Server) handleRunPage(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Status(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	templ.Handler(templates.RunPage(st)).ServeHTTP(w, r)
}

func (s *Server) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	runs, err := s.recentRuns(r)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	templ.Handler(templates.HistoryPage(runs)).ServeHTTP(w, r)
}

// handleTemplate serves the example import file.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+core.TemplateFileName+`"`)
	if err := core.WriteTemplate(w); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
	}
}

// handleHistory returns recent run summaries. ?limit= caps the count.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	runs, err := s.recentRuns(r)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	render.JSON(w, r, map[string]any{"runs": runs})
}

func (s *Server) recentRuns(r *http.Request) ([]core.RunSummary, error) {
	if s.history == nil {
		return []core.RunSummary{}, nil
	}

	limit := parseIntParam(r, "limit", defaultHistoryLimit)
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []core.RunSummary{}
	}
	return runs, nil
}

// parseIntParam reads a positive integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return defaultVal
	}
	return v
}
