package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/JonMunkholm/surveyimport/internal/core"
	"github.com/JonMunkholm/surveyimport/internal/logging"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory; the remainder spills to temporary files.
const multipartMemory = 8 << 20

// handleImport validates the upload and starts processing. A clean file
// answers 202 with the processing snapshot; a file with validation errors
// answers 422 with the errors and the run id for proceed-anyway.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Import.MaxUploadBytes)

	if err := r.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		respondError(w, r, fmt.Errorf("read upload: %w", err), uploadStatus(err))
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	var (
		file   multipart.File
		header *multipart.FileHeader
	)
	if f, h, err := r.FormFile("file"); err == nil {
		file, header = f, h
		defer file.Close()
	}

	req := importRequest{SurveyID: strings.TrimSpace(r.FormValue("survey_id"))}
	if header != nil {
		req.FileName = header.Filename
	}
	if err := s.validateImport(req); err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	st, err := s.service.StartImport(ctx, req.SurveyID, req.FileName, file)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(ctx).Info("import accepted",
		"run_id", st.RunID,
		"survey_id", st.SurveyID,
		"file", st.FileName,
		"status", st.Phase,
		"rows", st.TotalRows,
	)

	if st.Phase == core.PhaseValidationFailed {
		render.Status(r, http.StatusUnprocessableEntity)
	} else {
		render.Status(r, http.StatusAccepted)
	}
	render.JSON(w, r, st)
}

// handleStatus returns the current snapshot of a run.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.Status(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	render.JSON(w, r, st)
}

// handleProceed processes a run that failed row validation, skipping rows
// without a usable NPS score.
func (s *Server) handleProceed(w http.ResponseWriter, r *http.Request) {
	st, err := s.service.ProceedAnyway(WithRequestMetadata(r.Context(), r), chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, st)
}

// handleReset abandons a run.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Reset(chi.URLParam(r, "runID")); err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProgress streams run snapshots as Server-Sent Events. Each snapshot
// is a "progress" event; a final "complete" event marks the end of the
// stream, whether the run finished or was reset.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	updates, cancel, err := s.service.Subscribe(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	defer cancel()

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	var seq int
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			data, err := json.Marshal(st)
			if err != nil {
				logging.FromContext(r.Context()).Error("encode progress", "error", err)
				return
			}
			seq++
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", seq, data)
			flusher.Flush()

			// A run waiting on a validation decision publishes nothing until
			// the user acts; the page reconnects after proceeding.
			if st.Phase == core.PhaseValidationFailed {
				fmt.Fprint(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

func uploadStatus(err error) int {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
