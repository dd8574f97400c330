package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/teranos/jobtrail/capture"
	"github.com/teranos/jobtrail/errors"
	"github.com/teranos/jobtrail/jobs"
	"github.com/teranos/jobtrail/logger"
	"github.com/teranos/jobtrail/source"
	"github.com/teranos/jobtrail/version"
)

// HandleHealth reports liveness and build information
func (s *JobServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	info := version.Get()

	s.mu.RLock()
	clients := len(s.clients)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: info.Version,
		Commit:  info.Short(),
		Clients: clients,
	})
}

// HandleJobs lists jobs (GET, optional ?status=) or captures a new one (POST)
func (s *JobServer) HandleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListJobs(w, r)
	case http.MethodPost:
		s.handleCapture(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *JobServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := jobs.ParseStatus(raw)
		if err != nil {
			writeErr(w, err)
			return
		}
		filtered := records[:0]
		for _, rec := range records {
			if rec.Status == status {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	writeJSON(w, http.StatusOK, JobsResponse{Jobs: records, Total: len(records)})
}

func (s *JobServer) handleCapture(w http.ResponseWriter, r *http.Request) {
	if !s.allowCapture(w) {
		return
	}

	var req CaptureRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	in, err := remoteInput(req)
	if err != nil {
		writeErr(w, err)
		return
	}

	// Concurrent captures of the same input share one pipeline run. The run
	// outlives any single caller so a disconnect cannot fail the others.
	key := string(in.Kind) + "|" + strings.TrimSpace(in.Value)
	v, err, shared := s.captures.Do(key, func() (interface{}, error) {
		return s.capturer.Capture(context.WithoutCancel(r.Context()), in)
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	res := v.(*capture.Result)
	if shared {
		logger.FromContext(r.Context(), s.logger).Debugw("Capture shared with concurrent request",
			logger.FieldJobID, res.Record.ID)
	}
	writeCaptureResult(w, res)
}

// remoteInput turns a capture request into a pipeline input. Network callers
// send URLs or text only; a value that looks like a local path is text.
func remoteInput(req CaptureRequest) (source.Input, error) {
	if strings.TrimSpace(req.Input) == "" {
		return source.Input{}, errors.NewValidationError("input is required")
	}
	kind, err := source.ParseKind(req.Kind)
	if err != nil {
		return source.Input{}, err
	}

	switch kind {
	case source.KindURL:
		return source.Input{Kind: source.KindURL, Value: strings.TrimSpace(req.Input)}, nil
	case source.KindText:
		return source.Input{Kind: source.KindText, Value: req.Input}, nil
	case source.KindPDF:
		return source.Input{}, errors.WithHint(
			errors.NewValidationError("kind pdf needs the file itself"),
			`upload the PDF to POST /api/jobs/upload as multipart field "file"`)
	default:
		return source.DetectRemote(req.Input), nil
	}
}

// HandleUpload captures a PDF posting sent as multipart field "file"
func (s *JobServer) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if r.ContentLength > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", s.maxUploadBytes))
		return
	}
	if !s.allowCapture(w) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	file, header, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", s.maxUploadBytes))
			return
		}
		writeErr(w, errors.WithHint(
			errors.NewValidationError("no PDF in request: %v", err),
			`send the PDF as multipart form field "file"`))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeErr(w, errors.NewValidationError("reading upload: %v", err))
		return
	}
	if len(data) == 0 {
		writeErr(w, errors.NewValidationError("uploaded file is empty"))
		return
	}

	in := source.Input{Kind: source.KindPDF, Value: uploadOrigin(header.Filename), Data: data}
	res, err := s.capturer.Capture(r.Context(), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeCaptureResult(w, res)
}

// uploadOrigin keeps only the base name of a client-supplied file name
func uploadOrigin(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "upload.pdf"
	}
	return base
}

// allowCapture applies the capture rate limit, answering 429 when exhausted
func (s *JobServer) allowCapture(w http.ResponseWriter) bool {
	if s.limiter.Allow() {
		return true
	}
	w.Header().Set("Retry-After", "10")
	writeError(w, http.StatusTooManyRequests, "Too many captures, retry shortly")
	return false
}

// writeCaptureResult answers 201 for a new record and 200 for an update
func writeCaptureResult(w http.ResponseWriter, res *capture.Result) {
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// HandleJob returns (GET) or deletes (DELETE) one job. The id may be a
// full id, a unique prefix, or a 1-based list position.
func (s *JobServer) HandleJob(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		if err := s.store.Delete(r.Context(), rec.ID); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleJobStatus moves a job to a new status
func (s *JobServer) HandleJobStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req StatusRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	status, err := jobs.ParseStatus(req.Status)
	if err != nil {
		writeErr(w, err)
		return
	}

	rec, err := s.store.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	updated, err := s.store.UpdateStatus(r.Context(), rec.ID, status, req.Note)
	if err != nil {
		logger.FromContext(r.Context(), s.logger).Infow("status change refused",
			logger.FieldJobID, rec.ID,
			logger.FieldFromStatus, rec.Status,
			logger.FieldStatus, status,
			logger.FieldErrorClass, errors.ClassOf(err))
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleJobNotes appends a note to a job
func (s *JobServer) HandleJobNotes(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req NoteRequest
	if err := readJSON(w, r, &req); err != nil {
		return
	}
	rec, err := s.store.Resolve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	updated, err := s.store.AddNote(r.Context(), rec.ID, req.Text)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleStats returns funnel statistics
func (s *JobServer) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	st, err := s.stats.Compute(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
