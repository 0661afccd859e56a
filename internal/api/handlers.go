package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lawtext/canon/internal/fragment"
	"github.com/lawtext/canon/internal/pipeline"
)

// handleStructureFragments runs the full pipeline synchronously over a
// fragment-stream envelope and returns the canonical document.
func (s *Server) handleStructureFragments(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	out, err := s.orchestrator.Engine().StructureFragments(data)
	if err != nil {
		s.structureError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(out)
}

// handleStructureHTML runs stages 3-6 synchronously over scraped portal HTML.
func (s *Server) handleStructureHTML(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	out, err := s.orchestrator.Engine().StructureHTML(data)
	if err != nil {
		s.structureError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(out)
}

// handleSubmitJob queues an asynchronous structuring job. The source kind is
// selected with ?kind=fragments|html, the raw input is the request body.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readBody(w, r)
	if !ok {
		return
	}
	kind := pipeline.SourceFragments
	if r.URL.Query().Get("kind") == string(pipeline.SourceHTML) {
		kind = pipeline.SourceHTML
	}

	job := pipeline.NewJob(uuid.NewString(), kind, r.URL.Query().Get("filename"), data)
	if err := s.orchestrator.Submit(job); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	status, reason := job.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]string{
		"job_id": job.ID,
		"status": string(status),
		"error":  reason,
	})
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	out := job.Result()
	if out == nil {
		status, reason := job.Snapshot()
		s.writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "job has no result",
			"status": string(status),
			"reason": reason,
		})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(out)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes))
	if err != nil {
		s.writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
		return nil, false
	}
	if len(data) == 0 {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "empty request body"})
		return nil, false
	}
	return data, true
}

// structureError maps document-level failures to 422 so the caller can
// record and skip; anything else is a server error.
func (s *Server) structureError(w http.ResponseWriter, err error) {
	s.log.Error("structuring failed", "error", err)
	code := http.StatusInternalServerError
	if errors.Is(err, fragment.ErrNoFragments) || errors.Is(err, fragment.ErrMissingPageHeight) {
		code = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body)
}
