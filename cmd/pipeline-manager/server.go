// cmd/pipeline-manager/server.go
package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	pipeerrors "resonance-pipeline/internal/common/errors"
	"resonance-pipeline/internal/common/logger"
	"resonance-pipeline/internal/common/validation"
	"resonance-pipeline/internal/feedback"
	"resonance-pipeline/internal/models"
	"resonance-pipeline/internal/orchestrator"
)

// server is the thin HTTP surface over the pipeline: submit a run, poll a
// run, report an outcome.
type server struct {
	pipeline *orchestrator.Orchestrator
	feedback *feedback.Service
	logger   logger.Logger
}

func newServer(pipeline *orchestrator.Orchestrator, fb *feedback.Service, log logger.Logger) *server {
	return &server{
		pipeline: pipeline,
		feedback: fb,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/discovery-runs", s.handleDiscoveryRuns)
	mux.HandleFunc("/api/v1/discovery-runs/", s.handleGetRun)
	mux.HandleFunc("/api/v1/feedback", s.handleFeedback)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *server) handleDiscoveryRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := validation.ValidateDiscoveryRequest(payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.DiscoveryRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	run, err := s.pipeline.Submit(r.Context(), req)
	if err != nil {
		s.writeStandardError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/api/v1/discovery-runs/")
	if runID == "" || strings.Contains(runID, "/") {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	run, err := s.pipeline.GetRun(r.Context(), runID)
	if err != nil {
		s.writeStandardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := validation.ValidateFeedback(payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var fb models.OutcomeFeedback
	if err := json.Unmarshal(payload, &fb); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := s.feedback.Submit(r.Context(), fb); err != nil {
		s.writeStandardError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// writeStandardError maps pipeline error codes onto HTTP statuses.
func (s *server) writeStandardError(w http.ResponseWriter, err error) {
	var stdErr *pipeerrors.StandardError
	if !errors.As(err, &stdErr) {
		s.logger.Error("Unhandled API error", map[string]interface{}{"error": err.Error()})
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch stdErr.Code {
	case pipeerrors.ErrCodeInvalidRequest, pipeerrors.ErrCodeFeedbackRejected:
		status = http.StatusBadRequest
	case pipeerrors.ErrCodeRunNotFound:
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{
		"code":  string(stdErr.Code),
		"error": stdErr.Message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
