package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"splicer/internal/admission"
	"splicer/internal/jobs"
	"splicer/internal/logging"
	"splicer/internal/manifest"
	"splicer/internal/runner"
	"splicer/internal/services"
)

const maxBodyBytes = 4 << 20

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitChunk(w http.ResponseWriter, r *http.Request) {
	var req ChunkRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	job, err := s.svc.SubmitChunk(r.Context(), runner.ChunkInput{
		AudioURL:         req.AudioURL,
		ChunkDurationSec: req.ChunkDurationSec,
		TotalDurationMs:  req.TotalDurationMs,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, JobEnvelope{Job: FromJob(job)})
}

func (s *Server) handleSubmitStitch(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "read body", "", err))
		return
	}
	if err := manifest.ValidateStitchRequest(raw); err != nil {
		s.writeError(w, r, err)
		return
	}
	var req StitchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "decode body", "", err))
		return
	}
	job, err := s.svc.SubmitStitch(r.Context(), runner.StitchInput{
		Segments:  req.Segments,
		AudioURL:  req.AudioURL,
		OutputKey: req.OutputKey,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, JobEnvelope{Job: FromJob(job)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromJob(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	opts := jobs.ListOptions{}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "list", "limit must be a non-negative integer", nil))
			return
		}
		opts.Limit = limit
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := jobs.ParseStatus(raw)
		if !ok {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "api", "list", fmt.Sprintf("unknown status %q", raw), nil))
			return
		}
		opts.Status = status
	}
	list, err := s.store.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := JobList{Jobs: make([]Job, 0, len(list))}
	for _, job := range list {
		resp.Jobs = append(resp.Jobs, FromJob(job))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDuration(w http.ResponseWriter, r *http.Request) {
	var req DurationRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ms, err := s.svc.AudioDuration(r.Context(), strings.TrimSpace(req.AudioURL))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DurationResponse{DurationMs: ms})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	ok, detail := s.svc.Capabilities(r.Context())
	writeJSON(w, http.StatusOK, Capabilities{FullPipeline: ok, Backend: s.opts.Backend, Detail: detail})
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return services.Wrap(services.ErrValidation, "api", "decode body", "", err)
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := services.HTTPStatus(err)
	message := err.Error()
	var rejected *admission.RejectedError
	if errors.As(err, &rejected) {
		message = rejected.Reason
	}
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("request failed",
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
