// Package server provides the HTTP surface of the speech service: the
// synthesis and upload endpoints plus health and metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/logger"
	"github.com/go-chi/chi/v5"

	"github.com/langbridge/speech-service/internal/metrics"
	"github.com/langbridge/speech-service/internal/multipart"
	"github.com/langbridge/speech-service/internal/speech"
)

const (
	headerContentType = "Content-Type"
	headerCORSOrigin  = "Access-Control-Allow-Origin"
	contentTypeJSON   = "application/json"
)

// Pipeline is the subset of the speech service used by the HTTP handlers,
// extracted so tests can substitute a double.
type Pipeline interface {
	Synthesize(ctx context.Context, input speech.SynthesizeInput) (*speech.SynthesizeResult, error)
	StoreUpload(ctx context.Context, fields map[string]multipart.Field) (*speech.UploadResult, error)
}

// Server wires the HTTP handlers to the pipeline.
type Server struct {
	pipeline    Pipeline
	decoder     *multipart.Decoder
	metrics     *metrics.Metrics
	engineLabel string
	log         *logger.Logger
}

// New creates a Server. engineLabel names the configured synthesis engine in
// the metrics.
func New(
	pipeline Pipeline,
	decoder *multipart.Decoder,
	m *metrics.Metrics,
	engineLabel string,
	log *logger.Logger,
) *Server {
	return &Server{
		pipeline:    pipeline,
		decoder:     decoder,
		metrics:     m,
		engineLabel: engineLabel,
		log:         log,
	}
}

// Router builds the chi router for the service.
func (s *Server) Router() *chi.Mux {
	router := chi.NewRouter()

	router.Post("/v1/speech", s.handleSynthesize)
	router.Post("/v1/uploads", s.handleUpload)
	router.Get("/healthz", s.handleHealth)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	return router
}

type synthesizeResponse struct {
	Message string `json:"message"`
	Key     string `json:"key"`
}

type uploadResponse struct {
	Message string `json:"message"`
	FileKey string `json:"file_key"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	var input speech.SynthesizeInput

	err := json.NewDecoder(r.Body).Decode(&input)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)

		return
	}

	start := time.Now()

	result, err := s.pipeline.Synthesize(r.Context(), input)
	if err != nil {
		s.metrics.RecordSynthesis(s.engineLabel, metrics.StatusFailed, time.Since(start))
		s.writeError(w, statusFromError(err), err)

		return
	}

	s.metrics.RecordSynthesis(s.engineLabel, metrics.StatusSuccess, time.Since(start))

	s.writeJSON(w, http.StatusOK, synthesizeResponse{
		Message: "Audio saved to " + result.Bucket + "/" + result.Key,
		Key:     result.Key,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.metrics.RecordUpload(metrics.StatusFailed, 0)
		s.writeError(w, http.StatusBadRequest, err)

		return
	}

	fields, err := s.decoder.Decode(body, r.Header.Get(headerContentType))
	if err != nil {
		s.metrics.RecordUpload(metrics.StatusFailed, 0)
		s.writeError(w, statusFromError(err), err)

		return
	}

	result, err := s.pipeline.StoreUpload(r.Context(), fields)
	if err != nil {
		s.metrics.RecordUpload(metrics.StatusFailed, 0)
		s.writeError(w, statusFromError(err), err)

		return
	}

	s.metrics.RecordUpload(metrics.StatusSuccess, len(body))

	w.Header().Set(headerCORSOrigin, "*")
	s.writeJSON(w, http.StatusOK, uploadResponse{
		Message: "File uploaded successfully.",
		FileKey: result.FileKey,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "speech-service",
	})
}

// statusFromError maps the client-error sentinels to 400; every other failure
// is a server error.
func statusFromError(err error) int {
	if errors.Is(err, speech.ErrTextEmpty) ||
		errors.Is(err, speech.ErrMissingFileField) ||
		errors.Is(err, speech.ErrEmptyFileContent) ||
		errors.Is(err, multipart.ErrMissingBoundary) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		s.log.Error("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed: %v", err)
	} else {
		s.log.Warn("Rejected request: %v", err)
	}

	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}
