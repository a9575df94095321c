// Package server exposes the incident pipeline and the commit-source read
// API over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/stacksentry/stacksentry/api/schemas"
	"github.com/stacksentry/stacksentry/internal/config"
	"github.com/stacksentry/stacksentry/internal/diagnosis"
	"github.com/stacksentry/stacksentry/internal/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultHistoryCount = 5
	maxHistoryCount     = 100
)

// IncidentProcessor is the slice of the pipeline the ingress needs.
type IncidentProcessor interface {
	ProcessIncident(ctx context.Context, stacktrace, appName string) (*pipeline.Result, error)
}

// Server routes incident submissions and commit-history reads.
type Server struct {
	processor IncidentProcessor
	source    schemas.CommitSource
	logger    *zap.Logger
	cfg       config.ServerConfig

	httpServer *http.Server
}

// New wires the handler tree. source may be nil; the read routes then
// answer 503.
func New(processor IncidentProcessor, source schemas.CommitSource, cfg config.ServerConfig, logger *zap.Logger) *Server {
	s := &Server{
		processor: processor,
		source:    source,
		logger:    logger.Named("server"),
		cfg:       cfg,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/incident", s.handleIncident)
	mux.HandleFunc("GET /api/github/file-history/{owner}/{repo}", s.handleFileHistory)
	mux.HandleFunc("GET /api/github/commit/{owner}/{repo}/{sha}", s.handleCommit)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.withRequestLogging(mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is canceled, then drains within the configured
// shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

type incidentRequest struct {
	Stacktrace string `json:"stacktrace"`
	AppName    string `json:"app_name"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleIncident(w http.ResponseWriter, r *http.Request) {
	var req incidentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.processor.ProcessIncident(r.Context(), req.Stacktrace, req.AppName)
	if err != nil {
		var invalid *schemas.InvalidInputError
		if errors.As(err, &invalid) {
			s.writeError(w, r, http.StatusBadRequest, invalid.Error())
			return
		}
		var parseErr *diagnosis.ParseError
		if errors.As(err, &parseErr) {
			s.writeError(w, r, http.StatusInternalServerError, "failed to interpret the completion response")
			return
		}
		s.writeError(w, r, http.StatusInternalServerError, "incident processing failed")
		return
	}

	s.writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleFileHistory(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "commit source not configured")
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		s.writeError(w, r, http.StatusBadRequest, "missing required query parameter: path")
		return
	}

	count := defaultHistoryCount
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, http.StatusBadRequest, "count must be an integer")
			return
		}
		count = n
	}
	if count < 1 {
		count = 1
	}
	if count > maxHistoryCount {
		count = maxHistoryCount
	}

	ref := schemas.RepoRef{Owner: r.PathValue("owner"), Repo: r.PathValue("repo")}
	commits, err := s.source.FileCommitHistory(r.Context(), ref, path, count)
	if err != nil {
		s.writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"repo":    ref.String(),
		"path":    path,
		"commits": commits,
	})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	if s.source == nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "commit source not configured")
		return
	}

	ref := schemas.RepoRef{Owner: r.PathValue("owner"), Repo: r.PathValue("repo")}
	details, err := s.source.CommitDetails(r.Context(), ref, r.PathValue("sha"))
	if err != nil {
		s.writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}

	s.writeJSON(w, r, http.StatusOK, details)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, r, status, errorResponse{Success: false, Message: message})
}

// withRequestLogging assigns each request an ID and logs its outcome.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Info("Request handled",
			zap.String("request_id", requestID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
