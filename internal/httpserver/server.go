package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/blackmichael/scrutiny-graph/internal/config"
	"github.com/blackmichael/scrutiny-graph/internal/domain"
	"github.com/blackmichael/scrutiny-graph/internal/scrutiny"
)

const (
	// maxImportBytes caps the body of POST /api/posts.
	maxImportBytes = 1 << 20

	importRate  = 20 // imports per second
	importBurst = 50
)

// Server is the HTTP server that serves the knowledge graph API.
type Server struct {
	graphService  *domain.GraphService
	importLimiter *rate.Limiter
	logger        *slog.Logger
	httpServer    *http.Server
}

// NewServer creates a new HTTP server backed by the graph service. The
// metrics handler is mounted at /metrics when non-nil.
func NewServer(cfg *config.Config, graphService *domain.GraphService, metrics http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		graphService:  graphService,
		importLimiter: rate.NewLimiter(importRate, importBurst),
		logger:        logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/posts/{id}", s.handlePost)
	mux.HandleFunc("GET /api/posts/{id}/display", s.handleDisplay)
	mux.HandleFunc("GET /api/bindings/{id}/graph", s.handleBindingGraph)
	mux.HandleFunc("POST /api/posts", s.handleImportPost)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler, including request logging.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.graphService.Summary(r.Context())
	if err != nil {
		s.writeServiceError(w, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	details, err := s.graphService.PostDetails(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "post details", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	forceOriginal := false
	if v := r.URL.Query().Get("force_original"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "force_original must be a boolean")
			return
		}
		forceOriginal = parsed
	}

	shown, err := s.graphService.DisplayPost(r.Context(), r.PathValue("id"), forceOriginal)
	if err != nil {
		s.writeServiceError(w, "display post", err)
		return
	}
	writeJSON(w, http.StatusOK, shown)
}

func (s *Server) handleBindingGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := s.graphService.BindingGraph(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, "binding graph", err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

func (s *Server) handleImportPost(w http.ResponseWriter, r *http.Request) {
	if !s.importLimiter.Allow() {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "RateLimited", "too many imports")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "failed to read body")
		return
	}
	if len(body) > maxImportBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "InvalidRequest", "post too large")
		return
	}

	var post scrutiny.RawPost
	if err := json.Unmarshal(body, &post); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "body must be a post JSON object")
		return
	}

	inserted, err := s.graphService.IngestPost(r.Context(), &domain.IncomingPost{Post: post})
	if err != nil {
		s.writeServiceError(w, "import post", err)
		return
	}

	status := http.StatusOK
	if inserted {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"id":       post.ID,
		"kind":     scrutiny.Classify(post.Tags),
		"inserted": inserted,
	})
}

// writeServiceError maps domain errors to HTTP responses.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NotFound", err.Error())
	case errors.Is(err, domain.ErrInvalidPost):
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
	default:
		s.logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to "+op)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
