// Package chi exposes the review question-answering pipeline over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewqa/internal/domain"
	"github.com/kailas-cloud/reviewqa/internal/logger"
	healthuc "github.com/kailas-cloud/reviewqa/internal/usecase/health"
	"github.com/kailas-cloud/reviewqa/internal/version"
)

// Fixed response texts.
const (
	WelcomeMessage      = "Welcome to the Disneyland Review QA API. Use the /docs endpoint to see the available endpoints."
	CounterResetMessage = "Counter has been reset to zero."
)

const maxQueryBodyBytes = 1 << 20

// QueryAnswerer answers a user question.
type QueryAnswerer interface {
	Answer(ctx context.Context, query string) (string, error)
}

// CounterResetter resets the request counter.
type CounterResetter interface {
	Reset(ctx context.Context) error
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	query         QueryAnswerer
	counter       CounterResetter
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(query QueryAnswerer, counter CounterResetter, health HealthChecker, logger *zap.Logger) *Server {
	s := &Server{
		query:   query,
		counter: counter,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrPipelineUnavailable,
			http.StatusServiceUnavailable, ErrorCodePipelineUnavailable, "pipeline unavailable"),
	}
	return s
}

// Routes registers every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.Root)
	r.Get("/docs", s.Docs)
	r.Post("/query", s.Query)
	r.Get("/reset_counter", s.ResetCounter)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}

// Root handles GET /.
func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, MessageResponse{Message: WelcomeMessage})
}

// Docs handles GET /docs.
func (s *Server) Docs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, DocsResponse{
		Title:     "Disneyland Review Q&A",
		Version:   version.Version,
		Endpoints: endpoints,
	})
}

var endpoints = []Endpoint{
	{Method: http.MethodGet, Path: "/", Description: "Welcome message"},
	{Method: http.MethodPost, Path: "/query", Description: `Answer a question about park reviews. Body: {"query": "<string>"}`},
	{Method: http.MethodGet, Path: "/reset_counter", Description: "Reset the request counter to zero"},
	{Method: http.MethodGet, Path: "/health", Description: "Component health"},
	{Method: http.MethodGet, Path: "/metrics", Description: "Prometheus metrics"},
	{Method: http.MethodGet, Path: "/docs", Description: "This list"},
}

// Query handles POST /query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "query is required")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	answer, err := s.query.Answer(ctx, *req.Query)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, QueryResponse{Answer: answer})
}

// ResetCounter handles GET /reset_counter.
func (s *Server) ResetCounter(w http.ResponseWriter, r *http.Request) {
	if err := s.counter.Reset(r.Context()); err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: CounterResetMessage})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if usage == nil || !usage.Used {
		return
	}
	w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	w.Header().Set("X-Prompt-Tokens", strconv.Itoa(usage.PromptTokens))
	w.Header().Set("X-Completion-Tokens", strconv.Itoa(usage.CompletionTokens))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func sentinelHandler(sentinel error, status int, code ErrorCode, msg string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// handleDomainError maps err to a response; anything unmapped is a generic 500.
func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromContextOr(ctx, s.logger)
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}
