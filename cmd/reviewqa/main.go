package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/reviewqa/internal/chunker"
	"github.com/kailas-cloud/reviewqa/internal/config"
	"github.com/kailas-cloud/reviewqa/internal/db"
	dbRedis "github.com/kailas-cloud/reviewqa/internal/db/redis"
	"github.com/kailas-cloud/reviewqa/internal/domain"
	logpkg "github.com/kailas-cloud/reviewqa/internal/logger"
	"github.com/kailas-cloud/reviewqa/internal/metrics"
	counterredis "github.com/kailas-cloud/reviewqa/internal/repository/counter/redis"
	countersqlite "github.com/kailas-cloud/reviewqa/internal/repository/counter/sqlite"
	"github.com/kailas-cloud/reviewqa/internal/repository/embcache"
	"github.com/kailas-cloud/reviewqa/internal/review"
	chiTransport "github.com/kailas-cloud/reviewqa/internal/transport/chi"
	ollamaTransport "github.com/kailas-cloud/reviewqa/internal/transport/ollama"
	openaiTransport "github.com/kailas-cloud/reviewqa/internal/transport/openai"
	counteruc "github.com/kailas-cloud/reviewqa/internal/usecase/counter"
	embeddinguc "github.com/kailas-cloud/reviewqa/internal/usecase/embedding"
	"github.com/kailas-cloud/reviewqa/internal/usecase/generation"
	healthuc "github.com/kailas-cloud/reviewqa/internal/usecase/health"
	"github.com/kailas-cloud/reviewqa/internal/usecase/indexing"
	queryuc "github.com/kailas-cloud/reviewqa/internal/usecase/query"
	"github.com/kailas-cloud/reviewqa/internal/vectorindex/memory"
	vecRedis "github.com/kailas-cloud/reviewqa/internal/vectorindex/redis"
	"github.com/kailas-cloud/reviewqa/internal/version"
)

// vectorIndex is built once by the indexer and then searched by queries.
type vectorIndex interface {
	indexing.Index
	queryuc.Retriever
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting reviewqa API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.String("addr", cfg.HTTP.Addr()),
		zap.String("mode", cfg.Pipeline.Mode),
		zap.String("counter_driver", cfg.Counter.Driver),
		zap.String("index_driver", cfg.Index.Driver),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterHTTPMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	ctx := context.Background()

	// Redis is optional: only counter/index/cache drivers that need it open a connection.
	var store db.Store
	if cfg.NeedsRedis() {
		redisStore, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
		})
		if err != nil {
			logger.Fatal("Failed to create redis store", zap.Error(err))
		}
		defer redisStore.Close()

		if err := redisStore.WaitForReady(ctx, time.Duration(cfg.Redis.ReadinessTimeout)*time.Second); err != nil {
			logger.Fatal("Redis not ready", zap.Error(err))
		}
		store = redisStore
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Redis.Addrs))
	}

	counterStore, closeCounter, err := buildCounterStore(ctx, cfg, store)
	if err != nil {
		logger.Fatal("Failed to open request counter", zap.Error(err))
	}
	defer closeCounter()
	counterSvc := counteruc.New(counterStore)

	// Providers (composition root)
	provider, model := providerName(cfg), cfg.EmbeddingModel()
	base, llm := buildProviders(cfg, logger)
	docEmbedder := buildEmbedder(base, provider, model, cfg.Embedding.DocumentInstruction, cfg, store, logger)
	queryEmbedder := buildEmbedder(base, provider, model, cfg.Embedding.QueryInstruction, cfg, store, logger)
	logger.Info("Embedding model set",
		zap.String("provider", provider),
		zap.String("model", model),
	)
	logger.Info("LLM model set",
		zap.String("provider", provider),
		zap.String("model", cfg.LLMModel()),
		zap.Float64("temperature", cfg.LLM.Temperature),
		zap.Int("max_tokens", cfg.LLM.MaxTokens),
	)

	runID := uuid.NewString()
	var index vectorIndex
	switch cfg.Index.Driver {
	case config.DriverRedis:
		index = vecRedis.New(store, runID, cfg.Index.WriteBatchSize, logger)
	default:
		index = memory.New()
	}

	querySvc := queryuc.New(
		counterSvc, queryEmbedder, index, generation.NewStuffGenerator(llm),
		queryuc.Config{TopK: cfg.Pipeline.TopK, MaxConcurrent: cfg.Pipeline.MaxConcurrentQueries},
		logger,
	)

	// Build the index before serving; a failure leaves the API up with the pipeline unavailable.
	if err := buildIndex(ctx, cfg, runID, docEmbedder, index, logger); err != nil {
		logger.Error("Failed to initialize the Q&A pipeline", zap.Error(err))
		querySvc.MarkUnavailable(err)
	} else {
		querySvc.MarkReady()
		logger.Info("Retrieval QA pipeline ready")
	}

	healthSvc := healthuc.New(counterSvc, querySvc, newEmbeddingHealthChecker(queryEmbedder))
	server := chiTransport.NewServer(querySvc, counterSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := cfg.HTTP.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildCounterStore opens the configured request counter store.
func buildCounterStore(ctx context.Context, cfg config.Config, store db.Store) (counteruc.Store, func(), error) {
	switch cfg.Counter.Driver {
	case config.DriverRedis:
		s, err := counterredis.NewStore(ctx, store)
		if err != nil {
			return nil, nil, fmt.Errorf("redis counter: %w", err)
		}
		return s, func() {}, nil
	default:
		s, err := countersqlite.NewStore(ctx, cfg.Counter.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite counter: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	}
}

func providerName(cfg config.Config) string {
	if cfg.Pipeline.IsLocal() {
		return "ollama"
	}
	return "openai"
}

// buildProviders creates the base embedder and the language model for the configured mode.
func buildProviders(cfg config.Config, logger *zap.Logger) (domain.Embedder, generation.LLM) {
	if cfg.Pipeline.IsLocal() {
		timeout := time.Duration(cfg.Ollama.TimeoutSec) * time.Second
		emb := ollamaTransport.NewEmbedder(ollamaTransport.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.EmbeddingModel(),
			Timeout: timeout,
		})
		llm := ollamaTransport.NewLLM(ollamaTransport.Config{
			BaseURL: cfg.Ollama.BaseURL,
			Model:   cfg.LLMModel(),
			Timeout: timeout,
		}, cfg.LLM.Temperature, cfg.LLM.MaxTokens)
		return emb, llm
	}

	timeout := time.Duration(cfg.OpenAI.TimeoutSec) * time.Second
	emb := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.OpenAI.APIKey,
		BaseURL:    cfg.OpenAI.BaseURL,
		Model:      cfg.EmbeddingModel(),
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    timeout,
		Logger:     logger,
	})
	llm := openaiTransport.NewLLM(&openaiTransport.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.LLMModel(),
		Timeout: timeout,
		Logger:  logger,
	}, cfg.LLM.Temperature, cfg.LLM.MaxTokens)
	return emb, llm
}

// buildEmbedder assembles the decorator chain: provider -> Cached -> Instrumented -> Instruction
func buildEmbedder(
	base domain.Embedder,
	provider, model, instruction string,
	cfg config.Config,
	store db.Store,
	logger *zap.Logger,
) domain.Embedder {
	embedder := base
	if cfg.Embedding.Cache && store != nil {
		embedder = embcache.New(base, store, model, metrics.EmbeddingCacheTotal, logger)
	}

	embedder = embeddinguc.NewInstrumentedEmbedder(
		embedder, provider, model, embeddinguc.DefaultMaxAPIBatchSize, logger,
	)

	// Instruction prefix (outermost, cache key includes instruction)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}

	return embedder
}

// buildIndex loads, chunks and embeds the corpus into index.
func buildIndex(
	ctx context.Context, cfg config.Config, runID string,
	embedder domain.Embedder, index indexing.Index, logger *zap.Logger,
) error {
	splitter, err := chunker.NewRecursiveSplitter(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("splitter: %w", err)
	}

	limit := 0
	if cfg.Pipeline.IsLocal() {
		limit = cfg.Pipeline.LimitDocs
	}

	indexer := indexing.New(
		review.NewCSVSource(cfg.Data.CSVPath, cfg.Data.Encoding),
		splitter, embedder, index,
		indexing.Config{
			Limit:     limit,
			BatchSize: cfg.Pipeline.EmbedBatchSize,
			Workers:   cfg.Pipeline.EmbedWorkers,
			RunID:     runID,
		},
		logger,
	)

	if _, err := indexer.Build(ctx); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	return nil
}

// embeddingHealthChecker wraps domain.Embedder to implement health.EmbeddingChecker.
type embeddingHealthChecker struct {
	embedder domain.Embedder
}

func newEmbeddingHealthChecker(embedder domain.Embedder) *embeddingHealthChecker {
	return &embeddingHealthChecker{embedder: embedder}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := h.embedder.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line, one per request
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
