package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/notedex/internal/backoff"
	"github.com/kailas-cloud/notedex/internal/config"
	logpkg "github.com/kailas-cloud/notedex/internal/logger"
	"github.com/kailas-cloud/notedex/internal/metrics"
	"github.com/kailas-cloud/notedex/internal/repository/metadata"
	chiTransport "github.com/kailas-cloud/notedex/internal/transport/chi"
	"github.com/kailas-cloud/notedex/internal/transport/discovery"
	"github.com/kailas-cloud/notedex/internal/transport/gcs"
	openaiGen "github.com/kailas-cloud/notedex/internal/transport/openai"
	engineuc "github.com/kailas-cloud/notedex/internal/usecase/engine"
	healthuc "github.com/kailas-cloud/notedex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/notedex/internal/usecase/ingest"
	mindmapuc "github.com/kailas-cloud/notedex/internal/usecase/mindmap"
	queryuc "github.com/kailas-cloud/notedex/internal/usecase/query"
	taskuc "github.com/kailas-cloud/notedex/internal/usecase/task"
	"github.com/kailas-cloud/notedex/internal/version"
)

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

	logger.Info("Starting notedex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_path", cfg.Database.Path),
		zap.String("project_id", cfg.Google.ProjectID),
		zap.String("location", cfg.Google.Location),
	)

	ctx := context.Background()

	// Local metadata store (SQLite)
	store, err := metadata.Open(ctx, cfg.Database.Path)
	if err != nil {
		logger.Fatal("Failed to open metadata store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	if err := store.Ping(ctx); err != nil {
		logger.Fatal("Metadata store not ready", zap.Error(err))
	}
	logger.Info("Connected to metadata store")

	// Register ingest metrics explicitly (no init())
	metrics.RegisterIngestMetrics()

	// Blob store gateway
	gcsClient, err := gcs.NewClient(ctx, cfg.Google.CredentialsFile)
	if err != nil {
		logger.Fatal("Failed to create storage client", zap.Error(err))
	}
	blobGateway := gcs.New(gcsClient, gcs.Config{
		ProjectID:   cfg.Google.ProjectID,
		Location:    cfg.Google.BucketLocation,
		Propagation: time.Duration(cfg.Ingest.BucketPropagationSec) * time.Second,
		Retry: backoff.Policy{
			Attempts: cfg.Ingest.StorageAttempts,
			Base:     time.Duration(cfg.Ingest.StorageDelaySec) * time.Second,
		},
		Logger: logger,
	})

	// Search engine gateway
	discoveryClient, err := discovery.NewClient(ctx, cfg.Google.CredentialsFile)
	if err != nil {
		logger.Fatal("Failed to create discovery client", zap.Error(err))
	}
	searchGateway := discovery.New(discoveryClient, discovery.Config{
		ProjectID:        cfg.Google.ProjectID,
		Location:         cfg.Google.Location,
		DataStoreTimeout: time.Duration(cfg.Ingest.DataStoreTimeoutSec) * time.Second,
		EngineTimeout:    time.Duration(cfg.Ingest.EngineTimeoutSec) * time.Second,
		ImportTimeout:    time.Duration(cfg.Ingest.ImportTimeoutSec) * time.Second,
		PollInterval:     time.Duration(cfg.Ingest.OperationPollSec) * time.Second,
		ImportRetry: backoff.Policy{
			Attempts: cfg.Ingest.ImportAttempts,
			Base:     time.Duration(cfg.Ingest.ImportDelaySec) * time.Second,
			Growth:   time.Duration(cfg.Ingest.ImportDelayGrowthSec) * time.Second,
		},
		Settle: time.Duration(cfg.Ingest.PostImportSettleSec) * time.Second,
		Logger: logger,
	})

	// Mind map generator
	generator := openaiGen.NewGenerator(&openaiGen.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Logger:  logger,
	})

	// Create use case services
	engineSvc := engineuc.New(store, searchGateway, blobGateway, logger)
	ingestSvc := ingestuc.New(store, blobGateway, searchGateway, logger)
	taskSvc := taskuc.New(store)
	querySvc := queryuc.New(store, searchGateway)
	mindmapSvc := mindmapuc.New(store, searchGateway, generator, logger)
	healthSvc := healthuc.New(store, generator)

	// Create chi server
	server := chiTransport.NewServer(engineSvc, ingestSvc, taskSvc, querySvc, mindmapSvc, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
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
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
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

			// Set X-Request-ID in response header
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			// Per-request logger with request_id
			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// Canonical log line — one line per request
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
