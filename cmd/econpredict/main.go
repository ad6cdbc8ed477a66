package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/econpredict/internal/config"
	"github.com/kailas-cloud/econpredict/internal/db"
	"github.com/kailas-cloud/econpredict/internal/db/memory"
	dbQdrant "github.com/kailas-cloud/econpredict/internal/db/qdrant"
	dbRedis "github.com/kailas-cloud/econpredict/internal/db/redis"
	"github.com/kailas-cloud/econpredict/internal/loader"
	logpkg "github.com/kailas-cloud/econpredict/internal/logger"
	"github.com/kailas-cloud/econpredict/internal/metrics"
	"github.com/kailas-cloud/econpredict/internal/model"
	"github.com/kailas-cloud/econpredict/internal/model/onnx"
	"github.com/kailas-cloud/econpredict/internal/repository/article"
	"github.com/kailas-cloud/econpredict/internal/tokenizer"
	chiTransport "github.com/kailas-cloud/econpredict/internal/transport/chi"
	healthuc "github.com/kailas-cloud/econpredict/internal/usecase/health"
	predictuc "github.com/kailas-cloud/econpredict/internal/usecase/predict"
	retrievaluc "github.com/kailas-cloud/econpredict/internal/usecase/retrieval"
	"github.com/kailas-cloud/econpredict/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level, logpkg.FileOptions{
		Dir:        cfg.Logging.Dir,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting econpredict API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("vector_store", cfg.VectorStore.Driver),
		zap.String("model_path", cfg.Model.Path),
		zap.Bool("test_mode", cfg.Model.TestMode),
	)

	// Register metrics explicitly (no init())
	metrics.RegisterInferenceMetrics()
	metrics.RegisterPoolMetrics()
	metrics.RegisterStoreMetrics()

	collections := article.Collections{
		Important:    cfg.VectorStore.Collections.Important,
		NotImportant: cfg.VectorStore.Collections.NotImportant,
	}

	onnxOpts := onnx.Options{
		LibraryPath:  cfg.Model.ONNX.LibraryPath,
		ModelFile:    cfg.Model.ONNX.ModelFile,
		InputIDs:     cfg.Model.ONNX.InputIDs,
		Attention:    cfg.Model.ONNX.Attention,
		TokenTypes:   cfg.Model.ONNX.TokenTypes,
		LogitsOutput: cfg.Model.ONNX.LogitsOutput,
		HiddenOutput: cfg.Model.ONNX.HiddenOutput,
	}

	ld := loader.New(loader.Options{
		ModelPath:      cfg.Model.Path,
		AppRoot:        cfg.Model.AppRoot,
		TestMode:       cfg.Model.TestMode || os.Getenv("TEST_MODE") == "true",
		PoolSize:       cfg.Model.PoolSize,
		AcquireTimeout: time.Duration(cfg.Model.AcquireTimeoutSec) * time.Second,
		MaxSeqLen:      cfg.Model.MaxSeqLen,
		HiddenSize:     cfg.Model.HiddenSize,
		PingTimeout:    time.Duration(cfg.VectorStore.ReadinessTimeout) * time.Second,
		Collections:    []string{collections.Important, collections.NotImportant},
		NumericFields:  article.NumericFields,
	}, loader.Deps{
		Tokenizer: func(dir string) (tokenizer.Tokenizer, error) {
			return tokenizer.Load(dir) //nolint:wrapcheck // loader wraps
		},
		Classifier: func(dir string) (model.Classifier, error) {
			return onnx.Load(dir, onnxOpts) //nolint:wrapcheck // loader wraps
		},
		Connect: func(context.Context) (db.VectorStore, error) {
			return newStore(cfg.VectorStore)
		},
	}, logger)

	ctx := context.Background()
	rt, err := ld.Init(ctx)
	if err != nil {
		logger.Fatal("Failed to initialize runtime", zap.Error(err))
	}
	defer func() { _ = rt.Close() }()
	logger.Info("Connected to vector store")

	// Repositories and use case services
	articleRepo := article.New(rt.Store(), collections, logger)
	predictSvc := predictuc.New(rt.Engine(), articleRepo, logger)
	retrievalSvc := retrievaluc.New(articleRepo, rt.Engine(), logger,
		retrievaluc.WithConcurrency(rt.Tokenizers().Size()),
	)
	healthSvc := healthuc.New(rt.Store(), rt)

	server := chiTransport.NewServer(predictSvc, retrievalSvc, healthSvc, collections.Important, logger)

	r := chi.NewRouter()
	r.Use(chiTransport.JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.WideEvent(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(metrics.Middleware())
	chiTransport.HandlerWithOptions(server, chiTransport.ServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: chiTransport.ParamErrorHandler,
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
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

// newStore creates the configured vector store wrapped with metrics.
func newStore(cfg config.VectorStoreConfig) (db.VectorStore, error) {
	var (
		store db.VectorStore
		err   error
	)
	switch cfg.Driver {
	case config.DriverQdrant:
		store, err = dbQdrant.NewStore(dbQdrant.Config{
			URL:      cfg.URL,
			APIKey:   cfg.APIKey,
			GRPCPort: cfg.GRPCPort,
		})
	case config.DriverRedis:
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
	case config.DriverMemory:
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown vector store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Driver, err)
	}
	return db.NewInstrumented(store, cfg.Driver), nil
}
