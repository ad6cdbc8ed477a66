package econpredict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/econpredict/internal/db"
	"github.com/kailas-cloud/econpredict/internal/db/memory"
	dbQdrant "github.com/kailas-cloud/econpredict/internal/db/qdrant"
	dbRedis "github.com/kailas-cloud/econpredict/internal/db/redis"
	"github.com/kailas-cloud/econpredict/internal/domain"
	"github.com/kailas-cloud/econpredict/internal/loader"
	"github.com/kailas-cloud/econpredict/internal/model"
	"github.com/kailas-cloud/econpredict/internal/model/onnx"
	"github.com/kailas-cloud/econpredict/internal/repository/article"
	"github.com/kailas-cloud/econpredict/internal/tokenizer"
	healthuc "github.com/kailas-cloud/econpredict/internal/usecase/health"
	predictuc "github.com/kailas-cloud/econpredict/internal/usecase/predict"
	retrievaluc "github.com/kailas-cloud/econpredict/internal/usecase/retrieval"
)

// Internal interfaces, swapped for mocks in tests.
type predictUseCase interface {
	ClassifyAndStore(ctx context.Context, articles []domain.Article) ([]domain.Classification, error)
}

type retrievalUseCase interface {
	FetchRecent(ctx context.Context, collection string, topK int) ([]domain.StoredArticle, error)
	SearchByKeywords(ctx context.Context, timeRangeSec, topK int) ([]domain.KeywordHit, error)
	AnnotateImportance(ctx context.Context, pointID string, importance int) bool
}

// Client is the econpredict SDK entry point.
type Client struct {
	runtime      io.Closer
	predictSvc   predictUseCase
	retrievalSvc retrievalUseCase
	healthSvc    healthUseCase
	important    string
	obs          *observer
}

// New loads the model, connects to the vector store and ensures both collections exist.
// The provided context bounds the connection check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("econpredict: vector store required (use WithQdrant, WithRedis or WithMemory)")
	}
	if cfg.modelPath == "" {
		return nil, errors.New("econpredict: model path required (use WithModel)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	collections := article.DefaultCollections()
	ld := loader.New(loader.Options{
		ModelPath:      cfg.modelPath,
		AppRoot:        cfg.appRoot,
		TestMode:       cfg.testMode,
		PoolSize:       cfg.poolSize,
		AcquireTimeout: acquireTimeout(cfg),
		MaxSeqLen:      cfg.maxSeqLen,
		Collections:    []string{collections.Important, collections.NotImportant},
		NumericFields:  article.NumericFields,
	}, loader.Deps{
		Tokenizer: func(dir string) (tokenizer.Tokenizer, error) {
			return tokenizer.Load(dir) //nolint:wrapcheck // loader wraps
		},
		Classifier: func(dir string) (model.Classifier, error) {
			return onnx.Load(dir, onnx.Options{LibraryPath: cfg.onnxLibrary}) //nolint:wrapcheck // loader wraps
		},
		Connect: func(context.Context) (db.VectorStore, error) {
			return createStore(cfg)
		},
	}, zap.NewNop())

	rt, err := ld.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("econpredict: %w", err)
	}
	return wireClient(rt, collections, obs), nil
}

func acquireTimeout(cfg *clientConfig) time.Duration {
	if !cfg.acquireTimeoutSet {
		return loader.DefaultAcquireTimeout
	}
	return cfg.acquireTimeout
}

func createStore(cfg *clientConfig) (db.VectorStore, error) {
	switch cfg.driver {
	case "qdrant":
		s, err := dbQdrant.NewStore(dbQdrant.Config{URL: cfg.url, APIKey: cfg.apiKey})
		if err != nil {
			return nil, fmt.Errorf("econpredict: create qdrant store: %w", err)
		}
		return s, nil
	case "redis":
		s, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
		if err != nil {
			return nil, fmt.Errorf("econpredict: create redis store: %w", err)
		}
		return s, nil
	case "memory":
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("econpredict: unknown driver %q", cfg.driver)
	}
}

func wireClient(rt *loader.Runtime, collections article.Collections, obs *observer) *Client {
	repo := article.New(rt.Store(), collections, zap.NewNop())
	return &Client{
		runtime:      rt,
		predictSvc:   predictuc.New(rt.Engine(), repo, zap.NewNop()),
		retrievalSvc: retrievaluc.New(repo, rt.Engine(), zap.NewNop(), retrievaluc.WithConcurrency(rt.Tokenizers().Size())),
		healthSvc:    healthuc.New(rt.Store(), rt),
		important:    collections.Important,
		obs:          obs,
	}
}

// Close releases the model session and the store connection.
func (c *Client) Close() error {
	if c.runtime == nil {
		return nil
	}
	if err := c.runtime.Close(); err != nil {
		return fmt.Errorf("econpredict: close: %w", err)
	}
	return nil
}
