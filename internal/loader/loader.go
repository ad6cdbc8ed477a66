// Package loader builds the inference runtime: tokenizer pool, classifier and vector store.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/econpredict/internal/db"
	"github.com/kailas-cloud/econpredict/internal/inference"
	"github.com/kailas-cloud/econpredict/internal/metrics"
	"github.com/kailas-cloud/econpredict/internal/model"
	"github.com/kailas-cloud/econpredict/internal/pool"
	"github.com/kailas-cloud/econpredict/internal/tokenizer"
)

// Defaults applied by Options.ApplyDefaults.
const (
	DefaultAppRoot        = "/app"
	DefaultPoolSize       = 4
	DefaultAcquireTimeout = 30 * time.Second
	DefaultPingTimeout    = 10 * time.Second
)

// Options configures runtime initialization.
type Options struct {
	ModelPath      string
	AppRoot        string
	TestMode       bool
	PoolSize       int
	AcquireTimeout time.Duration
	MaxSeqLen      int
	HiddenSize     int // stub hidden size when no model loads
	PingTimeout    time.Duration
	Collections    []string
	NumericFields  []string // payload keys indexed for range filters
	Strategies     []model.PathStrategy
}

// ApplyDefaults fills zero fields.
func (o *Options) ApplyDefaults() {
	if o.AppRoot == "" {
		o.AppRoot = DefaultAppRoot
	}
	if o.PoolSize <= 0 {
		o.PoolSize = DefaultPoolSize
	}
	if o.AcquireTimeout < 0 {
		o.AcquireTimeout = 0
	}
	if o.HiddenSize <= 0 {
		o.HiddenSize = model.DefaultHiddenSize
	}
	if o.PingTimeout <= 0 {
		o.PingTimeout = DefaultPingTimeout
	}
	if o.Strategies == nil {
		o.Strategies = model.DefaultStrategies(o.AppRoot)
	}
}

// TokenizerFactory loads one tokenizer from a model directory.
type TokenizerFactory func(dir string) (tokenizer.Tokenizer, error)

// ClassifierFactory loads a classifier from a model directory.
type ClassifierFactory func(dir string) (model.Classifier, error)

// Connector opens the vector store client.
type Connector func(ctx context.Context) (db.VectorStore, error)

// Deps are the constructors the loader composes.
type Deps struct {
	Tokenizer  TokenizerFactory
	Classifier ClassifierFactory
	Connect    Connector
}

// Runtime is the initialized inference context shared by request handlers.
type Runtime struct {
	tokenizers *pool.Pool[tokenizer.Tokenizer]
	classifier model.Classifier
	store      db.VectorStore
	engine     *inference.Engine
	degraded   bool
}

// Tokenizers returns the tokenizer pool.
func (r *Runtime) Tokenizers() *pool.Pool[tokenizer.Tokenizer] { return r.tokenizers }

// Classifier returns the active classifier, possibly the stub.
func (r *Runtime) Classifier() model.Classifier { return r.classifier }

// Store returns the connected vector store.
func (r *Runtime) Store() db.VectorStore { return r.store }

// Engine returns the inference engine over the pool and classifier.
func (r *Runtime) Engine() *inference.Engine { return r.engine }

// Degraded reports whether the stub classifier replaced a model that failed to load.
func (r *Runtime) Degraded() bool { return r.degraded }

// Close releases the classifier session and the store client.
func (r *Runtime) Close() error {
	var errs []error
	if c, ok := r.classifier.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}

// Loader initializes a Runtime once.
type Loader struct {
	opts   Options
	deps   Deps
	logger *zap.Logger

	mu      sync.Mutex
	runtime *Runtime
}

// New creates a Loader.
func New(opts Options, deps Deps, logger *zap.Logger) *Loader {
	opts.ApplyDefaults()
	return &Loader{opts: opts, deps: deps, logger: logger}
}

// Init builds the runtime. Later calls return the first successful Runtime without side effects.
func (l *Loader) Init(ctx context.Context) (*Runtime, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.runtime != nil {
		return l.runtime, nil
	}

	tokenizers, err := l.buildTokenizers()
	if err != nil {
		return nil, err
	}

	classifier, degraded := l.loadClassifier()
	metrics.SetDegraded(degraded)

	store, err := l.connect(ctx)
	if err != nil {
		closeClassifier(classifier)
		return nil, err
	}

	if err := l.ensureCollections(ctx, store, classifier.HiddenSize()); err != nil {
		closeClassifier(classifier)
		_ = store.Close()
		return nil, err
	}

	l.runtime = &Runtime{
		tokenizers: tokenizers,
		classifier: classifier,
		store:      store,
		engine:     inference.New(tokenizers, classifier, l.opts.MaxSeqLen, l.logger),
		degraded:   degraded,
	}
	l.logger.Info("Runtime initialized",
		zap.String("classifier", classifier.Name()),
		zap.Int("hidden_size", classifier.HiddenSize()),
		zap.Int("tokenizer_pool", tokenizers.Size()),
		zap.Bool("degraded", degraded),
		zap.Bool("test_mode", l.opts.TestMode),
	)
	return l.runtime, nil
}

func (l *Loader) buildTokenizers() (*pool.Pool[tokenizer.Tokenizer], error) {
	dir, err := l.resolveTokenizerDir()
	if err != nil {
		return nil, err
	}

	p, err := pool.New[tokenizer.Tokenizer, string](l.deps.Tokenizer, dir, l.opts.PoolSize,
		pool.WithAcquireTimeout(l.opts.AcquireTimeout),
		pool.WithObserver(metrics.NewPoolObserver("tokenizer")),
	)
	if err != nil {
		return nil, fmt.Errorf("tokenizer pool: %w", err)
	}
	return p, nil
}

func (l *Loader) resolveTokenizerDir() (string, error) {
	candidates := model.Candidates(l.opts.ModelPath, l.opts.Strategies...)
	var errs []error
	for _, c := range candidates {
		l.logger.Info("Trying to load tokenizer", zap.String("strategy", c.Strategy), zap.String("path", c.Path))
		if _, err := l.deps.Tokenizer(c.Path); err != nil {
			l.logger.Warn("Tokenizer load failed", zap.String("path", c.Path), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		return c.Path, nil
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("tokenizer: no candidate path for %q", l.opts.ModelPath)
	}
	return "", fmt.Errorf("tokenizer: no candidate path loaded: %w", errors.Join(errs...))
}

// loadClassifier walks the candidate ladder and falls back to the stub.
func (l *Loader) loadClassifier() (model.Classifier, bool) {
	if l.opts.TestMode {
		l.logger.Info("Test mode: using stub classifier")
		return model.NewStub(l.opts.HiddenSize), false
	}

	for _, c := range model.Candidates(l.opts.ModelPath, l.opts.Strategies...) {
		l.logger.Info("Trying to load classifier", zap.String("strategy", c.Strategy), zap.String("path", c.Path))
		cls, err := l.deps.Classifier(c.Path)
		if err != nil {
			l.logger.Warn("Classifier load failed", zap.String("path", c.Path), zap.Error(err))
			continue
		}
		return cls, false
	}

	l.logger.Warn("All classifier paths failed, serving stub predictions",
		zap.String("model_path", l.opts.ModelPath),
	)
	return model.NewStub(l.opts.HiddenSize), true
}

func (l *Loader) connect(ctx context.Context) (db.VectorStore, error) {
	store, err := l.deps.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect vector store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, l.opts.PingTimeout)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("vector store not reachable: %w", err)
	}
	return store, nil
}

func (l *Loader) ensureCollections(ctx context.Context, store db.VectorStore, dim int) error {
	for _, name := range l.opts.Collections {
		spec := db.CollectionSpec{
			Name:          name,
			Dim:           dim,
			Distance:      db.DistanceCosine,
			NumericFields: l.opts.NumericFields,
		}
		if err := store.EnsureCollection(ctx, spec); err != nil {
			return fmt.Errorf("ensure collection %s: %w", name, err)
		}
	}
	return nil
}

func closeClassifier(c model.Classifier) {
	if cl, ok := c.(io.Closer); ok {
		_ = cl.Close()
	}
}
