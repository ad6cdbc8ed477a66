package econpredict

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "qdrant", "redis" or "memory"
	url      string
	apiKey   string
	addrs    []string
	password string

	modelPath         string
	appRoot           string
	testMode          bool
	onnxLibrary       string
	poolSize          int
	acquireTimeout    time.Duration
	acquireTimeoutSet bool
	maxSeqLen         int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithQdrant stores articles in a Qdrant instance, e.g. http://localhost:6333.
func WithQdrant(url, apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "qdrant"
		c.url = url
		c.apiKey = apiKey
	})
}

// WithRedis stores articles in a Redis 8+ instance with vector search.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithMemory keeps articles in process memory. Data is lost on Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "memory"
	})
}

// WithModel sets the model directory holding vocab.txt, config.json and model.onnx.
func WithModel(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.modelPath = path
	})
}

// WithAppRoot sets the root the loader retries relative model paths under.
// Default: /app.
func WithAppRoot(root string) Option {
	return optionFunc(func(c *clientConfig) {
		c.appRoot = root
	})
}

// WithTestMode replaces the classifier with the stub. The tokenizer still loads from the model path.
func WithTestMode() Option {
	return optionFunc(func(c *clientConfig) {
		c.testMode = true
	})
}

// WithONNXRuntime sets the path of the onnxruntime shared library.
func WithONNXRuntime(libraryPath string) Option {
	return optionFunc(func(c *clientConfig) {
		c.onnxLibrary = libraryPath
	})
}

// WithPoolSize sets the number of pooled tokenizers. Default: 4.
func WithPoolSize(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.poolSize = n
	})
}

// WithAcquireTimeout bounds how long a call waits for a free tokenizer.
// Default: 30s. Zero waits until the call's context is done.
func WithAcquireTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.acquireTimeout = d
		c.acquireTimeoutSet = true
	})
}

// WithMaxSeqLen sets the per-text token budget. Default: 512.
func WithMaxSeqLen(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxSeqLen = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
