package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the econpredict API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Model       ModelConfig       `yaml:"model"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"` // debug, info, warn, error (default: determined by env)
	Dir        string `yaml:"dir"`   // rotating file sink, disabled when empty
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// ModelConfig holds classifier and tokenizer settings.
type ModelConfig struct {
	Path              string     `yaml:"path"`
	AppRoot           string     `yaml:"app_root"`
	TestMode          bool       `yaml:"test_mode"`
	PoolSize          int        `yaml:"pool_size"`
	AcquireTimeoutSec int        `yaml:"acquire_timeout_sec"` // 0 = wait for the request context
	MaxSeqLen         int        `yaml:"max_seq_len"`
	HiddenSize        int        `yaml:"hidden_size"`
	ONNX              ONNXConfig `yaml:"onnx"`
}

// ONNXConfig holds onnxruntime session settings.
type ONNXConfig struct {
	LibraryPath  string `yaml:"library_path"`
	ModelFile    string `yaml:"model_file"`
	InputIDs     string `yaml:"input_ids"`
	Attention    string `yaml:"attention_mask"`
	TokenTypes   string `yaml:"token_type_ids"` // fed only when set
	LogitsOutput string `yaml:"logits_output"`
	HiddenOutput string `yaml:"hidden_output"`
}

// VectorStoreConfig holds vector database connection settings.
type VectorStoreConfig struct {
	Driver           string            `yaml:"driver"` // qdrant, redis, memory (default: qdrant)
	URL              string            `yaml:"url"`
	APIKey           string            `yaml:"api_key"`
	GRPCPort         int               `yaml:"grpc_port"`
	Addrs            []string          `yaml:"addrs"`
	Password         string            `yaml:"password"`
	ReadinessTimeout int               `yaml:"readiness_timeout_sec"`
	Collections      CollectionsConfig `yaml:"collections"`
}

// CollectionsConfig names the label partitions.
type CollectionsConfig struct {
	Important    string `yaml:"important"`
	NotImportant string `yaml:"not_important"`
}

// Supported vector store drivers.
const (
	DriverQdrant = "qdrant"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML config data, expanding ${VAR} references first.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Model.Path == "" {
		c.Model.Path = "model/finbert_v1-5e6_custom_eval"
	}
	if c.Model.AppRoot == "" {
		c.Model.AppRoot = "/app"
	}
	if c.Model.PoolSize <= 0 {
		c.Model.PoolSize = 4
	}
	if c.Model.AcquireTimeoutSec < 0 {
		c.Model.AcquireTimeoutSec = 0
	}
	if c.Model.MaxSeqLen <= 0 {
		c.Model.MaxSeqLen = 512
	}
	if c.Model.HiddenSize <= 0 {
		c.Model.HiddenSize = 768
	}
	if c.VectorStore.Driver == "" {
		c.VectorStore.Driver = DriverQdrant
	}
	if c.VectorStore.ReadinessTimeout <= 0 {
		c.VectorStore.ReadinessTimeout = 10
	}
	if c.VectorStore.Collections.Important == "" {
		c.VectorStore.Collections.Important = "econ_important"
	}
	if c.VectorStore.Collections.NotImportant == "" {
		c.VectorStore.Collections.NotImportant = "econ_not_important"
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = 10
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = 5
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Model.MaxSeqLen < 2 {
		return fmt.Errorf("model.max_seq_len must be at least 2, got %d", c.Model.MaxSeqLen)
	}
	switch c.VectorStore.Driver {
	case DriverQdrant:
		if c.VectorStore.URL == "" {
			return fmt.Errorf("vector_store.url is required for driver %q", DriverQdrant)
		}
	case DriverRedis:
		if len(c.VectorStore.Addrs) == 0 {
			return fmt.Errorf("vector_store.addrs is required for driver %q", DriverRedis)
		}
	case DriverMemory:
		// ok
	default:
		return fmt.Errorf("vector_store.driver must be %q, %q or %q, got %q",
			DriverQdrant, DriverRedis, DriverMemory, c.VectorStore.Driver)
	}
	if c.VectorStore.Collections.Important == c.VectorStore.Collections.NotImportant {
		return fmt.Errorf("vector_store.collections must name two distinct collections")
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
