// Package config loads the service configuration from YAML with environment expansion.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/reviewqa/internal/domain"
)

// Pipeline modes.
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
)

// Storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

//go:embed default.yaml
var defaultYAML []byte

// Config holds the reviewqa configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Data      DataConfig      `yaml:"data"`
	Counter   CounterConfig   `yaml:"counter"`
	Index     IndexConfig     `yaml:"index"`
	Redis     RedisConfig     `yaml:"redis"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	ShutdownSec     int    `yaml:"shutdown_timeout_sec"`
}

// Addr returns host:port for the listener.
func (h HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// DataConfig locates the review corpus.
type DataConfig struct {
	CSVPath  string `yaml:"csv_path"`
	Encoding string `yaml:"encoding"` // latin1, utf8
}

// CounterConfig selects the request counter store.
type CounterConfig struct {
	Driver string `yaml:"driver"` // sqlite, redis (default: sqlite)
	Path   string `yaml:"path"`   // sqlite database file
}

// IndexConfig selects the vector index.
type IndexConfig struct {
	Driver         string `yaml:"driver"` // memory, redis (default: memory)
	WriteBatchSize int    `yaml:"write_batch_size"`
}

// RedisConfig holds Redis connection settings shared by every Redis-backed component.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// PipelineConfig holds retrieval tuning.
type PipelineConfig struct {
	Mode                 string `yaml:"mode"` // local, remote (default: local)
	ChunkSize            int    `yaml:"chunk_size"`
	ChunkOverlap         int    `yaml:"chunk_overlap"`
	TopK                 int    `yaml:"top_k"`
	LimitDocs            int    `yaml:"limit_docs"` // applied in local mode only
	EmbedBatchSize       int    `yaml:"embed_batch_size"`
	EmbedWorkers         int    `yaml:"embed_workers"`
	MaxConcurrentQueries int64  `yaml:"max_concurrent_queries"` // 0 = unbounded
}

// IsLocal reports whether the local providers are selected.
func (p PipelineConfig) IsLocal() bool {
	return p.Mode == ModeLocal
}

// EmbeddingConfig holds embedding model settings per mode.
type EmbeddingConfig struct {
	Model               string `yaml:"model"`
	ModelLocal          string `yaml:"model_local"`
	Dimensions          int    `yaml:"dimensions"` // 0 = model default
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	Cache               bool   `yaml:"cache"` // cache vectors in Redis
}

// LLMConfig holds generation settings.
type LLMConfig struct {
	Model       string  `yaml:"model"`
	ModelLocal  string  `yaml:"model_local"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// OpenAIConfig holds remote provider settings.
type OpenAIConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// OllamaConfig holds local provider settings.
type OllamaConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// EmbeddingModel returns the embedding model for the configured mode.
func (c *Config) EmbeddingModel() string {
	if c.Pipeline.IsLocal() {
		return c.Embedding.ModelLocal
	}
	return c.Embedding.Model
}

// LLMModel returns the language model for the configured mode.
func (c *Config) LLMModel() string {
	if c.Pipeline.IsLocal() {
		return c.LLM.ModelLocal
	}
	return c.LLM.Model
}

// NeedsRedis reports whether any component is backed by Redis.
func (c *Config) NeedsRedis() bool {
	return c.Counter.Driver == DriverRedis || c.Index.Driver == DriverRedis || c.Embedding.Cache
}

// Load reads .env, then configuration by environment name (local, dev, prod).
// Without a config/<env>.yaml the embedded defaults are used.
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	data := defaultYAML
	if configPath, ok := findConfigPath(env); ok {
		raw, err := os.ReadFile(filepath.Clean(configPath))
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
		data = raw
	}

	return Parse(data)
}

// Parse expands ${VAR} references in data, decodes it and applies defaults.
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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	tuned := domain.DefaultPipelineConfig()

	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 180
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Data.Encoding == "" {
		c.Data.Encoding = "latin1"
	}
	if c.Counter.Driver == "" {
		c.Counter.Driver = DriverSQLite
	}
	if c.Counter.Path == "" {
		c.Counter.Path = "request_counter.db"
	}
	if c.Index.Driver == "" {
		c.Index.Driver = DriverMemory
	}
	if c.Index.WriteBatchSize <= 0 {
		c.Index.WriteBatchSize = 256
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Pipeline.Mode == "" {
		c.Pipeline.Mode = ModeLocal
	}
	if c.Pipeline.ChunkSize <= 0 {
		c.Pipeline.ChunkSize = tuned.ChunkSize
	}
	if c.Pipeline.ChunkOverlap <= 0 {
		c.Pipeline.ChunkOverlap = tuned.ChunkOverlap
	}
	if c.Pipeline.TopK <= 0 {
		c.Pipeline.TopK = tuned.TopK
	}
	if c.Pipeline.LimitDocs <= 0 {
		c.Pipeline.LimitDocs = tuned.LimitDocs
	}
	if c.Pipeline.EmbedBatchSize <= 0 {
		c.Pipeline.EmbedBatchSize = 64
	}
	if c.Pipeline.EmbedWorkers <= 0 {
		c.Pipeline.EmbedWorkers = 4
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-ada-002"
	}
	if c.Embedding.ModelLocal == "" {
		c.Embedding.ModelLocal = "nomic-embed-text"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.ModelLocal == "" {
		c.LLM.ModelLocal = "llama3.1:8b"
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = tuned.MaxTokens
	}
	if c.OpenAI.TimeoutSec <= 0 {
		c.OpenAI.TimeoutSec = 60
	}
	if c.Ollama.TimeoutSec <= 0 {
		c.Ollama.TimeoutSec = 120
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Data.CSVPath == "" {
		return errors.New("data.csv_path is required")
	}
	switch c.Pipeline.Mode {
	case ModeLocal, ModeRemote:
	default:
		return fmt.Errorf("pipeline.mode must be %q or %q, got %q", ModeLocal, ModeRemote, c.Pipeline.Mode)
	}
	switch c.Counter.Driver {
	case DriverSQLite, DriverRedis:
	default:
		return fmt.Errorf("counter.driver must be %q or %q, got %q", DriverSQLite, DriverRedis, c.Counter.Driver)
	}
	switch c.Index.Driver {
	case DriverMemory, DriverRedis:
	default:
		return fmt.Errorf("index.driver must be %q or %q, got %q", DriverMemory, DriverRedis, c.Index.Driver)
	}
	if c.NeedsRedis() && len(c.Redis.Addrs) == 0 {
		return errors.New("redis.addrs is required when a redis-backed component is enabled")
	}
	if c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return fmt.Errorf("pipeline.chunk_overlap (%d) must be smaller than chunk_size (%d)",
			c.Pipeline.ChunkOverlap, c.Pipeline.ChunkSize)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %g", c.LLM.Temperature)
	}
	if !c.Pipeline.IsLocal() && c.OpenAI.APIKey == "" {
		return errors.New("openai.api_key is required in remote mode")
	}
	return nil
}

// findConfigPath locates config/<env>.yaml.
func findConfigPath(env string) (string, bool) {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path, true
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path, true
	}

	return "", false
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
