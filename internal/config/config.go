package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig     `json:"basic_config" yaml:"basic_config"`
	Chat        ProviderConfig  `json:"chat" yaml:"chat"`
	Embedding   EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Index       IndexConfig     `json:"index" yaml:"index"`
	Memory      MemoryConfig    `json:"memory" yaml:"memory"`
	Redis       RedisConfig     `json:"redis" yaml:"redis"`
	Generator   GeneratorConfig `json:"generator" yaml:"generator"`
	Tracing     TracingConfig   `json:"tracing" yaml:"tracing"`
}

// ProviderConfig selects the hosted chat-completion service.
type ProviderConfig struct {
	Provider  string `json:"provider" yaml:"provider"`
	BaseURL   string `json:"base_url" yaml:"base_url"`
	Model     string `json:"model" yaml:"model"`
	APIKey    string `json:"api_key" yaml:"api_key"`
	MaxTokens int    `json:"max_tokens" yaml:"max_tokens"`
}

type EmbeddingConfig struct {
	BaseURL   string `json:"base_url" yaml:"base_url"`
	Model     string `json:"model" yaml:"model"`
	APIKey    string `json:"api_key" yaml:"api_key"`
	BatchSize int    `json:"batch_size" yaml:"batch_size"`
}

type IndexConfig struct {
	SourcePath   string `json:"source_path" yaml:"source_path"`
	Driver       string `json:"driver" yaml:"driver"`
	DSN          string `json:"dsn" yaml:"dsn"`
	ChunkSize    int    `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap" yaml:"chunk_overlap"`
	TopK         int    `json:"top_k" yaml:"top_k"`
}

type MemoryConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend     string `json:"backend" yaml:"backend"`
	MaxSessions int    `json:"max_sessions" yaml:"max_sessions"`
	// SessionTTL in minutes, redis only. 0 keeps sessions forever.
	SessionTTL int    `json:"session_ttl" yaml:"session_ttl"`
	KeyPrefix  string `json:"key_prefix" yaml:"key_prefix"`
}

type RedisConfig struct {
	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// GeneratorConfig carries persona data injected into every system instruction.
type GeneratorConfig struct {
	Facts []string `json:"facts" yaml:"facts"`
}

type TracingConfig struct {
	// Exporter is "none" (default) or "stdout".
	Exporter string `json:"exporter" yaml:"exporter"`
}

type BasicConfig struct {
	ServerAddress     string   `json:"server_address" yaml:"server_address"`
	Debug             bool     `json:"debug" yaml:"debug"`
	LogLevel          string   `json:"log_level" yaml:"log_level"`
	RequestTimeout    int      `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	WorkerIdleTimeout int      `json:"worker_idle_timeout" yaml:"worker_idle_timeout"`
	AllowedOrigins    []string `json:"allowed_origins" yaml:"allowed_origins"`
}

const defaultChunkOverlap = 50

// Load reads configuration from the provided path (defaults to config.json).
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	expanded := os.ExpandEnv(string(raw))

	// overlap 0 is a valid setting, so its default is applied only when the
	// key is absent
	cfg := Config{Index: IndexConfig{ChunkOverlap: defaultChunkOverlap}}
	switch strings.ToLower(filepath.Ext(absPath)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	default:
		if err := json.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseDir := filepath.Dir(absPath)
	cfg.Index.SourcePath = resolve(baseDir, cfg.Index.SourcePath)
	if isSQLite(cfg.Index.Driver) {
		cfg.Index.DSN = resolve(baseDir, cfg.Index.DSN)
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their default values. ChunkOverlap is
// left alone since zero is meaningful there.
func (c *Config) ApplyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.BasicConfig.LogLevel == "" {
		c.BasicConfig.LogLevel = "info"
	}
	if c.BasicConfig.RequestTimeout <= 0 {
		c.BasicConfig.RequestTimeout = 120
	}
	if c.BasicConfig.WorkerIdleTimeout <= 0 {
		c.BasicConfig.WorkerIdleTimeout = 5
	}
	if len(c.BasicConfig.AllowedOrigins) == 0 {
		c.BasicConfig.AllowedOrigins = []string{"*"}
	}

	if c.Chat.Provider == "" {
		c.Chat.Provider = "ollama"
	}

	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}

	if c.Index.SourcePath == "" {
		c.Index.SourcePath = filepath.Join("data", "resume.docx")
	}
	if c.Index.Driver == "" {
		c.Index.Driver = "sqlite3"
	}
	if c.Index.DSN == "" && isSQLite(c.Index.Driver) {
		c.Index.DSN = filepath.Join("data", "index.db")
	}
	if c.Index.ChunkSize <= 0 {
		c.Index.ChunkSize = 500
	}
	if c.Index.TopK <= 0 {
		c.Index.TopK = 3
	}

	if c.Memory.Backend == "" {
		c.Memory.Backend = "memory"
	}
	if c.Memory.MaxSessions <= 0 {
		c.Memory.MaxSessions = 1024
	}
	if c.Memory.KeyPrefix == "" {
		c.Memory.KeyPrefix = "ragchat:history:"
	}

	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "none"
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	switch c.Chat.Provider {
	case "openai", "ollama", "claude", "gemini":
	default:
		return fmt.Errorf("invalid chat provider: %s", c.Chat.Provider)
	}
	if c.Index.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_overlap (%d) must not be negative", c.Index.ChunkOverlap)
	}
	if c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.Index.ChunkOverlap, c.Index.ChunkSize)
	}
	if c.Index.DSN == "" {
		return fmt.Errorf("index dsn must be configured for driver %s", c.Index.Driver)
	}
	switch c.Memory.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid memory backend: %s", c.Memory.Backend)
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	default:
		return fmt.Errorf("invalid tracing exporter: %s", c.Tracing.Exporter)
	}
	return nil
}

func isSQLite(driver string) bool {
	d := strings.ToLower(driver)
	return d == "sqlite" || d == "sqlite3"
}

func resolve(baseDir, p string) string {
	if p == "" || p == ":memory:" || filepath.IsAbs(p) || strings.HasPrefix(p, "file:") {
		return p
	}
	return filepath.Join(baseDir, p)
}
