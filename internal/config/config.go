package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"paperrag/internal/chunker"
	"paperrag/internal/domain"
	"paperrag/internal/prompt"
)

// Environment overrides, applied after the file is decoded.
const (
	EnvDataPath        = "DATA_PATH"
	EnvVectorStorePath = "VECTOR_STORE_PATH"
)

// LogConfig controls the process-wide logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoaderConfig controls which files are read from the corpus directory.
type LoaderConfig struct {
	Extensions []string `yaml:"extensions"`
	PDFToText  string   `yaml:"pdftotext"`
}

// ChunkerConfig configures how documents are split into segments. Sizes are in runes.
type ChunkerConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

type IndexerConfig struct {
	MaxBatchSize int `yaml:"max_batch_size"`
	Workers      int `yaml:"workers"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

type PromptConfig struct {
	Template string `yaml:"template"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  *int   `yaml:"max_retries,omitempty"`
}

// HugotConfig configures the local ONNX feature-extraction embedder.
type HugotConfig struct {
	Model        string `yaml:"model"`
	ModelsDir    string `yaml:"models_dir"`
	OnnxFilePath string `yaml:"onnx_file_path"`
	BatchSize    int    `yaml:"batch_size"`
}

type LexicalConfig struct {
	Dimension int `yaml:"dimension"`
}

// RateLimitConfig throttles embedding requests. Zero disables throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string                `yaml:"type"`
	OpenAI    *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Hugot     *HugotConfig          `yaml:"hugot,omitempty"`
	Lexical   *LexicalConfig        `yaml:"lexical,omitempty"`
	RateLimit RateLimitConfig       `yaml:"rate_limit"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	Distance    string `yaml:"distance"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// PGVectorConfig points at a Postgres database with the vector extension available.
type PGVectorConfig struct {
	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type"`
	SQLite   *SQLiteConfig   `yaml:"sqlite,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	PGVector *PGVectorConfig `yaml:"pgvector,omitempty"`
}

type OpenAICompleterConfig struct {
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxRetries  *int    `yaml:"max_retries,omitempty"`
}

type AnthropicCompleterConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	MaxTokens   int    `yaml:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  *int   `yaml:"max_retries,omitempty"`
}

type ExtractiveConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// CompleterConfig selects the language model that writes the final answer.
type CompleterConfig struct {
	Type       string                    `yaml:"type"`
	OpenAI     *OpenAICompleterConfig    `yaml:"openai,omitempty"`
	Anthropic  *AnthropicCompleterConfig `yaml:"anthropic,omitempty"`
	Extractive *ExtractiveConfig         `yaml:"extractive,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	DataPath    string            `yaml:"data_path"`
	Log         LogConfig         `yaml:"log"`
	Loader      LoaderConfig      `yaml:"loader"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Indexer     IndexerConfig     `yaml:"indexer"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Completer   CompleterConfig   `yaml:"completer"`
}

var (
	embedderTypes  = []string{"lexical", "openai", "hugot"}
	storeTypes     = []string{"sqlite", "qdrant", "pgvector", "memory"}
	completerTypes = []string{"extractive", "openai", "anthropic"}
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// ${VAR} references in the file are expanded from the environment before decoding.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/paperrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/paperrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	applyConfigDefaults(cfg)
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	applyEnvOverrides(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadDotEnv exports variables from .env style files. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Validate rejects settings that would fail later in the pipeline.
func (c *AppConfig) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidConfiguration}, args...)...)
	}
	if c.DataPath == "" {
		return invalid("data_path is empty")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format must be text or json, got %q", c.Log.Format)
	}
	if err := chunker.NewSegmenter(c.Chunker.ChunkSize, c.Chunker.ChunkOverlap).Validate(); err != nil {
		return err
	}
	if c.Indexer.MaxBatchSize <= 0 {
		return invalid("indexer.max_batch_size must be positive, got %d", c.Indexer.MaxBatchSize)
	}
	if c.Indexer.Workers <= 0 {
		return invalid("indexer.workers must be positive, got %d", c.Indexer.Workers)
	}
	if c.Retrieval.TopK <= 0 {
		return invalid("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if err := prompt.Validate(c.Prompt.Template); err != nil {
		return err
	}
	if !slices.Contains(embedderTypes, c.Embedder.Type) {
		return invalid("unknown embedder %q", c.Embedder.Type)
	}
	if c.Embedder.RateLimit.RequestsPerSecond < 0 {
		return invalid("embedder.rate_limit.requests_per_second must not be negative")
	}
	if !slices.Contains(storeTypes, c.VectorStore.Type) {
		return invalid("unknown vector store %q", c.VectorStore.Type)
	}
	if c.VectorStore.Type == "pgvector" && (c.VectorStore.PGVector == nil || c.VectorStore.PGVector.DSN == "") {
		return invalid("vector_store.pgvector.dsn is required")
	}
	if !slices.Contains(completerTypes, c.Completer.Type) {
		return invalid("unknown completer %q", c.Completer.Type)
	}
	if e := c.Embedder.OpenAI; e != nil && e.Retries() < 0 {
		return invalid("embedder.openai.max_retries must not be negative, got %d", e.Retries())
	}
	if o := c.Completer.OpenAI; o != nil && o.Retries() < 0 {
		return invalid("completer.openai.max_retries must not be negative, got %d", o.Retries())
	}
	if a := c.Completer.Anthropic; a != nil && a.Retries() < 0 {
		return invalid("completer.anthropic.max_retries must not be negative, got %d", a.Retries())
	}
	return nil
}

// Retries returns the SDK retry count. An explicit 0 disables retries.
func (c *OpenAIEmbedderConfig) Retries() int { return derefInt(c.MaxRetries) }

func (c *OpenAICompleterConfig) Retries() int { return derefInt(c.MaxRetries) }

func (c *AnthropicCompleterConfig) Retries() int { return derefInt(c.MaxRetries) }

func intPtr(n int) *int { return &n }

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "paperrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		DataPath: "data",
		Log:      LogConfig{Level: "info", Format: "text"},
		Loader:   LoaderConfig{Extensions: []string{".pdf", ".txt", ".md"}, PDFToText: "pdftotext"},
		Chunker: ChunkerConfig{
			ChunkSize:    chunker.DefaultChunkSize,
			ChunkOverlap: chunker.DefaultChunkOverlap,
		},
		Indexer:     IndexerConfig{MaxBatchSize: chunker.DefaultBatchSize, Workers: 1},
		Retrieval:   RetrievalConfig{TopK: 5},
		Prompt:      PromptConfig{Template: prompt.DefaultTemplate},
		Embedder:    EmbedderConfig{Type: "lexical"},
		VectorStore: VectorStoreConfig{Type: "sqlite"},
		Completer:   CompleterConfig{Type: "extractive"},
	}
}

// applyConfigDefaults fills the section of every selected provider.
func applyConfigDefaults(cfg *AppConfig) {
	switch cfg.Embedder.Type {
	case "openai":
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		e := cfg.Embedder.OpenAI
		if e.BaseURL == "" {
			e.BaseURL = "https://api.openai.com/v1"
		}
		if e.APIKeyEnv == "" {
			e.APIKeyEnv = "OPENAI_API_KEY"
		}
		if e.Model == "" {
			e.Model = "text-embedding-3-small"
		}
		if e.TimeoutSecs == 0 {
			e.TimeoutSecs = 30
		}
		if e.MaxRetries == nil {
			e.MaxRetries = intPtr(5)
		}
	case "hugot":
		if cfg.Embedder.Hugot == nil {
			cfg.Embedder.Hugot = &HugotConfig{}
		}
		h := cfg.Embedder.Hugot
		if h.Model == "" {
			h.Model = "sentence-transformers/all-MiniLM-L6-v2"
		}
		if h.ModelsDir == "" {
			h.ModelsDir = "models"
		}
		if h.OnnxFilePath == "" {
			h.OnnxFilePath = "onnx/model.onnx"
		}
		if h.BatchSize == 0 {
			h.BatchSize = 32
		}
	case "lexical":
		if cfg.Embedder.Lexical == nil {
			cfg.Embedder.Lexical = &LexicalConfig{}
		}
		if cfg.Embedder.Lexical.Dimension == 0 {
			cfg.Embedder.Lexical.Dimension = 1024
		}
	}

	switch cfg.VectorStore.Type {
	case "sqlite":
		if cfg.VectorStore.SQLite == nil {
			cfg.VectorStore.SQLite = &SQLiteConfig{}
		}
		if cfg.VectorStore.SQLite.Path == "" {
			cfg.VectorStore.SQLite.Path = filepath.Join(".paperrag", "index.db")
		}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		q := cfg.VectorStore.Qdrant
		if q.URL == "" {
			q.URL = "http://localhost:6333"
		}
		if q.Collection == "" {
			q.Collection = "paperrag"
		}
		if q.Distance == "" {
			q.Distance = "Cosine"
		}
		if q.TimeoutSecs == 0 {
			q.TimeoutSecs = 30
		}
	case "pgvector":
		if cfg.VectorStore.PGVector == nil {
			cfg.VectorStore.PGVector = &PGVectorConfig{}
		}
		if cfg.VectorStore.PGVector.Table == "" {
			cfg.VectorStore.PGVector.Table = "segments"
		}
	}

	switch cfg.Completer.Type {
	case "openai":
		if cfg.Completer.OpenAI == nil {
			cfg.Completer.OpenAI = &OpenAICompleterConfig{}
		}
		o := cfg.Completer.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-4o-mini"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 60
		}
		if o.MaxRetries == nil {
			o.MaxRetries = intPtr(2)
		}
	case "anthropic":
		if cfg.Completer.Anthropic == nil {
			cfg.Completer.Anthropic = &AnthropicCompleterConfig{}
		}
		a := cfg.Completer.Anthropic
		if a.APIKeyEnv == "" {
			a.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
		if a.Model == "" {
			a.Model = "claude-3-5-haiku-latest"
		}
		if a.MaxTokens == 0 {
			a.MaxTokens = 1024
		}
		if a.TimeoutSecs == 0 {
			a.TimeoutSecs = 60
		}
		if a.MaxRetries == nil {
			a.MaxRetries = intPtr(2)
		}
	case "extractive":
		if cfg.Completer.Extractive == nil {
			cfg.Completer.Extractive = &ExtractiveConfig{}
		}
		if cfg.Completer.Extractive.MaxSentences == 0 {
			cfg.Completer.Extractive.MaxSentences = 3
		}
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv(EnvDataPath); v != "" {
		cfg.DataPath = v
	}
	if v := os.Getenv(EnvVectorStorePath); v != "" && cfg.VectorStore.SQLite != nil {
		cfg.VectorStore.SQLite.Path = v
	}
}
