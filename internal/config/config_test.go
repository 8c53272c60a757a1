package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperrag/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataPath)
	assert.Equal(t, 800, cfg.Chunker.ChunkSize)
	assert.Equal(t, 80, cfg.Chunker.ChunkOverlap)
	assert.Equal(t, 166, cfg.Indexer.MaxBatchSize)
	assert.Equal(t, 1, cfg.Indexer.Workers)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, "lexical", cfg.Embedder.Type)
	require.NotNil(t, cfg.VectorStore.SQLite)
	assert.Equal(t, filepath.Join(".paperrag", "index.db"), cfg.VectorStore.SQLite.Path)
	require.NotNil(t, cfg.Completer.Extractive)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDecodesAndExpandsEnv(t *testing.T) {
	t.Setenv("PAPERRAG_TEST_QDRANT", "http://qdrant:6333")
	path := writeFile(t, "config.yaml", `
data_path: papers
chunker:
  chunk_size: 400
  chunk_overlap: 0
embedder:
  type: openai
  openai:
    model: text-embedding-3-large
vector_store:
  type: qdrant
  qdrant:
    url: ${PAPERRAG_TEST_QDRANT}
completer:
  type: anthropic
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "papers", cfg.DataPath)
	assert.Equal(t, 400, cfg.Chunker.ChunkSize)
	assert.Equal(t, 0, cfg.Chunker.ChunkOverlap, "explicit zero overlap is kept")
	assert.Equal(t, 166, cfg.Indexer.MaxBatchSize)

	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-large", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)

	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "http://qdrant:6333", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, "paperrag", cfg.VectorStore.Qdrant.Collection)

	require.NotNil(t, cfg.Completer.Anthropic)
	assert.Equal(t, 1024, cfg.Completer.Anthropic.MaxTokens)
	assert.NoError(t, cfg.Validate())
}

func TestLoadKeepsExplicitZeroRetries(t *testing.T) {
	path := writeFile(t, "config.yaml", `
embedder:
  type: openai
  openai:
    max_retries: 0
completer:
  type: openai
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Embedder.OpenAI.MaxRetries)
	assert.Equal(t, 0, cfg.Embedder.OpenAI.Retries(), "explicit zero disables retries")
	assert.Equal(t, 5, loadEmbedderRetries(t, "embedder:\n  type: openai\n"))
	assert.Equal(t, 2, cfg.Completer.OpenAI.Retries(), "unset falls back to the default")
	assert.NoError(t, cfg.Validate())

	negative := -1
	cfg.Completer.OpenAI.MaxRetries = &negative
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfiguration)
}

func loadEmbedderRetries(t *testing.T, yaml string) int {
	t.Helper()
	cfg, err := Load(writeFile(t, "config.yaml", yaml))
	require.NoError(t, err)
	return cfg.Embedder.OpenAI.Retries()
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvDataPath, "/srv/corpus")
	t.Setenv(EnvVectorStorePath, "/srv/index.db")

	cfg, err := Load(writeFile(t, "config.yaml", "data_path: ignored\n"))
	require.NoError(t, err)

	assert.Equal(t, "/srv/corpus", cfg.DataPath)
	assert.Equal(t, "/srv/index.db", cfg.VectorStore.SQLite.Path)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeFile(t, "config.yaml", "chunker: [unclosed\n"))
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	cfg := defaultConfig()
	cfg.Retrieval.TopK = 9
	applyConfigDefaults(cfg)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, Save(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr error
	}{
		{name: "defaults", mutate: func(*AppConfig) {}},
		{name: "overlap too large", mutate: func(c *AppConfig) { c.Chunker.ChunkOverlap = c.Chunker.ChunkSize }, wantErr: domain.ErrInvalidConfiguration},
		{name: "zero chunk size", mutate: func(c *AppConfig) { c.Chunker.ChunkSize = 0 }, wantErr: domain.ErrInvalidConfiguration},
		{name: "zero batch", mutate: func(c *AppConfig) { c.Indexer.MaxBatchSize = 0 }, wantErr: domain.ErrInvalidConfiguration},
		{name: "zero workers", mutate: func(c *AppConfig) { c.Indexer.Workers = 0 }, wantErr: domain.ErrInvalidConfiguration},
		{name: "zero top k", mutate: func(c *AppConfig) { c.Retrieval.TopK = 0 }, wantErr: domain.ErrInvalidConfiguration},
		{name: "bad template", mutate: func(c *AppConfig) { c.Prompt.Template = "{question}" }, wantErr: domain.ErrTemplate},
		{name: "bad log level", mutate: func(c *AppConfig) { c.Log.Level = "loud" }, wantErr: domain.ErrInvalidConfiguration},
		{name: "unknown embedder", mutate: func(c *AppConfig) { c.Embedder.Type = "word2vec" }, wantErr: domain.ErrInvalidConfiguration},
		{name: "unknown store", mutate: func(c *AppConfig) { c.VectorStore.Type = "chroma" }, wantErr: domain.ErrInvalidConfiguration},
		{name: "pgvector without dsn", mutate: func(c *AppConfig) { c.VectorStore.Type = "pgvector" }, wantErr: domain.ErrInvalidConfiguration},
		{name: "unknown completer", mutate: func(c *AppConfig) { c.Completer.Type = "llama" }, wantErr: domain.ErrInvalidConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			applyConfigDefaults(cfg)
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "PAPERRAG_TEST_KEY=from-dotenv\n")
	t.Setenv("PAPERRAG_TEST_KEY", "")
	require.NoError(t, os.Unsetenv("PAPERRAG_TEST_KEY"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "from-dotenv", os.Getenv("PAPERRAG_TEST_KEY"))
}
