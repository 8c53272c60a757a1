package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperrag/internal/domain"
)

func writeConfig(t *testing.T, extra string) (string, string) {
	t.Helper()
	t.Setenv("DATA_PATH", "")
	t.Setenv("VECTOR_STORE_PATH", "")
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	cfg := fmt.Sprintf(`data_path: %s
log:
  level: warn
  format: text
embedder:
  type: lexical
  lexical:
    dimension: 256
vector_store:
  type: sqlite
  sqlite:
    path: %s
completer:
  type: extractive
%s`, data, filepath.Join(dir, "index.db"), extra)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o644))
	return path, data
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "missing.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestPopulateThenQuery(t *testing.T) {
	cfgPath, data := writeConfig(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(data, "attention.txt"),
		[]byte("Self attention lets each token weigh every other token."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(data, "bread.txt"),
		[]byte("Bread is baked in a hot oven."), 0o644))

	out, err := run(t, "populate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Added 2 new segments (0 already present")

	out, err = run(t, "populate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Added 0 new segments (2 already present")

	out, err = run(t, "query", "--config", cfgPath, "how", "does", "attention", "weigh", "tokens?")
	require.NoError(t, err)
	assert.Contains(t, out, "Response: Self attention lets each token weigh every other token.")
	assert.Contains(t, out, "Sources: ['attention.txt:none:0'")

	out, err = run(t, "populate", "--config", cfgPath, "--reset")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 2 new segments")
}

func TestInvalidConfigExitCode(t *testing.T) {
	cfgPath, _ := writeConfig(t, "chunker:\n  chunk_size: 10\n  chunk_overlap: 20\n")
	_, err := run(t, "populate", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitConfigInvalid, ExitCode(err))
}

func TestPopulateMissingCorpusExitCode(t *testing.T) {
	cfgPath, data := writeConfig(t, "")
	require.NoError(t, os.RemoveAll(data))
	_, err := run(t, "populate", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitIngestionFailed, ExitCode(err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(nil))
	assert.Equal(t, ExitGenericError, ExitCode(errors.New("x")))
	assert.Equal(t, ExitConfigInvalid, ExitCode(fmt.Errorf("wrap: %w", domain.ErrTemplate)))
	assert.Equal(t, ExitIngestionFailed, ExitCode(&ExitError{Code: ExitIngestionFailed, Err: domain.ErrEmbedding}))
}
