package onnx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
)

// Config selects a Hugging Face sentence-transformer and where to keep it.
type Config struct {
	Model        string
	ModelsDir    string
	OnnxFilePath string
	BatchSize    int
}

// Embedder runs a feature-extraction pipeline in-process with the pure Go backend.
type Embedder struct {
	mu        sync.Mutex
	name      string
	batchSize int
	session   *hugot.Session
	run       func(texts []string) ([][]float32, error)
}

// NewEmbedder downloads the model on first use and starts a hugot session.
func NewEmbedder(cfg Config) (*Embedder, error) {
	modelPath, err := PrepareModel(cfg.Model, cfg.ModelsDir, cfg.OnnxFilePath)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}
	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "paperrag-embedder",
	}
	if cfg.OnnxFilePath != "" {
		config.OnnxFilename = filepath.Base(cfg.OnnxFilePath)
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create embedding pipeline: %w", err)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 32
	}
	return &Embedder{
		name:      "hugot:" + cfg.Model,
		batchSize: batch,
		session:   session,
		run: func(texts []string) ([][]float32, error) {
			result, err := pipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
	}, nil
}

func (e *Embedder) Name() string { return e.name }

// Embed runs the pipeline in slices of at most BatchSize texts.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.run(texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("pipeline returned %d embeddings for %d texts", len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.Destroy()
}

// PrepareModel downloads the model if it doesn't exist and returns the model path.
func PrepareModel(modelName, modelsDir, onnxFilePath string) (string, error) {
	modelPath := filepath.Join(modelsDir, strings.ReplaceAll(modelName, "/", "_"))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}
	downloadOptions := hugot.NewDownloadOptions()
	downloadOptions.OnnxFilePath = onnxFilePath
	downloadedPath, err := hugot.DownloadModel(modelName, modelsDir, downloadOptions)
	if err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	return downloadedPath, nil
}
