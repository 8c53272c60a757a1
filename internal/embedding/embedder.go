package embedding

import (
	"context"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"paperrag/internal/config"
	"paperrag/internal/domain"
	"paperrag/internal/embedding/lexical"
	"paperrag/internal/embedding/onnx"
	"paperrag/internal/embedding/openai"
)

// New builds the embedder selected by cfg, wrapped in a rate limiter when one is configured.
func New(cfg config.EmbedderConfig, logger log.FieldLogger) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Type {
	case "lexical", "":
		dim := 0
		if cfg.Lexical != nil {
			dim = cfg.Lexical.Dimension
		}
		emb = lexical.NewEmbedder(dim)
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.Retries(),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	case "hugot":
		if cfg.Hugot == nil {
			return nil, fmt.Errorf("hugot embedder config missing")
		}
		e, err := onnx.NewEmbedder(onnx.Config{
			Model:        cfg.Hugot.Model,
			ModelsDir:    cfg.Hugot.ModelsDir,
			OnnxFilePath: cfg.Hugot.OnnxFilePath,
			BatchSize:    cfg.Hugot.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("hugot embedder init failed: %w", err)
		}
		emb = e
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
	}

	logger.WithField("embedder", emb.Name()).Debug("embedder ready")
	return WithRateLimit(emb, cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst), nil
}

// RateLimited waits for a token before every call to the wrapped embedder.
type RateLimited struct {
	next    domain.Embedder
	limiter *rate.Limiter
}

// WithRateLimit returns next unchanged when rps is not positive.
func WithRateLimit(next domain.Embedder, rps float64, burst int) domain.Embedder {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *RateLimited) Name() string { return r.next.Name() }

func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Embed(ctx, texts)
}

// Close closes the wrapped embedder if it holds resources.
func (r *RateLimited) Close() error {
	return Close(r.next)
}

// Close releases embedders that hold native resources.
func Close(e domain.Embedder) error {
	if c, ok := e.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
