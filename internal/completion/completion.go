package completion

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"paperrag/internal/completion/anthropic"
	"paperrag/internal/completion/extractive"
	"paperrag/internal/completion/openai"
	"paperrag/internal/config"
	"paperrag/internal/domain"
)

// New builds the completer selected by cfg.
func New(cfg config.CompleterConfig, logger log.FieldLogger) (domain.Completer, error) {
	var c domain.Completer
	switch cfg.Type {
	case "extractive", "":
		n := 0
		if cfg.Extractive != nil {
			n = cfg.Extractive.MaxSentences
		}
		c = extractive.New(n)
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("openai completer config missing")
		}
		oc, err := openai.NewCompleter(openai.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			Temperature: cfg.OpenAI.Temperature,
			Timeout:     time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries:  cfg.OpenAI.Retries(),
		})
		if err != nil {
			return nil, fmt.Errorf("openai completer init failed: %w", err)
		}
		c = oc
	case "anthropic":
		if cfg.Anthropic == nil {
			return nil, fmt.Errorf("anthropic completer config missing")
		}
		ac, err := anthropic.NewCompleter(anthropic.Config{
			BaseURL:    cfg.Anthropic.BaseURL,
			APIKeyEnv:  cfg.Anthropic.APIKeyEnv,
			Model:      cfg.Anthropic.Model,
			MaxTokens:  cfg.Anthropic.MaxTokens,
			Timeout:    time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Anthropic.Retries(),
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic completer init failed: %w", err)
		}
		c = ac
	default:
		return nil, fmt.Errorf("unknown completer: %s", cfg.Type)
	}

	logger.WithField("completer", c.Name()).Debug("completer ready")
	return c, nil
}
