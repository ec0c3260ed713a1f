package classifier

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/CollComm/werewolf-sign/internal/taxonomy"
)

const (
	BackendAnthropic = "anthropic"
	BackendOllama    = "ollama"
)

// Config selects and tunes the classifier backend
type Config struct {
	Backend         string
	AnthropicAPIKey string
	AnthropicModel  string
	OllamaModel     string
	MaxTokens       int
	Timeout         time.Duration
	StrictLabels    bool
	Limits          LimitOptions
}

// New builds the classifier chain used by the orchestrator:
// taxonomy labeling on top of the shared limits on top of the backend.
func New(cfg Config, tax *taxonomy.Taxonomy, logger *slog.Logger) (Classifier, error) {
	var (
		backend Classifier
		err     error
	)

	switch cfg.Backend {
	case BackendAnthropic, "":
		backend, err = NewAnthropic(AnthropicConfig{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.AnthropicModel,
			MaxTokens: int64(cfg.MaxTokens),
		}, tax)
	case BackendOllama:
		backend, err = NewOllama(cfg.OllamaModel, cfg.MaxTokens, tax)
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	limits := cfg.Limits
	if limits.Timeout == 0 {
		limits.Timeout = cfg.Timeout
	}

	return NewLabeler(NewLimited(backend, limits, logger), tax, cfg.StrictLabels, logger), nil
}
