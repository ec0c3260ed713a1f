package classifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/CollComm/werewolf-sign/internal/extractor"
	"github.com/CollComm/werewolf-sign/internal/models"
	"github.com/CollComm/werewolf-sign/internal/taxonomy"
)

const jpegMediaType = "image/jpeg"

// AnthropicConfig configures the Anthropic Messages backend
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
	BaseURL   string
}

// Anthropic classifies frames with the Anthropic Messages API
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	system    string
	question  string
}

// NewAnthropic creates a backend bound to a taxonomy
func NewAnthropic(cfg AnthropicConfig, tax *taxonomy.Taxonomy) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("anthropic API key is required")
	}
	if cfg.Model == "" {
		return nil, errors.New("anthropic model is required")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}

	// Retries are handled by Limited so every backend follows the same policy.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		system:    tax.SystemPrompt(),
		question:  tax.Question,
	}, nil
}

func (a *Anthropic) Classify(ctx context.Context, frame models.FrameFile) (string, error) {
	if len(frame.RawBytes) == 0 {
		return "", fmt.Errorf("frame %d has no image data", frame.Index)
	}

	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: a.system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlockBase64(jpegMediaType, extractor.EncodeBase64(frame.RawBytes)),
				anthropic.NewTextBlock(a.question),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic request for frame %d: %w", frame.Index, err)
	}

	if len(msg.Content) == 0 {
		return models.LabelUnknown, nil
	}
	first := msg.Content[0]
	return labelFromText(first.Text, first.Type == "text"), nil
}

func anthropicStatus(err error) (int, bool) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}
