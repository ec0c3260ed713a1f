package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/ollama/ollama/api"

	"github.com/CollComm/werewolf-sign/internal/models"
	"github.com/CollComm/werewolf-sign/internal/taxonomy"
)

// Ollama classifies frames with a local vision model served by Ollama
type Ollama struct {
	client    *api.Client
	model     string
	maxTokens int
	system    string
	question  string
}

// NewOllama creates a backend using OLLAMA_HOST from the environment
func NewOllama(model string, maxTokens int, tax *taxonomy.Taxonomy) (*Ollama, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}
	return NewOllamaWithClient(client, model, maxTokens, tax)
}

// NewOllamaWithClient creates a backend around an existing client
func NewOllamaWithClient(client *api.Client, model string, maxTokens int, tax *taxonomy.Taxonomy) (*Ollama, error) {
	if model == "" {
		return nil, errors.New("ollama model is required")
	}
	return &Ollama{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		system:    tax.SystemPrompt(),
		question:  tax.Question,
	}, nil
}

func (o *Ollama) Classify(ctx context.Context, frame models.FrameFile) (string, error) {
	if len(frame.RawBytes) == 0 {
		return "", fmt.Errorf("frame %d has no image data", frame.Index)
	}

	stream := false
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{
			{Role: "system", Content: o.system},
			{Role: "user", Content: o.question, Images: []api.ImageData{frame.RawBytes}},
		},
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": 0,
			"num_predict": o.maxTokens,
		},
	}

	var reply string
	var replied bool
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply += resp.Message.Content
		replied = true
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama request for frame %d: %w", frame.Index, err)
	}

	return labelFromText(reply, replied), nil
}

func ollamaStatus(err error) (int, bool) {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode, true
	}
	return 0, false
}
