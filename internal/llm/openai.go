package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mtlprog/agentdesk/internal/domain"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrEmptyCompletion is returned when the provider answers without choices.
var ErrEmptyCompletion = errors.New("provider returned no choices")

// Config holds provider connection settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
}

// OpenAI implements Chatter and Embedder through langchaingo's OpenAI client.
type OpenAI struct {
	client   *openai.LLM
	embedder embeddings.Embedder
	logger   *slog.Logger
}

// NewOpenAI creates a provider client. The embedder is only built when an
// embedding model is configured.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("llm: api key is required")
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.EmbeddingModel != "" {
		opts = append(opts, openai.WithEmbeddingModel(cfg.EmbeddingModel))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	p := &OpenAI{
		client: client,
		logger: slog.Default().With("component", "llm"),
	}

	if cfg.EmbeddingModel != "" {
		embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
		p.embedder = embedder
	}

	return p, nil
}

// Complete sends the prompt and returns the full completion text.
func (p *OpenAI) Complete(ctx context.Context, req ChatRequest, onToken TokenFunc) (string, error) {
	content := make([]llms.MessageContent, 0, len(req.Messages))
	for _, m := range req.Messages {
		content = append(content, llms.TextParts(messageType(m.Role), m.Content))
	}

	opts := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.Model != "" {
		opts = append(opts, llms.WithModel(req.Model))
	}
	if onToken != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onToken(string(chunk))
		}))
	}

	p.logger.Debug("calling provider", "model", req.Model, "messages", len(req.Messages), "stream", onToken != nil)

	resp, err := p.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}

// EmbedTexts embeds a batch of texts.
func (p *OpenAI) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if p.embedder == nil {
		return nil, errors.New("llm: embedding model is not configured")
	}
	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	return vectors, nil
}

func messageType(role domain.MessageRole) llms.ChatMessageType {
	switch role {
	case domain.MessageRoleSystem:
		return llms.ChatMessageTypeSystem
	case domain.MessageRoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
