// Package llm adapts OpenAI-compatible chat and embedding APIs behind small interfaces.
package llm

import (
	"context"

	"github.com/mtlprog/agentdesk/internal/domain"
)

// Message is one prompt entry sent to the provider.
type Message struct {
	Role    domain.MessageRole
	Content string
}

// ChatRequest describes a single completion call.
type ChatRequest struct {
	Model       string
	Temperature float64
	Messages    []Message
}

// TokenFunc receives streamed completion text. Returning an error aborts the stream.
type TokenFunc func(chunk string) error

// Chatter produces completions. When onToken is non-nil the provider streams and
// onToken is called for every chunk; the full text is returned either way.
type Chatter interface {
	Complete(ctx context.Context, req ChatRequest, onToken TokenFunc) (string, error)
}

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
