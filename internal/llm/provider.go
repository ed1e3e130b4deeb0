package llm

import (
	"context"
	"errors"
)

// Provider is the external judgment source: a chat-completion backend used
// by the extractor and verifier, plus an embedding backend used by dedup
// similarity. Calls may fail transiently; callers apply the retry policy.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete generates a completion for the given request.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Embed returns one vector per input text. Providers without an
	// embedding endpoint return ErrEmbeddingsUnsupported; callers fall
	// back to lexical similarity.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// ErrEmbeddingsUnsupported is returned by providers with no embedding API.
var ErrEmbeddingsUnsupported = errors.New("provider does not support embeddings")

// CompletionRequest is one judgment call.
type CompletionRequest struct {
	// System sets the system role message (may be empty).
	System string

	// Prompt is the user content.
	Prompt string

	// Model overrides the configured model when set.
	Model string

	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature defaults to 0 for deterministic judgments.
	Temperature float32
}

// CompletionResponse is the raw completion output.
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
}

// Config holds provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests, in seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// EmbeddingModel for similarity vectors (OpenAI/Ollama only)
	EmbeddingModel string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "",
		Model:     "",
		Timeout:   30,
		MaxTokens: 2000,
	}
}
