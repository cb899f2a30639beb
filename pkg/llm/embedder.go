package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
)

// ErrEmbeddingService wraps every failure of the embedding provider:
// transport, authentication, quota, or a malformed response.
var ErrEmbeddingService = errors.New("embedding service error")

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// EmbedderConfig represents the configuration for an embedding provider.
type EmbedderConfig struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	RateLimit float64 // requests per second, 0 disables limiting
}

// Embedder turns text into vectors through a langchaingo embedding client.
type Embedder struct {
	Config  EmbedderConfig
	embed   embeddings.Embedder
	limiter *rate.Limiter
}

func NewEmbedderWithConfig(config EmbedderConfig) (*Embedder, error) {
	config.Provider = strings.ToLower(strings.TrimSpace(config.Provider))

	var (
		client embeddings.EmbedderClient
		err    error
	)
	switch config.Provider {
	case "", ProviderOpenAI:
		config.Provider = ProviderOpenAI
		if config.Model == "" {
			config.Model = "text-embedding-ada-002"
		}
		opts := []openai.Option{openai.WithEmbeddingModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		client, err = openai.New(opts...)
	case ProviderOllama:
		if config.Model == "" {
			config.Model = "nomic-embed-text:latest" // Default Ollama model
		}
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		client, err = ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	default:
		return nil, fmt.Errorf("unsupported embedding provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w: %w", ErrEmbeddingService, err)
	}

	return NewEmbedderFromClient(config, client)
}

// NewEmbedderFromClient wraps an already constructed embedding client.
func NewEmbedderFromClient(config EmbedderConfig, client embeddings.EmbedderClient) (*Embedder, error) {
	emb, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	e := &Embedder{
		Config: config,
		embed:  emb,
	}
	if config.RateLimit > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	return e, nil
}

// EmbedQuery returns the embedding of a single text.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingService, err)
		}
	}

	vec, err := e.embed.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingService, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: provider returned an empty vector", ErrEmbeddingService)
	}
	return vec, nil
}
