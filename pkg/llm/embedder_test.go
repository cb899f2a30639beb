package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/planfinder/pkg/llm"
)

type fakeClient struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.vectors[text]
	}
	return out, nil
}

func TestNewEmbedderWithConfig(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider: "ollama",
		BaseURL:  "http://localhost:11434",
	})
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text:latest", emb.Config.Model)

	emb, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderOpenAI, emb.Config.Provider)
	assert.Equal(t, "text-embedding-ada-002", emb.Config.Model)

	_, err = llm.NewEmbedderWithConfig(llm.EmbedderConfig{Provider: "cohere"})
	assert.Error(t, err)
}

func TestEmbedQuery(t *testing.T) {
	client := &fakeClient{vectors: map[string][]float32{
		"save money": {1, 0, 0},
	}}
	emb, err := llm.NewEmbedderFromClient(llm.EmbedderConfig{}, client)
	require.NoError(t, err)

	vec, err := emb.EmbedQuery(context.Background(), "save money")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, vec)
	assert.Equal(t, 1, client.calls)
}

func TestEmbedQueryErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
	}{
		{
			name:   "provider failure",
			client: &fakeClient{err: errors.New("401 unauthorized")},
		},
		{
			name:   "empty vector",
			client: &fakeClient{vectors: map[string][]float32{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := llm.NewEmbedderFromClient(llm.EmbedderConfig{}, tt.client)
			require.NoError(t, err)

			_, err = emb.EmbedQuery(context.Background(), "anything")
			assert.ErrorIs(t, err, llm.ErrEmbeddingService)
		})
	}
}

func TestEmbedQueryRateLimitHonoursContext(t *testing.T) {
	client := &fakeClient{vectors: map[string][]float32{"q": {1}}}
	emb, err := llm.NewEmbedderFromClient(llm.EmbedderConfig{RateLimit: 0.001}, client)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = emb.EmbedQuery(ctx, "q")
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = emb.EmbedQuery(cancelled, "q")
	assert.ErrorIs(t, err, llm.ErrEmbeddingService)
	assert.Equal(t, 1, client.calls)
}
