package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"OPENAI_API_KEY", "OLLAMA_BASE_URL", "DATABASE_URL", "INFURA_URL",
		"ETHERSCAN_API_KEY", "COINGECKO_API_KEY", "PLANS_PATH", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
embedder:
  provider: "ollama"
  model: "nomic-embed-text"
  base_url: "http://localhost:11434"

corpus:
  path: "https://example.com/plans.html"
  selectors: ["li.plan"]

index:
  concurrency: 8
  top_k: 3
  request_timeout: 5s

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_plans"

chain:
  rpc_url: "https://mainnet.infura.io/v3/abc"

advisor:
  enabled: true
  model: "llama3"
  temperature: 0.5

log:
  level: "debug"
  format: "json"
  outputs: ["stderr", "/tmp/planfinder.log"]
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "ollama", config.Embedder.Provider)
	assert.Equal(t, "nomic-embed-text", config.Embedder.Model)
	assert.Equal(t, []string{"li.plan"}, config.Corpus.Selectors)
	assert.Equal(t, 8, config.Index.Concurrency)
	assert.Equal(t, 3, config.Index.TopK)
	assert.Equal(t, 5*time.Second, config.Index.RequestTimeout)
	assert.Equal(t, "test_plans", config.Database.TableName)
	assert.Equal(t, "https://mainnet.infura.io/v3/abc", config.Chain.RPCURL)
	assert.True(t, config.Advisor.Enabled)
	assert.Equal(t, "ollama", config.Advisor.Provider)
	assert.Equal(t, 500, config.Advisor.MaxTokens)
	assert.Equal(t, 0.5, config.Advisor.Temperature)
	assert.Equal(t, ":8080", config.Server.Addr)
	assert.Equal(t, "json", config.Log.Format)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("DATABASE_URL", "postgres://db:5432/plans")
	t.Setenv("INFURA_URL", "https://rpc.example")
	t.Setenv("ETHERSCAN_API_KEY", "es-key")
	t.Setenv("PLANS_PATH", "/data/plans.txt")
	t.Setenv("LOG_LEVEL", "warn")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("index:\n  top_k: 2\n"), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "openai", config.Embedder.Provider)
	assert.Equal(t, "sk-test", config.Embedder.APIKey)
	assert.Equal(t, "sk-test", config.Advisor.APIKey)
	assert.Equal(t, "postgres://db:5432/plans", config.Database.URL)
	assert.Equal(t, "https://rpc.example", config.Chain.RPCURL)
	assert.Equal(t, "es-key", config.Etherscan.APIKey)
	assert.Equal(t, "/data/plans.txt", config.Corpus.Path)
	assert.Equal(t, "warn", config.Log.Level)
	assert.Equal(t, 2, config.Index.TopK)
	assert.Equal(t, 30*time.Second, config.Index.RequestTimeout)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("index: [not, a, map"), 0644))
	_, err = LoadConfig(configPath)
	assert.ErrorContains(t, err, "error parsing config file")
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		var c Config
		c.Embedder.Provider = "ollama"
		applyDefaults(&c)
		return c
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "missing openai key",
			mutate: func(c *Config) {
				c.Embedder.Provider = "openai"
			},
			errorMessages: []string{"embedder.api_key"},
		},
		{
			name: "unknown provider",
			mutate: func(c *Config) {
				c.Embedder.Provider = "cohere"
			},
			errorMessages: []string{"embedder.provider"},
		},
		{
			name: "bad index settings",
			mutate: func(c *Config) {
				c.Index.Concurrency = -1
				c.Index.TopK = -2
			},
			errorMessages: []string{"index.concurrency", "index.top_k"},
		},
		{
			name: "bad urls",
			mutate: func(c *Config) {
				c.Chain.RPCURL = "not a url"
				c.Database.URL = "postgres://%zz"
			},
			errorMessages: []string{"database.url", "chain.rpc_url"},
		},
		{
			name: "keyword DSN",
			mutate: func(c *Config) {
				c.Database.URL = "host=localhost dbname=plans"
			},
		},
		{
			name: "advisor out of range",
			mutate: func(c *Config) {
				c.Advisor.Enabled = true
				c.Advisor.MaxTokens = 10000
				c.Advisor.Temperature = 1.5
			},
			errorMessages: []string{"advisor.max_tokens", "advisor.temperature"},
		},
		{
			name: "advisor disabled skips checks",
			mutate: func(c *Config) {
				c.Advisor.MaxTokens = 10000
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			errs := c.Validate()
			require.Len(t, errs, len(tt.errorMessages))
			for i, field := range tt.errorMessages {
				assert.Equal(t, field, errs[i].Field)
			}
		})
	}
}
