package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate embedder config
	switch strings.ToLower(c.Embedder.Provider) {
	case "openai":
		if c.Embedder.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "embedder.api_key",
				Message: "OpenAI API key is required (set OPENAI_API_KEY)",
			})
		}
	case "ollama":
	default:
		errors = append(errors, ValidationError{
			Field:   "embedder.provider",
			Message: fmt.Sprintf("unsupported provider %q", c.Embedder.Provider),
		})
	}
	if c.Embedder.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedder.rate_limit",
			Message: "rate_limit cannot be negative",
		})
	}
	errors = appendURLError(errors, "embedder.base_url", c.Embedder.BaseURL)

	// Validate corpus and index config
	if strings.TrimSpace(c.Corpus.Path) == "" {
		errors = append(errors, ValidationError{
			Field:   "corpus.path",
			Message: "plan corpus path is required",
		})
	}

	if c.Index.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.concurrency",
			Message: "concurrency must be positive",
		})
	}

	if c.Index.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "index.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Index.RequestTimeout < 0 {
		errors = append(errors, ValidationError{
			Field:   "index.request_timeout",
			Message: "request_timeout cannot be negative",
		})
	}

	// Validate Database config. pgx also accepts keyword/value DSNs.
	if strings.Contains(c.Database.URL, "://") {
		errors = appendURLError(errors, "database.url", c.Database.URL)
	}

	// Validate chain and explorer config
	errors = appendURLError(errors, "chain.rpc_url", c.Chain.RPCURL)
	errors = appendURLError(errors, "etherscan.base_url", c.Etherscan.BaseURL)
	errors = appendURLError(errors, "coingecko.base_url", c.CoinGecko.BaseURL)

	// Validate advisor config
	if c.Advisor.Enabled {
		if c.Advisor.MaxTokens < 1 || c.Advisor.MaxTokens > 4096 {
			errors = append(errors, ValidationError{
				Field:   "advisor.max_tokens",
				Message: "max_tokens must be between 1 and 4096",
			})
		}

		if c.Advisor.Temperature < 0 || c.Advisor.Temperature > 1 {
			errors = append(errors, ValidationError{
				Field:   "advisor.temperature",
				Message: "temperature must be between 0 and 1",
			})
		}
		errors = appendURLError(errors, "advisor.base_url", c.Advisor.BaseURL)
	}

	return errors
}

func appendURLError(errors []ValidationError, field, raw string) []ValidationError {
	if raw == "" {
		return errors
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		errors = append(errors, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid URL %q", raw),
		})
	}
	return errors
}
