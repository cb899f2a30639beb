package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xhad/planfinder/internal/models"
)

// ChatConfig represents the configuration for the plan advisor.
type ChatConfig struct {
	Provider        string
	Model           string
	Temperature     float64
	MaxTokens       int
	SystemTemplate  string
	ContextTemplate string
	BaseURL         string
	APIKey          string
}

// Advisor uses a chat model to explain how the matched plans answer a
// user's question.
type Advisor struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new Advisor with the given configuration.
func NewWithConfig(config ChatConfig) (*Advisor, error) {
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}

	var model llms.Model
	switch config.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{openai.WithModel(config.Model)}
		if config.APIKey != "" {
			opts = append(opts, openai.WithToken(config.APIKey))
		}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	case ProviderOllama:
		model, err = ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
	default:
		return nil, fmt.Errorf("unsupported chat provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, model)
}

// NewWithModel builds an Advisor around an existing langchaingo model.
func NewWithModel(config ChatConfig, model llms.Model) (*Advisor, error) {
	config, err := applyChatDefaults(config)
	if err != nil {
		return nil, err
	}
	return &Advisor{config: config, llm: model}, nil
}

func applyChatDefaults(config ChatConfig) (ChatConfig, error) {
	config.Provider = strings.ToLower(strings.TrimSpace(config.Provider))
	if config.Provider == "" {
		config.Provider = ProviderOllama
	}
	if config.Model == "" {
		if config.Provider == ProviderOpenAI {
			config.Model = "gpt-4o-mini"
		} else {
			config.Model = "mistral" // Default Ollama model
		}
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return config, fmt.Errorf("temperature must be between 0 and 1")
	}
	if config.MaxTokens < 0 {
		return config, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 500
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = "You are a careful crypto assistant. Recommend the listed plan that best fits the user's question and explain why in a few sentences. Do not invent plans."
	}
	if config.ContextTemplate == "" {
		config.ContextTemplate = "Candidate plans:\n%s\nQuestion: %s"
	}
	if config.Provider == ProviderOllama && config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	return config, nil
}

// Explain asks the model to justify the matched plans for the query.
func (a *Advisor) Explain(ctx context.Context, query string, matches []models.Match) (string, error) {
	if len(matches) == 0 {
		return "", fmt.Errorf("no candidate plans to explain")
	}

	var contextBuilder strings.Builder
	for i, m := range matches {
		contextBuilder.WriteString(fmt.Sprintf("%d. %s\n", i+1, m.Plan.Text))
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, a.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, fmt.Sprintf(a.config.ContextTemplate, contextBuilder.String(), query)),
	}

	response, err := a.llm.GenerateContent(ctx, content,
		llms.WithTemperature(a.config.Temperature),
		llms.WithMaxTokens(a.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", fmt.Errorf("chat error: no response from LLM")
	}

	return strings.TrimSpace(response.Choices[0].Content), nil
}
