package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type EmbedderConfig struct {
	Provider  string  `yaml:"provider"`
	Model     string  `yaml:"model"`
	BaseURL   string  `yaml:"base_url"`
	APIKey    string  `yaml:"api_key"`
	RateLimit float64 `yaml:"rate_limit"`
}

type CorpusConfig struct {
	// Path is a local file or an http(s) URL.
	Path      string   `yaml:"path"`
	Selectors []string `yaml:"selectors"`
}

type IndexConfig struct {
	Concurrency    int           `yaml:"concurrency"`
	TopK           int           `yaml:"top_k"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url"`
	TableName string `yaml:"table_name"`
}

type ChainConfig struct {
	RPCURL string `yaml:"rpc_url"`
}

type APIConfig struct {
	BaseURL   string  `yaml:"base_url"`
	APIKey    string  `yaml:"api_key"`
	RateLimit float64 `yaml:"rate_limit"`
}

type AdvisorConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level      string   `yaml:"level"`
	Format     string   `yaml:"format"`
	Outputs    []string `yaml:"outputs"`
	MaxSizeMB  int      `yaml:"max_size_mb"`
	MaxBackups int      `yaml:"max_backups"`
	MaxAgeDays int      `yaml:"max_age_days"`
}

type Config struct {
	Embedder  EmbedderConfig `yaml:"embedder"`
	Corpus    CorpusConfig   `yaml:"corpus"`
	Index     IndexConfig    `yaml:"index"`
	Database  DatabaseConfig `yaml:"database"`
	Chain     ChainConfig    `yaml:"chain"`
	Etherscan APIConfig      `yaml:"etherscan"`
	CoinGecko APIConfig      `yaml:"coingecko"`
	Advisor   AdvisorConfig  `yaml:"advisor"`
	Server    ServerConfig   `yaml:"server"`
	Log       LogConfig      `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/planfinder/config.yaml"),
			"/etc/planfinder/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.Embedder.Provider == "" {
		config.Embedder.Provider = "openai"
	}

	if config.Corpus.Path == "" {
		config.Corpus.Path = "common_plans.txt"
	}

	if config.Index.Concurrency == 0 {
		config.Index.Concurrency = 4
	}
	if config.Index.TopK == 0 {
		config.Index.TopK = 1
	}
	if config.Index.RequestTimeout == 0 {
		config.Index.RequestTimeout = 30 * time.Second
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "plans"
	}

	if config.Advisor.Provider == "" {
		config.Advisor.Provider = "ollama"
	}
	if config.Advisor.MaxTokens == 0 {
		config.Advisor.MaxTokens = 500
	}
	if config.Advisor.Temperature == 0 {
		config.Advisor.Temperature = 0.3
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if config.Embedder.APIKey == "" {
			config.Embedder.APIKey = key
		}
		if config.Advisor.APIKey == "" {
			config.Advisor.APIKey = key
		}
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		if strings.EqualFold(config.Embedder.Provider, "ollama") {
			config.Embedder.BaseURL = baseURL
		}
		if config.Advisor.Provider == "" || strings.EqualFold(config.Advisor.Provider, "ollama") {
			config.Advisor.BaseURL = baseURL
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if rpcURL := os.Getenv("INFURA_URL"); rpcURL != "" {
		config.Chain.RPCURL = rpcURL
	}
	if key := os.Getenv("ETHERSCAN_API_KEY"); key != "" {
		config.Etherscan.APIKey = key
	}
	if key := os.Getenv("COINGECKO_API_KEY"); key != "" {
		config.CoinGecko.APIKey = key
	}
	if path := os.Getenv("PLANS_PATH"); path != "" {
		config.Corpus.Path = path
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}
}
