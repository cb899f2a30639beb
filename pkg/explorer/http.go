// Package explorer holds HTTP clients for the block explorer and token
// metadata APIs used to answer wallet questions.
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrMissingAPIKey = errors.New("API key is not configured")
	ErrTokenNotFound = errors.New("token address not found on Ethereum network")
)

// StatusError is returned when an API answers with a non-200 status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unable to retrieve data (status code %d)", e.Code)
}

type ClientConfig struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	RateLimit float64 // requests per second; 0 uses the API default, negative disables
}

type httpClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPClient(config ClientConfig, defaultBase string, defaultRate float64) httpClient {
	if config.BaseURL == "" {
		config.BaseURL = defaultBase
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = defaultRate
	}

	c := httpClient{
		baseURL: config.BaseURL,
		client:  &http.Client{Timeout: config.Timeout},
	}
	if config.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}
	return c
}

func (c httpClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
