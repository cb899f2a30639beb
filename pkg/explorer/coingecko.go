package explorer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const DefaultCoinGeckoURL = "https://api.coingecko.com/api/v3"

type CoinGecko struct {
	http   httpClient
	apiKey string
}

func NewCoinGecko(config ClientConfig) *CoinGecko {
	return &CoinGecko{
		http:   newHTTPClient(config, DefaultCoinGeckoURL, 0.5),
		apiKey: config.APIKey,
	}
}

type coinResponse struct {
	Platforms map[string]string `json:"platforms"`
}

// TokenAddress returns the Ethereum contract address of the coin with the
// given CoinGecko id, e.g. "usd-coin".
func (c *CoinGecko) TokenAddress(ctx context.Context, id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return "", errors.New("token name is empty")
	}

	query := url.Values{}
	if c.apiKey != "" {
		query.Set("x_cg_demo_api_key", c.apiKey)
	}

	var resp coinResponse
	err := c.http.getJSON(ctx, "/coins/"+url.PathEscape(id), query, &resp)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, id)
	}
	if err != nil {
		return "", err
	}

	addr := resp.Platforms["ethereum"]
	if addr == "" {
		return "", fmt.Errorf("%w: %s", ErrTokenNotFound, id)
	}
	return addr, nil
}
