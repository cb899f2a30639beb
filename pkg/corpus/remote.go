package corpus

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

type RemoteConfig struct {
	Timeout time.Duration
	// Selectors pick the HTML elements whose text becomes one plan each.
	Selectors []string
}

// Remote fetches a plan corpus over HTTP. Plain text bodies are split on
// newlines; HTML bodies are parsed and one plan is taken per selected element.
type Remote struct {
	config RemoteConfig
	client *http.Client
}

func NewRemote(config RemoteConfig) *Remote {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if len(config.Selectors) == 0 {
		config.Selectors = []string{"li", "p"}
	}

	return &Remote{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

func (r *Remote) Fetch(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create corpus request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch plan corpus: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, url)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, url)
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return r.extractHTML(resp.Body)
	}
	return Parse(resp.Body)
}

func (r *Remote) extractHTML(body io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan corpus HTML: %w", err)
	}

	var lines []string
	for _, selector := range r.config.Selectors {
		selected := doc.Find(selector)
		if selected.Length() == 0 {
			continue
		}
		selected.Each(func(_ int, s *goquery.Selection) {
			if line := cleanLine(s.Text()); line != "" {
				lines = append(lines, line)
			}
		})
		break
	}

	// Fallback to body text if none of the selectors matched
	if len(lines) == 0 {
		lines = splitLines(doc.Find("body").Text())
	}
	return lines, nil
}
