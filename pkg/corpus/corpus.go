// Package corpus loads the line-delimited plan corpus from a local file or
// an http(s) URL.
package corpus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/xhad/planfinder/internal/models"
)

// ErrResourceNotFound is returned when the corpus file or URL does not exist.
var ErrResourceNotFound = errors.New("plan corpus not found")

// Load reads the resource at path and returns its plans in source order.
// Surrounding whitespace is trimmed and blank lines are skipped.
func Load(ctx context.Context, path string) ([]models.Plan, error) {
	return LoadWith(ctx, path, RemoteConfig{})
}

// LoadWith is Load with explicit settings for remote corpora.
func LoadWith(ctx context.Context, path string, remote RemoteConfig) ([]models.Plan, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrResourceNotFound)
	}

	var (
		lines []string
		err   error
	)
	if isRemote(path) {
		lines, err = NewRemote(remote).Fetch(ctx, path)
	} else {
		lines, err = readFile(path)
	}
	if err != nil {
		return nil, err
	}

	plans := make([]models.Plan, len(lines))
	for i, line := range lines {
		plans[i] = models.Plan{Position: i, Text: line}
	}
	return plans, nil
}

// Parse reads plans from r. It is what Load uses for local files. Lines have
// no length limit.
func Parse(r io.Reader) ([]string, error) {
	var lines []string
	reader := bufio.NewReader(r)
	for {
		raw, err := reader.ReadString('\n')
		if line := trimLine(raw); line != "" {
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			return lines, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read plan corpus: %w", err)
		}
	}
}

func readFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, path)
		}
		return nil, fmt.Errorf("failed to open plan corpus: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

func isRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}
