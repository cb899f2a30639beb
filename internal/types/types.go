package types

import (
	"context"

	"github.com/xhad/planfinder/internal/models"
)

// Core interfaces

// Embedder maps one text to one fixed-dimension vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// PlanBackend holds the embedded corpus and answers nearest-neighbor queries.
type PlanBackend interface {
	Load(ctx context.Context, plans []models.EmbeddedPlan) error
	Search(ctx context.Context, embedding []float32, k int) ([]models.Match, error)
	Close()
}

// PlanFinder is what the tool and server layers consume.
type PlanFinder interface {
	FindSimilar(ctx context.Context, query string, k int) ([]models.Match, error)
}
