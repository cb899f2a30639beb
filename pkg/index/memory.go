package index

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/xhad/planfinder/internal/models"
)

// MemoryBackend is a brute-force cosine index held in process memory.
type MemoryBackend struct {
	plans []models.Plan
	vecs  [][]float32
	mags  []float64
	dim   int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

// Load copies the embedded plans and precomputes magnitudes.
func (m *MemoryBackend) Load(_ context.Context, plans []models.EmbeddedPlan) error {
	if len(plans) == 0 {
		return ErrEmptyCorpus
	}
	dim := len(plans[0].Embedding)
	out := make([]models.Plan, len(plans))
	vecs := make([][]float32, len(plans))
	mags := make([]float64, len(plans))
	for i, p := range plans {
		if len(p.Embedding) != dim {
			return fmt.Errorf("inconsistent vector dims %d vs %d", len(p.Embedding), dim)
		}
		out[i] = p.Plan
		vecs[i] = append([]float32(nil), p.Embedding...)
		mags[i] = magnitude(p.Embedding)
	}
	m.plans, m.vecs, m.mags, m.dim = out, vecs, mags, dim
	return nil
}

// Search ranks every plan by cosine distance (1 - cos), nearest first.
// Zero-magnitude vectors sit at distance 1. Equal distances keep corpus order.
func (m *MemoryBackend) Search(_ context.Context, query []float32, k int) ([]models.Match, error) {
	if len(query) != m.dim {
		return nil, fmt.Errorf("query dim %d != index dim %d", len(query), m.dim)
	}
	qm := magnitude(query)

	matches := make([]models.Match, len(m.plans))
	for i := range m.plans {
		d := 1.0
		if qm != 0 && m.mags[i] != 0 {
			d = 1 - dot(query, m.vecs[i])/(qm*m.mags[i])
		}
		if math.IsNaN(d) {
			d = 1
		}
		matches[i] = models.Match{Plan: m.plans[i], Distance: d}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].Distance != matches[b].Distance {
			return matches[a].Distance < matches[b].Distance
		}
		return matches[a].Plan.Position < matches[b].Plan.Position
	})

	if k > len(matches) {
		k = len(matches)
	}
	return matches[:k], nil
}

func (m *MemoryBackend) Close() {}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func magnitude(v []float32) float64 { return math.Sqrt(dot(v, v)) }
