// Package index builds an immutable nearest-neighbor index over the plan
// corpus and answers top-k similarity queries against it.
//
// An Index starts Unbuilt. A successful Build moves it to Ready, which is
// terminal: there is no rebuild or teardown. A failed Build leaves it
// Unbuilt, and queries against an Unbuilt index return ErrEmptyIndex.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xhad/planfinder/internal/models"
	"github.com/xhad/planfinder/internal/types"
	"github.com/xhad/planfinder/pkg/corpus"
	"github.com/xhad/planfinder/pkg/llm"
	"github.com/xhad/planfinder/pkg/logger"
)

type State int

const (
	Unbuilt State = iota
	Ready
)

func (s State) String() string {
	if s == Ready {
		return "ready"
	}
	return "unbuilt"
}

type Config struct {
	// Concurrency bounds the number of in-flight embedding calls during Build.
	Concurrency int
	// Backend stores the embedded corpus. Defaults to a MemoryBackend.
	Backend types.PlanBackend
	// NewBackend, when set, opens the backend once the embedding dimension
	// is known. It takes precedence over Backend.
	NewBackend func(ctx context.Context, dim int) (types.PlanBackend, error)
	// OnProgress is called after each plan is embedded. It may be called from
	// several goroutines at once.
	OnProgress func(done, total int)
	// Remote configures fetching when Load is given an http(s) URL.
	Remote corpus.RemoteConfig
	Logger *slog.Logger
}

type Index struct {
	config   Config
	embedder types.Embedder
	log      *slog.Logger

	buildMu sync.Mutex
	ready   atomic.Pointer[snapshot]
}

type snapshot struct {
	size    int
	dim     int
	backend types.PlanBackend
}

func New(embedder types.Embedder, config Config) *Index {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.Backend == nil && config.NewBackend == nil {
		config.Backend = NewMemoryBackend()
	}
	log := config.Logger
	if log == nil {
		log = logger.Named("index")
	}

	return &Index{
		config:   config,
		embedder: embedder,
		log:      log,
	}
}

// Load reads the corpus at path and builds the index from it.
func (ix *Index) Load(ctx context.Context, path string) error {
	plans, err := corpus.LoadWith(ctx, path, ix.config.Remote)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuildFailure, err)
	}
	return ix.Build(ctx, plans)
}

// Build embeds every plan once and publishes the index. Plans are
// renumbered by their position in the slice.
func (ix *Index) Build(ctx context.Context, plans []models.Plan) error {
	ix.buildMu.Lock()
	defer ix.buildMu.Unlock()

	if ix.ready.Load() != nil {
		return ErrAlreadyBuilt
	}
	if len(plans) == 0 {
		return fmt.Errorf("%w: %w", ErrBuildFailure, ErrEmptyCorpus)
	}

	start := time.Now()
	ix.log.Info("building plan index", "plans", len(plans), "concurrency", ix.config.Concurrency)

	embedded := make([]models.EmbeddedPlan, len(plans))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.config.Concurrency)
	for i, p := range plans {
		g.Go(func() error {
			vec, err := ix.embedder.EmbedQuery(gctx, p.Text)
			if err != nil {
				return fmt.Errorf("plan %d: %w", i, embeddingError(err))
			}
			embedded[i] = models.EmbeddedPlan{
				Plan:      models.Plan{Position: i, Text: p.Text},
				Embedding: vec,
			}
			if ix.config.OnProgress != nil {
				ix.config.OnProgress(int(done.Add(1)), len(plans))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		ix.log.Error("plan index build failed", "error", err)
		return fmt.Errorf("%w: %w", ErrBuildFailure, err)
	}

	dim := len(embedded[0].Embedding)
	for _, e := range embedded {
		if len(e.Embedding) == 0 || len(e.Embedding) != dim {
			err := fmt.Errorf("plan %d has dimension %d, expected %d", e.Position, len(e.Embedding), dim)
			ix.log.Error("plan index build failed", "error", err)
			return fmt.Errorf("%w: %w", ErrBuildFailure, err)
		}
	}

	backend, err := ix.openBackend(ctx, dim)
	if err != nil {
		ix.log.Error("plan index build failed", "error", err)
		return fmt.Errorf("%w: %w", ErrBuildFailure, err)
	}
	if err := backend.Load(ctx, embedded); err != nil {
		if ix.config.NewBackend != nil {
			backend.Close()
		}
		ix.log.Error("plan index build failed", "error", err)
		return fmt.Errorf("%w: %w", ErrBuildFailure, err)
	}

	ix.ready.Store(&snapshot{size: len(embedded), dim: dim, backend: backend})
	ix.log.Info("plan index ready", "plans", len(embedded), "dimension", dim, "elapsed", time.Since(start))
	return nil
}

// FindSimilar returns the k plans nearest to query, nearest first. Ties are
// broken by corpus position. k larger than the corpus is clamped; k == 0
// returns an empty result without calling the embedder.
func (ix *Index) FindSimilar(ctx context.Context, query string, k int) ([]models.Match, error) {
	snap := ix.ready.Load()
	if snap == nil {
		return nil, ErrEmptyIndex
	}
	if k < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	if k == 0 {
		return []models.Match{}, nil
	}
	if k > snap.size {
		k = snap.size
	}

	vec, err := ix.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, embeddingError(err)
	}
	if len(vec) != snap.dim {
		return nil, fmt.Errorf("%w: query dimension %d, index dimension %d", llm.ErrEmbeddingService, len(vec), snap.dim)
	}

	matches, err := snap.backend.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("failed to search plan index: %w", err)
	}
	ix.log.Debug("plan query", "k", k, "results", len(matches))
	return matches, nil
}

func (ix *Index) State() State {
	if ix.ready.Load() == nil {
		return Unbuilt
	}
	return Ready
}

// Size reports the number of indexed plans, 0 while Unbuilt.
func (ix *Index) Size() int {
	if snap := ix.ready.Load(); snap != nil {
		return snap.size
	}
	return 0
}

func (ix *Index) Dimension() int {
	if snap := ix.ready.Load(); snap != nil {
		return snap.dim
	}
	return 0
}

// Close releases the backend.
func (ix *Index) Close() {
	if snap := ix.ready.Load(); snap != nil {
		snap.backend.Close()
		return
	}
	if ix.config.Backend != nil {
		ix.config.Backend.Close()
	}
}

func (ix *Index) openBackend(ctx context.Context, dim int) (types.PlanBackend, error) {
	if ix.config.NewBackend == nil {
		return ix.config.Backend, nil
	}
	backend, err := ix.config.NewBackend(ctx, dim)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan backend: %w", err)
	}
	return backend, nil
}

func embeddingError(err error) error {
	if errors.Is(err, llm.ErrEmbeddingService) {
		return err
	}
	return fmt.Errorf("%w: %w", llm.ErrEmbeddingService, err)
}
