package store

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/planfinder/internal/models"
	"github.com/xhad/planfinder/internal/types"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
}

// VectorStore mirrors the plan index into a pgvector table and serves
// nearest-neighbor queries from it.
type VectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
}

var _ types.PlanBackend = (*VectorStore)(nil)

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*VectorStore, error) {
	if config.TableName == "" {
		config.TableName = "plans"
	}
	if !tableNamePattern.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}
	if config.VectorDim <= 0 {
		return nil, fmt.Errorf("vector dimension must be positive")
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &VectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *VectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			position INTEGER PRIMARY KEY,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, vs.config.TableName, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// Load replaces the table contents with the given plans in one transaction,
// so readers never observe a partial corpus.
func (vs *VectorStore) Load(ctx context.Context, plans []models.EmbeddedPlan) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", vs.config.TableName)); err != nil {
		return fmt.Errorf("failed to clear plans: %w", err)
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (position, content, embedding) VALUES ($1, $2, $3)`, vs.config.TableName)
	for _, p := range plans {
		if len(p.Embedding) != vs.config.VectorDim {
			return fmt.Errorf("plan %d has dimension %d, table expects %d", p.Position, len(p.Embedding), vs.config.VectorDim)
		}
		_, err = tx.Exec(ctx, stmt, p.Position, p.Text, pgvector.NewVector(p.Embedding))
		if err != nil {
			return fmt.Errorf("failed to insert plan %d: %w", p.Position, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Search orders by cosine distance and then position, matching the in-memory
// backend's tie-break.
func (vs *VectorStore) Search(ctx context.Context, queryEmbedding []float32, k int) ([]models.Match, error) {
	query := fmt.Sprintf(`
		SELECT position, content, COALESCE(NULLIF(embedding <=> $1, 'NaN'::float8), 1) AS distance
		FROM %s
		ORDER BY distance, position
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		var m models.Match
		if err := rows.Scan(&m.Plan.Position, &m.Plan.Text, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read plans: %w", err)
	}

	return matches, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}
