package taxonomy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrVersionNotFound is returned when the store has no taxonomy for a version
var ErrVersionNotFound = errors.New("taxonomy version not found")

// Store keeps versioned taxonomies in PostgreSQL
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to PostgreSQL and verifies the connection
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// InitSchema creates the taxonomy table if it does not exist
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS gesture_taxonomies (
			version TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			document JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create gesture_taxonomies table: %w", err)
	}
	return nil
}

// Publish stores a taxonomy under its version, replacing an existing document
func (s *Store) Publish(ctx context.Context, t *Taxonomy) error {
	if err := t.Validate(); err != nil {
		return err
	}

	doc, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode taxonomy: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO gesture_taxonomies (version, name, document)
		VALUES ($1, $2, $3)
		ON CONFLICT (version) DO UPDATE
		SET name = EXCLUDED.name, document = EXCLUDED.document, created_at = NOW()`,
		t.Version, t.Name, doc,
	)
	if err != nil {
		return fmt.Errorf("failed to publish taxonomy %s: %w", t.Version, err)
	}
	return nil
}

// Get loads a specific taxonomy version
func (s *Store) Get(ctx context.Context, version string) (*Taxonomy, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT document FROM gesture_taxonomies WHERE version = $1`, version)
	return scanTaxonomy(row, version)
}

// Latest loads the most recently published taxonomy
func (s *Store) Latest(ctx context.Context) (*Taxonomy, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT document FROM gesture_taxonomies ORDER BY created_at DESC LIMIT 1`)
	return scanTaxonomy(row, "latest")
}

func scanTaxonomy(row pgx.Row, version string) (*Taxonomy, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrVersionNotFound, version)
		}
		return nil, fmt.Errorf("failed to load taxonomy %s: %w", version, err)
	}
	return Parse(doc, ".json")
}
