package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/threatwatch/pipeline/internal/domain"
)

// SourceRepository reads source configuration and records fetch times.
// Config fields are owned by external admin tooling; the pipeline only
// writes last_fetched.
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository creates a new source repository.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// ListDue returns all active sources whose next fetch is due at the given
// instant. A source that has never been fetched is always due.
func (r *SourceRepository) ListDue(ctx context.Context, now time.Time) ([]domain.Source, error) {
	query := `
		SELECT id, name, kind, endpoint, fetch_interval, language, country,
		       active, last_fetched, created_at
		FROM sources
		WHERE active
		  AND (last_fetched IS NULL
		       OR last_fetched + (fetch_interval * interval '1 minute') <= $1)
		ORDER BY last_fetched NULLS FIRST
	`

	var sources []domain.Source
	if err := r.db.SelectContext(ctx, &sources, query, now); err != nil {
		return nil, fmt.Errorf("list due sources: %w", err)
	}

	return sources, nil
}

// TouchLastFetched records a fetch attempt. Called regardless of partial
// failure so a broken source retries on its next scheduled interval rather
// than immediately.
func (r *SourceRepository) TouchLastFetched(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE sources SET last_fetched = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("touch last_fetched: %w", err)
	}

	return nil
}
