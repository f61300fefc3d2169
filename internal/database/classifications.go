package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/threatwatch/pipeline/internal/domain"
)

// ClassificationRepository persists classifications. A classification is
// created once per article and never updated.
type ClassificationRepository struct {
	db *sqlx.DB
}

// NewClassificationRepository creates a new classification repository.
func NewClassificationRepository(db *sqlx.DB) *ClassificationRepository {
	return &ClassificationRepository{db: db}
}

// CreateAndMarkProcessed writes the classification row and flips the
// article's one-way processed flag in a single transaction. If the article
// was already processed by a concurrent delivery, the transaction rolls
// back and domain.ErrAlreadyProcessed is returned.
func (r *ClassificationRepository) CreateAndMarkProcessed(ctx context.Context, c *domain.Classification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`UPDATE articles SET processed = TRUE WHERE id = $1 AND NOT processed`,
		c.ArticleID,
	)
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processed rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrAlreadyProcessed
	}

	insert := `
		INSERT INTO classifications
			(article_id, category, threat_type, threat_level,
			 credibility_score, summary, classified_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	row := tx.QueryRowxContext(ctx, insert,
		c.ArticleID,
		c.Category,
		c.ThreatType,
		c.ThreatLevel,
		c.CredibilityScore,
		c.Summary,
		c.ClassifiedBy,
	)
	if scanErr := row.Scan(&c.ID, &c.CreatedAt); scanErr != nil {
		var pqErr *pq.Error
		if errors.As(scanErr, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return domain.ErrAlreadyProcessed
		}
		return fmt.Errorf("insert classification: %w", scanErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit classification: %w", commitErr)
	}

	return nil
}

// GetByArticleID loads the classification for an article. Returns
// domain.ErrNotFound when the article has not been classified.
func (r *ClassificationRepository) GetByArticleID(ctx context.Context, articleID uuid.UUID) (*domain.Classification, error) {
	query := `
		SELECT id, article_id, category, threat_type, threat_level,
		       credibility_score, summary, classified_by, created_at
		FROM classifications
		WHERE article_id = $1
	`

	var c domain.Classification
	if err := r.db.GetContext(ctx, &c, query, articleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get classification: %w", err)
	}

	return &c, nil
}
