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

// pqUniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const pqUniqueViolation = "23505"

// ArticleRepository persists articles and their country tags.
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository creates a new article repository.
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// FingerprintExists reports whether an article with the given fingerprint
// is already persisted.
func (r *ArticleRepository) FingerprintExists(ctx context.Context, fingerprint string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM articles WHERE fingerprint = $1)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, fingerprint); err != nil {
		return false, fmt.Errorf("check fingerprint: %w", err)
	}

	return exists, nil
}

// Insert persists a new article. A fingerprint collision returns
// domain.ErrDuplicate: the unique constraint is the sole concurrency guard
// against concurrent ingestion replicas racing on the same item.
func (r *ArticleRepository) Insert(ctx context.Context, article *domain.Article) error {
	query := `
		INSERT INTO articles
			(id, source_id, title, body, url, image_url, language,
			 published_at, ingested_at, fingerprint, processed, indexed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, FALSE)
	`

	_, err := r.db.ExecContext(ctx, query,
		article.ID,
		article.SourceID,
		article.Title,
		article.Body,
		article.URL,
		article.ImageURL,
		article.Language,
		article.PublishedAt,
		article.IngestedAt,
		article.Fingerprint,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert article: %w", err)
	}

	return nil
}

// AddCountryTags associates country codes with an article. Re-adding an
// existing tag is a no-op.
func (r *ArticleRepository) AddCountryTags(ctx context.Context, articleID uuid.UUID, codes []string) error {
	if len(codes) == 0 {
		return nil
	}

	query := `
		INSERT INTO article_countries (article_id, country_code)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query, articleID, pq.Array(codes)); err != nil {
		return fmt.Errorf("add country tags: %w", err)
	}

	return nil
}

// GetByID loads an article by identifier. Returns domain.ErrNotFound when
// no row exists.
func (r *ArticleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	query := `
		SELECT id, source_id, title, body, url, image_url, language,
		       published_at, ingested_at, fingerprint, processed, indexed
		FROM articles
		WHERE id = $1
	`

	var article domain.Article
	if err := r.db.GetContext(ctx, &article, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get article: %w", err)
	}

	return &article, nil
}

// CountryTags returns the country codes tagged on an article.
func (r *ArticleRepository) CountryTags(ctx context.Context, articleID uuid.UUID) ([]string, error) {
	query := `
		SELECT country_code FROM article_countries
		WHERE article_id = $1
		ORDER BY country_code
	`

	var codes []string
	if err := r.db.SelectContext(ctx, &codes, query, articleID); err != nil {
		return nil, fmt.Errorf("get country tags: %w", err)
	}

	return codes, nil
}

// Entities returns the entity names tagged on an article by external
// extraction tooling. The pipeline never writes this table.
func (r *ArticleRepository) Entities(ctx context.Context, articleID uuid.UUID) ([]string, error) {
	query := `
		SELECT entity FROM article_entities
		WHERE article_id = $1
		ORDER BY entity
	`

	var entities []string
	if err := r.db.SelectContext(ctx, &entities, query, articleID); err != nil {
		return nil, fmt.Errorf("get entities: %w", err)
	}

	return entities, nil
}

// VoteCounts aggregates reader votes for an article, bucketed by vote
// category. The pipeline never writes the votes table.
func (r *ArticleRepository) VoteCounts(ctx context.Context, articleID uuid.UUID) (map[string]int, error) {
	query := `
		SELECT category, COUNT(*) AS votes
		FROM article_votes
		WHERE article_id = $1
		GROUP BY category
	`

	rows, err := r.db.QueryxContext(ctx, query, articleID)
	if err != nil {
		return nil, fmt.Errorf("get vote counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			category string
			votes    int
		)
		if err := rows.Scan(&category, &votes); err != nil {
			return nil, fmt.Errorf("scan vote count: %w", err)
		}
		counts[category] = votes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate vote counts: %w", err)
	}

	return counts, nil
}

// MarkIndexed flips the one-way indexed flag. The processed guard enforces
// the invariant that indexed may only become true after processed.
// Returns domain.ErrAlreadyIndexed if no row was updated.
func (r *ArticleRepository) MarkIndexed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE articles SET indexed = TRUE
		WHERE id = $1 AND processed AND NOT indexed
	`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark indexed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark indexed rows: %w", err)
	}
	if affected == 0 {
		return domain.ErrAlreadyIndexed
	}

	return nil
}
