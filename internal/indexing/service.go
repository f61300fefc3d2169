package indexing

import (
	"context"
	"errors"
	"fmt"

	"github.com/threatwatch/pipeline/internal/database"
	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/logger"
	"github.com/threatwatch/pipeline/internal/metrics"
)

// DocumentWriter upserts a document into the search index.
type DocumentWriter interface {
	Upsert(ctx context.Context, doc *Document) error
}

// Publisher publishes an article event to a pipeline channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, event domain.ArticleEvent) error
}

// Service handles article-classified events.
type Service struct {
	articles        *database.ArticleRepository
	classifications *database.ClassificationRepository
	writer          DocumentWriter
	pub             Publisher
	metrics         *metrics.Metrics
	log             logger.Logger
}

// NewService creates the indexing handler.
func NewService(
	articles *database.ArticleRepository,
	classifications *database.ClassificationRepository,
	writer DocumentWriter,
	pub Publisher,
	m *metrics.Metrics,
	log logger.Logger,
) *Service {
	return &Service{
		articles:        articles,
		classifications: classifications,
		writer:          writer,
		pub:             pub,
		metrics:         m,
		log:             log,
	}
}

// Handle indexes the article named by the event. An upsert failure is
// recorded but the event is still consumed: the indexed flag stays false,
// so the gap is visible in the store rather than retried from the broker.
func (s *Service) Handle(ctx context.Context, event domain.ArticleEvent) error {
	article, err := s.articles.GetByID(ctx, event.ArticleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.log.Warn("article missing, dropping event",
				logger.String("article_id", event.ArticleID.String()))
			return nil
		}
		return fmt.Errorf("load article: %w", err)
	}

	if article.Indexed {
		s.log.Debug("article already indexed, skipping",
			logger.String("article_id", article.ID.String()))
		return nil
	}

	classification, err := s.classifications.GetByArticleID(ctx, article.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load classification: %w", err)
	}

	countries, err := s.articles.CountryTags(ctx, article.ID)
	if err != nil {
		return fmt.Errorf("load country tags: %w", err)
	}

	entities, err := s.articles.Entities(ctx, article.ID)
	if err != nil {
		return fmt.Errorf("load entities: %w", err)
	}

	votes, err := s.articles.VoteCounts(ctx, article.ID)
	if err != nil {
		return fmt.Errorf("load vote counts: %w", err)
	}

	doc := BuildDocument(article, classification, countries, entities, votes)

	if upsertErr := s.writer.Upsert(ctx, doc); upsertErr != nil {
		s.metrics.IndexingFailures.Inc()
		s.log.Error("failed to index article",
			logger.String("article_id", article.ID.String()),
			logger.Error(upsertErr))
		return nil
	}

	if markErr := s.articles.MarkIndexed(ctx, article.ID); markErr != nil {
		if errors.Is(markErr, domain.ErrAlreadyIndexed) {
			return nil
		}
		return fmt.Errorf("mark indexed: %w", markErr)
	}

	s.metrics.ArticlesIndexed.Inc()
	s.log.Info("article indexed",
		logger.String("article_id", article.ID.String()),
		logger.String("category", doc.Category))

	if pubErr := s.pub.Publish(ctx, domain.StreamIndexed, domain.NewArticleEvent(article.ID)); pubErr != nil {
		s.log.Error("failed to publish indexed event",
			logger.String("article_id", article.ID.String()),
			logger.Error(pubErr))
	}

	return nil
}
