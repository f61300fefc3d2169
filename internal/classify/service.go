// Package classify implements the classification stage: it consumes
// article-ingested events, runs a classification backend over the article
// text, persists the result, and publishes article-classified events.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/threatwatch/pipeline/internal/database"
	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/logger"
	"github.com/threatwatch/pipeline/internal/metrics"
)

// Publisher publishes an article event to a pipeline channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, event domain.ArticleEvent) error
}

// Service handles article-ingested events.
type Service struct {
	articles        *database.ArticleRepository
	classifications *database.ClassificationRepository
	model           Backend
	rules           Backend
	pub             Publisher
	metrics         *metrics.Metrics
	log             logger.Logger
}

// NewService creates the classification handler. model may be nil, in which
// case every article is classified by the rule-based backend.
func NewService(
	articles *database.ArticleRepository,
	classifications *database.ClassificationRepository,
	model Backend,
	pub Publisher,
	m *metrics.Metrics,
	log logger.Logger,
) *Service {
	return &Service{
		articles:        articles,
		classifications: classifications,
		model:           model,
		rules:           NewRuleBased(),
		pub:             pub,
		metrics:         m,
		log:             log,
	}
}

// Handle classifies the article named by the event. Redeliveries are
// absorbed by re-reading the article: a missing or already processed
// article is acked as a no-op.
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

	if article.Processed {
		s.log.Debug("article already processed, skipping",
			logger.String("article_id", article.ID.String()))
		return nil
	}

	result, by := s.classify(ctx, article)

	classification := &domain.Classification{
		ArticleID:        article.ID,
		Category:         result.Category,
		ThreatType:       result.ThreatType,
		ThreatLevel:      result.ThreatLevel,
		CredibilityScore: result.CredibilityScore,
		Summary:          result.Summary,
		ClassifiedBy:     by,
	}

	if err := s.classifications.CreateAndMarkProcessed(ctx, classification); err != nil {
		if errors.Is(err, domain.ErrAlreadyProcessed) {
			s.log.Debug("concurrent classification won, skipping",
				logger.String("article_id", article.ID.String()))
			return nil
		}
		return fmt.Errorf("persist classification: %w", err)
	}

	s.metrics.ArticlesClassified.Inc()
	s.log.Info("article classified",
		logger.String("article_id", article.ID.String()),
		logger.String("category", classification.Category),
		logger.String("threat_type", classification.ThreatType),
		logger.Int("threat_level", classification.ThreatLevel),
		logger.String("classified_by", string(by)))

	if err := s.pub.Publish(ctx, domain.StreamClassified, domain.NewArticleEvent(article.ID)); err != nil {
		// The classification is committed; only the downstream notification
		// was lost. The processed-but-unindexed flag marks the gap.
		s.log.Error("failed to publish classified event",
			logger.String("article_id", article.ID.String()),
			logger.Error(err))
	}

	return nil
}

// classify runs the configured backend, falling back to the rule-based one
// when the remote model is unavailable or returns garbage.
func (s *Service) classify(ctx context.Context, article *domain.Article) (*Result, domain.ClassifiedBy) {
	if s.model != nil {
		result, err := s.model.Classify(ctx, article.Title, article.Body)
		if err == nil {
			return result, s.model.Name()
		}
		s.metrics.ModelFallbacks.Inc()
		s.log.Warn("model classification failed, falling back to rules",
			logger.String("article_id", article.ID.String()),
			logger.Error(err))
	}

	result, err := s.rules.Classify(ctx, article.Title, article.Body)
	if err != nil {
		// The rule-based backend cannot fail; keep the compiler and the
		// interface honest anyway.
		result = &Result{
			Category:         DefaultCategory,
			ThreatType:       ThreatTypeNone,
			CredibilityScore: mediumCredibility,
			Summary:          summarize(article.Title),
		}
	}
	return result, s.rules.Name()
}
