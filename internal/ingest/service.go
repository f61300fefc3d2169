// Package ingest implements the Ingestion Stage: polling due sources,
// deduplicating fetched items, persisting articles, and publishing
// ingested events.
package ingest

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/threatwatch/pipeline/internal/broker"
	"github.com/threatwatch/pipeline/internal/database"
	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/fetcher"
	"github.com/threatwatch/pipeline/internal/fingerprint"
	"github.com/threatwatch/pipeline/internal/logger"
	"github.com/threatwatch/pipeline/internal/metrics"
)

const (
	// maxTitleLength caps the persisted article title.
	maxTitleLength = 512
	// maxURLLength caps the persisted article URL.
	maxURLLength = 2000
)

// Service runs ingestion cycles.
type Service struct {
	sources  *database.SourceRepository
	articles *database.ArticleRepository
	fetchers *fetcher.Registry
	pub      *broker.Publisher
	metrics  *metrics.Metrics
	log      logger.Logger
}

// NewService creates the ingestion service.
func NewService(
	sources *database.SourceRepository,
	articles *database.ArticleRepository,
	fetchers *fetcher.Registry,
	pub *broker.Publisher,
	m *metrics.Metrics,
	log logger.Logger,
) *Service {
	return &Service{
		sources:  sources,
		articles: articles,
		fetchers: fetchers,
		pub:      pub,
		metrics:  m,
		log:      log,
	}
}

// RunCycle processes all sources due at the current instant. A fetch or
// parse error on one source is logged and does not abort the cycle, and
// last_fetched advances regardless of partial failure so a broken source
// retries on its next scheduled interval.
func (s *Service) RunCycle(ctx context.Context) error {
	now := time.Now().UTC()

	due, err := s.sources.ListDue(ctx, now)
	if err != nil {
		return err
	}

	if len(due) == 0 {
		return nil
	}

	s.log.Info("Ingestion cycle started", logger.Int("due_sources", len(due)))

	for i := range due {
		s.ingestSource(ctx, &due[i])

		if touchErr := s.sources.TouchLastFetched(ctx, due[i].ID, now); touchErr != nil {
			s.log.Error("Failed to update last_fetched",
				logger.String("source", due[i].Name),
				logger.Error(touchErr),
			)
		}
	}

	return nil
}

// ingestSource fetches one source and persists its new items.
func (s *Service) ingestSource(ctx context.Context, source *domain.Source) {
	f, err := s.fetchers.ForKind(source.Kind)
	if err != nil {
		s.log.Error("No fetcher for source",
			logger.String("source", source.Name),
			logger.String("kind", string(source.Kind)),
		)
		return
	}

	items, fetchErr := f.Fetch(ctx, source)
	if fetchErr != nil {
		s.metrics.FetchErrors.Inc()
		s.log.Error("Source fetch failed",
			logger.String("source", source.Name),
			logger.Error(fetchErr),
		)
		return
	}

	created := 0
	for i := range items {
		ok, itemErr := s.ingestItem(ctx, source, &items[i])
		if itemErr != nil {
			s.log.Error("Failed to ingest item",
				logger.String("source", source.Name),
				logger.String("url", items[i].URL),
				logger.Error(itemErr),
			)
			continue
		}
		if ok {
			created++
		}
	}

	s.log.Info("Source ingested",
		logger.String("source", source.Name),
		logger.Int("fetched", len(items)),
		logger.Int("created", created),
	)
}

// ingestItem deduplicates, persists, and announces a single raw item.
// Returns false when the item was skipped as a duplicate.
//
// The fingerprint check is an optimization; the unique constraint on
// articles.fingerprint is the real guard, so a race between concurrent
// ingestion replicas resolves to exactly one row.
func (s *Service) ingestItem(ctx context.Context, source *domain.Source, item *domain.RawItem) (bool, error) {
	fp := fingerprint.New(item.Title, item.URL, item.PublishedAt)

	exists, err := s.articles.FingerprintExists(ctx, fp)
	if err != nil {
		return false, err
	}
	if exists {
		s.metrics.DuplicatesSkipped.Inc()
		return false, nil
	}

	article := &domain.Article{
		ID:          uuid.New(),
		SourceID:    source.ID,
		Title:       truncate(item.Title, maxTitleLength),
		Body:        item.Body,
		URL:         truncate(item.URL, maxURLLength),
		ImageURL:    item.ImageURL,
		Language:    item.Language,
		PublishedAt: item.PublishedAt,
		IngestedAt:  time.Now().UTC(),
		Fingerprint: fp,
	}

	if insertErr := s.articles.Insert(ctx, article); insertErr != nil {
		if errors.Is(insertErr, domain.ErrDuplicate) {
			s.metrics.DuplicatesSkipped.Inc()
			return false, nil
		}
		return false, insertErr
	}

	if tagErr := s.articles.AddCountryTags(ctx, article.ID, item.CountryTags); tagErr != nil {
		// The article row is committed; tags are best-effort follow-up.
		s.log.Error("Failed to add country tags",
			logger.String("article_id", article.ID.String()),
			logger.Error(tagErr),
		)
	}

	if pubErr := s.pub.Publish(ctx, domain.StreamIngested, domain.NewArticleEvent(article.ID)); pubErr != nil {
		// A crash or failure between commit and publish leaves an article
		// that is never picked up downstream; surfaced in logs for manual
		// replay.
		s.log.Error("Failed to publish ingested event",
			logger.String("article_id", article.ID.String()),
			logger.Error(pubErr),
		)
	}

	s.metrics.ArticlesIngested.Inc()
	return true, nil
}

// truncate caps s at n characters, never splitting a rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
