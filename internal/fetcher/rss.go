package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	"github.com/threatwatch/pipeline/internal/countries"
	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/logger"
)

// RSSFetcher retrieves items from RSS and Atom feeds.
type RSSFetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	detector *countries.Detector
	log      logger.Logger
}

// NewRSSFetcher creates a feed fetcher.
func NewRSSFetcher(client *http.Client, limiter *rate.Limiter, detector *countries.Detector, log logger.Logger) *RSSFetcher {
	return &RSSFetcher{
		client:   client,
		limiter:  limiter,
		detector: detector,
		log:      log,
	}
}

// Fetch downloads and parses the source's feed. Entries without a usable
// link are silently skipped; entries without a published time default to
// now so the fingerprint stays deterministic for a given fetch day.
func (f *RSSFetcher) Fetch(ctx context.Context, source *domain.Source) ([]domain.RawItem, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.Endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}

	resp, doErr := f.client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("fetch feed: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: unexpected status %d", resp.StatusCode)
	}

	parsed, parseErr := gofeed.NewParser().Parse(resp.Body)
	if parseErr != nil {
		return nil, fmt.Errorf("parse feed: %w", parseErr)
	}

	items := make([]domain.RawItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		if entry.Link == "" {
			continue
		}

		body := stripMarkup(entry.Description)
		publishedAt := time.Now().UTC()
		if entry.PublishedParsed != nil {
			publishedAt = entry.PublishedParsed.UTC()
		}

		items = append(items, domain.RawItem{
			Title:       entry.Title,
			Body:        body,
			URL:         entry.Link,
			Language:    source.Language,
			PublishedAt: publishedAt,
			CountryTags: f.detector.Detect(entry.Title + " " + body),
		})
	}

	f.log.Debug("Fetched feed",
		logger.String("source", source.Name),
		logger.Int("items", len(items)),
	)

	return items, nil
}
