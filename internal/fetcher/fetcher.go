// Package fetcher retrieves raw news items from configured sources. Each
// source kind has its own fetcher; dispatch is a closed match on the kind,
// never reflection.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/threatwatch/pipeline/internal/countries"
	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/logger"
)

// Fetcher retrieves the current raw items for one source.
type Fetcher interface {
	Fetch(ctx context.Context, source *domain.Source) ([]domain.RawItem, error)
}

// Registry holds one fetcher per source kind.
type Registry struct {
	rss     *RSSFetcher
	newsAPI *NewsAPIFetcher
}

// RegistryConfig configures the fetcher registry.
type RegistryConfig struct {
	Timeout    time.Duration // per-request HTTP timeout
	RatePerSec int           // shared outbound request budget
	NewsAPIKey string        // appended to query-API requests when set
}

// NewRegistry builds fetchers sharing one HTTP client, one outbound rate
// limiter, and one country detector.
func NewRegistry(cfg RegistryConfig, log logger.Logger) *Registry {
	client := &http.Client{Timeout: cfg.Timeout}

	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 2
	}
	limiter := rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)

	detector := countries.NewDetector()

	return &Registry{
		rss:     NewRSSFetcher(client, limiter, detector, log),
		newsAPI: NewNewsAPIFetcher(client, limiter, detector, cfg.NewsAPIKey, log),
	}
}

// ForKind returns the fetcher for a source kind.
func (r *Registry) ForKind(kind domain.SourceKind) (Fetcher, error) {
	switch kind {
	case domain.SourceKindRSS:
		return r.rss, nil
	case domain.SourceKindNewsAPI:
		return r.newsAPI, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

// stripMarkup reduces an HTML fragment to its text content. Feed summaries
// routinely embed markup; the stored body is plain text.
func stripMarkup(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}
