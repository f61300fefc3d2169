package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/threatwatch/pipeline/internal/countries"
	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/logger"
)

// newsAPIResponse is the query-API result envelope.
type newsAPIResponse struct {
	Status  string           `json:"status"`
	Results []newsAPIArticle `json:"results"`
}

// newsAPIArticle is one entry in the query-API result array.
type newsAPIArticle struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Content     string   `json:"content"`
	Link        string   `json:"link"`
	ImageURL    string   `json:"image_url"`
	Language    string   `json:"language"`
	PubDate     string   `json:"pubDate"`
	Country     []string `json:"country"`
}

// pubDateLayout is the timestamp format the query API returns.
const pubDateLayout = "2006-01-02 15:04:05"

// NewsAPIFetcher retrieves items from a query-style news API returning a
// JSON article array.
type NewsAPIFetcher struct {
	client   *http.Client
	limiter  *rate.Limiter
	detector *countries.Detector
	apiKey   string
	log      logger.Logger
}

// NewNewsAPIFetcher creates a query-API fetcher.
func NewNewsAPIFetcher(client *http.Client, limiter *rate.Limiter, detector *countries.Detector, apiKey string, log logger.Logger) *NewsAPIFetcher {
	return &NewsAPIFetcher{
		client:   client,
		limiter:  limiter,
		detector: detector,
		apiKey:   apiKey,
		log:      log,
	}
}

// Fetch issues the source's parameterized query and parses the result
// array. The source's declared country joins the detected country tags.
func (f *NewsAPIFetcher) Fetch(ctx context.Context, source *domain.Source) ([]domain.RawItem, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint, err := f.buildURL(source.Endpoint)
	if err != nil {
		return nil, err
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if reqErr != nil {
		return nil, fmt.Errorf("api request: %w", reqErr)
	}

	resp, doErr := f.client.Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("fetch api: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch api: unexpected status %d", resp.StatusCode)
	}

	var parsed newsAPIResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&parsed); decodeErr != nil {
		return nil, fmt.Errorf("parse api response: %w", decodeErr)
	}

	items := make([]domain.RawItem, 0, len(parsed.Results))
	for _, entry := range parsed.Results {
		if entry.Link == "" || entry.Title == "" {
			continue
		}

		body := entry.Description
		if entry.Content != "" {
			body = entry.Content
		}

		language := entry.Language
		if language == "" {
			language = source.Language
		}

		extra := entry.Country
		if source.Country != "" {
			extra = append(extra, source.Country)
		}

		items = append(items, domain.RawItem{
			Title:       entry.Title,
			Body:        body,
			URL:         entry.Link,
			ImageURL:    entry.ImageURL,
			Language:    language,
			PublishedAt: parsePubDate(entry.PubDate),
			CountryTags: f.detector.Detect(entry.Title+" "+body, extra...),
		})
	}

	f.log.Debug("Fetched query API",
		logger.String("source", source.Name),
		logger.Int("items", len(items)),
	)

	return items, nil
}

// buildURL appends the API key to the source's endpoint when configured.
func (f *NewsAPIFetcher) buildURL(endpoint string) (string, error) {
	if f.apiKey == "" {
		return endpoint, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}

	q := u.Query()
	q.Set("apikey", f.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parsePubDate parses the API timestamp, falling back to RFC3339 and then
// to now. A missing timestamp must not drop the item.
func parsePubDate(value string) time.Time {
	if value == "" {
		return time.Now().UTC()
	}
	if t, err := time.Parse(pubDateLayout, value); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}
