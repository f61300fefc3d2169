//nolint:testpackage // Exercising unexported fetcher internals
package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/threatwatch/pipeline/internal/countries"
	"github.com/threatwatch/pipeline/internal/domain"
	"github.com/threatwatch/pipeline/internal/logger"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Relief Feed</title>
    <item>
      <title>Flood displaces thousands in Mozambique</title>
      <link>https://example.com/news/flood</link>
      <description>&lt;p&gt;Heavy rain continues across &lt;b&gt;the region&lt;/b&gt;.&lt;/p&gt;</description>
      <pubDate>Mon, 01 Jan 2024 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Entry without a link is skipped</title>
      <description>no link</description>
    </item>
  </channel>
</rss>`

const testAPIResponse = `{
  "status": "success",
  "results": [
    {
      "title": "Cholera outbreak spreads in Malawi",
      "description": "Cases rising in the southern region.",
      "link": "https://api.example.com/a/1",
      "language": "en",
      "pubDate": "2024-01-01 08:00:00",
      "country": ["mw"]
    },
    {
      "title": "",
      "link": "https://api.example.com/a/2"
    }
  ]
}`

func testDeps() (*http.Client, *rate.Limiter, *countries.Detector) {
	return &http.Client{Timeout: 5 * time.Second},
		rate.NewLimiter(rate.Inf, 1),
		countries.NewDetector()
}

func TestRSSFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testFeed))
	}))
	defer server.Close()

	client, limiter, detector := testDeps()
	fetcher := NewRSSFetcher(client, limiter, detector, logger.NewNop())

	source := &domain.Source{
		Name:     "Relief Feed",
		Kind:     domain.SourceKindRSS,
		Endpoint: server.URL,
		Language: "en",
	}

	items, err := fetcher.Fetch(context.Background(), source)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("Fetch() returned %d items, want 1 (linkless entry skipped)", len(items))
	}

	item := items[0]
	if item.Title != "Flood displaces thousands in Mozambique" {
		t.Errorf("Title = %q", item.Title)
	}
	if item.URL != "https://example.com/news/flood" {
		t.Errorf("URL = %q", item.URL)
	}
	if item.Body != "Heavy rain continues across the region." {
		t.Errorf("Body = %q, want markup stripped", item.Body)
	}
	if item.Language != "en" {
		t.Errorf("Language = %q, want en", item.Language)
	}
	want := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	if !item.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", item.PublishedAt, want)
	}
	if len(item.CountryTags) != 1 || item.CountryTags[0] != "MZ" {
		t.Errorf("CountryTags = %v, want [MZ]", item.CountryTags)
	}
}

func TestRSSFetcher_FetchBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, limiter, detector := testDeps()
	fetcher := NewRSSFetcher(client, limiter, detector, logger.NewNop())

	_, err := fetcher.Fetch(context.Background(), &domain.Source{Endpoint: server.URL})
	if err == nil {
		t.Error("Fetch() expected error for bad status")
	}
}

func TestNewsAPIFetcher_Fetch(t *testing.T) {
	var gotAPIKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.URL.Query().Get("apikey")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testAPIResponse))
	}))
	defer server.Close()

	client, limiter, detector := testDeps()
	fetcher := NewNewsAPIFetcher(client, limiter, detector, "secret", logger.NewNop())

	source := &domain.Source{
		Name:     "World Query API",
		Kind:     domain.SourceKindNewsAPI,
		Endpoint: server.URL + "/news?q=threat",
		Language: "en",
		Country:  "ZA",
	}

	items, err := fetcher.Fetch(context.Background(), source)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if gotAPIKey != "secret" {
		t.Errorf("apikey = %q, want secret", gotAPIKey)
	}
	if len(items) != 1 {
		t.Fatalf("Fetch() returned %d items, want 1 (untitled entry skipped)", len(items))
	}

	item := items[0]
	if item.Title != "Cholera outbreak spreads in Malawi" {
		t.Errorf("Title = %q", item.Title)
	}
	want := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	if !item.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", item.PublishedAt, want)
	}

	// Declared countries from the entry and the source merge with detection.
	tags := map[string]bool{}
	for _, code := range item.CountryTags {
		tags[code] = true
	}
	for _, code := range []string{"MW", "ZA"} {
		if !tags[code] {
			t.Errorf("CountryTags = %v, missing %v", item.CountryTags, code)
		}
	}
}

func TestRegistry_ForKind(t *testing.T) {
	registry := NewRegistry(RegistryConfig{Timeout: time.Second}, logger.NewNop())

	if _, err := registry.ForKind(domain.SourceKindRSS); err != nil {
		t.Errorf("ForKind(rss) error = %v", err)
	}
	if _, err := registry.ForKind(domain.SourceKindNewsAPI); err != nil {
		t.Errorf("ForKind(newsapi) error = %v", err)
	}
	if _, err := registry.ForKind(domain.SourceKind("carrier-pigeon")); err == nil {
		t.Error("ForKind() expected error for unknown kind")
	}
}

func TestParsePubDate(t *testing.T) {
	got := parsePubDate("2024-01-01 08:00:00")
	want := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("parsePubDate() = %v, want %v", got, want)
	}

	got = parsePubDate("2024-01-01T08:00:00Z")
	if !got.Equal(want) {
		t.Errorf("parsePubDate(RFC3339) = %v, want %v", got, want)
	}

	// Unparsable values fall back to now rather than dropping the item.
	if parsePubDate("yesterday").IsZero() {
		t.Error("parsePubDate() fallback returned zero time")
	}
}

func TestStripMarkup(t *testing.T) {
	got := stripMarkup(`<p>Heavy <b>rain</b> continues.</p>`)
	if got != "Heavy rain continues." {
		t.Errorf("stripMarkup() = %q", got)
	}

	if got := stripMarkup("plain text"); got != "plain text" {
		t.Errorf("stripMarkup() = %q, want unchanged", got)
	}
}
