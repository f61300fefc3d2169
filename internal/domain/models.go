// Package domain defines the core data model shared by all pipeline stages.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies which fetcher handles a source.
// The set is closed; dispatch is by exact match, never reflection.
type SourceKind string

const (
	// SourceKindRSS is a syndication-feed source (RSS or Atom).
	SourceKindRSS SourceKind = "rss"
	// SourceKindNewsAPI is a query-API source returning a JSON article array.
	SourceKindNewsAPI SourceKind = "newsapi"
)

// Valid reports whether the kind is a member of the closed enumeration.
func (k SourceKind) Valid() bool {
	return k == SourceKindRSS || k == SourceKindNewsAPI
}

// Source is a configured news provider polled by the Ingestion Stage.
// Config fields are owned by external admin tooling; the pipeline only
// reads them and writes LastFetched.
type Source struct {
	ID            uuid.UUID  `db:"id"             json:"id"`
	Name          string     `db:"name"           json:"name"`
	Kind          SourceKind `db:"kind"           json:"kind"`
	Endpoint      string     `db:"endpoint"       json:"endpoint"`
	FetchInterval int        `db:"fetch_interval" json:"fetch_interval"` // minutes
	Language      string     `db:"language"       json:"language"`
	Country       string     `db:"country"        json:"country"`
	Active        bool       `db:"active"         json:"active"`
	LastFetched   *time.Time `db:"last_fetched"   json:"last_fetched,omitempty"`
	CreatedAt     time.Time  `db:"created_at"     json:"created_at"`
}

// Due reports whether the source should be fetched at the given instant.
// A source that has never been fetched is always due.
func (s *Source) Due(now time.Time) bool {
	if !s.Active {
		return false
	}
	if s.LastFetched == nil {
		return true
	}
	interval := time.Duration(s.FetchInterval) * time.Minute
	return !s.LastFetched.Add(interval).After(now)
}

// Article is the system of record for one ingested news item.
// Created exclusively by the Ingestion Stage and never deleted by the
// pipeline. Processed and Indexed are one-way flags: Processed is flipped
// exactly once by the Classification Stage, Indexed exactly once by the
// Indexing Stage, and Indexed may only become true after Processed.
type Article struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	SourceID    uuid.UUID `db:"source_id"    json:"source_id"`
	Title       string    `db:"title"        json:"title"`
	Body        string    `db:"body"         json:"body"`
	URL         string    `db:"url"          json:"url"`
	ImageURL    string    `db:"image_url"    json:"image_url,omitempty"`
	Language    string    `db:"language"     json:"language"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
	IngestedAt  time.Time `db:"ingested_at"  json:"ingested_at"`
	Fingerprint string    `db:"fingerprint"  json:"fingerprint"`
	Processed   bool      `db:"processed"    json:"processed"`
	Indexed     bool      `db:"indexed"      json:"indexed"`
}

// ClassifiedBy identifies which backend produced a classification.
type ClassifiedBy string

const (
	// ClassifiedByRules marks the keyword rule-based backend.
	ClassifiedByRules ClassifiedBy = "rule-based"
	// ClassifiedByModel marks the remote model backend.
	ClassifiedByModel ClassifiedBy = "remote-model"
)

// Classification is the one-to-one threat assessment of an article.
// It exists iff the article's Processed flag is true, and is created once,
// never updated.
type Classification struct {
	ID               int64        `db:"id"                json:"id"`
	ArticleID        uuid.UUID    `db:"article_id"        json:"article_id"`
	Category         string       `db:"category"          json:"category"`
	ThreatType       string       `db:"threat_type"       json:"threat_type"`
	ThreatLevel      int          `db:"threat_level"      json:"threat_level"` // 0-5
	CredibilityScore float64      `db:"credibility_score" json:"credibility_score"`
	Summary          string       `db:"summary"           json:"summary,omitempty"`
	ClassifiedBy     ClassifiedBy `db:"classified_by"     json:"classified_by"`
	CreatedAt        time.Time    `db:"created_at"        json:"created_at"`
}

// RawItem is what a fetcher returns for a single feed entry or API result,
// before deduplication and persistence.
type RawItem struct {
	Title       string
	Body        string
	URL         string
	ImageURL    string
	Language    string
	PublishedAt time.Time
	CountryTags []string
}
