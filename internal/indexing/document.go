// Package indexing implements the indexing stage: it consumes
// article-classified events, denormalizes the article with its
// classification and country tags, and upserts the result into the search
// index.
package indexing

import (
	"time"

	"github.com/threatwatch/pipeline/internal/classify"
	"github.com/threatwatch/pipeline/internal/domain"
)

// Document is the denormalized search representation of an article. One
// document per article, keyed by article ID so redeliveries overwrite
// rather than duplicate.
type Document struct {
	ArticleID        string    `json:"article_id"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	URL              string    `json:"url"`
	ImageURL         string    `json:"image_url,omitempty"`
	Language         string    `json:"language"`
	PublishedAt      time.Time `json:"published_at"`
	IngestedAt       time.Time `json:"ingested_at"`
	Fingerprint      string    `json:"fingerprint"`
	Category         string    `json:"category"`
	ThreatType       string    `json:"threat_type"`
	ThreatLevel      int       `json:"threat_level"`
	CredibilityScore float64   `json:"credibility_score"`
	Summary          string    `json:"summary,omitempty"`
	ClassifiedBy     string    `json:"classified_by,omitempty"`
	Countries        []string  `json:"countries"`
	// Entities and Votes come from externally populated tables and are
	// empty until the owning tooling fills them in.
	Entities  []string       `json:"entities"`
	Votes     map[string]int `json:"votes"`
	IndexedAt time.Time      `json:"indexed_at"`
}

// BuildDocument flattens the article, its classification, country tags,
// entities, and vote aggregates into one search document. A nil
// classification produces neutral defaults so an unclassified article is
// still searchable.
func BuildDocument(
	article *domain.Article,
	c *domain.Classification,
	countries, entities []string,
	votes map[string]int,
) *Document {
	doc := &Document{
		ArticleID:        article.ID.String(),
		Title:            article.Title,
		Body:             article.Body,
		URL:              article.URL,
		ImageURL:         article.ImageURL,
		Language:         article.Language,
		PublishedAt:      article.PublishedAt,
		IngestedAt:       article.IngestedAt,
		Fingerprint:      article.Fingerprint,
		Category:         classify.DefaultCategory,
		ThreatType:       classify.ThreatTypeNone,
		ThreatLevel:      0,
		CredibilityScore: 0.5,
		Countries:        countries,
		Entities:         entities,
		Votes:            votes,
		IndexedAt:        time.Now().UTC(),
	}
	if doc.Countries == nil {
		doc.Countries = []string{}
	}
	if doc.Entities == nil {
		doc.Entities = []string{}
	}
	if doc.Votes == nil {
		doc.Votes = map[string]int{}
	}

	if c != nil {
		doc.Category = c.Category
		doc.ThreatType = c.ThreatType
		doc.ThreatLevel = c.ThreatLevel
		doc.CredibilityScore = c.CredibilityScore
		doc.Summary = c.Summary
		doc.ClassifiedBy = string(c.ClassifiedBy)
	}

	return doc
}
