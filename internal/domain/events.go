package domain

import (
	"time"

	"github.com/google/uuid"
)

// Stream suffixes for the three pipeline channels. The broker prefixes them
// with the configured stream prefix (e.g. "articles:ingested").
const (
	// StreamIngested carries identifiers of newly persisted articles.
	StreamIngested = "ingested"
	// StreamClassified carries identifiers of classified articles.
	StreamClassified = "classified"
	// StreamIndexed carries identifiers of indexed articles. Currently
	// unconsumed downstream, reserved for future use.
	StreamIndexed = "indexed"
)

// ArticleEvent is the envelope for all pipeline messages. It carries only
// the article identifier: consumers re-read authoritative state from the
// store and never trust payload freshness beyond the ID.
type ArticleEvent struct {
	EventID    uuid.UUID `json:"event_id"`
	ArticleID  uuid.UUID `json:"article_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewArticleEvent builds an event for the given article.
func NewArticleEvent(articleID uuid.UUID) ArticleEvent {
	return ArticleEvent{
		EventID:    uuid.New(),
		ArticleID:  articleID,
		OccurredAt: time.Now().UTC(),
	}
}
