// Package classify implements the Classification Stage: a rule-based
// keyword classifier, an optional remote model backend, and the consumer
// that persists results.
package classify

import (
	"context"
	"unicode/utf8"

	"github.com/threatwatch/pipeline/internal/domain"
)

// Result is a classification produced by a backend, before persistence.
type Result struct {
	Category         string  `json:"category"`
	ThreatType       string  `json:"threatType"`
	ThreatLevel      int     `json:"threatLevel"`
	CredibilityScore float64 `json:"credibilityScore"`
	Summary          string  `json:"summary"`
}

// Backend classifies an article's text. Implementations must be safe for
// concurrent use: the consumer dispatches up to the prefetch bound of
// handlers at once.
type Backend interface {
	// Classify assesses the given title and body.
	Classify(ctx context.Context, title, body string) (*Result, error)
	// Name identifies the backend in the persisted classification.
	Name() domain.ClassifiedBy
}

// truncateRunes caps s at n characters, never splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
