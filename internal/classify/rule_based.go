package classify

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/threatwatch/pipeline/internal/domain"
)

const (
	// maxThreatLevel is the ceiling of the threat scale.
	maxThreatLevel = 5

	// Credibility buckets on combined text length.
	longTextThreshold   = 2000
	mediumTextThreshold = 500
	longCredibility     = 0.7
	mediumCredibility   = 0.5
	shortCredibility    = 0.3

	// maxSummaryLength caps the generated summary.
	maxSummaryLength = 200
)

// RuleBased is the keyword-frequency classifier. It is the default backend
// and the fallback when the remote model backend fails.
type RuleBased struct{}

// NewRuleBased creates the rule-based backend.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

// Name identifies the backend.
func (r *RuleBased) Name() domain.ClassifiedBy {
	return domain.ClassifiedByRules
}

// Classify scores the text against the category and threat lexicons. It
// never fails: classification must never fail the message.
func (r *RuleBased) Classify(_ context.Context, title, body string) (*Result, error) {
	text := strings.ToLower(title + " " + body)

	category, _ := bestMatch(text, categoryLexicons)
	if category == "" {
		category = DefaultCategory
	}

	threatType, threatHits := bestMatch(text, threatLexicons)
	if threatType == "" {
		threatType = ThreatTypeNone
	}

	return &Result{
		Category:         category,
		ThreatType:       threatType,
		ThreatLevel:      threatLevel(text, threatType, threatHits),
		CredibilityScore: credibility(utf8.RuneCountInString(text)),
		Summary:          summarize(title),
	}, nil
}

// bestMatch returns the lexicon with the highest total keyword hit count,
// or ("", 0) when nothing scores.
func bestMatch(text string, lexicons map[string][]string) (string, int) {
	best := ""
	bestScore := 0

	for name, keywords := range lexicons {
		score := countHits(text, keywords)
		if score > bestScore || (score == bestScore && score > 0 && name < best) {
			best = name
			bestScore = score
		}
	}

	if bestScore == 0 {
		return "", 0
	}
	return best, bestScore
}

// countHits sums occurrence counts of each keyword in the text. The text
// must already be lowercased.
func countHits(text string, keywords []string) int {
	total := 0
	for _, kw := range keywords {
		total += strings.Count(text, kw)
	}
	return total
}

// threatLevel computes the 0-5 threat scale: 0 iff no threat type was
// detected, otherwise threat hits plus urgency hits, floored at 1 and
// capped at maxThreatLevel.
func threatLevel(text, threatType string, threatHits int) int {
	if threatType == ThreatTypeNone {
		return 0
	}

	level := threatHits + countHits(text, urgencyKeywords)
	if level < 1 {
		level = 1
	}
	if level > maxThreatLevel {
		level = maxThreatLevel
	}
	return level
}

// credibility buckets combined text length into a coarse score.
func credibility(textLen int) float64 {
	switch {
	case textLen >= longTextThreshold:
		return longCredibility
	case textLen >= mediumTextThreshold:
		return mediumCredibility
	default:
		return shortCredibility
	}
}

// summarize produces a one-line summary from the title, marking
// truncation with an ellipsis.
func summarize(title string) string {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) <= maxSummaryLength {
		return title
	}
	return truncateRunes(title, maxSummaryLength) + "…"
}
