// Package countries detects country mentions in free text. Both fetchers
// share this single detector so the lexicon lives in one place.
package countries

import (
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Detector maps free text to a set of ISO 3166-1 alpha-2 country codes by
// case-insensitive substring matching of country names.
type Detector struct {
	matcher *ahocorasick.Matcher
	names   []string
	codes   []string // codes[i] is the code for names[i]
}

// NewDetector builds a detector over the default country lexicon.
func NewDetector() *Detector {
	return NewDetectorWithLexicon(defaultLexicon)
}

// NewDetectorWithLexicon builds a detector from an explicit name-to-code
// lexicon. Names are matched lowercased.
func NewDetectorWithLexicon(lexicon map[string]string) *Detector {
	names := make([]string, 0, len(lexicon))
	for name := range lexicon {
		names = append(names, strings.ToLower(name))
	}
	// Deterministic automaton construction.
	sort.Strings(names)

	codes := make([]string, len(names))
	lowered := make(map[string]string, len(lexicon))
	for name, code := range lexicon {
		lowered[strings.ToLower(name)] = code
	}
	for i, name := range names {
		codes[i] = lowered[name]
	}

	return &Detector{
		matcher: ahocorasick.NewStringMatcher(names),
		names:   names,
		codes:   codes,
	}
}

// Detect returns the sorted, de-duplicated country codes mentioned in the
// text. The extra values are merged in as-is; the query-API fetcher passes
// the source's declared country through them.
func (d *Detector) Detect(text string, extra ...string) []string {
	seen := make(map[string]struct{})

	hits := d.matcher.Match([]byte(strings.ToLower(text)))
	for _, idx := range hits {
		if idx < len(d.codes) {
			seen[d.codes[idx]] = struct{}{}
		}
	}

	for _, code := range extra {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			seen[code] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
