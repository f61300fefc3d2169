// Package fingerprint implements the content fingerprint used to
// deduplicate articles across ticks and across concurrent ingestion
// replicas.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"time"
)

// New computes the deduplication fingerprint for an item: the hex-encoded
// SHA-256 digest of "normalizedTitle|urlHost|publishedDate".
//
// The title is trimmed and lowercased, the host comes from parsing the URL
// (empty string if unparsable), and the published timestamp contributes
// only its ISO-8601 date. The result is deterministic: case and surrounding
// whitespace in the title do not change it.
func New(title, rawURL string, publishedAt time.Time) string {
	normalized := strings.ToLower(strings.TrimSpace(title))
	host := Host(rawURL)
	date := publishedAt.UTC().Format("2006-01-02")

	sum := sha256.Sum256([]byte(normalized + "|" + host + "|" + date))
	return hex.EncodeToString(sum[:])
}

// Host extracts the host component of a URL, or "" if the URL cannot be
// parsed.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
