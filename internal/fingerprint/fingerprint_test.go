package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"
)

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestNew(t *testing.T) {
	published := time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		title string
		url   string
		want  string
	}{
		{
			name:  "canonical input",
			title: "Flood displaces thousands in Mozambique",
			url:   "https://example.com/news/flood",
			want:  digest("flood displaces thousands in mozambique|example.com|2024-01-01"),
		},
		{
			name:  "title case and whitespace normalized",
			title: "  FLOOD Displaces Thousands In Mozambique \n",
			url:   "https://example.com/other-path",
			want:  digest("flood displaces thousands in mozambique|example.com|2024-01-01"),
		},
		{
			name:  "unparsable url contributes empty host",
			title: "Flood displaces thousands in Mozambique",
			url:   "://not a url",
			want:  digest("flood displaces thousands in mozambique||2024-01-01"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.title, tt.url, published); got != tt.want {
				t.Errorf("New() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNew_OnlyDateMatters(t *testing.T) {
	morning := time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 1, 1, 23, 59, 59, 0, time.UTC)
	nextDay := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	a := New("Same story", "https://example.com/a", morning)
	b := New("Same story", "https://example.com/b", evening)
	if a != b {
		t.Errorf("same title, host, and date should collide: %v != %v", a, b)
	}

	c := New("Same story", "https://example.com/a", nextDay)
	if a == c {
		t.Error("different publication dates should not collide")
	}
}

func TestNew_HostDistinguishesSources(t *testing.T) {
	published := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := New("Same story", "https://one.example.com/a", published)
	b := New("Same story", "https://two.example.com/a", published)
	if a == b {
		t.Error("different hosts should not collide")
	}
}

func TestHost(t *testing.T) {
	if got := Host("https://example.com/path?q=1"); got != "example.com" {
		t.Errorf("Host() = %v, want example.com", got)
	}
	if got := Host("://bad"); got != "" {
		t.Errorf("Host() = %v, want empty", got)
	}
}
