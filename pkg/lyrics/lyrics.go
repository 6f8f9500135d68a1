// Package lyrics defines the lyrics provider contract used by the request pipeline.
package lyrics

import (
	"context"
	"strings"
)

// Song is one ranked search hit.
type Song struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	FullTitle string `json:"full_title"`
	Artist    string `json:"artist"`
	URL       string `json:"url"`
}

// DisplayTitle returns FullTitle, falling back to Title.
func (s Song) DisplayTitle() string {
	if title := strings.TrimSpace(s.FullTitle); title != "" {
		return title
	}

	return strings.TrimSpace(s.Title)
}

// Provider searches songs and fetches their lyrics.
//
// Search returns results in provider rank order and may return an empty slice.
// Lyrics returns an empty string when the song has no lyrics.
type Provider interface {
	Search(ctx context.Context, query string) ([]Song, error)
	Lyrics(ctx context.Context, song Song) (string, error)
}
