package analysis

import (
	"context"
	"fmt"
	"strings"

	"truthscan/internal/llm"
)

// DefaultGenre is used when a lyrics request names none.
const DefaultGenre = "gangsta rap"

const lyricsPrompt = `Turn the following news article into a %s song.
Make it fun, rhythmic, and around 2-3 minutes long.

Title: %s
Summary: %s

Lyrics:`

// GenerateLyrics writes song lyrics for a news item.
func (s *Service) GenerateLyrics(ctx context.Context, title, summary, genre string) (string, error) {
	if strings.TrimSpace(genre) == "" {
		genre = DefaultGenre
	}
	content, err := s.complete(ctx, llm.Request{
		System:      "You are a creative songwriter AI.",
		User:        fmt.Sprintf(lyricsPrompt, genre, title, summary),
		Temperature: 0.9,
		MaxTokens:   500,
	})
	if err != nil {
		return "", fmt.Errorf("generate lyrics: %w", err)
	}
	return strings.TrimSpace(content), nil
}
