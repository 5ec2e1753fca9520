// Package analysis turns chat completions into typed analysis results:
// claims, claim verdicts, entities, bias, summaries and lyrics.
package analysis

import (
	"context"
	"unicode/utf8"

	"truthscan/internal/lazy"
	"truthscan/internal/llm"
)

// Completer is the chat completion surface the analyzers need.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Service runs every prompt against one completion client.
type Service struct {
	client *lazy.Value[Completer]
}

// NewService builds a Service over a lazily initialized client.
func NewService(client *lazy.Value[Completer]) *Service {
	return &Service{client: client}
}

func (s *Service) completeJSON(ctx context.Context, system, user string) (string, error) {
	return s.complete(ctx, llm.Request{System: system, User: user, JSON: true})
}

func (s *Service) complete(ctx context.Context, req llm.Request) (string, error) {
	client, err := s.client.Get()
	if err != nil {
		return "", err
	}
	return client.Complete(ctx, req)
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
