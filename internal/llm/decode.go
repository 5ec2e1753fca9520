package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeJSON unmarshals model output into v. It tolerates markdown code
// fences and prose around the payload by falling back to the outermost
// object or array in the text.
func DecodeJSON(content string, v interface{}) error {
	cleaned := stripCodeFence(strings.TrimSpace(content))
	if cleaned == "" {
		return errors.New("llm decode: empty content")
	}
	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return nil
	}

	candidate := extractJSONSpan(cleaned)
	if candidate == "" {
		return fmt.Errorf("llm decode: no json found in %q", Snippet(cleaned))
	}
	if err := json.Unmarshal([]byte(candidate), v); err != nil {
		return fmt.Errorf("llm decode: %w (content %q)", err, Snippet(cleaned))
	}
	return nil
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

// extractJSONSpan returns the text between the first opening brace or
// bracket and the last matching closer.
func extractJSONSpan(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return ""
	}
	return s[start : end+1]
}

// Snippet shortens model output for log lines and error messages.
func Snippet(s string) string {
	const limit = 200
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
