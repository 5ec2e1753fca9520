package analysis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"truthscan/internal/llm"
	"truthscan/internal/models"
)

// TextAnalysis is the single-call analysis of a free-text submission.
// Score is on the 0-100 scale.
type TextAnalysis struct {
	Summary        string                 `json:"summary"`
	Sentiment      string                 `json:"sentiment"`
	Intent         string                 `json:"intent"`
	Entities       models.Entities        `json:"entities"`
	MismatchReason string                 `json:"mismatch_reason"`
	Score          float64                `json:"score"`
	Raw            map[string]interface{} `json:"raw"`
}

const textAnalysisSystem = "You are a careful fact-checking analyst. You respond with JSON only."

const textAnalysisPrompt = `Analyze the following text for factual accuracy and framing.

Return a JSON object with exactly these keys:
- "summary": a neutral two to three sentence summary of what the text claims.
- "sentiment": one of "positive", "negative", "neutral" or "mixed".
- "intent": the apparent purpose of the text, e.g. "inform", "persuade", "satire", "mislead".
- "entities": an object with arrays "persons", "organizations", "locations" and "events".
- "mismatch_reason": one sentence describing any misleading framing or unsupported claim, or an empty string.
- "score": a number from 0 to 100 estimating how accurate the text is.

Text:
%q`

// AnalyzeText runs the combined text analysis.
func (s *Service) AnalyzeText(ctx context.Context, text string) (TextAnalysis, error) {
	content, err := s.completeJSON(ctx, textAnalysisSystem, fmt.Sprintf(textAnalysisPrompt, text))
	if err != nil {
		return TextAnalysis{}, fmt.Errorf("analyze text: %w", err)
	}
	var raw map[string]interface{}
	if err := llm.DecodeJSON(content, &raw); err != nil {
		return TextAnalysis{}, fmt.Errorf("analyze text: %w", err)
	}
	return ParseTextAnalysis(raw), nil
}

// ParseTextAnalysis maps a decoded model payload onto TextAnalysis.
func ParseTextAnalysis(raw map[string]interface{}) TextAnalysis {
	result := TextAnalysis{
		Summary:        stringField(raw, "summary"),
		Sentiment:      strings.ToLower(stringField(raw, "sentiment")),
		Intent:         stringField(raw, "intent"),
		MismatchReason: stringField(raw, "mismatch_reason"),
		Entities:       models.NewEntities(),
		Raw:            raw,
	}
	if entities, ok := raw["entities"].(map[string]interface{}); ok {
		result.Entities = models.NormalizeEntities(entities)
	}

	if value, ok := raw["score"]; ok {
		result.Score = NormalizeScore(value)
	} else if value, ok := raw["accuracy"]; ok {
		result.Score = NormalizeScore(value)
	}
	return result
}

// NormalizeScore accepts a number, a numeric string, or an object carrying
// an "accuracy" or "score" field, and returns a value clamped to [0, 100].
// Anything unusable yields 0.
func NormalizeScore(value interface{}) float64 {
	var score float64
	switch v := value.(type) {
	case float64:
		score = v
	case int:
		score = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
		if err != nil {
			return 0
		}
		score = parsed
	case map[string]interface{}:
		if nested, ok := v["accuracy"]; ok {
			return NormalizeScore(nested)
		}
		if nested, ok := v["score"]; ok {
			return NormalizeScore(nested)
		}
		return 0
	default:
		return 0
	}

	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0
	}
	return math.Max(0, math.Min(100, score))
}

func stringField(raw map[string]interface{}, key string) string {
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
