package analysis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"truthscan/internal/llm"
)

// Bias is a political leaning label with the model's confidence in [0, 1].
type Bias struct {
	Label      string  `json:"bias"`
	Confidence float64 `json:"confidence"`
}

// FallbackBias is used whenever classification is unavailable.
var FallbackBias = Bias{Label: "center", Confidence: 0.5}

// ExtractedClaim is one claim pulled from an article.
type ExtractedClaim struct {
	ClaimText string `json:"claim_text"`
	ClaimType string `json:"claim_type"`
	Context   string `json:"context"`
}

const biasPrompt = `You are a political bias detection AI.
Classify the ideological bias of this news text:

%s

Return JSON only in this EXACT format:
{
  "bias": "left" | "right" | "center",
  "confidence": 0.0 to 1.0
}`

const summarySystem = "Summarize in under 4 sentences, preserve truth."

const newsClaimsPrompt = `Extract factual claims from this article and return JSON list only:

%s

Response example:
[
  {"claim_text": "X happened", "claim_type": "factual", "context": "politics"},
  {"claim_text": "Y caused Z", "claim_type": "causal", "context": "economy"}
]`

// DetectBias classifies text. On any failure it returns FallbackBias along
// with the error so callers can log it.
func (s *Service) DetectBias(ctx context.Context, text string) (Bias, error) {
	content, err := s.completeJSON(ctx, "", fmt.Sprintf(biasPrompt, truncate(text, 4000)))
	if err != nil {
		return FallbackBias, fmt.Errorf("detect bias: %w", err)
	}
	var raw map[string]interface{}
	if err := llm.DecodeJSON(content, &raw); err != nil {
		return FallbackBias, fmt.Errorf("detect bias: %w", err)
	}

	bias := FallbackBias
	if label, ok := raw["bias"].(string); ok {
		switch l := strings.ToLower(strings.TrimSpace(label)); l {
		case "left", "right", "center":
			bias.Label = l
		}
	}
	switch c := raw["confidence"].(type) {
	case float64:
		bias.Confidence = c
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(c), 64); err == nil {
			bias.Confidence = parsed
		}
	}
	if bias.Confidence < 0 {
		bias.Confidence = 0
	}
	if bias.Confidence > 1 {
		bias.Confidence = 1
	}
	return bias, nil
}

// Summarize condenses text. On failure it returns the first 350 characters
// of text along with the error.
func (s *Service) Summarize(ctx context.Context, text string) (string, error) {
	content, err := s.complete(ctx, llm.Request{
		System:      summarySystem,
		User:        truncate(text, 6000),
		Temperature: 0.3,
	})
	if err != nil {
		return truncate(text, 350), fmt.Errorf("summarize: %w", err)
	}
	return strings.TrimSpace(content), nil
}

// ExtractNewsClaims pulls typed claims from article text. The model may
// answer with a bare array or an object wrapping it under "claims".
func (s *Service) ExtractNewsClaims(ctx context.Context, text string) ([]ExtractedClaim, error) {
	content, err := s.complete(ctx, llm.Request{User: fmt.Sprintf(newsClaimsPrompt, truncate(text, 5000))})
	if err != nil {
		return nil, fmt.Errorf("extract news claims: %w", err)
	}

	var claims []ExtractedClaim
	if err := llm.DecodeJSON(content, &claims); err != nil {
		var wrapped struct {
			Claims []ExtractedClaim `json:"claims"`
		}
		if err2 := llm.DecodeJSON(content, &wrapped); err2 != nil {
			return nil, fmt.Errorf("extract news claims: %w", err)
		}
		claims = wrapped.Claims
	}

	out := claims[:0]
	for _, c := range claims {
		c.ClaimText = strings.TrimSpace(c.ClaimText)
		if c.ClaimText == "" {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
