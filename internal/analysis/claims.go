package analysis

import (
	"context"
	"fmt"
	"strings"

	"truthscan/internal/llm"
)

// Claim verdicts
const (
	StatusSupported    = "supported"
	StatusContradicted = "contradicted"
	StatusNotAddressed = "not_addressed"
)

// ClaimComparison is the verdict for one claim against a media summary.
type ClaimComparison struct {
	Claim       string `json:"claim"`
	Status      string `json:"status"`
	Explanation string `json:"explanation"`
}

const claimExtractionPrompt = `You are a highly analytical AI trained to extract factual claims from text.
Your task is to identify and extract every single verifiable claim from the following caption.
A claim is a statement that can be proven true or false by evidence.

The user is trying to test if the caption is supported by a piece of media, so focus on claims that describe the media's content.

Example input: "A woman in a city working out in the morning."
Example output:
{
  "claims": [
    "a woman exists",
    "the woman is in a city",
    "the woman is working out",
    "it is morning"
  ]
}

Now, extract the claims from this caption. Do not include any claims that are opinions, subjective statements, or non-verifiable. Respond with a JSON object containing a single key "claims" which is an array of strings.

Caption: %q`

const claimComparisonPrompt = `You are a fact-checking AI. Your task is to compare a list of factual claims against a summary of a piece of media. For each claim, you must determine its status based on the summary.

Possible statuses:
- "supported": The claim is directly supported by the media summary.
- "contradicted": The claim is directly contradicted by the media summary.
- "not_addressed": The claim is not mentioned or addressed in the media summary.

Instructions:
- Analyze each claim one by one.
- For each claim, provide a brief, one-sentence explanation for its status.
- Do not make assumptions. Stick strictly to the information provided in the summary.
- Respond with a JSON object containing a single key "results" which is an array of objects.

Summary of Media Content:
%s

Claims to Evaluate:
%s

Respond in the following JSON format:
{
  "results": [
    {
      "claim": "a woman exists",
      "status": "contradicted",
      "explanation": "The summary mentions a man, not a woman."
    },
    {
      "claim": "the woman is in a city",
      "status": "not_addressed",
      "explanation": "The summary does not provide details on the location being a city."
    }
  ]
}`

// ExtractClaims returns the verifiable claims found in text.
func (s *Service) ExtractClaims(ctx context.Context, text string) ([]string, error) {
	content, err := s.completeJSON(ctx, "", fmt.Sprintf(claimExtractionPrompt, text))
	if err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}

	var parsed struct {
		Claims []interface{} `json:"claims"`
	}
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}

	claims := make([]string, 0, len(parsed.Claims))
	for _, raw := range parsed.Claims {
		claim, ok := raw.(string)
		if !ok {
			continue
		}
		if claim = strings.TrimSpace(claim); claim != "" {
			claims = append(claims, claim)
		}
	}
	return claims, nil
}

// CompareClaims judges every claim against summary. The result has exactly
// one entry per claim, in claim order.
func (s *Service) CompareClaims(ctx context.Context, claims []string, summary string) ([]ClaimComparison, error) {
	if len(claims) == 0 {
		return []ClaimComparison{}, nil
	}

	lines := make([]string, len(claims))
	for i, claim := range claims {
		lines[i] = "- " + claim
	}
	content, err := s.completeJSON(ctx, "", fmt.Sprintf(claimComparisonPrompt, summary, strings.Join(lines, "\n")))
	if err != nil {
		return nil, fmt.Errorf("compare claims: %w", err)
	}

	var parsed struct {
		Results []ClaimComparison `json:"results"`
	}
	if err := llm.DecodeJSON(content, &parsed); err != nil {
		return nil, fmt.Errorf("compare claims: %w", err)
	}
	return AlignComparisons(claims, parsed.Results), nil
}

// NormalizeStatus folds a verdict onto the three known statuses. Anything
// unrecognized counts as not addressed.
func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch s {
	case StatusSupported, StatusContradicted, StatusNotAddressed:
		return s
	}
	return StatusNotAddressed
}

// AlignComparisons pairs model verdicts with claims. A verdict whose claim
// text matches is used first, then the verdict at the same position, then
// the next verdict nobody took. A claim left over is marked not addressed.
func AlignComparisons(claims []string, results []ClaimComparison) []ClaimComparison {
	used := make([]bool, len(results))
	byText := make(map[string]int, len(results))
	for i, r := range results {
		key := claimKey(r.Claim)
		if _, seen := byText[key]; !seen && key != "" {
			byText[key] = i
		}
	}

	aligned := make([]ClaimComparison, len(claims))
	pending := make([]int, 0)
	for i, claim := range claims {
		if j, ok := byText[claimKey(claim)]; ok && !used[j] {
			used[j] = true
			aligned[i] = verdictFor(claim, results[j])
			continue
		}
		pending = append(pending, i)
	}

	next := 0
	for _, i := range pending {
		j := i
		if j >= len(results) || used[j] {
			for next < len(results) && used[next] {
				next++
			}
			j = next
		}
		if j < len(results) {
			used[j] = true
			aligned[i] = verdictFor(claims[i], results[j])
			continue
		}
		aligned[i] = ClaimComparison{
			Claim:       claims[i],
			Status:      StatusNotAddressed,
			Explanation: "The claim was not evaluated against the media.",
		}
	}
	return aligned
}

func verdictFor(claim string, r ClaimComparison) ClaimComparison {
	return ClaimComparison{
		Claim:       claim,
		Status:      NormalizeStatus(r.Status),
		Explanation: strings.TrimSpace(r.Explanation),
	}
}

func claimKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
