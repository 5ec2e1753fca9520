package pipeline

import (
	"strings"

	"truthscan/internal/analysis"

	"github.com/shopspring/decimal"
)

const (
	noClaimsReason       = "No verifiable claims were found to compare against the media."
	noContradictionsText = "No claims were contradicted by the media."
)

// DeriveScore is the percentage of comparisons marked supported, rounded
// half up to a whole number. It is 0 when there are no comparisons.
func DeriveScore(comparisons []analysis.ClaimComparison) float64 {
	n := len(comparisons)
	if n == 0 {
		return 0
	}
	k := 0
	for _, c := range comparisons {
		if c.Status == analysis.StatusSupported {
			k++
		}
	}
	pct := decimal.NewFromInt(int64(k)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(n))).
		Round(0)
	return pct.InexactFloat64()
}

// TruthSummary joins the per-claim explanations.
func TruthSummary(comparisons []analysis.ClaimComparison) string {
	parts := make([]string, 0, len(comparisons))
	for _, c := range comparisons {
		if e := strings.TrimSpace(c.Explanation); e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, " ")
}

// MismatchReason joins the explanations of contradicted claims.
func MismatchReason(comparisons []analysis.ClaimComparison) string {
	if len(comparisons) == 0 {
		return noClaimsReason
	}
	parts := make([]string, 0)
	for _, c := range comparisons {
		if c.Status != analysis.StatusContradicted {
			continue
		}
		if e := strings.TrimSpace(c.Explanation); e != "" {
			parts = append(parts, e)
		} else {
			parts = append(parts, "Contradicted: "+c.Claim)
		}
	}
	if len(parts) == 0 {
		return noContradictionsText
	}
	return strings.Join(parts, " ")
}
