package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"truthscan/internal/analysis"
	"truthscan/internal/models"

	"gorm.io/datatypes"
)

// TextReport is the audit payload stored in raw_results for text scans.
type TextReport struct {
	Text           string                 `json:"text"`
	Summary        string                 `json:"summary"`
	Sentiment      string                 `json:"sentiment"`
	Intent         string                 `json:"intent"`
	Entities       models.Entities        `json:"entities"`
	MismatchReason string                 `json:"mismatch_reason"`
	Score          float64                `json:"score"`
	ModelOutput    map[string]interface{} `json:"model_output,omitempty"`
	Errors         map[string]string      `json:"errors,omitempty"`
}

// RunTextScan analyzes job.Text with one structured model call and upserts
// the result. A failed call persists a degraded row with score 0.
func (o *Orchestrator) RunTextScan(ctx context.Context, job TextJob) error {
	log := o.logger.With().Str("scan_id", job.ScanID).Logger()
	start := time.Now()
	log.Info().Int("chars", len(job.Text)).Msg("🔄 Starting text scan")

	errs := stepErrors{}
	result, err := o.analyzer.AnalyzeText(ctx, job.Text)
	errs.record("analysis", err)

	row, err := textResult(job, result, errs)
	if err != nil {
		return err
	}
	if err := o.store.Upsert(ctx, row); err != nil {
		log.Error().Err(err).Msg("❌ Failed to persist text scan")
		return err
	}

	log.Info().Float64("score", result.Score).Dur("took", time.Since(start)).Msg("✅ Text scan complete")
	return nil
}

func textResult(job TextJob, result analysis.TextAnalysis, errs stepErrors) (*models.ScanResult, error) {
	entities := result.Entities
	if entities == nil {
		entities = models.NewEntities()
	}
	report := TextReport{
		Text:           job.Text,
		Summary:        result.Summary,
		Sentiment:      result.Sentiment,
		Intent:         result.Intent,
		Entities:       entities,
		MismatchReason: result.MismatchReason,
		Score:          result.Score,
		ModelOutput:    result.Raw,
		Errors:         errs.orNil(),
	}
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode text report: %w", err)
	}

	summary := result.Summary
	score := result.Score
	reason := result.MismatchReason
	now := time.Now().UTC()
	return &models.ScanResult{
		ScanID:         job.ScanID,
		Kind:           models.ScanKindText,
		UserID:         job.UserID,
		Text:           job.Text,
		TruthSummary:   &summary,
		Score:          &score,
		MismatchReason: &reason,
		Entities:       entities,
		RawResults:     datatypes.JSON(raw),
		CompletedAt:    &now,
	}, nil
}
