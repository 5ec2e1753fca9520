package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"truthscan/internal/models"
)

// ErrNothingToRescan is returned when a stored result lacks the inputs a rescan needs.
var ErrNothingToRescan = errors.New("scan has no stored analysis to rescan")

// Rescan re-runs analysis for a stored scan. Media scans repeat claim
// extraction and comparison over the stored caption, transcript and media
// summary, since the media itself is gone. Text scans repeat the text analysis.
func (o *Orchestrator) Rescan(ctx context.Context, scanID string) error {
	row, err := o.store.Get(ctx, scanID)
	if err != nil {
		return fmt.Errorf("rescan %s: %w", scanID, err)
	}

	switch row.Kind {
	case models.ScanKindText:
		if row.Text == "" {
			return fmt.Errorf("rescan %s: %w", scanID, ErrNothingToRescan)
		}
		return o.RunTextScan(ctx, TextJob{ScanID: row.ScanID, Text: row.Text, UserID: row.UserID})
	case models.ScanKindMedia:
		return o.rescanMedia(ctx, row)
	default:
		return fmt.Errorf("rescan %s: unknown kind %q", scanID, row.Kind)
	}
}

func (o *Orchestrator) rescanMedia(ctx context.Context, row *models.ScanResult) error {
	if len(row.RawResults) == 0 {
		return fmt.Errorf("rescan %s: %w", row.ScanID, ErrNothingToRescan)
	}
	var previous MediaReport
	if err := json.Unmarshal(row.RawResults, &previous); err != nil {
		return fmt.Errorf("rescan %s: decode stored report: %w", row.ScanID, err)
	}

	log := o.logger.With().Str("scan_id", row.ScanID).Logger()
	log.Info().Msg("🔄 Rescanning media claims")

	errs := stepErrors{}
	report := MediaReport{
		MediaPath:     previous.MediaPath,
		Caption:       row.Caption,
		MediaAnalysis: previous.MediaAnalysis,
		Transcription: previous.Transcription,
	}
	input := claimsInput(row.Caption, previous.Transcription)
	report.Claims, report.ComparisonResults = o.checkClaims(ctx, input, previous.MediaAnalysis, errs)

	entities, err := o.analyzer.RecognizeEntities(ctx, input)
	errs.record("entities", err)
	if entities == nil {
		entities = row.Entities
	}
	if entities == nil {
		entities = models.NewEntities()
	}
	report.Errors = errs.orNil()

	next, err := mediaResult(MediaJob{
		ScanID:    row.ScanID,
		Caption:   row.Caption,
		MediaPath: previous.MediaPath,
		MediaHash: row.MediaHash,
		UserID:    row.UserID,
	}, report, entities)
	if err != nil {
		return err
	}
	if err := o.store.Upsert(ctx, next); err != nil {
		log.Error().Err(err).Msg("❌ Failed to persist rescan")
		return err
	}
	log.Info().Float64("score", *next.Score).Msg("✅ Rescan complete")
	return nil
}
