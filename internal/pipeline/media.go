package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"truthscan/internal/analysis"
	"truthscan/internal/gemini"
	"truthscan/internal/media"
	"truthscan/internal/models"

	"gorm.io/datatypes"
)

// NoKeyframesSummary stands in for the media summary when a video yields no frames.
const NoKeyframesSummary = "Video analysis failed: No keyframes extracted."

// MediaReport is the audit payload stored in raw_results for media scans.
type MediaReport struct {
	MediaPath         string                     `json:"media_path"`
	Caption           string                     `json:"caption"`
	MediaAnalysis     string                     `json:"media_analysis"`
	Transcription     string                     `json:"transcription"`
	Claims            []string                   `json:"claims"`
	ComparisonResults []analysis.ClaimComparison `json:"comparison_results"`
	Errors            map[string]string          `json:"errors,omitempty"`
}

// RunMediaScan analyzes the media at job.MediaPath against its caption and
// upserts the result. The media and its directory are removed on return.
func (o *Orchestrator) RunMediaScan(ctx context.Context, job MediaJob) error {
	log := o.logger.With().Str("scan_id", job.ScanID).Logger()
	defer func() {
		if err := media.Cleanup(job.MediaPath); err != nil {
			log.Warn().Err(err).Str("path", job.MediaPath).Msg("failed to clean up media")
		}
	}()

	start := time.Now()
	log.Info().Str("media", job.MediaPath).Msg("🔄 Starting media scan")

	errs := stepErrors{}
	report := MediaReport{MediaPath: job.MediaPath, Caption: job.Caption}

	isVideo := media.IsVideo(job.MediaPath)
	report.MediaAnalysis = o.describeMedia(ctx, job, isVideo, errs)

	if isVideo {
		report.Transcription = o.transcribeVideo(ctx, job.MediaPath, errs)
	}

	report.Claims, report.ComparisonResults = o.checkClaims(ctx, claimsInput(job.Caption, report.Transcription), report.MediaAnalysis, errs)

	entities, err := o.analyzer.RecognizeEntities(ctx, claimsInput(job.Caption, report.Transcription))
	errs.record("entities", err)
	if entities == nil {
		entities = models.NewEntities()
	}

	report.Errors = errs.orNil()
	row, err := mediaResult(job, report, entities)
	if err != nil {
		return err
	}
	if err := o.store.Upsert(ctx, row); err != nil {
		log.Error().Err(err).Msg("❌ Failed to persist media scan")
		return err
	}

	log.Info().
		Float64("score", *row.Score).
		Int("claims", len(report.Claims)).
		Int("degraded_steps", len(errs)).
		Dur("took", time.Since(start)).
		Msg("✅ Media scan complete")
	return nil
}

func (o *Orchestrator) describeMedia(ctx context.Context, job MediaJob, isVideo bool, errs stepErrors) string {
	var parts []gemini.Part
	if isVideo {
		frames, err := o.media.ExtractKeyframes(ctx, job.MediaPath, o.keyframes)
		errs.record("keyframes", err)
		if len(frames) == 0 {
			return NoKeyframesSummary
		}
		parts = append(parts, gemini.TextPart(fmt.Sprintf(
			"Analyze the following video in the context of the caption: '%s' and describe the visual content.", job.Caption)))
		for _, frame := range frames {
			data, err := media.EncodeBase64(frame)
			if err != nil {
				errs.record("keyframes", err)
				continue
			}
			parts = append(parts, gemini.ImagePart("image/jpeg", data))
		}
		parts = append(parts, gemini.TextPart("Please provide a combined visual summary."))
	} else {
		data, err := media.EncodeBase64(job.MediaPath)
		if err != nil {
			errs.record("media_analysis", err)
			return ""
		}
		parts = []gemini.Part{
			gemini.ImagePart(media.MimeType(job.MediaPath), data),
			gemini.TextPart(fmt.Sprintf(
				"Analyze this image in the context of the caption: '%s'. Provide a detailed description of this image and extract any text you see.", job.Caption)),
		}
	}

	describer, err := o.describer.Get()
	if err != nil {
		errs.record("media_analysis", err)
		return ""
	}
	summary, err := describer.GenerateText(ctx, parts)
	if err != nil {
		errs.record("media_analysis", err)
		return ""
	}
	return strings.TrimSpace(summary)
}

func (o *Orchestrator) transcribeVideo(ctx context.Context, videoPath string, errs stepErrors) string {
	audioPath, err := o.media.ExtractAudio(ctx, videoPath)
	if err != nil {
		errs.record("transcription", err)
		return ""
	}
	defer os.Remove(audioPath)

	transcriber, err := o.transcriber.Get()
	if err != nil {
		errs.record("transcription", err)
		return ""
	}
	text, err := transcriber.Transcribe(ctx, audioPath)
	if err != nil {
		errs.record("transcription", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// checkClaims extracts claims from text and compares them against summary.
// The comparison has exactly one entry per claim.
func (o *Orchestrator) checkClaims(ctx context.Context, text, summary string, errs stepErrors) ([]string, []analysis.ClaimComparison) {
	claims, err := o.analyzer.ExtractClaims(ctx, text)
	errs.record("claims", err)
	if len(claims) == 0 {
		return []string{}, []analysis.ClaimComparison{}
	}

	comparisons, err := o.analyzer.CompareClaims(ctx, claims, summary)
	errs.record("comparison", err)
	return claims, analysis.AlignComparisons(claims, comparisons)
}

func claimsInput(caption, transcription string) string {
	return strings.TrimSpace(caption + " " + transcription)
}

func mediaResult(job MediaJob, report MediaReport, entities models.Entities) (*models.ScanResult, error) {
	raw, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode media report: %w", err)
	}

	score := DeriveScore(report.ComparisonResults)
	summary := TruthSummary(report.ComparisonResults)
	if summary == "" {
		summary = report.MediaAnalysis
	}
	reason := MismatchReason(report.ComparisonResults)
	now := time.Now().UTC()

	return &models.ScanResult{
		ScanID:         job.ScanID,
		Kind:           models.ScanKindMedia,
		UserID:         job.UserID,
		Caption:        job.Caption,
		MediaHash:      job.MediaHash,
		TruthSummary:   &summary,
		Score:          &score,
		MismatchReason: &reason,
		Entities:       entities,
		RawResults:     datatypes.JSON(raw),
		CompletedAt:    &now,
	}, nil
}
