// Package pipeline runs scans end to end: media or text in, a persisted
// ScanResult out. Every adapter step degrades to an empty value on failure;
// only persistence errors are returned.
package pipeline

import (
	"context"

	"truthscan/internal/analysis"
	"truthscan/internal/gemini"
	"truthscan/internal/lazy"
	"truthscan/internal/models"
	"truthscan/internal/transcribe"

	"github.com/rs/zerolog"
)

// Describer produces a free-text description of multimodal input.
type Describer interface {
	GenerateText(ctx context.Context, parts []gemini.Part) (string, error)
}

// Analyzer is the LLM analysis layer.
type Analyzer interface {
	ExtractClaims(ctx context.Context, text string) ([]string, error)
	CompareClaims(ctx context.Context, claims []string, summary string) ([]analysis.ClaimComparison, error)
	RecognizeEntities(ctx context.Context, text string) (models.Entities, error)
	AnalyzeText(ctx context.Context, text string) (analysis.TextAnalysis, error)
}

// MediaTool extracts keyframes and audio from videos.
type MediaTool interface {
	ExtractKeyframes(ctx context.Context, videoPath string, n int) ([]string, error)
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
}

// ResultStore persists scan results.
type ResultStore interface {
	Upsert(ctx context.Context, r *models.ScanResult) error
	Get(ctx context.Context, scanID string) (*models.ScanResult, error)
}

// MediaJob is the queued payload of a media scan.
type MediaJob struct {
	ScanID    string  `json:"scan_id"`
	Caption   string  `json:"caption"`
	MediaPath string  `json:"media_path"`
	MediaHash string  `json:"media_hash,omitempty"`
	UserID    *string `json:"user_id,omitempty"`
}

// TextJob is the queued payload of a text scan.
type TextJob struct {
	ScanID string  `json:"scan_id"`
	Text   string  `json:"text"`
	UserID *string `json:"user_id,omitempty"`
}

// RescanJob re-runs analysis over a stored result.
type RescanJob struct {
	ScanID string `json:"scan_id"`
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Describer   *lazy.Value[Describer]
	Transcriber *lazy.Value[transcribe.Transcriber]
	Analyzer    Analyzer
	Media       MediaTool
	Store       ResultStore
	Keyframes   int
	Logger      zerolog.Logger
}

// Orchestrator sequences the adapters of a scan.
type Orchestrator struct {
	describer   *lazy.Value[Describer]
	transcriber *lazy.Value[transcribe.Transcriber]
	analyzer    Analyzer
	media       MediaTool
	store       ResultStore
	keyframes   int
	logger      zerolog.Logger
}

// New creates an Orchestrator.
func New(d Deps) *Orchestrator {
	if d.Keyframes <= 0 {
		d.Keyframes = 5
	}
	return &Orchestrator{
		describer:   d.Describer,
		transcriber: d.Transcriber,
		analyzer:    d.Analyzer,
		media:       d.Media,
		store:       d.Store,
		keyframes:   d.Keyframes,
		logger:      d.Logger,
	}
}

// stepErrors collects degraded step failures for the audit payload.
type stepErrors map[string]string

func (e stepErrors) record(step string, err error) {
	if err != nil {
		e[step] = err.Error()
	}
}

func (e stepErrors) orNil() map[string]string {
	if len(e) == 0 {
		return nil
	}
	return e
}
