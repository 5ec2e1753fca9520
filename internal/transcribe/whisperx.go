package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"truthscan/internal/media"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Segment is one timed span of a transcript.
type Segment struct {
	Text  string          `json:"text"`
	Start decimal.Decimal `json:"start"`
	End   decimal.Decimal `json:"end"`
}

type whisperxResult struct {
	Segments []Segment `json:"segments"`
}

// WhisperX runs the whisperx CLI and reads its JSON output.
type WhisperX struct {
	runner  media.Runner
	command string
	model   string
	logger  zerolog.Logger
}

var _ Transcriber = (*WhisperX)(nil)

// NewWhisperX builds a CLI transcriber.
func NewWhisperX(runner media.Runner, command, model string, logger zerolog.Logger) *WhisperX {
	if runner == nil {
		runner = media.ExecRunner{}
	}
	if command == "" {
		command = "whisperx"
	}
	if model == "" {
		model = "base"
	}
	return &WhisperX{runner: runner, command: command, model: model, logger: logger}
}

// Transcribe implements Transcriber.
func (w *WhisperX) Transcribe(ctx context.Context, audioPath string) (string, error) {
	segments, err := w.Segments(ctx, audioPath)
	if err != nil {
		return "", err
	}
	return JoinSegments(segments), nil
}

// Segments returns the timed transcript.
func (w *WhisperX) Segments(ctx context.Context, audioPath string) ([]Segment, error) {
	outDir, err := os.MkdirTemp("", "whisperx_")
	if err != nil {
		return nil, fmt.Errorf("transcribing with whisperx: %w", err)
	}
	defer os.RemoveAll(outDir)

	_, err = w.runner.Run(ctx, w.command, audioPath,
		"--model", w.model,
		"--output_dir", outDir,
		"--output_format", "json",
		"--compute_type", "int8",
	)
	if err != nil {
		return nil, fmt.Errorf("transcribing with whisperx: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	f, err := os.Open(filepath.Join(outDir, stem+".json"))
	if err != nil {
		return nil, fmt.Errorf("opening whisperx transcribe result: %w", err)
	}
	defer f.Close()

	var result whisperxResult
	if err := json.NewDecoder(f).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding whisperx json result: %w", err)
	}
	w.logger.Debug().Int("segments", len(result.Segments)).Str("file", filepath.Base(audioPath)).Msg("🎙️ whisperx finished")
	return result.Segments, nil
}

// JoinSegments concatenates segment texts with single spaces.
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// DurationMs returns the segment length in milliseconds.
func (s Segment) DurationMs() int64 {
	return s.End.Sub(s.Start).Mul(decimal.NewFromInt(1000)).IntPart()
}
