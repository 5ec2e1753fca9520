// Package transcribe converts speech audio to text.
package transcribe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"truthscan/internal/config"
	"truthscan/internal/lazy"
	"truthscan/internal/media"

	"github.com/rs/zerolog"
)

// Transcriber turns an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// New returns a lazily initialized Transcriber for the configured mode.
// Mode "api" posts audio to an OpenAI-compatible endpoint; anything else
// runs the whisperx CLI, which must be on PATH.
func New(cfg config.TranscriptionConfig, runner media.Runner, logger zerolog.Logger) *lazy.Value[Transcriber] {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	return lazy.New[Transcriber]("transcription", func() (Transcriber, error) {
		if mode == "api" {
			return NewAPI(cfg.APIURL, cfg.APIKey, cfg.APIModel, nil)
		}
		if _, err := exec.LookPath(cfg.Command); err != nil {
			return nil, fmt.Errorf("%s not found: %w", cfg.Command, err)
		}
		return NewWhisperX(runner, cfg.Command, cfg.Model, logger), nil
	})
}
