package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Tool wraps ffmpeg, ffprobe and demucs.
type Tool struct {
	runner Runner
	logger zerolog.Logger

	FFmpeg  string
	FFprobe string
	Demucs  string
}

// NewTool returns a Tool using the binaries on PATH.
func NewTool(runner Runner, logger zerolog.Logger) *Tool {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Tool{
		runner:  runner,
		logger:  logger,
		FFmpeg:  "ffmpeg",
		FFprobe: "ffprobe",
		Demucs:  "demucs",
	}
}

// Duration returns the container duration in seconds.
func (t *Tool) Duration(ctx context.Context, path string) (float64, error) {
	out, err := t.runner.Run(ctx, t.FFprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	value := strings.TrimSpace(string(out))
	if value == "" {
		return 0, errors.New("probe duration: empty output")
	}
	d, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	return d, nil
}

// KeyframeTimes spreads n timestamps evenly inside duration, excluding both ends.
func KeyframeTimes(duration float64, n int) []float64 {
	times := make([]float64, n)
	for i := 0; i < n; i++ {
		times[i] = duration * float64(i+1) / float64(n+1)
	}
	return times
}

// ExtractKeyframes writes up to n JPEG frames next to the video and returns
// their paths. An unreadable duration falls back to frames at zero; frames
// that fail to extract are skipped.
func (t *Tool) ExtractKeyframes(ctx context.Context, videoPath string, n int) ([]string, error) {
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	outDir := filepath.Join(filepath.Dir(videoPath), stem+"_frames")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}

	duration, err := t.Duration(ctx, videoPath)
	if err != nil {
		t.logger.Warn().Err(err).Str("path", videoPath).Msg("⚠️ falling back to default frame offsets")
		duration = 0
	}

	var frames []string
	for i, ts := range KeyframeTimes(duration, n) {
		if ctx.Err() != nil {
			return frames, ctx.Err()
		}
		frame := filepath.Join(outDir, fmt.Sprintf("frame_%02d.jpg", i))
		_, err := t.runner.Run(ctx, t.FFmpeg,
			"-y",
			"-ss", strconv.FormatFloat(ts, 'f', 3, 64),
			"-i", videoPath,
			"-vframes", "1",
			"-q:v", "2",
			frame,
		)
		if err != nil {
			t.logger.Warn().Err(err).Int("frame", i).Float64("at", ts).Msg("⚠️ frame extraction failed")
			continue
		}
		if _, err := os.Stat(frame); err == nil {
			frames = append(frames, frame)
		}
	}
	return frames, nil
}

// ExtractAudio writes the video's audio track as MP3 beside it.
func (t *Tool) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	audioPath := strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".mp3"
	if _, err := t.runner.Run(ctx, t.FFmpeg, "-y", "-i", videoPath, "-q:a", "0", "-map", "a", audioPath); err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("extract audio: %w", err)
	}
	return audioPath, nil
}

// Mix lays vocals over a beat, vocals slightly louder, and encodes MP3.
func (t *Tool) Mix(ctx context.Context, vocalsPath, beatPath, outputPath string) error {
	_, err := t.runner.Run(ctx, t.FFmpeg,
		"-y",
		"-i", vocalsPath,
		"-i", beatPath,
		"-filter_complex", "[0:a]volume=1.2[a0];[1:a]volume=0.5[a1];[a0][a1]amix=inputs=2:duration=longest",
		"-c:a", "mp3",
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("mix audio: %w", err)
	}
	return nil
}

// SplitStems separates a track with demucs and returns stem name to WAV path.
func (t *Tool) SplitStems(ctx context.Context, model, inputPath, outputDir string) (map[string]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create stems dir: %w", err)
	}
	if _, err := t.runner.Run(ctx, t.Demucs, "-n", model, "-o", outputDir, inputPath); err != nil {
		return nil, fmt.Errorf("split stems: %w", err)
	}

	stems := make(map[string]string)
	err := filepath.WalkDir(outputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".wav") {
			return nil
		}
		name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		if _, seen := stems[name]; !seen {
			stems[name] = path
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect stems: %w", err)
	}
	if len(stems) == 0 {
		return nil, errors.New("split stems: demucs did not produce any stems")
	}
	return stems, nil
}
