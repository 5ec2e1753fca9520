package music

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"truthscan/internal/analysis"
	"truthscan/internal/gemini"
	"truthscan/internal/lazy"
	"truthscan/internal/media"
	"truthscan/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrGenerationTimeout is returned when Suno produces no track in time.
var ErrGenerationTimeout = errors.New("Suno track generation timed out")

// Generator is the remote song generation API.
type Generator interface {
	Generate(ctx context.Context, r GenerateRequest) (string, error)
	Status(ctx context.Context, taskID string) (TaskStatus, error)
	DownloadURL(ctx context.Context, trackID string) (string, error)
	Lyrics(ctx context.Context, trackID string) (string, error)
}

// LyricsWriter writes lyrics about a news item.
type LyricsWriter interface {
	GenerateLyrics(ctx context.Context, title, summary, genre string) (string, error)
}

// Voice renders text to 24kHz mono PCM.
type Voice interface {
	Speak(ctx context.Context, text, voice string) ([]byte, error)
}

// AudioTool mixes audio and separates stems.
type AudioTool interface {
	Mix(ctx context.Context, vocalsPath, beatPath, outputPath string) error
	SplitStems(ctx context.Context, model, inputPath, outputDir string) (map[string]string, error)
}

// ArticleSource loads ingested news.
type ArticleSource interface {
	Get(ctx context.Context, id uuid.UUID) (*models.NewsArticle, error)
}

// StudioConfig holds file locations and polling settings.
type StudioConfig struct {
	SongsDir     string
	BeatPath     string
	StemsDir     string
	DemucsModel  string
	VoiceName    string
	PollTimeout  time.Duration
	PollInterval time.Duration
}

// Studio runs the song workflows.
type Studio struct {
	db       *gorm.DB
	suno     *lazy.Value[Generator]
	writer   LyricsWriter
	voice    *lazy.Value[Voice]
	audio    AudioTool
	articles ArticleSource
	cfg      StudioConfig
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewStudio creates a Studio.
func NewStudio(db *gorm.DB, suno *lazy.Value[Generator], writer LyricsWriter, voice *lazy.Value[Voice], audio AudioTool, articles ArticleSource, cfg StudioConfig, logger zerolog.Logger) *Studio {
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 90 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.DemucsModel == "" {
		cfg.DemucsModel = "mdx_extra_q"
	}
	return &Studio{
		db:       db,
		suno:     suno,
		writer:   writer,
		voice:    voice,
		audio:    audio,
		articles: articles,
		cfg:      cfg,
		logger:   logger,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SongRequest asks Suno for a song about a summary.
type SongRequest struct {
	Summary     string     `json:"summary" binding:"required"`
	Style       string     `json:"style"`
	UseAILyrics *bool      `json:"use_ai_lyrics"`
	NewsID      *uuid.UUID `json:"news_id"`
}

// SongResult is a finished Suno track.
type SongResult struct {
	TrackID     string `json:"track_id"`
	DownloadURL string `json:"download_url"`
	Lyrics      string `json:"lyrics"`
	Style       string `json:"style"`
	Summary     string `json:"summary"`
}

// NewsToSong generates a track with Suno and waits for it to appear.
func (s *Studio) NewsToSong(ctx context.Context, req SongRequest) (SongResult, error) {
	suno, err := s.suno.Get()
	if err != nil {
		return SongResult{}, err
	}
	style := req.Style
	if style == "" {
		style = "Hip-Hop"
	}
	useLyrics := true
	if req.UseAILyrics != nil {
		useLyrics = *req.UseAILyrics
	}

	taskID, err := suno.Generate(ctx, GenerateRequest{Prompt: req.Summary, Style: style, UseAILyrics: useLyrics})
	if err != nil {
		return SongResult{}, err
	}
	log := s.logger.With().Str("task_id", taskID).Logger()
	log.Info().Str("style", style).Msg("🎵 Polling Suno task")

	trackID, err := s.waitForTrack(ctx, suno, taskID)
	if err != nil {
		return SongResult{}, err
	}

	downloadURL, err := suno.DownloadURL(ctx, trackID)
	if err != nil {
		log.Warn().Err(err).Msg("download URL unavailable")
	}
	lyrics, err := suno.Lyrics(ctx, trackID)
	if err != nil {
		log.Warn().Err(err).Msg("lyrics unavailable")
	}

	result := SongResult{TrackID: trackID, DownloadURL: downloadURL, Lyrics: lyrics, Style: style, Summary: req.Summary}
	s.saveSong(ctx, &models.Song{
		NewsID:   req.NewsID,
		Source:   models.SongSourceSuno,
		Title:    req.Summary,
		Style:    style,
		Lyrics:   lyrics,
		TaskID:   taskID,
		AudioURL: downloadURL,
	})
	return result, nil
}

func (s *Studio) waitForTrack(ctx context.Context, suno Generator, taskID string) (string, error) {
	deadline := time.Now().Add(s.cfg.PollTimeout)
	for time.Now().Before(deadline) {
		status, err := suno.Status(ctx, taskID)
		if err != nil {
			s.logger.Warn().Err(err).Str("task_id", taskID).Msg("status check failed, retrying")
		} else if len(status.Songs) > 0 && status.Songs[0].ID != "" {
			return status.Songs[0].ID, nil
		}
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return "", err
		}
	}
	return "", ErrGenerationTimeout
}

// LyricsResult is a locally produced song.
type LyricsResult struct {
	NewsID  string `json:"news_id"`
	Genre   string `json:"genre"`
	Lyrics  string `json:"lyrics"`
	SongURL string `json:"song_url"`
}

// NewsToLyrics writes lyrics for a stored article, voices them and mixes
// them over the configured beat.
func (s *Studio) NewsToLyrics(ctx context.Context, newsID uuid.UUID, genre string) (LyricsResult, error) {
	if genre == "" {
		genre = analysis.DefaultGenre
	}
	article, err := s.articles.Get(ctx, newsID)
	if err != nil {
		return LyricsResult{}, err
	}

	lyrics, err := s.writer.GenerateLyrics(ctx, article.Title, article.Summary, genre)
	if err != nil {
		return LyricsResult{}, err
	}

	voice, err := s.voice.Get()
	if err != nil {
		return LyricsResult{}, err
	}
	voiceName := s.cfg.VoiceName
	if voiceName == "" {
		voiceName = "Kore"
	}
	pcm, err := voice.Speak(ctx, fmt.Sprintf("Sing/rap these lyrics in a cool, %s style:\n%s", voiceName, lyrics), voiceName)
	if err != nil {
		return LyricsResult{}, fmt.Errorf("generate vocals: %w", err)
	}

	if err := os.MkdirAll(s.cfg.SongsDir, 0o755); err != nil {
		return LyricsResult{}, fmt.Errorf("create songs dir: %w", err)
	}
	vocalsPath := filepath.Join(s.cfg.SongsDir, newsID.String()+"_vocals.wav")
	if err := gemini.WriteWAV(vocalsPath, pcm); err != nil {
		return LyricsResult{}, err
	}
	defer os.Remove(vocalsPath)

	songName := newsID.String() + "_song.mp3"
	if err := s.audio.Mix(ctx, vocalsPath, s.cfg.BeatPath, filepath.Join(s.cfg.SongsDir, songName)); err != nil {
		return LyricsResult{}, fmt.Errorf("failed to mix audio: %w", err)
	}

	result := LyricsResult{NewsID: newsID.String(), Genre: genre, Lyrics: lyrics, SongURL: "/songs/" + songName}
	s.saveSong(ctx, &models.Song{
		NewsID:   &newsID,
		Source:   models.SongSourceLyrics,
		Title:    article.Title,
		Style:    genre,
		Lyrics:   lyrics,
		AudioURL: result.SongURL,
		FilePath: filepath.Join(s.cfg.SongsDir, songName),
	})
	s.logger.Info().Str("news_id", newsID.String()).Str("song", songName).Msg("✅ Song mixed")
	return result, nil
}

func (s *Studio) saveSong(ctx context.Context, song *models.Song) {
	if s.db == nil {
		return
	}
	if err := s.db.WithContext(ctx).Create(song).Error; err != nil {
		s.logger.Warn().Err(err).Msg("failed to record song")
	}
}

// Songs returns generated songs newest first.
func (s *Studio) Songs(ctx context.Context, limit int) ([]models.Song, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var songs []models.Song
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("list songs: %w", err)
	}
	return songs, nil
}

// StemResult describes a separated track.
type StemResult struct {
	Status                string            `json:"status"`
	Model                 string            `json:"model"`
	NumStems              int               `json:"num_stems"`
	Stems                 map[string]string `json:"stems"`
	ProcessingTimeSeconds float64           `json:"processing_time_seconds"`
}

// SplitStems separates an uploaded track and publishes the stems under /songs.
func (s *Studio) SplitStems(ctx context.Context, filename string, body io.Reader) (StemResult, error) {
	if filepath.Ext(filename) == "" {
		filename += ".mp3"
	}
	upload, err := media.SaveUpload(s.cfg.StemsDir, filename, body)
	if err != nil {
		return StemResult{}, err
	}
	defer media.Cleanup(upload.Path)

	start := time.Now()
	workDir := filepath.Join(upload.Dir, "out")
	stems, err := s.audio.SplitStems(ctx, s.cfg.DemucsModel, upload.Path, workDir)
	if err != nil {
		return StemResult{}, err
	}

	if err := os.MkdirAll(s.cfg.SongsDir, 0o755); err != nil {
		return StemResult{}, fmt.Errorf("create songs dir: %w", err)
	}
	prefix := strings.TrimSuffix(filepath.Base(upload.Path), filepath.Ext(upload.Path))
	urls := make(map[string]string, len(stems))
	for name, path := range stems {
		published := fmt.Sprintf("%s_%s.wav", prefix, name)
		if err := os.Rename(path, filepath.Join(s.cfg.SongsDir, published)); err != nil {
			return StemResult{}, fmt.Errorf("publish stem %s: %w", name, err)
		}
		urls[name] = "/songs/" + published
	}

	elapsed := math.Round(time.Since(start).Seconds()*100) / 100
	s.logger.Info().Int("stems", len(urls)).Float64("seconds", elapsed).Msg("✅ Stems separated")
	return StemResult{
		Status:                "ok",
		Model:                 s.cfg.DemucsModel,
		NumStems:              len(urls),
		Stems:                 urls,
		ProcessingTimeSeconds: elapsed,
	}, nil
}
