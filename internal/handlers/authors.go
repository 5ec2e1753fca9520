package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"truthscan/internal/fingerprint"
	"truthscan/internal/lazy"
	"truthscan/internal/media"
	"truthscan/internal/models"
	"truthscan/internal/transcribe"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuthorHandler attributes text and audio to known authors
type AuthorHandler struct {
	db          *gorm.DB
	authors     []fingerprint.Author
	transcriber *lazy.Value[transcribe.Transcriber]
	uploadDir   string
	logger      zerolog.Logger
}

// NewAuthorHandler creates a new author handler
func NewAuthorHandler(db *gorm.DB, authors []fingerprint.Author, transcriber *lazy.Value[transcribe.Transcriber], uploadDir string, logger zerolog.Logger) *AuthorHandler {
	return &AuthorHandler{
		db:          db,
		authors:     authors,
		transcriber: transcriber,
		uploadDir:   uploadDir,
		logger:      logger,
	}
}

// matchResponse is a match result, or the reason there is none.
type matchResponse struct {
	Author     *string            `json:"author"`
	Confidence float64            `json:"confidence"`
	RawScores  map[string]float64 `json:"raw_scores"`
	Timestamp  string             `json:"timestamp,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func (h *AuthorHandler) match(text string) (matchResponse, fingerprint.Result) {
	result, err := fingerprint.Match(text, h.authors)
	if err != nil {
		return matchResponse{RawScores: map[string]float64{}, Error: err.Error()}, result
	}
	scores := make(map[string]float64, len(result.RawScores))
	for name, score := range result.RawScores {
		scores[name] = fingerprint.Round(score, 4)
	}
	return matchResponse{
		Author:     &result.Author,
		Confidence: result.Confidence,
		RawScores:  scores,
		Timestamp:  result.Timestamp.Format(time.RFC3339Nano),
	}, result
}

// MatchAuthor handles POST /match-author
func (h *AuthorHandler) MatchAuthor(c *gin.Context) {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "text is required"})
		return
	}
	resp, _ := h.match(req.Text)
	c.JSON(http.StatusOK, gin.H{"matched_author": resp})
}

// UploadAudio handles POST /upload-audio: transcribe, attribute and record.
func (h *AuthorHandler) UploadAudio(c *gin.Context) {
	transcript, err := h.transcribeUpload(c)
	if err != nil {
		return
	}

	resp, result := h.match(transcript)
	body := gin.H{
		"transcript": transcript,
		"author":     resp.Author,
		"confidence": resp.Confidence,
		"raw_scores": resp.RawScores,
		"timestamp":  resp.Timestamp,
	}
	if resp.Error != "" {
		body["error"] = resp.Error
	} else if err := h.record(c.Request.Context(), transcript, result); err != nil {
		h.logger.Warn().Err(err).Msg("failed to record author match")
		body["save_error"] = err.Error()
	}
	c.JSON(http.StatusOK, body)
}

func (h *AuthorHandler) record(ctx context.Context, transcript string, result fingerprint.Result) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return h.db.WithContext(ctx).Create(&models.AuthorMatch{
		Transcript:    transcript,
		MatchedAuthor: result.Author,
		Confidence:    result.Confidence,
		RawResponse:   datatypes.JSON(raw),
	}).Error
}

// StreamTranscription handles POST /generate_transcription/stream as
// server-sent events: transcript, attribution, then [DONE].
func (h *AuthorHandler) StreamTranscription(c *gin.Context) {
	transcript, err := h.transcribeUpload(c)
	if err != nil {
		return
	}
	resp, _ := h.match(transcript)

	events := []string{"Quick Transcript: " + strings.TrimSpace(transcript)}
	if resp.Author != nil {
		events = append(events, fmt.Sprintf("Author: %s (%.1f%%)", *resp.Author, resp.Confidence*100))
	} else {
		events = append(events, "Author: unknown ("+resp.Error+")")
	}
	events = append(events, "[DONE]")

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	// SSEvent splits multi-line payloads into separate data: lines.
	for _, ev := range events {
		if c.Request.Context().Err() != nil {
			return
		}
		c.SSEvent("message", ev)
		c.Writer.Flush()
	}
}

// transcribeUpload saves the "file" form field and transcribes it. On
// failure it writes the error response and returns a non-nil error.
func (h *AuthorHandler) transcribeUpload(c *gin.Context) (string, error) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return "", err
	}
	transcriber, err := h.transcriber.Get()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return "", err
	}

	body, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload", "details": err.Error()})
		return "", err
	}
	defer body.Close()

	name := file.Filename
	if filepath.Ext(name) == "" {
		name += ".mp3"
	}
	upload, err := media.SaveUpload(h.uploadDir, name, body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload", "details": err.Error()})
		return "", err
	}
	defer func() {
		if err := media.Cleanup(upload.Path); err != nil {
			h.logger.Warn().Err(err).Msg("failed to remove audio upload")
		}
	}()

	transcript, err := transcriber.Transcribe(c.Request.Context(), upload.Path)
	if err != nil {
		h.logger.Error().Err(err).Msg("transcription failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Transcription failed", "details": err.Error()})
		return "", err
	}
	if strings.TrimSpace(transcript) == "" {
		err := errors.New("empty transcript")
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "No speech was recognized in the upload"})
		return "", err
	}
	return transcript, nil
}
