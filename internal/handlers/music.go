package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"truthscan/internal/music"
	"truthscan/internal/news"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MusicHandler turns news into songs and splits tracks into stems
type MusicHandler struct {
	studio *music.Studio
	logger zerolog.Logger
}

// NewMusicHandler creates a new music handler
func NewMusicHandler(studio *music.Studio, logger zerolog.Logger) *MusicHandler {
	return &MusicHandler{studio: studio, logger: logger}
}

// NewsToSong handles POST /news-to-song
func (h *MusicHandler) NewsToSong(c *gin.Context) {
	var req music.SongRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "summary is required", "details": err.Error()})
		return
	}

	result, err := h.studio.NewsToSong(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, music.ErrGenerationTimeout) {
			status = http.StatusGatewayTimeout
		}
		h.logger.Error().Err(err).Msg("song generation failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

type lyricsRequest struct {
	NewsID string `json:"news_id"`
	Genre  string `json:"genre"`
}

// NewsToLyrics handles POST /news-to-lyrics. The JSON body wins over query parameters.
func (h *MusicHandler) NewsToLyrics(c *gin.Context) {
	req := lyricsRequest{NewsID: c.Query("news_id"), Genre: c.Query("genre")}
	if c.Request.ContentLength != 0 {
		var body lyricsRequest
		if err := c.ShouldBindJSON(&body); err == nil && body.NewsID != "" {
			req = body
		}
	}
	if strings.TrimSpace(req.NewsID) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Missing news_id"})
		return
	}
	newsID, err := uuid.Parse(req.NewsID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Invalid news_id"})
		return
	}

	result, err := h.studio.NewsToLyrics(c.Request.Context(), newsID, req.Genre)
	if errors.Is(err, news.ErrArticleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "News article not found"})
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("news_id", req.NewsID).Msg("lyrics song failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// SplitStems handles POST /api/split-stems
func (h *MusicHandler) SplitStems(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "audio file is required"})
		return
	}
	body, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload", "details": err.Error()})
		return
	}
	defer body.Close()

	result, err := h.studio.SplitStems(c.Request.Context(), file.Filename, body)
	if err != nil {
		h.logger.Error().Err(err).Msg("stem separation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Demucs failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Songs handles GET /songs-history
func (h *MusicHandler) Songs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	songs, err := h.studio.Songs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load songs", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, songs)
}
