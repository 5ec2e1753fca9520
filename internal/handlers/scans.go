package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"truthscan/internal/auth"
	"truthscan/internal/media"
	"truthscan/internal/models"
	"truthscan/internal/queue"
	"truthscan/internal/scans"
	"truthscan/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ScanHandler serves scan submission and result endpoints
type ScanHandler struct {
	scans    *scans.Service
	verifier *auth.Verifier
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewScanHandler creates a new scan handler
func NewScanHandler(svc *scans.Service, verifier *auth.Verifier, origins []string, logger zerolog.Logger) *ScanHandler {
	return &ScanHandler{
		scans:    svc,
		verifier: verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(origins, r.Header.Get("Origin"))
			},
		},
		logger: logger,
	}
}

// AnalyzePost handles POST /analyze-post
func (h *ScanHandler) AnalyzePost(c *gin.Context) {
	caption := c.PostForm("caption")
	file, err := c.FormFile("media")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "media file is required"})
		return
	}
	body, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read upload", "details": err.Error()})
		return
	}
	defer body.Close()

	scanID, err := h.scans.SubmitMedia(c.Request.Context(), scans.MediaSubmission{
		Caption:  caption,
		Filename: file.Filename,
		Body:     body,
		UserID:   h.bearerUser(c),
	})
	switch {
	case errors.Is(err, scans.ErrEmptyCaption):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, media.ErrUnsupportedMedia):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("failed to submit media scan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit analysis job.", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Analysis job submitted.", "scan_id": scanID})
}

type analyzeTextRequest struct {
	Text   string `json:"text"`
	ScanID string `json:"scan_id"`
	UserID string `json:"user_id"`
}

// AnalyzeText handles POST /analyze-text. A verified bearer token takes
// precedence over user_id in the body.
func (h *ScanHandler) AnalyzeText(c *gin.Context) {
	var req analyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	userID := h.bearerUser(c)
	if userID == nil && strings.TrimSpace(req.UserID) != "" {
		id := strings.TrimSpace(req.UserID)
		userID = &id
	}

	scanID, err := h.scans.SubmitText(c.Request.Context(), scans.TextSubmission{
		Text:   req.Text,
		ScanID: req.ScanID,
		UserID: userID,
	})
	switch {
	case errors.Is(err, scans.ErrEmptyText):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, queue.ErrJobExists):
		c.JSON(http.StatusConflict, gin.H{"error": "A scan with this scan_id is already queued", "scan_id": req.ScanID})
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("failed to submit text scan")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit analysis job.", "details": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"message": "Text analysis job submitted.", "scan_id": scanID})
}

// ScanResults handles GET /scan-results/:scan_id
func (h *ScanHandler) ScanResults(c *gin.Context) {
	h.result(c, models.ScanKindMedia)
}

// TextScanResults handles GET /text-scan-results/:scan_id
func (h *ScanHandler) TextScanResults(c *gin.Context) {
	h.result(c, models.ScanKindText)
}

func (h *ScanHandler) result(c *gin.Context, kind string) {
	scanID := c.Param("scan_id")
	res, err := h.scans.Wait(c.Request.Context(), scanID, kind, waitParam(c))
	if err != nil {
		h.logger.Error().Err(err).Str("scan_id", scanID).Msg("failed to read scan result")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve scan results from database.", "details": err.Error()})
		return
	}

	switch res.State {
	case scans.StateCompleted:
		c.JSON(http.StatusOK, res.Result)
	case scans.StateFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Analysis job failed.", "details": res.Error, "scan_id": scanID})
	case scans.StateInProgress:
		c.JSON(http.StatusAccepted, gin.H{"status": "Analysis in progress. Keep polling.", "scan_id": scanID})
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found", "scan_id": scanID})
	}
}

// waitParam reads ?wait= as seconds. Invalid values mean no waiting.
func waitParam(c *gin.Context) time.Duration {
	raw := c.Query("wait")
	if raw == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

// PostScans handles GET /post-scans
func (h *ScanHandler) PostScans(c *gin.Context) {
	h.history(c, models.ScanKindMedia, "")
}

// TextScans handles GET /text-scans. A bearer token narrows the list to the caller.
func (h *ScanHandler) TextScans(c *gin.Context) {
	userID := c.Query("user_id")
	if id := h.bearerUser(c); id != nil {
		userID = *id
	}
	h.history(c, models.ScanKindText, userID)
}

func (h *ScanHandler) history(c *gin.Context, kind, userID string) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, err := h.scans.List(c.Request.Context(), store.ListOptions{
		Kind:   kind,
		UserID: userID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list scans")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve scan history from database.", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// scanMessage is the single websocket message sent per connection.
type scanMessage struct {
	ScanID string             `json:"scan_id"`
	State  scans.State        `json:"state"`
	Result *models.ScanResult `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// ScanSocket handles GET /ws/scans/:scan_id. It sends one message once the
// scan completes, fails or turns out not to exist, then closes.
func (h *ScanHandler) ScanSocket(c *gin.Context) {
	scanID := c.Param("scan_id")
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("scan_id", scanID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	// The client never sends; a read error means it went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		res, err := h.scans.Wait(ctx, scanID, "", time.Hour)
		if ctx.Err() != nil {
			return
		}
		msg := scanMessage{ScanID: scanID, State: res.State, Result: res.Result, Error: res.Error}
		if err != nil {
			msg.State = scans.StateFailed
			msg.Error = err.Error()
		} else if res.State == scans.StateInProgress {
			continue
		}

		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Warn().Err(err).Str("scan_id", scanID).Msg("websocket write failed")
			return
		}
		conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return
	}
}

// bearerUser returns the user from a valid bearer token, or nil.
func (h *ScanHandler) bearerUser(c *gin.Context) *string {
	if !h.verifier.Enabled() {
		return nil
	}
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil
	}
	userID, ok := h.verifier.ValidateToken(header)
	if !ok {
		return nil
	}
	return &userID
}
