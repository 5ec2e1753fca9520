package handlers

import (
	"errors"
	"net/http"

	"truthscan/internal/pipeline"
	"truthscan/internal/queue"
	"truthscan/internal/scans"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewsTrigger starts an out-of-schedule news sweep.
type NewsTrigger interface {
	TriggerNewsSweep() bool
}

// AdminHandler handles administrative scan and ingestion operations
type AdminHandler struct {
	scans    *scans.Service
	news     NewsTrigger
	password string
	logger   zerolog.Logger
}

// NewAdminHandler creates a new admin handler. news may be nil when the
// collector does not run in this process.
func NewAdminHandler(svc *scans.Service, news NewsTrigger, password string, logger zerolog.Logger) *AdminHandler {
	if password == "" {
		password = "admin123"
	}
	return &AdminHandler{scans: svc, news: news, password: password, logger: logger}
}

// AdminAuth middleware for basic password protection
func (h *AdminHandler) AdminAuth() gin.HandlerFunc {
	return gin.BasicAuth(gin.Accounts{
		"admin": h.password,
	})
}

// DeleteScan handles DELETE /admin/scans/:scan_id
func (h *AdminHandler) DeleteScan(c *gin.Context) {
	scanID := c.Param("scan_id")
	err := h.scans.Delete(c.Request.Context(), scanID)
	switch {
	case errors.Is(err, scans.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return
	case errors.Is(err, scans.ErrScanRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "Scan is still running"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete scan: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Scan deleted", "scan_id": scanID})
}

// RescanScan handles POST /admin/scans/:scan_id/rescan
func (h *AdminHandler) RescanScan(c *gin.Context) {
	scanID := c.Param("scan_id")
	err := h.scans.Rescan(c.Request.Context(), scanID)
	switch {
	case errors.Is(err, scans.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Scan not found"})
		return
	case errors.Is(err, pipeline.ErrNothingToRescan):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case errors.Is(err, queue.ErrJobExists):
		c.JSON(http.StatusConflict, gin.H{"error": "Scan is already queued or running"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue rescan: " + err.Error()})
		return
	}
	h.logger.Info().Str("scan_id", scanID).Msg("admin requested rescan")
	c.JSON(http.StatusAccepted, gin.H{"message": "Rescan queued", "scan_id": scanID})
}

// CollectNews handles POST /admin/news/collect
func (h *AdminHandler) CollectNews(c *gin.Context) {
	if h.news == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "News collector is not running in this process"})
		return
	}
	if !h.news.TriggerNewsSweep() {
		c.JSON(http.StatusConflict, gin.H{"error": "A news sweep is already pending"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "News sweep triggered"})
}
