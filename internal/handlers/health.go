package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatusReporter exposes background worker state.
type StatusReporter interface {
	GetStatus() map[string]interface{}
}

// HealthHandler serves liveness and worker status
type HealthHandler struct {
	workers StatusReporter
}

// NewHealthHandler creates a new health handler. workers may be nil when
// this process runs no background workers.
func NewHealthHandler(workers StatusReporter) *HealthHandler {
	return &HealthHandler{workers: workers}
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "truthscan",
	})
}

// WorkerStatus handles GET /api/worker/status
func (h *HealthHandler) WorkerStatus(c *gin.Context) {
	if h.workers == nil {
		c.JSON(http.StatusOK, gin.H{"worker_status": gin.H{"running": false}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"worker_status": h.workers.GetStatus(),
	})
}
