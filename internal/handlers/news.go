package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"truthscan/internal/news"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// NewsHandler serves ingested news
type NewsHandler struct {
	repo *news.Repository
}

// NewNewsHandler creates a new news handler
func NewNewsHandler(repo *news.Repository) *NewsHandler {
	return &NewsHandler{repo: repo}
}

// ListNews handles GET /news
func (h *NewsHandler) ListNews(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	articles, err := h.repo.List(c.Request.Context(), c.Query("bias"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load news", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"articles": articles,
		"count":    len(articles),
	})
}

// NewsClaims handles GET /news/:id/claims
func (h *NewsHandler) NewsClaims(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid news id"})
		return
	}
	article, err := h.repo.Get(c.Request.Context(), id)
	if errors.Is(err, news.ErrArticleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "News article not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load news", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"news_id": article.ID,
		"title":   article.Title,
		"claims":  article.Claims,
	})
}
