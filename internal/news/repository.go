package news

import (
	"context"
	"errors"
	"fmt"

	"truthscan/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrArticleNotFound is returned for unknown article ids.
var ErrArticleNotFound = errors.New("article not found")

// Repository reads ingested articles.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// List returns articles newest first, optionally filtered by bias.
func (r *Repository) List(ctx context.Context, bias string, limit, offset int) ([]models.NewsArticle, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset)
	if bias != "" {
		q = q.Where("bias = ?", bias)
	}
	var articles []models.NewsArticle
	if err := q.Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	return articles, nil
}

// Get loads one article with its claims.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.NewsArticle, error) {
	var article models.NewsArticle
	err := r.db.WithContext(ctx).Preload("Claims").First(&article, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrArticleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get article %s: %w", id, err)
	}
	return &article, nil
}
