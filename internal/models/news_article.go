package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewsArticle is one ingested feed entry with its AI enrichment
type NewsArticle struct {
	ID         uuid.UUID `json:"id" db:"id" gorm:"primaryKey;type:uuid"`
	Title      string    `json:"title" db:"title" gorm:"not null"`
	Summary    string    `json:"summary" db:"summary" gorm:"type:text"`
	SourceName string    `json:"source_name" db:"source_name"`
	SourceURL  string    `json:"source_url" db:"source_url" gorm:"uniqueIndex;not null"`

	// Enrichment
	Bias              string  `json:"bias" db:"bias" gorm:"size:16"`
	BiasConfidence    float64 `json:"bias_confidence" db:"bias_confidence"`
	TrustScore        float64 `json:"trust_score" db:"trust_score" gorm:"default:0.5"`
	Language          string  `json:"language" db:"language" gorm:"size:8"`
	AuthorFingerprint *string `json:"author_fingerprint" db:"author_fingerprint"`

	PublishedAt *time.Time `json:"published_at" db:"published_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at" gorm:"autoCreateTime;index"`

	// Relationships
	Claims []NewsClaim `json:"claims,omitempty" gorm:"foreignKey:ArticleID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for the NewsArticle model
func (NewsArticle) TableName() string {
	return "smart_news"
}

// BeforeCreate assigns the primary key
func (a *NewsArticle) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
