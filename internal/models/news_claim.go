package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NewsClaim is a factual claim extracted from an ingested article
type NewsClaim struct {
	ID        uuid.UUID `json:"id" db:"id" gorm:"primaryKey;type:uuid"`
	ArticleID uuid.UUID `json:"article_id" db:"article_id" gorm:"type:uuid;not null;index"`

	ClaimText string `json:"claim_text" db:"claim_text" gorm:"type:text;not null"`
	ClaimType string `json:"claim_type" db:"claim_type"` // e.g. "factual", "causal", "statistic"
	Context   string `json:"context" db:"context" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for the NewsClaim model
func (NewsClaim) TableName() string {
	return "claims"
}

// BeforeCreate assigns the primary key
func (c *NewsClaim) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
