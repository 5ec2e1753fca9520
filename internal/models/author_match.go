package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuthorMatch records one author attribution request and its outcome
type AuthorMatch struct {
	ID            uuid.UUID      `json:"id" db:"id" gorm:"primaryKey;type:uuid"`
	Transcript    string         `json:"transcript" db:"transcript" gorm:"type:text"`
	MatchedAuthor string         `json:"matched_author" db:"matched_author"`
	Confidence    float64        `json:"confidence" db:"confidence"`
	RawResponse   datatypes.JSON `json:"raw_response" db:"raw_response"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for the AuthorMatch model
func (AuthorMatch) TableName() string {
	return "author_matches"
}

// BeforeCreate assigns the primary key
func (m *AuthorMatch) BeforeCreate(tx *gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
