package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Song sources
const (
	SongSourceSuno   = "suno"
	SongSourceLyrics = "lyrics"
)

// Song is a generated track built from a news item
type Song struct {
	ID       uuid.UUID  `json:"id" db:"id" gorm:"primaryKey;type:uuid"`
	NewsID   *uuid.UUID `json:"news_id" db:"news_id" gorm:"type:uuid;index"`
	Source   string     `json:"source" db:"source" gorm:"size:16;not null"`
	Title    string     `json:"title" db:"title"`
	Style    string     `json:"style" db:"style"`
	Lyrics   string     `json:"lyrics" db:"lyrics" gorm:"type:text"`
	TaskID   string     `json:"task_id,omitempty" db:"task_id"`
	AudioURL string     `json:"audio_url" db:"audio_url"`
	FilePath string     `json:"-" db:"file_path"`

	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for the Song model
func (Song) TableName() string {
	return "songs"
}

// BeforeCreate assigns the primary key
func (s *Song) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
