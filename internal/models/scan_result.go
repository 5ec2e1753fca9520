package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Scan kinds
const (
	ScanKindMedia = "media"
	ScanKindText  = "text"
)

// ScanResult is the persisted outcome of one scan, keyed by scan_id.
// Analysis fields stay NULL until a worker writes the final result.
type ScanResult struct {
	ID     uuid.UUID `json:"id" db:"id" gorm:"primaryKey;type:uuid"`
	ScanID string    `json:"scan_id" db:"scan_id" gorm:"uniqueIndex;not null;size:64"`
	Kind   string    `json:"kind" db:"kind" gorm:"index;not null;size:16"`
	UserID *string   `json:"user_id" db:"user_id" gorm:"index;size:128"`

	// Submitted content
	Caption   string `json:"caption" db:"caption" gorm:"type:text"`
	Text      string `json:"text,omitempty" db:"text" gorm:"type:text"`
	MediaHash string `json:"media_hash,omitempty" db:"media_hash" gorm:"size:64"`

	// Analysis output. Score is on the 0-100 scale.
	TruthSummary   *string        `json:"truth_summary" db:"truth_summary" gorm:"type:text"`
	Score          *float64       `json:"score" db:"score"`
	MismatchReason *string        `json:"mismatch_reason" db:"mismatch_reason" gorm:"type:text"`
	Entities       Entities       `json:"entities" db:"entities"`
	RawResults     datatypes.JSON `json:"raw_results,omitempty" db:"raw_results"`

	CompletedAt *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for the ScanResult model
func (ScanResult) TableName() string {
	return "scan_results"
}

// BeforeCreate assigns the primary key
func (r *ScanResult) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// IsPlaceholder reports whether no analysis has been written yet.
func (r *ScanResult) IsPlaceholder() bool {
	return r.TruthSummary == nil &&
		r.Score == nil &&
		r.MismatchReason == nil &&
		r.Entities == nil &&
		len(r.RawResults) == 0
}
