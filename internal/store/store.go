// Package store persists scan results keyed by scan_id.
package store

import (
	"context"
	"errors"
	"fmt"

	"truthscan/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when no row exists for a scan_id.
var ErrNotFound = errors.New("scan result not found")

// resultColumns are overwritten when a result for an existing scan_id is written.
var resultColumns = []string{
	"kind", "user_id", "caption", "text", "media_hash",
	"truth_summary", "score", "mismatch_reason", "entities", "raw_results",
	"completed_at", "updated_at",
}

// ListOptions filters and pages history queries.
type ListOptions struct {
	Kind   string
	UserID string
	Limit  int
	Offset int
}

// Store is the scan result repository
type Store struct {
	db *gorm.DB
}

// New creates a Store
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx returns a Store that runs its statements on tx.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{db: tx}
}

// Upsert writes the final result for r.ScanID, replacing any earlier row.
func (s *Store) Upsert(ctx context.Context, r *models.ScanResult) error {
	if r.ScanID == "" {
		return errors.New("upsert scan result: scan_id required")
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scan_id"}},
		DoUpdates: clause.AssignmentColumns(resultColumns),
	}).Create(r).Error
	if err != nil {
		return fmt.Errorf("upsert scan result %s: %w", r.ScanID, err)
	}
	return nil
}

// CreatePlaceholder inserts an empty row for scanID unless one exists.
func (s *Store) CreatePlaceholder(ctx context.Context, r *models.ScanResult) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "scan_id"}},
		DoNothing: true,
	}).Create(r).Error
	if err != nil {
		return fmt.Errorf("create placeholder %s: %w", r.ScanID, err)
	}
	return nil
}

// Get loads the row for scanID.
func (s *Store) Get(ctx context.Context, scanID string) (*models.ScanResult, error) {
	var r models.ScanResult
	err := s.db.WithContext(ctx).Where("scan_id = ?", scanID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan result %s: %w", scanID, err)
	}
	return &r, nil
}

// List returns results newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]models.ScanResult, error) {
	q := s.db.WithContext(ctx).Model(&models.ScanResult{}).Order("created_at DESC")
	if opts.Kind != "" {
		q = q.Where("kind = ?", opts.Kind)
	}
	if opts.UserID != "" {
		q = q.Where("user_id = ?", opts.UserID)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	var results []models.ScanResult
	if err := q.Find(&results).Error; err != nil {
		return nil, fmt.Errorf("list scan results: %w", err)
	}
	return results, nil
}

// Delete removes the row for scanID.
func (s *Store) Delete(ctx context.Context, scanID string) error {
	res := s.db.WithContext(ctx).Where("scan_id = ?", scanID).Delete(&models.ScanResult{})
	if res.Error != nil {
		return fmt.Errorf("delete scan result %s: %w", scanID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
