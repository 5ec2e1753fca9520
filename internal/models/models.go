// Package models contains all data models for the truthscan application
package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AllModels returns a slice of all model types for database migrations
func AllModels() []interface{} {
	return []interface{}{
		&ScanResult{},
		&ScanJob{},
		&NewsArticle{},
		&NewsClaim{},
		&AuthorMatch{},
		&Song{},
	}
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

// ensureID assigns a random UUID when the row has none yet.
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
