package models

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus is the lifecycle state of a queued job
type JobStatus string

const (
	JobQueued   JobStatus = "queued"
	JobRunning  JobStatus = "running"
	JobFinished JobStatus = "finished"
	JobFailed   JobStatus = "failed"
)

// Terminal reports whether the job will not run again without a re-enqueue.
func (s JobStatus) Terminal() bool {
	return s == JobFinished || s == JobFailed
}

// Job types
const (
	JobTypeMediaScan = "media_scan"
	JobTypeTextScan  = "text_scan"
	JobTypeRescan    = "rescan"
)

// ScanJob is a unit of work in a named queue. Key doubles as the scan_id.
type ScanJob struct {
	Key         string         `json:"key" db:"key" gorm:"primaryKey;size:64"`
	Queue       string         `json:"queue" db:"queue" gorm:"index:idx_scan_jobs_queue_status;not null;size:64"`
	Type        string         `json:"type" db:"type" gorm:"not null;size:32"`
	Payload     datatypes.JSON `json:"payload" db:"payload"`
	Status      JobStatus      `json:"status" db:"status" gorm:"index:idx_scan_jobs_queue_status;not null;size:16"`
	Attempts    int            `json:"attempts" db:"attempts" gorm:"default:0"`
	MaxAttempts int            `json:"max_attempts" db:"max_attempts" gorm:"default:1"`
	LeaseToken  string         `json:"-" db:"lease_token" gorm:"size:64"`
	WorkerID    string         `json:"worker_id,omitempty" db:"worker_id" gorm:"size:128"`
	Error       string         `json:"error,omitempty" db:"error" gorm:"type:text"`
	EnqueuedAt  time.Time      `json:"enqueued_at" db:"enqueued_at" gorm:"index"`
	StartedAt   *time.Time     `json:"started_at" db:"started_at"`
	EndedAt     *time.Time     `json:"ended_at" db:"ended_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for the ScanJob model
func (ScanJob) TableName() string {
	return "scan_jobs"
}
