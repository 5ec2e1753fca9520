// Package queue is a named job queue on the relational store. Job keys are
// caller supplied so a scan_id can be used to look up its job.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"truthscan/internal/database"
	"truthscan/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrJobExists is returned when a job with the same key is still queued or running.
	ErrJobExists = errors.New("job already queued")
	// ErrJobNotFound is returned for unknown keys.
	ErrJobNotFound = errors.New("job not found")
	// ErrNotClaimed is returned when completing a job the caller no longer holds.
	ErrNotClaimed = errors.New("job not held by this lease")
)

// Job describes work to enqueue.
type Job struct {
	Queue       string
	Key         string
	Type        string
	Payload     interface{}
	MaxAttempts int
}

// Broker stores and hands out jobs.
type Broker struct {
	db    *gorm.DB
	now   func() time.Time
	wakeC chan struct{}
}

// NewBroker creates a Broker over db.
func NewBroker(db *gorm.DB) *Broker {
	return &Broker{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		wakeC: make(chan struct{}, 1),
	}
}

// WithTx returns a Broker that runs its statements on tx. It does not wake
// workers itself; Transaction does once tx commits.
func (b *Broker) WithTx(tx *gorm.DB) *Broker {
	return &Broker{db: tx, now: b.now}
}

// Transaction runs fn in one database transaction and wakes idle workers
// after it commits.
func (b *Broker) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := b.db.WithContext(ctx).Transaction(fn); err != nil {
		return err
	}
	b.wake()
	return nil
}

func (b *Broker) wake() {
	if b.wakeC == nil {
		return
	}
	select {
	case b.wakeC <- struct{}{}:
	default:
	}
}

// Wakeups fires after a local Enqueue so idle workers can claim at once.
func (b *Broker) Wakeups() <-chan struct{} {
	return b.wakeC
}

// Enqueue adds a job. A finished or failed job with the same key is reset
// and queued again; a queued or running one yields ErrJobExists.
func (b *Broker) Enqueue(ctx context.Context, job Job) error {
	if job.Key == "" || job.Queue == "" || job.Type == "" {
		return errors.New("enqueue: queue, key and type are required")
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("enqueue %s: encode payload: %w", job.Key, err)
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	now := b.now()

	row := models.ScanJob{
		Key:         job.Key,
		Queue:       job.Queue,
		Type:        job.Type,
		Payload:     datatypes.JSON(payload),
		Status:      models.JobQueued,
		MaxAttempts: maxAttempts,
		EnqueuedAt:  now,
	}
	db := b.db.WithContext(ctx)
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return fmt.Errorf("enqueue %s: %w", job.Key, res.Error)
	}
	if res.RowsAffected == 0 {
		res = db.Model(&models.ScanJob{}).
			Where("key = ? AND status IN ?", job.Key, []string{string(models.JobFinished), string(models.JobFailed)}).
			Updates(map[string]interface{}{
				"queue":        job.Queue,
				"type":         job.Type,
				"payload":      datatypes.JSON(payload),
				"status":       string(models.JobQueued),
				"attempts":     0,
				"max_attempts": maxAttempts,
				"lease_token":  "",
				"worker_id":    "",
				"error":        "",
				"enqueued_at":  now,
				"started_at":   nil,
				"ended_at":     nil,
			})
		if res.Error != nil {
			return fmt.Errorf("enqueue %s: requeue: %w", job.Key, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrJobExists
		}
	}

	b.wake()
	return nil
}

// Status returns the job stored under key.
func (b *Broker) Status(ctx context.Context, key string) (*models.ScanJob, error) {
	var job models.ScanJob
	err := b.db.WithContext(ctx).Where("key = ?", key).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("job status %s: %w", key, err)
	}
	return &job, nil
}

// Claim atomically moves the oldest queued job in queueName to running and
// returns it with a fresh lease token. It returns nil when nothing is queued.
func (b *Broker) Claim(ctx context.Context, queueName, workerID string) (*models.ScanJob, error) {
	selectQuery := sq.Select("key").
		From(models.ScanJob{}.TableName()).
		Where(sq.Eq{"queue": queueName, "status": string(models.JobQueued)}).
		OrderBy("enqueued_at ASC").
		Limit(1)
	if database.IsPostgres(b.db) {
		selectQuery = selectQuery.Suffix("FOR UPDATE SKIP LOCKED")
	}
	query, args, err := selectQuery.ToSql()
	if err != nil {
		return nil, fmt.Errorf("claim: build query: %w", err)
	}

	var claimed *models.ScanJob
	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var keys []string
		if err := tx.Raw(query, args...).Scan(&keys).Error; err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}

		now := b.now()
		token := uuid.NewString()
		res := tx.Model(&models.ScanJob{}).
			Where("key = ? AND status = ?", keys[0], string(models.JobQueued)).
			Updates(map[string]interface{}{
				"status":      string(models.JobRunning),
				"lease_token": token,
				"worker_id":   workerID,
				"attempts":    gorm.Expr("attempts + 1"),
				"started_at":  now,
				"ended_at":    nil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var job models.ScanJob
		if err := tx.Where("key = ?", keys[0]).First(&job).Error; err != nil {
			return err
		}
		claimed = &job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim from %s: %w", queueName, err)
	}
	return claimed, nil
}

// Complete marks a held job finished. Only the current lease holder can
// complete it, so a job finishes at most once.
func (b *Broker) Complete(ctx context.Context, job *models.ScanJob) error {
	res := b.db.WithContext(ctx).Model(&models.ScanJob{}).
		Where("key = ? AND status = ? AND lease_token = ?", job.Key, string(models.JobRunning), job.LeaseToken).
		Updates(map[string]interface{}{
			"status":      string(models.JobFinished),
			"lease_token": "",
			"error":       "",
			"ended_at":    b.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("complete %s: %w", job.Key, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotClaimed
	}
	job.Status = models.JobFinished
	return nil
}

// Fail records cause on a held job. The job is queued again while attempts
// remain, otherwise it is marked failed. The resulting status is returned.
func (b *Broker) Fail(ctx context.Context, job *models.ScanJob, cause error) (models.JobStatus, error) {
	next := models.JobFailed
	if job.Attempts < job.MaxAttempts {
		next = models.JobQueued
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	updates := map[string]interface{}{
		"status":      string(next),
		"lease_token": "",
		"error":       msg,
	}
	if next == models.JobFailed {
		updates["ended_at"] = b.now()
	} else {
		updates["enqueued_at"] = b.now()
	}
	res := b.db.WithContext(ctx).Model(&models.ScanJob{}).
		Where("key = ? AND status = ? AND lease_token = ?", job.Key, string(models.JobRunning), job.LeaseToken).
		Updates(updates)
	if res.Error != nil {
		return "", fmt.Errorf("fail %s: %w", job.Key, res.Error)
	}
	if res.RowsAffected == 0 {
		return "", ErrNotClaimed
	}
	job.Status = next
	job.Error = msg
	return next, nil
}

// RecoverStale returns running jobs whose lease is older than maxAge to the
// queue, or fails them when no attempts remain.
func (b *Broker) RecoverStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := b.now().Add(-maxAge)
	db := b.db.WithContext(ctx)

	failed := db.Model(&models.ScanJob{}).
		Where("status = ? AND started_at < ? AND attempts >= max_attempts", string(models.JobRunning), cutoff).
		Updates(map[string]interface{}{
			"status":      string(models.JobFailed),
			"lease_token": "",
			"error":       "lease expired",
			"ended_at":    b.now(),
		})
	if failed.Error != nil {
		return 0, fmt.Errorf("recover stale: %w", failed.Error)
	}
	requeued := db.Model(&models.ScanJob{}).
		Where("status = ? AND started_at < ?", string(models.JobRunning), cutoff).
		Updates(map[string]interface{}{
			"status":      string(models.JobQueued),
			"lease_token": "",
			"error":       "lease expired",
			"enqueued_at": b.now(),
		})
	if requeued.Error != nil {
		return failed.RowsAffected, fmt.Errorf("recover stale: %w", requeued.Error)
	}
	return failed.RowsAffected + requeued.RowsAffected, nil
}

// Delete removes the job stored under key, if any.
func (b *Broker) Delete(ctx context.Context, key string) error {
	if err := b.db.WithContext(ctx).Where("key = ?", key).Delete(&models.ScanJob{}).Error; err != nil {
		return fmt.Errorf("delete job %s: %w", key, err)
	}
	return nil
}

// Counts returns the number of jobs per status in queueName.
func (b *Broker) Counts(ctx context.Context, queueName string) (map[models.JobStatus]int64, error) {
	var rows []struct {
		Status models.JobStatus
		Total  int64
	}
	err := b.db.WithContext(ctx).Model(&models.ScanJob{}).
		Select("status, COUNT(*) AS total").
		Where("queue = ?", queueName).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	counts := make(map[models.JobStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

// DecodePayload unmarshals the job payload into v.
func DecodePayload(job *models.ScanJob, v interface{}) error {
	if len(job.Payload) == 0 {
		return fmt.Errorf("job %s: empty payload", job.Key)
	}
	if err := json.Unmarshal(job.Payload, v); err != nil {
		return fmt.Errorf("job %s: decode payload: %w", job.Key, err)
	}
	return nil
}
