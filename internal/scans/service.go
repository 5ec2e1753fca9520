// Package scans accepts scan submissions and answers polls. Submission only
// stores the upload and enqueues a job; the pipeline runs in queue workers.
package scans

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"truthscan/internal/media"
	"truthscan/internal/models"
	"truthscan/internal/notify"
	"truthscan/internal/pipeline"
	"truthscan/internal/queue"
	"truthscan/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	// ErrEmptyText is returned for a text submission without text.
	ErrEmptyText = errors.New("text is required")
	// ErrEmptyCaption is returned for a media submission without a caption.
	ErrEmptyCaption = errors.New("caption is required")
	// ErrNotFound is returned when neither a result nor a job exists.
	ErrNotFound = errors.New("scan not found")
	// ErrScanRunning is returned when deleting a scan whose job is in flight.
	ErrScanRunning = errors.New("scan is still running")
	// ErrNoResult is reported when a job finished without writing its result.
	ErrNoResult = errors.New("analysis finished without a result")
)

// State is the externally visible progress of a scan.
type State string

const (
	StateCompleted  State = "completed"
	StateInProgress State = "in_progress"
	StateFailed     State = "failed"
	StateNotFound   State = "not_found"
)

// PollResult is the answer to a poll.
type PollResult struct {
	State  State              `json:"state"`
	Result *models.ScanResult `json:"result,omitempty"`
	Job    *models.ScanJob    `json:"job,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// Config tunes a Service.
type Config struct {
	Queue         string
	MaxAttempts   int
	UploadDir     string
	PrecreateRows bool
	MaxWait       time.Duration
}

// MediaSubmission is an uploaded media file with its caption.
type MediaSubmission struct {
	Caption  string
	Filename string
	Body     io.Reader
	UserID   *string
}

// TextSubmission is a free-text scan request. ScanID is optional.
type TextSubmission struct {
	Text   string
	ScanID string
	UserID *string
}

// Service coordinates submissions, the job broker and the result store.
type Service struct {
	broker *queue.Broker
	store  *store.Store
	hub    *notify.Hub
	cfg    Config
	logger zerolog.Logger
}

// NewService creates a Service.
func NewService(broker *queue.Broker, st *store.Store, hub *notify.Hub, cfg Config, logger zerolog.Logger) *Service {
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Service{broker: broker, store: st, hub: hub, cfg: cfg, logger: logger}
}

// SubmitMedia stores the upload and enqueues a media scan.
func (s *Service) SubmitMedia(ctx context.Context, sub MediaSubmission) (string, error) {
	caption := strings.TrimSpace(sub.Caption)
	if caption == "" {
		return "", ErrEmptyCaption
	}
	if !media.Supported(sub.Filename) {
		return "", fmt.Errorf("%w: %s", media.ErrUnsupportedMedia, sub.Filename)
	}

	upload, err := media.SaveUpload(s.cfg.UploadDir, sub.Filename, sub.Body)
	if err != nil {
		return "", err
	}

	scanID := uuid.NewString()
	job := pipeline.MediaJob{
		ScanID:    scanID,
		Caption:   caption,
		MediaPath: upload.Path,
		MediaHash: upload.Hash,
		UserID:    sub.UserID,
	}
	placeholder := &models.ScanResult{
		ScanID:    scanID,
		Kind:      models.ScanKindMedia,
		UserID:    sub.UserID,
		Caption:   caption,
		MediaHash: upload.Hash,
	}
	// The pipeline deletes the upload when it returns, so a media job never retries.
	if err := s.enqueue(ctx, scanID, models.JobTypeMediaScan, job, placeholder, 1); err != nil {
		if cleanupErr := media.Cleanup(upload.Path); cleanupErr != nil {
			s.logger.Warn().Err(cleanupErr).Str("scan_id", scanID).Msg("failed to remove upload")
		}
		return "", err
	}

	s.logger.Info().Str("scan_id", scanID).Str("file", sub.Filename).Int64("bytes", upload.Size).Msg("📥 Media scan queued")
	return scanID, nil
}

// SubmitText enqueues a text scan.
func (s *Service) SubmitText(ctx context.Context, sub TextSubmission) (string, error) {
	text := strings.TrimSpace(sub.Text)
	if text == "" {
		return "", ErrEmptyText
	}
	scanID := strings.TrimSpace(sub.ScanID)
	if scanID == "" {
		scanID = uuid.NewString()
	}

	job := pipeline.TextJob{ScanID: scanID, Text: text, UserID: sub.UserID}
	placeholder := &models.ScanResult{
		ScanID: scanID,
		Kind:   models.ScanKindText,
		UserID: sub.UserID,
		Text:   text,
	}
	if err := s.enqueue(ctx, scanID, models.JobTypeTextScan, job, placeholder, s.cfg.MaxAttempts); err != nil {
		return "", err
	}

	s.logger.Info().Str("scan_id", scanID).Int("chars", len(text)).Msg("📥 Text scan queued")
	return scanID, nil
}

// enqueue writes the placeholder row, when enabled, and the job in one
// transaction so a failed enqueue leaves no orphaned placeholder.
func (s *Service) enqueue(ctx context.Context, scanID, jobType string, payload interface{}, placeholder *models.ScanResult, attempts int) error {
	job := queue.Job{
		Queue:       s.cfg.Queue,
		Key:         scanID,
		Type:        jobType,
		Payload:     payload,
		MaxAttempts: attempts,
	}
	if !s.cfg.PrecreateRows {
		return s.broker.Enqueue(ctx, job)
	}
	return s.broker.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.store.WithTx(tx).CreatePlaceholder(ctx, placeholder); err != nil {
			return err
		}
		return s.broker.WithTx(tx).Enqueue(ctx, job)
	})
}

// Poll reports the state of a scan. kind restricts the lookup to one scan
// kind; an empty kind accepts both.
func (s *Service) Poll(ctx context.Context, scanID, kind string) (PollResult, error) {
	row, err := s.store.Get(ctx, scanID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return PollResult{}, err
	}
	if row != nil && kind != "" && row.Kind != kind {
		return PollResult{State: StateNotFound}, nil
	}
	if row != nil && !row.IsPlaceholder() {
		return PollResult{State: StateCompleted, Result: row}, nil
	}

	job, err := s.broker.Status(ctx, scanID)
	if err != nil && !errors.Is(err, queue.ErrJobNotFound) {
		return PollResult{}, err
	}
	if job != nil && kind != "" && !jobMatchesKind(job.Type, kind) {
		job = nil
	}

	// A placeholder only means in progress while a live job backs it.
	switch {
	case job == nil:
		return PollResult{State: StateNotFound}, nil
	case job.Status == models.JobFailed:
		return PollResult{State: StateFailed, Job: job, Error: job.Error}, nil
	case !job.Status.Terminal():
		return PollResult{State: StateInProgress, Job: job}, nil
	default:
		return PollResult{State: StateFailed, Job: job, Error: ErrNoResult.Error()}, nil
	}
}

func jobMatchesKind(jobType, kind string) bool {
	switch jobType {
	case models.JobTypeMediaScan:
		return kind == models.ScanKindMedia
	case models.JobTypeTextScan:
		return kind == models.ScanKindText
	default:
		return true
	}
}

// Wait polls until the scan leaves the in-progress state, ctx ends, or
// timeout elapses. The timeout is capped at the configured maximum.
func (s *Service) Wait(ctx context.Context, scanID, kind string, timeout time.Duration) (PollResult, error) {
	if timeout > s.cfg.MaxWait {
		timeout = s.cfg.MaxWait
	}
	if timeout <= 0 || s.hub == nil {
		return s.Poll(ctx, scanID, kind)
	}

	events, cancel := s.hub.Subscribe(scanID)
	defer cancel()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	// Fallback for completions whose notification never arrives.
	recheck := time.NewTicker(2 * time.Second)
	defer recheck.Stop()

	for {
		res, err := s.Poll(ctx, scanID, kind)
		if err != nil || res.State != StateInProgress {
			return res, err
		}
		select {
		case <-ctx.Done():
			return res, nil
		case <-deadline.C:
			return res, nil
		case <-events:
		case <-recheck.C:
		}
	}
}

// List returns stored results newest first.
func (s *Service) List(ctx context.Context, opts store.ListOptions) ([]models.ScanResult, error) {
	return s.store.List(ctx, opts)
}

// Delete removes a scan's result and job record.
func (s *Service) Delete(ctx context.Context, scanID string) error {
	job, err := s.broker.Status(ctx, scanID)
	if err != nil && !errors.Is(err, queue.ErrJobNotFound) {
		return err
	}
	if job != nil && job.Status == models.JobRunning {
		return ErrScanRunning
	}

	rowErr := s.store.Delete(ctx, scanID)
	if rowErr != nil && !errors.Is(rowErr, store.ErrNotFound) {
		return rowErr
	}
	if job != nil {
		if err := s.broker.Delete(ctx, scanID); err != nil {
			return err
		}
	}
	if job == nil && errors.Is(rowErr, store.ErrNotFound) {
		return ErrNotFound
	}
	s.logger.Info().Str("scan_id", scanID).Msg("🗑️ Scan deleted")
	return nil
}

// Rescan queues a re-analysis of a completed scan under the same scan_id.
func (s *Service) Rescan(ctx context.Context, scanID string) error {
	row, err := s.store.Get(ctx, scanID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if row.Kind == models.ScanKindMedia && len(row.RawResults) == 0 {
		return pipeline.ErrNothingToRescan
	}

	err = s.broker.Enqueue(ctx, queue.Job{
		Queue:       s.cfg.Queue,
		Key:         scanID,
		Type:        models.JobTypeRescan,
		Payload:     pipeline.RescanJob{ScanID: scanID},
		MaxAttempts: s.cfg.MaxAttempts,
	})
	if err != nil {
		return err
	}
	s.logger.Info().Str("scan_id", scanID).Msg("🔄 Rescan queued")
	return nil
}
