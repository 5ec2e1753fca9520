package pipeline

import (
	"context"

	"truthscan/internal/models"
	"truthscan/internal/queue"
)

// Register installs the scan handlers on pool.
func (o *Orchestrator) Register(pool *queue.Pool) {
	pool.Handle(models.JobTypeMediaScan, o.handleMedia)
	pool.Handle(models.JobTypeTextScan, o.handleText)
	pool.Handle(models.JobTypeRescan, o.handleRescan)
}

func (o *Orchestrator) handleMedia(ctx context.Context, job *models.ScanJob) error {
	var payload MediaJob
	if err := queue.DecodePayload(job, &payload); err != nil {
		return err
	}
	if payload.ScanID == "" {
		payload.ScanID = job.Key
	}
	return o.RunMediaScan(ctx, payload)
}

func (o *Orchestrator) handleText(ctx context.Context, job *models.ScanJob) error {
	var payload TextJob
	if err := queue.DecodePayload(job, &payload); err != nil {
		return err
	}
	if payload.ScanID == "" {
		payload.ScanID = job.Key
	}
	return o.RunTextScan(ctx, payload)
}

func (o *Orchestrator) handleRescan(ctx context.Context, job *models.ScanJob) error {
	var payload RescanJob
	if err := queue.DecodePayload(job, &payload); err != nil {
		return err
	}
	if payload.ScanID == "" {
		payload.ScanID = job.Key
	}
	return o.Rescan(ctx, payload.ScanID)
}
