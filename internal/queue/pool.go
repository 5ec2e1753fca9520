package queue

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"truthscan/internal/models"

	"github.com/rs/zerolog"
)

// Handler runs one job. A returned error fails the job.
type Handler func(ctx context.Context, job *models.ScanJob) error

// FinishFunc is called after a job reaches a new status.
type FinishFunc func(job *models.ScanJob, status models.JobStatus)

// PoolConfig configures a Pool.
type PoolConfig struct {
	Queue        string
	Workers      int
	PollInterval time.Duration
	LeaseTimeout time.Duration
	WorkerPrefix string
}

// Stats are cumulative pool counters.
type Stats struct {
	Claimed   int64 `json:"claimed"`
	Finished  int64 `json:"finished"`
	Failed    int64 `json:"failed"`
	Retried   int64 `json:"retried"`
	Recovered int64 `json:"recovered"`
}

// Pool claims jobs from a Broker and dispatches them by type.
type Pool struct {
	broker   *Broker
	cfg      PoolConfig
	logger   zerolog.Logger
	handlers map[string]Handler
	onFinish FinishFunc

	claimed   atomic.Int64
	finished  atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
	recovered atomic.Int64

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// NewPool constructs a pool. Register handlers before Start.
func NewPool(broker *Broker, cfg PoolConfig, logger zerolog.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.LeaseTimeout <= 0 {
		cfg.LeaseTimeout = 15 * time.Minute
	}
	if cfg.WorkerPrefix == "" {
		cfg.WorkerPrefix = "worker"
	}
	return &Pool{
		broker:   broker,
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Handle registers h for jobs of the given type.
func (p *Pool) Handle(jobType string, h Handler) {
	p.handlers[jobType] = h
}

// OnFinish registers a callback for finished, failed and re-queued jobs.
func (p *Pool) OnFinish(fn FinishFunc) {
	p.onFinish = fn
}

// Stats returns a snapshot of the counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Claimed:   p.claimed.Load(),
		Finished:  p.finished.Load(),
		Failed:    p.failed.Load(),
		Retried:   p.retried.Load(),
		Recovered: p.recovered.Load(),
	}
}

// Start launches the workers and the stale lease janitor.
func (p *Pool) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)
		for i := 0; i < p.cfg.Workers; i++ {
			workerID := fmt.Sprintf("%s-%d", p.cfg.WorkerPrefix, i+1)
			p.wg.Add(1)
			go p.workerLoop(ctx, workerID)
		}
		p.wg.Add(1)
		go p.janitorLoop(ctx)
		p.logger.Info().Str("queue", p.cfg.Queue).Int("workers", p.cfg.Workers).Msg("✅ Worker pool started")
	})
}

// Stop cancels the workers and waits for in-flight jobs to return.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
		p.logger.Info().Str("queue", p.cfg.Queue).Msg("🛑 Worker pool stopped")
	})
}

func (p *Pool) workerLoop(ctx context.Context, workerID string) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		ran, err := p.RunOnce(ctx, workerID)
		if err != nil && ctx.Err() == nil {
			p.logger.Error().Err(err).Str("worker", workerID).Msg("❌ Claim failed")
		}
		if ran {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-p.broker.Wakeups():
		case <-ticker.C:
		}
	}
}

func (p *Pool) janitorLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.LeaseTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.broker.RecoverStale(ctx, p.cfg.LeaseTimeout)
			if err != nil {
				p.logger.Error().Err(err).Msg("❌ Stale job recovery failed")
				continue
			}
			if n > 0 {
				p.recovered.Add(n)
				p.logger.Warn().Int64("jobs", n).Msg("🔄 Recovered stale jobs")
			}
		}
	}
}

// RunOnce claims and runs at most one job. It reports whether a job ran.
func (p *Pool) RunOnce(ctx context.Context, workerID string) (bool, error) {
	job, err := p.broker.Claim(ctx, p.cfg.Queue, workerID)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}
	p.claimed.Add(1)

	log := p.logger.With().Str("job", job.Key).Str("type", job.Type).Str("worker", workerID).Int("attempt", job.Attempts).Logger()
	log.Info().Msg("🔄 Running job")

	// Handlers outlive a pool shutdown long enough to record their result.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.LeaseTimeout)
	defer cancel()

	start := time.Now()
	runErr := p.run(jobCtx, job)
	if runErr == nil {
		if err := p.broker.Complete(jobCtx, job); err != nil {
			log.Error().Err(err).Msg("❌ Could not mark job finished")
			return true, nil
		}
		p.finished.Add(1)
		log.Info().Dur("took", time.Since(start)).Msg("✅ Job finished")
		p.finish(job, models.JobFinished)
		return true, nil
	}

	status, err := p.broker.Fail(jobCtx, job, runErr)
	if err != nil {
		log.Error().Err(err).AnErr("cause", runErr).Msg("❌ Could not record job failure")
		return true, nil
	}
	if status == models.JobQueued {
		p.retried.Add(1)
		log.Warn().Err(runErr).Msg("🔄 Job failed, queued for retry")
	} else {
		p.failed.Add(1)
		log.Error().Err(runErr).Msg("❌ Job failed")
	}
	p.finish(job, status)
	return true, nil
}

func (p *Pool) run(ctx context.Context, job *models.ScanJob) (err error) {
	h, ok := p.handlers[job.Type]
	if !ok {
		return fmt.Errorf("no handler for job type %q", job.Type)
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("job", job.Key).Bytes("stack", debug.Stack()).Msgf("job panicked: %v", r)
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return h(ctx, job)
}

func (p *Pool) finish(job *models.ScanJob, status models.JobStatus) {
	if p.onFinish != nil {
		p.onFinish(job, status)
	}
}
