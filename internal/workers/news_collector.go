package workers

import (
	"context"
	"sync"
	"time"

	"truthscan/internal/news"

	"github.com/rs/zerolog"
)

// Sweeper runs one ingestion pass.
type Sweeper interface {
	Sweep(ctx context.Context) (news.SweepStats, error)
}

// NewsCollectorWorker runs the news sweep on a fixed interval
type NewsCollectorWorker struct {
	sweeper  Sweeper
	interval time.Duration
	logger   zerolog.Logger

	ticker   *time.Ticker
	trigger  chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu        sync.Mutex
	lastRun   time.Time
	lastStats news.SweepStats
	lastErr   string
	sweeps    int
	sweeping  bool
}

// NewNewsCollectorWorker creates a new news collector worker
func NewNewsCollectorWorker(sweeper Sweeper, interval time.Duration, logger zerolog.Logger) *NewsCollectorWorker {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &NewsCollectorWorker{
		sweeper:  sweeper,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs a sweep immediately and then every interval until ctx ends or Stop is called.
func (w *NewsCollectorWorker) Start(ctx context.Context) {
	w.ticker = time.NewTicker(w.interval)
	w.logger.Info().Dur("interval", w.interval).Msg("🔄 Starting news collector worker")

	go func() {
		defer close(w.done)
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-w.stopChan:
				cancel()
			case <-ctx.Done():
			}
		}()

		w.runSweep(ctx)
		for {
			select {
			case <-ctx.Done():
				w.logger.Info().Msg("🛑 News collector worker stopping")
				return
			case <-w.ticker.C:
				w.runSweep(ctx)
			case <-w.trigger:
				w.runSweep(ctx)
			}
		}
	}()
}

// Trigger requests an immediate sweep. It reports false when one is already pending.
func (w *NewsCollectorWorker) Trigger() bool {
	select {
	case w.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop stops the worker and waits for an in-flight sweep to return
func (w *NewsCollectorWorker) Stop() {
	w.stopOnce.Do(func() {
		if w.ticker != nil {
			w.ticker.Stop()
		}
		close(w.stopChan)
		if w.ticker != nil {
			<-w.done
		}
		w.logger.Info().Msg("✅ News collector worker stopped")
	})
}

func (w *NewsCollectorWorker) runSweep(ctx context.Context) {
	w.mu.Lock()
	w.sweeping = true
	w.mu.Unlock()

	stats, err := w.sweeper.Sweep(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.sweeping = false
	w.sweeps++
	w.lastRun = time.Now()
	w.lastStats = stats
	w.lastErr = ""
	if err != nil {
		w.lastErr = err.Error()
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("❌ Error in news sweep")
		}
	}
}

// GetStats returns the outcome of the latest sweep
func (w *NewsCollectorWorker) GetStats() NewsCollectorStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return NewsCollectorStats{
		Sweeps:    w.sweeps,
		Sweeping:  w.sweeping,
		LastRun:   w.lastRun,
		LastStats: w.lastStats,
		LastError: w.lastErr,
		Interval:  w.interval.String(),
	}
}

// NewsCollectorStats holds statistics about the collector
type NewsCollectorStats struct {
	Sweeps    int             `json:"sweeps"`
	Sweeping  bool            `json:"sweeping"`
	LastRun   time.Time       `json:"last_run"`
	LastStats news.SweepStats `json:"last_stats"`
	LastError string          `json:"last_error,omitempty"`
	Interval  string          `json:"interval"`
}
