package worker

import (
	"context"
	"sync"
	"time"

	"truthscan/internal/notify"
	"truthscan/internal/queue"
	"truthscan/internal/workers"

	"github.com/rs/zerolog"
)

// Options selects the background components a process runs. Nil fields are skipped.
type Options struct {
	Pool      *queue.Pool
	Collector *workers.NewsCollectorWorker
	Bridge    *notify.Bridge
	Logger    zerolog.Logger
}

// WorkerService manages background workers for the application
type WorkerService struct {
	pool      *queue.Pool
	collector *workers.NewsCollectorWorker
	bridge    *notify.Bridge
	logger    zerolog.Logger

	restartDelay time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	startedAt time.Time
	mu        sync.RWMutex
}

// NewWorkerService creates a new worker service
func NewWorkerService(opts Options) *WorkerService {
	return &WorkerService{
		pool:         opts.Pool,
		collector:    opts.Collector,
		bridge:       opts.Bridge,
		logger:       opts.Logger,
		restartDelay: 30 * time.Second,
	}
}

// Start starts all configured background workers
func (ws *WorkerService) Start(parent context.Context) error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.running {
		return nil
	}

	ws.logger.Info().Msg("🚀 Starting background workers...")
	ws.ctx, ws.cancel = context.WithCancel(parent)

	if ws.pool != nil {
		ws.pool.Start(ws.ctx)
	}
	if ws.collector != nil {
		ws.collector.Start(ws.ctx)
	}
	if ws.bridge != nil {
		ws.wg.Add(1)
		go func() {
			defer ws.wg.Done()
			ws.runBridge()
		}()
	}

	ws.running = true
	ws.startedAt = time.Now()
	ws.logger.Info().Msg("✅ Background workers started")
	return nil
}

// Stop stops all background workers and waits for in-flight work
func (ws *WorkerService) Stop() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if !ws.running {
		return
	}

	ws.logger.Info().Msg("🛑 Stopping background workers...")
	ws.cancel()
	if ws.pool != nil {
		ws.pool.Stop()
	}
	if ws.collector != nil {
		ws.collector.Stop()
	}
	ws.wg.Wait()

	ws.running = false
	ws.logger.Info().Msg("✅ Background workers stopped")
}

// IsRunning returns whether the worker service is currently running
func (ws *WorkerService) IsRunning() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.running
}

// TriggerNewsSweep asks the collector for an immediate sweep. It reports
// false when no collector runs in this process or a sweep is already pending.
func (ws *WorkerService) TriggerNewsSweep() bool {
	if ws.collector == nil || !ws.IsRunning() {
		return false
	}
	return ws.collector.Trigger()
}

// runBridge keeps the notification listener alive, restarting it after errors.
func (ws *WorkerService) runBridge() {
	for {
		err := ws.bridge.Run(ws.ctx)
		if ws.ctx.Err() != nil {
			return
		}
		ws.logger.Error().Err(err).Dur("retry_in", ws.restartDelay).Msg("❌ Notification bridge stopped, restarting")
		select {
		case <-time.After(ws.restartDelay):
		case <-ws.ctx.Done():
			return
		}
	}
}

// GetStatus returns the current status of the worker service
func (ws *WorkerService) GetStatus() map[string]interface{} {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	status := map[string]interface{}{
		"running":             ws.running,
		"queue_workers":       ws.pool != nil,
		"news_collector":      ws.collector != nil,
		"notification_bridge": ws.bridge != nil,
	}
	if ws.running {
		status["uptime"] = time.Since(ws.startedAt).Round(time.Second).String()
	}
	if ws.pool != nil {
		status["queue"] = ws.pool.Stats()
	}
	if ws.collector != nil {
		status["news_collector_stats"] = ws.collector.GetStats()
	}
	return status
}
