package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"truthscan/internal/models"
	"truthscan/internal/news"
	"truthscan/internal/queue"
	"truthscan/internal/testsupport"
	"truthscan/internal/workers"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int32
}

func (s *countingSweeper) Sweep(ctx context.Context) (news.SweepStats, error) {
	s.calls.Add(1)
	return news.SweepStats{}, nil
}

func TestWorkerServiceLifecycle(t *testing.T) {
	db := testsupport.MigratedDB(t)
	broker := queue.NewBroker(db)
	pool := queue.NewPool(broker, queue.PoolConfig{
		Queue:        "analysis_queue",
		Workers:      1,
		PollInterval: 10 * time.Millisecond,
	}, zerolog.Nop())
	var handled atomic.Int32
	pool.Handle(models.JobTypeTextScan, func(ctx context.Context, job *models.ScanJob) error {
		handled.Add(1)
		return nil
	})

	sweeper := &countingSweeper{}
	collector := workers.NewNewsCollectorWorker(sweeper, time.Hour, zerolog.Nop())
	ws := NewWorkerService(Options{Pool: pool, Collector: collector, Logger: zerolog.Nop()})

	assert.False(t, ws.TriggerNewsSweep())
	require.NoError(t, ws.Start(context.Background()))
	require.NoError(t, ws.Start(context.Background()))
	assert.True(t, ws.IsRunning())

	require.NoError(t, broker.Enqueue(context.Background(), queue.Job{
		Queue: "analysis_queue", Key: "scan-1", Type: models.JobTypeTextScan, Payload: map[string]string{"scan_id": "scan-1"},
	}))
	assert.Eventually(t, func() bool { return handled.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return sweeper.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.True(t, ws.TriggerNewsSweep())
	assert.Eventually(t, func() bool { return sweeper.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	status := ws.GetStatus()
	assert.Equal(t, true, status["running"])
	assert.Equal(t, true, status["queue_workers"])
	assert.Equal(t, false, status["notification_bridge"])
	assert.Contains(t, status, "uptime")
	assert.Contains(t, status, "news_collector_stats")
	assert.Eventually(t, func() bool {
		return ws.GetStatus()["queue"].(queue.Stats).Finished == 1
	}, time.Second, 10*time.Millisecond)

	ws.Stop()
	ws.Stop()
	assert.False(t, ws.IsRunning())
	assert.Equal(t, false, ws.GetStatus()["running"])
}

func TestWorkerServiceWithoutComponents(t *testing.T) {
	ws := NewWorkerService(Options{Logger: zerolog.Nop()})
	require.NoError(t, ws.Start(context.Background()))
	assert.False(t, ws.TriggerNewsSweep())
	status := ws.GetStatus()
	assert.Equal(t, false, status["news_collector"])
	assert.NotContains(t, status, "queue")
	ws.Stop()
}
