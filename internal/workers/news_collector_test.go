package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"truthscan/internal/news"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(ctx context.Context) (news.SweepStats, error) {
	n := s.calls.Add(1)
	return news.SweepStats{Added: int(n)}, s.err
}

func TestNewsCollectorRunsImmediately(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewNewsCollectorWorker(sweeper, time.Hour, zerolog.Nop())
	w.Start(context.Background())
	defer w.Stop()

	assert.Eventually(t, func() bool { return w.GetStats().Sweeps == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, w.GetStats().LastStats.Added)
}

func TestNewsCollectorTrigger(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("feed down")}
	w := NewNewsCollectorWorker(sweeper, time.Hour, zerolog.Nop())
	w.Start(context.Background())

	assert.Eventually(t, func() bool { return w.GetStats().Sweeps == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, w.Trigger())
	assert.Eventually(t, func() bool { return w.GetStats().Sweeps == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "feed down", w.GetStats().LastError)

	w.Stop()
	w.Stop()
}

func TestNewsCollectorTicks(t *testing.T) {
	sweeper := &countingSweeper{}
	ctx, cancel := context.WithCancel(context.Background())
	w := NewNewsCollectorWorker(sweeper, 20*time.Millisecond, zerolog.Nop())
	w.Start(ctx)

	assert.Eventually(t, func() bool { return sweeper.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	w.Stop()
}
