package scans

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"truthscan/internal/media"
	"truthscan/internal/models"
	"truthscan/internal/notify"
	"truthscan/internal/pipeline"
	"truthscan/internal/queue"
	"truthscan/internal/store"
	"truthscan/internal/testsupport"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db     *gorm.DB
	svc    *Service
	broker *queue.Broker
	store  *store.Store
	hub    *notify.Hub
	dir    string
}

func newFixture(t *testing.T, precreate bool) *fixture {
	t.Helper()
	db := testsupport.MigratedDB(t)
	f := &fixture{
		db:     db,
		broker: queue.NewBroker(db),
		store:  store.New(db),
		hub:    notify.NewHub(),
		dir:    t.TempDir(),
	}
	f.svc = NewService(f.broker, f.store, f.hub, Config{
		Queue:         "analysis_queue",
		UploadDir:     f.dir,
		PrecreateRows: precreate,
		MaxWait:       time.Second,
	}, zerolog.Nop())
	return f
}

func completeJob(t *testing.T, f *fixture, scanID string, fail bool) {
	t.Helper()
	ctx := context.Background()
	job, err := f.broker.Claim(ctx, "analysis_queue", "test")
	require.NoError(t, err)
	require.NotNil(t, job)
	require.Equal(t, scanID, job.Key)
	if fail {
		_, err = f.broker.Fail(ctx, job, errors.New("persistence failed"))
		require.NoError(t, err)
		return
	}
	score := 80.0
	summary := "ok"
	require.NoError(t, f.store.Upsert(ctx, &models.ScanResult{ScanID: scanID, Kind: models.ScanKindText, Text: "x", Score: &score, TruthSummary: &summary}))
	require.NoError(t, f.broker.Complete(ctx, job))
}

func TestSubmitTextEnqueues(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	user := "user-9"

	scanID, err := f.svc.SubmitText(ctx, TextSubmission{Text: "  Water boils at 100C.  ", UserID: &user})
	require.NoError(t, err)
	assert.NotEmpty(t, scanID)

	job, err := f.broker.Status(ctx, scanID)
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeTextScan, job.Type)
	var payload pipeline.TextJob
	require.NoError(t, queue.DecodePayload(job, &payload))
	assert.Equal(t, "Water boils at 100C.", payload.Text)
	assert.Equal(t, "user-9", *payload.UserID)

	row, err := f.store.Get(ctx, scanID)
	require.NoError(t, err)
	assert.True(t, row.IsPlaceholder())
}

func TestSubmitTextValidation(t *testing.T) {
	f := newFixture(t, true)
	_, err := f.svc.SubmitText(context.Background(), TextSubmission{Text: "   "})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestSubmitTextWithCallerScanID(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	scanID, err := f.svc.SubmitText(ctx, TextSubmission{Text: "hello", ScanID: "client-id"})
	require.NoError(t, err)
	assert.Equal(t, "client-id", scanID)

	_, err = f.store.Get(ctx, scanID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.SubmitText(ctx, TextSubmission{Text: "again", ScanID: "client-id"})
	assert.ErrorIs(t, err, queue.ErrJobExists)
}

func TestSubmitMedia(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	scanID, err := f.svc.SubmitMedia(ctx, MediaSubmission{Caption: "a cat", Filename: "cat.JPG", Body: strings.NewReader("jpeg bytes")})
	require.NoError(t, err)

	job, err := f.broker.Status(ctx, scanID)
	require.NoError(t, err)
	var payload pipeline.MediaJob
	require.NoError(t, queue.DecodePayload(job, &payload))
	assert.Equal(t, "a cat", payload.Caption)
	assert.NotEmpty(t, payload.MediaHash)
	assert.Equal(t, ".jpg", filepath.Ext(payload.MediaPath))

	data, err := os.ReadFile(payload.MediaPath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg bytes", string(data))
	assert.True(t, strings.HasPrefix(filepath.Base(filepath.Dir(payload.MediaPath)), media.UploadDirPrefix))
}

func TestSubmitMediaRunsOnce(t *testing.T) {
	f := newFixture(t, true)
	f.svc.cfg.MaxAttempts = 3
	ctx := context.Background()

	scanID, err := f.svc.SubmitMedia(ctx, MediaSubmission{Caption: "a cat", Filename: "cat.png", Body: strings.NewReader("png bytes")})
	require.NoError(t, err)
	job, err := f.broker.Claim(ctx, "analysis_queue", "w")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, 1, job.MaxAttempts)

	status, err := f.broker.Fail(ctx, job, errors.New("vision timeout"))
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, status)

	res, err := f.svc.Poll(ctx, scanID, models.ScanKindMedia)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)

	textID, err := f.svc.SubmitText(ctx, TextSubmission{Text: "x"})
	require.NoError(t, err)
	textJob, err := f.broker.Status(ctx, textID)
	require.NoError(t, err)
	assert.Equal(t, 3, textJob.MaxAttempts)
}

func TestSubmitMediaValidation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, err := f.svc.SubmitMedia(ctx, MediaSubmission{Caption: "", Filename: "a.jpg", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrEmptyCaption)

	_, err = f.svc.SubmitMedia(ctx, MediaSubmission{Caption: "doc", Filename: "a.pdf", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, media.ErrUnsupportedMedia)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSubmitDoesNotWaitForPipeline(t *testing.T) {
	f := newFixture(t, true)
	start := time.Now()
	_, err := f.svc.SubmitText(context.Background(), TextSubmission{Text: "slow pipeline"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPollStates(t *testing.T) {
	for _, precreate := range []bool{true, false} {
		f := newFixture(t, precreate)
		ctx := context.Background()

		res, err := f.svc.Poll(ctx, "never-submitted", "")
		require.NoError(t, err)
		assert.Equal(t, StateNotFound, res.State)
		assert.Nil(t, res.Result)

		scanID, err := f.svc.SubmitText(ctx, TextSubmission{Text: "x"})
		require.NoError(t, err)
		res, err = f.svc.Poll(ctx, scanID, models.ScanKindText)
		require.NoError(t, err)
		assert.Equal(t, StateInProgress, res.State)
		assert.Nil(t, res.Result)

		res, err = f.svc.Poll(ctx, scanID, models.ScanKindMedia)
		require.NoError(t, err)
		assert.Equal(t, StateNotFound, res.State)

		completeJob(t, f, scanID, false)
		res, err = f.svc.Poll(ctx, scanID, models.ScanKindText)
		require.NoError(t, err)
		assert.Equal(t, StateCompleted, res.State)
		require.NotNil(t, res.Result)
		assert.Equal(t, 80.0, *res.Result.Score)
	}
}

func TestPollFailed(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	scanID, err := f.svc.SubmitText(ctx, TextSubmission{Text: "x"})
	require.NoError(t, err)
	completeJob(t, f, scanID, true)

	res, err := f.svc.Poll(ctx, scanID, "")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "persistence failed", res.Error)
}

func TestWaitWakesOnNotification(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	scanID, err := f.svc.SubmitText(ctx, TextSubmission{Text: "x"})
	require.NoError(t, err)

	go func() {
		for f.hub.Subscribers(scanID) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		completeJob(t, f, scanID, false)
		f.hub.Publish(notify.Event{ScanID: scanID, Status: string(models.JobFinished)})
	}()

	res, err := f.svc.Wait(ctx, scanID, "", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateCompleted, res.State)
}

func TestWaitTimesOut(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	scanID, err := f.svc.SubmitText(ctx, TextSubmission{Text: "x"})
	require.NoError(t, err)

	start := time.Now()
	res, err := f.svc.Wait(ctx, scanID, "", 200*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, res.State)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDelete(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Delete(ctx, "missing"), ErrNotFound)

	scanID, err := f.svc.SubmitText(ctx, TextSubmission{Text: "x"})
	require.NoError(t, err)
	job, err := f.broker.Claim(ctx, "analysis_queue", "w")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Delete(ctx, scanID), ErrScanRunning)

	require.NoError(t, f.broker.Complete(ctx, job))
	require.NoError(t, f.svc.Delete(ctx, scanID))

	res, err := f.svc.Poll(ctx, scanID, "")
	require.NoError(t, err)
	assert.Equal(t, StateNotFound, res.State)
}

func TestRescan(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.Rescan(ctx, "missing"), ErrNotFound)

	scanID, err := f.svc.SubmitText(ctx, TextSubmission{Text: "x"})
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Rescan(ctx, scanID), queue.ErrJobExists)

	completeJob(t, f, scanID, false)
	require.NoError(t, f.svc.Rescan(ctx, scanID))

	job, err := f.broker.Status(ctx, scanID)
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeRescan, job.Type)
	assert.Equal(t, models.JobQueued, job.Status)
}

func TestRescanMediaNeedsStoredReport(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.store.CreatePlaceholder(ctx, &models.ScanResult{ScanID: "m1", Kind: models.ScanKindMedia}))

	assert.ErrorIs(t, f.svc.Rescan(ctx, "m1"), pipeline.ErrNothingToRescan)
}

func TestSubmitRollsBackPlaceholderWhenEnqueueFails(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	require.NoError(t, f.db.Migrator().DropTable(&models.ScanJob{}))

	_, err := f.svc.SubmitText(ctx, TextSubmission{ScanID: "orphan-1", Text: "x"})
	require.Error(t, err)

	_, err = f.store.Get(ctx, "orphan-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.db.AutoMigrate(&models.ScanJob{}))
	res, err := f.svc.Poll(ctx, "orphan-1", "")
	require.NoError(t, err)
	assert.Equal(t, StateNotFound, res.State)
}

func TestPollPlaceholderWithoutLiveJob(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	require.NoError(t, f.store.CreatePlaceholder(ctx, &models.ScanResult{ScanID: "stray", Kind: models.ScanKindText}))
	res, err := f.svc.Poll(ctx, "stray", models.ScanKindText)
	require.NoError(t, err)
	assert.Equal(t, StateNotFound, res.State)

	scanID, err := f.svc.SubmitText(ctx, TextSubmission{Text: "x"})
	require.NoError(t, err)
	job, err := f.broker.Claim(ctx, "analysis_queue", "w")
	require.NoError(t, err)
	require.NoError(t, f.broker.Complete(ctx, job))

	res, err = f.svc.Poll(ctx, scanID, "")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, ErrNoResult.Error(), res.Error)
}
