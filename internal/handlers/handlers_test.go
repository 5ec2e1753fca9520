package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"truthscan/internal/auth"
	"truthscan/internal/fingerprint"
	"truthscan/internal/lazy"
	"truthscan/internal/models"
	"truthscan/internal/music"
	"truthscan/internal/news"
	"truthscan/internal/notify"
	"truthscan/internal/queue"
	"truthscan/internal/scans"
	"truthscan/internal/store"
	"truthscan/internal/testsupport"
	"truthscan/internal/transcribe"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testQueue = "analysis_queue"

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	return f.text, f.err
}

type fakeTrigger struct {
	accept bool
	calls  int
}

func (f *fakeTrigger) TriggerNewsSweep() bool {
	f.calls++
	return f.accept
}

type fakeStatus struct{}

func (fakeStatus) GetStatus() map[string]interface{} {
	return map[string]interface{}{"running": true}
}

type testServer struct {
	engine   *gin.Engine
	db       *gorm.DB
	broker   *queue.Broker
	store    *store.Store
	verifier *auth.Verifier
	trigger  *fakeTrigger
	docsDir  string
}

func newTestServer(t *testing.T, authors []fingerprint.Author, transcriber transcribe.Transcriber) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testsupport.MigratedDB(t)
	broker := queue.NewBroker(db)
	st := store.New(db)
	logger := zerolog.Nop()
	svc := scans.NewService(broker, st, notify.NewHub(), scans.Config{
		Queue:         testQueue,
		UploadDir:     t.TempDir(),
		PrecreateRows: true,
		MaxWait:       time.Second,
	}, logger)

	verifier := auth.NewVerifier("test-secret")
	trigger := &fakeTrigger{accept: true}
	docsDir := t.TempDir()
	studio := music.NewStudio(db, nil, nil, nil, nil, news.NewRepository(db), music.StudioConfig{SongsDir: t.TempDir()}, logger)

	rt := &Router{
		Scans:       NewScanHandler(svc, verifier, []string{"*"}, logger),
		Admin:       NewAdminHandler(svc, trigger, "pw", logger),
		Authors:     NewAuthorHandler(db, authors, lazy.ReadyValue("transcription", transcriber), t.TempDir(), logger),
		News:        NewNewsHandler(news.NewRepository(db)),
		Music:       NewMusicHandler(studio, logger),
		Docs:        NewDocsHandler(docsDir),
		Health:      NewHealthHandler(fakeStatus{}),
		CORSOrigins: []string{"*"},
	}
	return &testServer{
		engine:   rt.Engine(),
		db:       db,
		broker:   broker,
		store:    st,
		verifier: verifier,
		trigger:  trigger,
		docsDir:  docsDir,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path string, body interface{}) *http.Request {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func multipartRequest(t *testing.T, path string, fields map[string]string, fileField, fileName string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestHealthAndWorkerStatus(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})

	w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/api/worker/status", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"running": true}, decode(t, w)["worker_status"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})
	req := httptest.NewRequest(http.MethodOptions, "/analyze-text", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	w := s.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTextScanLifecycle(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})

	w := s.do(jsonRequest(http.MethodPost, "/analyze-text", gin.H{"text": "The moon is made of cheese.", "scan_id": "text-1"}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "text-1", decode(t, w)["scan_id"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/text-scan-results/text-1", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "Analysis in progress. Keep polling.", decode(t, w)["status"])

	// A text scan is not visible through the media result endpoint.
	w = s.do(httptest.NewRequest(http.MethodGet, "/scan-results/text-1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	summary := "The moon is rock."
	score := 0.0
	require.NoError(t, s.store.Upsert(context.Background(), &models.ScanResult{
		ScanID:       "text-1",
		Kind:         models.ScanKindText,
		Text:         "The moon is made of cheese.",
		TruthSummary: &summary,
		Score:        &score,
	}))

	w = s.do(httptest.NewRequest(http.MethodGet, "/text-scan-results/text-1?wait=2", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, summary, body["truth_summary"])
	assert.Equal(t, "text-1", body["scan_id"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/text-scans", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var rows []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)

	w = s.do(jsonRequest(http.MethodPost, "/analyze-text", gin.H{"text": "again", "scan_id": "text-1"}))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAnalyzeTextValidation(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})

	w := s.do(jsonRequest(http.MethodPost, "/analyze-text", gin.H{"text": "   "}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/analyze-text", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w = s.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeTextBearerUserWins(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})
	token, err := s.verifier.Sign("token-user", time.Hour)
	require.NoError(t, err)

	req := jsonRequest(http.MethodPost, "/analyze-text", gin.H{"text": "claim", "scan_id": "bearer-1", "user_id": "body-user"})
	req.Header.Set("Authorization", "Bearer "+token)
	w := s.do(req)
	require.Equal(t, http.StatusAccepted, w.Code)

	row, err := s.store.Get(context.Background(), "bearer-1")
	require.NoError(t, err)
	require.NotNil(t, row.UserID)
	assert.Equal(t, "token-user", *row.UserID)

	w = s.do(jsonRequest(http.MethodPost, "/analyze-text", gin.H{"text": "claim", "scan_id": "body-1", "user_id": "body-user"}))
	require.Equal(t, http.StatusAccepted, w.Code)
	row, err = s.store.Get(context.Background(), "body-1")
	require.NoError(t, err)
	require.NotNil(t, row.UserID)
	assert.Equal(t, "body-user", *row.UserID)

	w = s.do(httptest.NewRequest(http.MethodGet, "/text-scans?user_id=body-user", nil))
	var rows []models.ScanResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "body-1", rows[0].ScanID)
}

func TestAnalyzePost(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})

	w := s.do(multipartRequest(t, "/analyze-post", map[string]string{"caption": "a woman exercising"}, "media", "photo.jpg", []byte("jpeg")))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Analysis job submitted.", body["message"])
	scanID, _ := body["scan_id"].(string)
	require.NotEmpty(t, scanID)

	job, err := s.broker.Status(context.Background(), scanID)
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeMediaScan, job.Type)

	w = s.do(httptest.NewRequest(http.MethodGet, "/scan-results/"+scanID, nil))
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/post-scans", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var rows []models.ScanResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "a woman exercising", rows[0].Caption)
}

func TestAnalyzePostRejectsBadInput(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})

	w := s.do(multipartRequest(t, "/analyze-post", map[string]string{"caption": "x"}, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(multipartRequest(t, "/analyze-post", map[string]string{"caption": "x"}, "media", "notes.txt", []byte("hi")))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = s.do(multipartRequest(t, "/analyze-post", map[string]string{"caption": " "}, "media", "clip.mp4", []byte("mp4")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScanResultsFailedAndMissing(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})
	ctx := context.Background()

	w := s.do(httptest.NewRequest(http.MethodGet, "/scan-results/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(jsonRequest(http.MethodPost, "/analyze-text", gin.H{"text": "x", "scan_id": "doomed"}))
	require.Equal(t, http.StatusAccepted, w.Code)
	job, err := s.broker.Claim(ctx, testQueue, "w1")
	require.NoError(t, err)
	require.NotNil(t, job)
	status, err := s.broker.Fail(ctx, job, errors.New("database exploded"))
	require.NoError(t, err)
	require.Equal(t, models.JobFailed, status)

	w = s.do(httptest.NewRequest(http.MethodGet, "/text-scan-results/doomed", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Analysis job failed.", body["error"])
	assert.Contains(t, body["details"], "database exploded")
}

func adminRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.SetBasicAuth("admin", "pw")
	return req
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})
	ctx := context.Background()

	w := s.do(httptest.NewRequest(http.MethodDelete, "/admin/scans/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(adminRequest(http.MethodDelete, "/admin/scans/x"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(jsonRequest(http.MethodPost, "/analyze-text", gin.H{"text": "x", "scan_id": "t-1"}))
	require.Equal(t, http.StatusAccepted, w.Code)

	// Still queued: a rescan cannot be stacked on top.
	w = s.do(adminRequest(http.MethodPost, "/admin/scans/t-1/rescan"))
	assert.Equal(t, http.StatusConflict, w.Code)

	job, err := s.broker.Claim(ctx, testQueue, "w1")
	require.NoError(t, err)
	require.NoError(t, s.broker.Complete(ctx, job))

	w = s.do(adminRequest(http.MethodPost, "/admin/scans/t-1/rescan"))
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	job, err = s.broker.Status(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeRescan, job.Type)

	w = s.do(adminRequest(http.MethodPost, "/admin/scans/missing/rescan"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	job, err = s.broker.Claim(ctx, testQueue, "w1")
	require.NoError(t, err)
	w = s.do(adminRequest(http.MethodDelete, "/admin/scans/t-1"))
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NoError(t, s.broker.Complete(ctx, job))

	w = s.do(adminRequest(http.MethodDelete, "/admin/scans/t-1"))
	assert.Equal(t, http.StatusOK, w.Code)
	_, err = s.store.Get(ctx, "t-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	w = s.do(adminRequest(http.MethodPost, "/admin/news/collect"))
	assert.Equal(t, http.StatusAccepted, w.Code)
	s.trigger.accept = false
	w = s.do(adminRequest(http.MethodPost, "/admin/news/collect"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, 2, s.trigger.calls)
}

var testAuthors = []fingerprint.Author{
	{Name: "Ada", Samples: []string{"the analytical engine weaves algebraic patterns"}},
	{Name: "Grace", Samples: []string{"compilers translate programs into machine code"}},
}

func TestMatchAuthor(t *testing.T) {
	s := newTestServer(t, testAuthors, fakeTranscriber{})

	w := s.do(jsonRequest(http.MethodPost, "/match-author", gin.H{"text": "the analytical engine weaves algebraic patterns"}))
	require.Equal(t, http.StatusOK, w.Code)
	matched := decode(t, w)["matched_author"].(map[string]interface{})
	assert.Equal(t, "Ada", matched["author"])
	assert.InDelta(t, 1.0, matched["confidence"], 1e-6)

	w = s.do(jsonRequest(http.MethodPost, "/match-author", gin.H{"text": ""}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestMatchAuthorWithoutFingerprints(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})

	w := s.do(jsonRequest(http.MethodPost, "/match-author", gin.H{"text": "anything"}))
	require.Equal(t, http.StatusOK, w.Code)
	matched := decode(t, w)["matched_author"].(map[string]interface{})
	assert.Nil(t, matched["author"])
	assert.Equal(t, fingerprint.ErrNoFingerprints.Error(), matched["error"])
}

func TestUploadAudioRecordsMatch(t *testing.T) {
	s := newTestServer(t, testAuthors, fakeTranscriber{text: "compilers translate programs into machine code"})

	w := s.do(multipartRequest(t, "/upload-audio", nil, "file", "talk.mp3", []byte("mp3")))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Grace", body["author"])
	assert.Equal(t, "compilers translate programs into machine code", body["transcript"])
	assert.NotContains(t, body, "save_error")

	var matches []models.AuthorMatch
	require.NoError(t, s.db.Find(&matches).Error)
	require.Len(t, matches, 1)
	assert.Equal(t, "Grace", matches[0].MatchedAuthor)
}

func TestUploadAudioTranscriptionFailure(t *testing.T) {
	s := newTestServer(t, testAuthors, fakeTranscriber{err: errors.New("model missing")})

	w := s.do(multipartRequest(t, "/upload-audio", nil, "file", "talk.mp3", []byte("mp3")))
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w = s.do(multipartRequest(t, "/upload-audio", nil, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamTranscription(t *testing.T) {
	s := newTestServer(t, testAuthors, fakeTranscriber{text: " the analytical engine weaves algebraic patterns "})

	w := s.do(multipartRequest(t, "/generate_transcription/stream", nil, "file", "talk", []byte("mp3")))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t,
		"event:message\ndata:Quick Transcript: the analytical engine weaves algebraic patterns\n\n"+
			"event:message\ndata:Author: Ada (100.0%)\n\n"+
			"event:message\ndata:[DONE]\n\n",
		w.Body.String())
}

func TestStreamTranscriptionMultilineTranscript(t *testing.T) {
	s := newTestServer(t, testAuthors, fakeTranscriber{text: "first line\nevent: injected\ndata: spoofed"})

	w := s.do(multipartRequest(t, "/generate_transcription/stream", nil, "file", "talk", []byte("mp3")))
	require.Equal(t, http.StatusOK, w.Code)

	frames := strings.Split(strings.TrimSuffix(w.Body.String(), "\n\n"), "\n\n")
	require.Len(t, frames, 3)
	assert.Equal(t,
		"event:message\ndata:Quick Transcript: first line\ndata:event: injected\ndata:data: spoofed",
		frames[0])
	assert.Equal(t, "event:message\ndata:[DONE]", frames[2])
	for _, line := range strings.Split(w.Body.String(), "\n") {
		if line == "" || line == "event:message" {
			continue
		}
		assert.True(t, strings.HasPrefix(line, "data:"), "unexpected field line %q", line)
	}
}

func TestNewsRoutes(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})
	article := models.NewsArticle{Title: "Rates held", SourceURL: "https://news.example/rates", Bias: "center", TrustScore: 0.5}
	require.NoError(t, s.db.Create(&article).Error)
	require.NoError(t, s.db.Create(&models.NewsClaim{ArticleID: article.ID, ClaimText: "Rates were held", ClaimType: "factual"}).Error)

	w := s.do(httptest.NewRequest(http.MethodGet, "/news?bias=center", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/news?bias=left", nil))
	assert.EqualValues(t, 0, decode(t, w)["count"])

	w = s.do(httptest.NewRequest(http.MethodGet, "/news/"+article.ID.String()+"/claims", nil))
	require.Equal(t, http.StatusOK, w.Code)
	claims := decode(t, w)["claims"].([]interface{})
	require.Len(t, claims, 1)

	w = s.do(httptest.NewRequest(http.MethodGet, "/news/not-a-uuid/claims", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(httptest.NewRequest(http.MethodGet, "/news/00000000-0000-0000-0000-000000000001/claims", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMusicValidation(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})

	w := s.do(jsonRequest(http.MethodPost, "/news-to-lyrics", gin.H{}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Missing news_id", decode(t, w)["error"])

	w = s.do(httptest.NewRequest(http.MethodPost, "/news-to-lyrics?news_id=bogus", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(jsonRequest(http.MethodPost, "/news-to-lyrics", gin.H{"news_id": "00000000-0000-0000-0000-000000000001"}))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(jsonRequest(http.MethodPost, "/news-to-song", gin.H{"style": "Jazz"}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(multipartRequest(t, "/api/split-stems", nil, "", "", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/songs-history", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDocs(t *testing.T) {
	s := newTestServer(t, nil, fakeTranscriber{})
	require.NoError(t, os.WriteFile(filepath.Join(s.docsDir, "README.md"), []byte("# TruthScan\n\nHello"), 0o644))

	w := s.do(httptest.NewRequest(http.MethodGet, "/doc/README", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<h1 id="truthscan">TruthScan</h1>`)
	assert.Contains(t, w.Body.String(), "<title>Project Overview - TruthScan</title>")

	w = s.do(httptest.NewRequest(http.MethodGet, "/doc/API", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(httptest.NewRequest(http.MethodGet, "/doc/secrets", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
