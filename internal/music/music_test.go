package music

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"truthscan/internal/lazy"
	"truthscan/internal/models"
	"truthscan/internal/testsupport"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSunoClientRequiresKey(t *testing.T) {
	_, err := NewSunoClient(SunoConfig{}, nil)
	assert.Error(t, err)
}

func TestSunoClientEndpoints(t *testing.T) {
	var generated generatePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/generate":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&generated))
			w.Write([]byte(`{"code":200,"msg":"success","data":{"taskId":"task-1"}}`))
		case r.URL.Path == "/record-info/task-1":
			w.Write([]byte(`{"code":200,"data":{"status":"SUCCESS","response":{"sunoData":[{"id":"track-9"}]}}}`))
		case r.URL.Path == "/download/track-9":
			w.Write([]byte(`{"download_url":"https://cdn.example/track-9.mp3"}`))
		case r.URL.Path == "/lyrics/track-9":
			w.Write([]byte(`{"lyrics":"la la"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := NewSunoClient(SunoConfig{APIKey: "secret", BaseURL: srv.URL + "/", CallbackURL: "https://cb.example"}, srv.Client())
	require.NoError(t, err)
	ctx := context.Background()

	taskID, err := client.Generate(ctx, GenerateRequest{Prompt: "Rates held", Style: "Jazz", UseAILyrics: true})
	require.NoError(t, err)
	assert.Equal(t, "task-1", taskID)
	assert.Equal(t, "Rates held in the style of Jazz", generated.Prompt)
	assert.True(t, generated.CustomMode)
	assert.False(t, generated.Instrumental)
	assert.Equal(t, "V3_5", generated.Model)
	assert.Equal(t, "https://cb.example", generated.CallBackURL)

	status, err := client.Status(ctx, "task-1")
	require.NoError(t, err)
	require.Len(t, status.Songs, 1)
	assert.Equal(t, "track-9", status.Songs[0].ID)

	link, err := client.DownloadURL(ctx, "track-9")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/track-9.mp3", link)

	lyrics, err := client.Lyrics(ctx, "track-9")
	require.NoError(t, err)
	assert.Equal(t, "la la", lyrics)

	_, err = client.Lyrics(ctx, "missing")
	assert.Error(t, err)
}

func TestSunoGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "api error", body: `{"code":429,"msg":"credits exhausted"}`, want: "credits exhausted"},
		{name: "missing task id", body: `{"code":200,"data":{}}`, want: ErrNoTaskID.Error()},
		{name: "malformed", body: `not json`, want: "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client, err := NewSunoClient(SunoConfig{APIKey: "k", BaseURL: srv.URL}, srv.Client())
			require.NoError(t, err)

			_, err = client.Generate(context.Background(), GenerateRequest{Prompt: "x", Style: "y"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

type fakeGenerator struct {
	pending   int
	polls     int
	request   GenerateRequest
	noLyrics  bool
	statusErr error
}

func (f *fakeGenerator) Generate(ctx context.Context, r GenerateRequest) (string, error) {
	f.request = r
	return "task-1", nil
}

func (f *fakeGenerator) Status(ctx context.Context, taskID string) (TaskStatus, error) {
	f.polls++
	if f.statusErr != nil {
		return TaskStatus{}, f.statusErr
	}
	if f.polls <= f.pending {
		return TaskStatus{Status: "PENDING", Songs: []Track{{}}}, nil
	}
	return TaskStatus{Status: "SUCCESS", Songs: []Track{{ID: "track-1"}}}, nil
}

func (f *fakeGenerator) DownloadURL(ctx context.Context, trackID string) (string, error) {
	return "https://cdn.example/" + trackID + ".mp3", nil
}

func (f *fakeGenerator) Lyrics(ctx context.Context, trackID string) (string, error) {
	if f.noLyrics {
		return "", errors.New("lyrics not ready")
	}
	return "verse one", nil
}

type fakeWriter struct{ title, summary, genre string }

func (f *fakeWriter) GenerateLyrics(ctx context.Context, title, summary, genre string) (string, error) {
	f.title, f.summary, f.genre = title, summary, genre
	return "Yo, rates held steady", nil
}

type fakeVoice struct{ prompt, voice string }

func (f *fakeVoice) Speak(ctx context.Context, text, voice string) ([]byte, error) {
	f.prompt, f.voice = text, voice
	return []byte{0, 1, 2, 3}, nil
}

type fakeAudio struct {
	mixErr    error
	vocals    string
	beat      string
	mixedTo   string
	stemModel string
}

func (f *fakeAudio) Mix(ctx context.Context, vocalsPath, beatPath, outputPath string) error {
	if f.mixErr != nil {
		return f.mixErr
	}
	f.vocals, f.beat, f.mixedTo = vocalsPath, beatPath, outputPath
	if _, err := os.Stat(vocalsPath); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("mp3"), 0o644)
}

func (f *fakeAudio) SplitStems(ctx context.Context, model, inputPath, outputDir string) (map[string]string, error) {
	f.stemModel = model
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, name := range []string{"vocals", "drums"} {
		path := filepath.Join(outputDir, name+".wav")
		if err := os.WriteFile(path, []byte(name), 0o644); err != nil {
			return nil, err
		}
		out[name] = path
	}
	return out, nil
}

type fakeArticles struct{ article *models.NewsArticle }

func (f fakeArticles) Get(ctx context.Context, id uuid.UUID) (*models.NewsArticle, error) {
	if f.article == nil || f.article.ID != id {
		return nil, errors.New("news article not found")
	}
	return f.article, nil
}

func newTestStudio(t *testing.T, gen Generator, audio AudioTool, articles ArticleSource) (*Studio, *fakeWriter, *fakeVoice) {
	t.Helper()
	writer := &fakeWriter{}
	voice := &fakeVoice{}
	dir := t.TempDir()
	s := NewStudio(
		testsupport.MigratedDB(t),
		lazy.ReadyValue[Generator]("suno", gen),
		writer,
		lazy.ReadyValue[Voice]("gemini", voice),
		audio,
		articles,
		StudioConfig{
			SongsDir:     filepath.Join(dir, "songs"),
			StemsDir:     filepath.Join(dir, "stems"),
			BeatPath:     "beat.mp3",
			PollTimeout:  time.Minute,
			PollInterval: time.Millisecond,
		},
		zerolog.Nop(),
	)
	s.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return s, writer, voice
}

func TestNewsToSong(t *testing.T) {
	gen := &fakeGenerator{pending: 2}
	s, _, _ := newTestStudio(t, gen, &fakeAudio{}, fakeArticles{})

	result, err := s.NewsToSong(context.Background(), SongRequest{Summary: "Rates held"})
	require.NoError(t, err)

	assert.Equal(t, 3, gen.polls)
	assert.Equal(t, "Hip-Hop", gen.request.Style)
	assert.True(t, gen.request.UseAILyrics)
	assert.Equal(t, SongResult{
		TrackID:     "track-1",
		DownloadURL: "https://cdn.example/track-1.mp3",
		Lyrics:      "verse one",
		Style:       "Hip-Hop",
		Summary:     "Rates held",
	}, result)

	songs, err := s.Songs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, models.SongSourceSuno, songs[0].Source)
	assert.Equal(t, "task-1", songs[0].TaskID)
}

func TestNewsToSongLyricsDegrade(t *testing.T) {
	instrumental := false
	gen := &fakeGenerator{noLyrics: true}
	s, _, _ := newTestStudio(t, gen, &fakeAudio{}, fakeArticles{})

	result, err := s.NewsToSong(context.Background(), SongRequest{Summary: "x", Style: "Jazz", UseAILyrics: &instrumental})
	require.NoError(t, err)
	assert.Empty(t, result.Lyrics)
	assert.Equal(t, "Jazz", result.Style)
	assert.False(t, gen.request.UseAILyrics)
}

func TestNewsToSongTimesOut(t *testing.T) {
	gen := &fakeGenerator{statusErr: errors.New("gateway timeout")}
	s, _, _ := newTestStudio(t, gen, &fakeAudio{}, fakeArticles{})
	s.cfg.PollTimeout = 20 * time.Millisecond
	s.sleep = func(ctx context.Context, d time.Duration) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}

	_, err := s.NewsToSong(context.Background(), SongRequest{Summary: "x"})
	assert.ErrorIs(t, err, ErrGenerationTimeout)
	assert.Greater(t, gen.polls, 0)
}

func TestNewsToSongUnavailableClient(t *testing.T) {
	s, _, _ := newTestStudio(t, &fakeGenerator{}, &fakeAudio{}, fakeArticles{})
	s.suno = lazy.New[Generator]("suno", func() (Generator, error) {
		return nil, errors.New("SUNO_API_KEY is not set")
	})

	_, err := s.NewsToSong(context.Background(), SongRequest{Summary: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suno client unavailable")
}

func TestNewsToLyrics(t *testing.T) {
	article := &models.NewsArticle{ID: uuid.New(), Title: "Rates held", Summary: "The bank held rates."}
	audio := &fakeAudio{}
	s, writer, voice := newTestStudio(t, &fakeGenerator{}, audio, fakeArticles{article: article})

	result, err := s.NewsToLyrics(context.Background(), article.ID, "")
	require.NoError(t, err)

	songName := article.ID.String() + "_song.mp3"
	assert.Equal(t, LyricsResult{
		NewsID:  article.ID.String(),
		Genre:   "gangsta rap",
		Lyrics:  "Yo, rates held steady",
		SongURL: "/songs/" + songName,
	}, result)
	assert.Equal(t, "Rates held", writer.title)
	assert.Equal(t, "The bank held rates.", writer.summary)
	assert.Equal(t, "Sing/rap these lyrics in a cool, Kore style:\nYo, rates held steady", voice.prompt)
	assert.Equal(t, "beat.mp3", audio.beat)
	assert.FileExists(t, filepath.Join(s.cfg.SongsDir, songName))
	assert.NoFileExists(t, audio.vocals)

	songs, err := s.Songs(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, models.SongSourceLyrics, songs[0].Source)
	require.NotNil(t, songs[0].NewsID)
	assert.Equal(t, article.ID, *songs[0].NewsID)
}

func TestNewsToLyricsErrors(t *testing.T) {
	article := &models.NewsArticle{ID: uuid.New(), Title: "t"}
	s, _, _ := newTestStudio(t, &fakeGenerator{}, &fakeAudio{mixErr: errors.New("ffmpeg exploded")}, fakeArticles{article: article})

	_, err := s.NewsToLyrics(context.Background(), uuid.New(), "pop")
	assert.Error(t, err)

	_, err = s.NewsToLyrics(context.Background(), article.ID, "pop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to mix audio")
}

func TestSplitStems(t *testing.T) {
	audio := &fakeAudio{}
	s, _, _ := newTestStudio(t, &fakeGenerator{}, audio, fakeArticles{})

	result, err := s.SplitStems(context.Background(), "track.mp3", strings.NewReader("audio"))
	require.NoError(t, err)

	assert.Equal(t, "ok", result.Status)
	assert.Equal(t, "mdx_extra_q", result.Model)
	assert.Equal(t, "mdx_extra_q", audio.stemModel)
	assert.Equal(t, 2, result.NumStems)
	for _, name := range []string{"vocals", "drums"} {
		url := result.Stems[name]
		require.True(t, strings.HasPrefix(url, "/songs/"), url)
		assert.True(t, strings.HasSuffix(url, "_"+name+".wav"))
		assert.FileExists(t, filepath.Join(s.cfg.SongsDir, strings.TrimPrefix(url, "/songs/")))
	}

	entries, err := os.ReadDir(s.cfg.StemsDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
