package transcribe

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"truthscan/internal/config"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRunner struct {
	output string
	err    error
	args   []string
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.args = append([]string{name}, args...)
	if r.err != nil {
		return nil, r.err
	}
	var outDir string
	for i, a := range args {
		if a == "--output_dir" {
			outDir = args[i+1]
		}
	}
	stem := filepath.Base(args[0])
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	if r.output != "" {
		if err := os.WriteFile(filepath.Join(outDir, stem+".json"), []byte(r.output), 0o644); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func TestWhisperXTranscribe(t *testing.T) {
	runner := &scriptedRunner{output: `{"segments":[{"text":" Hello there.","start":0.5,"end":1.25},{"text":"  "},{"text":"General Kenobi. ","start":1.5,"end":2.0}]}`}
	w := NewWhisperX(runner, "", "", zerolog.Nop())

	text, err := w.Transcribe(context.Background(), "/tmp/audio/clip.mp3")

	require.NoError(t, err)
	assert.Equal(t, "Hello there. General Kenobi.", text)
	assert.Equal(t, "whisperx", runner.args[0])
	assert.Equal(t, "/tmp/audio/clip.mp3", runner.args[1])
	assert.Contains(t, runner.args, "base")
}

func TestWhisperXFailures(t *testing.T) {
	w := NewWhisperX(&scriptedRunner{err: errors.New("exit status 1")}, "whisperx", "base", zerolog.Nop())
	_, err := w.Transcribe(context.Background(), "a.mp3")
	assert.Error(t, err)

	w = NewWhisperX(&scriptedRunner{}, "whisperx", "base", zerolog.Nop())
	_, err = w.Transcribe(context.Background(), "a.mp3")
	assert.Error(t, err, "missing output file")

	w = NewWhisperX(&scriptedRunner{output: "{bad"}, "whisperx", "base", zerolog.Nop())
	_, err = w.Transcribe(context.Background(), "a.mp3")
	assert.Error(t, err)
}

func TestSegmentDuration(t *testing.T) {
	s := Segment{Start: decimal.RequireFromString("0.5"), End: decimal.RequireFromString("1.25")}
	assert.Equal(t, int64(750), s.DurationMs())
}

func TestAPITranscribe(t *testing.T) {
	audio := filepath.Join(t.TempDir(), "speech.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("ID3"), 0o644))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-large-v3", r.FormValue("model"))
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "speech.mp3", header.Filename)
		w.Write([]byte(`{"text":" we the people "}`))
	}))
	defer server.Close()

	a, err := NewAPI(server.URL, "k", "", nil)
	require.NoError(t, err)

	text, err := a.Transcribe(context.Background(), audio)
	require.NoError(t, err)
	assert.Equal(t, "we the people", text)
}

func TestAPIErrors(t *testing.T) {
	_, err := NewAPI("", "k", "", nil)
	assert.Error(t, err)
	_, err = NewAPI("http://x", "", "", nil)
	assert.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()
	audio := filepath.Join(t.TempDir(), "s.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("x"), 0o644))

	a, err := NewAPI(server.URL, "k", "", nil)
	require.NoError(t, err)
	_, err = a.Transcribe(context.Background(), audio)
	assert.Error(t, err)
}

func TestNewFailsFastWhenBinaryMissing(t *testing.T) {
	v := New(config.TranscriptionConfig{Mode: "whisperx", Command: "definitely-not-installed-whisperx"}, nil, zerolog.Nop())
	_, err := v.Get()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcription client unavailable")
	assert.Equal(t, "failed", v.State().String())
}

func TestNewAPIMode(t *testing.T) {
	v := New(config.TranscriptionConfig{Mode: "API", APIURL: "http://localhost", APIKey: "k"}, nil, zerolog.Nop())
	tr, err := v.Get()
	require.NoError(t, err)
	assert.IsType(t, &API{}, tr)
}
