package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// API posts audio to an OpenAI-compatible /audio/transcriptions endpoint.
type API struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

var _ Transcriber = (*API)(nil)

// NewAPI builds an HTTP transcriber; url and key are required.
func NewAPI(url, apiKey, model string, httpClient *http.Client) (*API, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("transcription api url required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("transcription api key required")
	}
	if model == "" {
		model = "whisper-large-v3"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &API{url: url, apiKey: apiKey, model: model, httpClient: httpClient}, nil
}

// Transcribe implements Transcriber.
func (a *API) Transcribe(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}
	mw.WriteField("model", a.model)
	mw.WriteField("response_format", "json")
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, &body)
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("transcription request: http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode transcription: %w", err)
	}
	return strings.TrimSpace(decoded.Text), nil
}
