// Package music turns news into songs: Suno generation, or locally written
// lyrics voiced by TTS and mixed over a beat. It also splits tracks into stems.
package music

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultSunoBaseURL = "https://api.sunoapi.org/api/v1"
	defaultSunoModel   = "V3_5"
)

// ErrNoTaskID is returned when Suno accepts a request without a task id.
var ErrNoTaskID = errors.New("no task ID returned from Suno")

// SunoConfig holds the Suno API settings.
type SunoConfig struct {
	APIKey      string
	BaseURL     string
	CallbackURL string
	Model       string
}

// SunoClient calls the Suno generation API.
type SunoClient struct {
	cfg        SunoConfig
	httpClient *http.Client
}

// NewSunoClient creates a client. A missing API key is an error.
func NewSunoClient(cfg SunoConfig, httpClient *http.Client) (*SunoClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("SUNO_API_KEY is not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSunoBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultSunoModel
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &SunoClient{cfg: cfg, httpClient: httpClient}, nil
}

// GenerateRequest describes a song to generate.
type GenerateRequest struct {
	Prompt      string
	Style       string
	UseAILyrics bool
}

type generatePayload struct {
	Prompt       string `json:"prompt"`
	CustomMode   bool   `json:"customMode"`
	Instrumental bool   `json:"instrumental"`
	Model        string `json:"model"`
	CallBackURL  string `json:"callBackUrl"`
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// Track is a generated song.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// TaskStatus is the progress of a generation task.
type TaskStatus struct {
	Status string  `json:"status"`
	Songs  []Track `json:"songs"`
}

// Generate submits a generation task and returns its task id.
func (c *SunoClient) Generate(ctx context.Context, r GenerateRequest) (string, error) {
	payload := generatePayload{
		Prompt:       fmt.Sprintf("%s in the style of %s", r.Prompt, r.Style),
		CustomMode:   true,
		Instrumental: !r.UseAILyrics,
		Model:        c.cfg.Model,
		CallBackURL:  c.cfg.CallbackURL,
	}
	var data struct {
		TaskID string `json:"taskId"`
	}
	if err := c.do(ctx, http.MethodPost, "/generate", payload, &data); err != nil {
		return "", fmt.Errorf("suno generate: %w", err)
	}
	if data.TaskID == "" {
		return "", ErrNoTaskID
	}
	return data.TaskID, nil
}

// Status reports the tracks produced so far for taskID.
func (c *SunoClient) Status(ctx context.Context, taskID string) (TaskStatus, error) {
	var data struct {
		Status   string  `json:"status"`
		Songs    []Track `json:"songs"`
		Response struct {
			SunoData []Track `json:"sunoData"`
		} `json:"response"`
	}
	if err := c.do(ctx, http.MethodGet, "/record-info/"+url.PathEscape(taskID), nil, &data); err != nil {
		return TaskStatus{}, fmt.Errorf("suno status %s: %w", taskID, err)
	}
	songs := data.Songs
	if len(songs) == 0 {
		songs = data.Response.SunoData
	}
	return TaskStatus{Status: data.Status, Songs: songs}, nil
}

// DownloadURL returns the download link of a finished track.
func (c *SunoClient) DownloadURL(ctx context.Context, trackID string) (string, error) {
	var data struct {
		DownloadURL string `json:"download_url"`
	}
	if err := c.getFlat(ctx, "/download/"+url.PathEscape(trackID), &data); err != nil {
		return "", fmt.Errorf("suno download %s: %w", trackID, err)
	}
	return data.DownloadURL, nil
}

// Lyrics returns the lyrics Suno wrote for a track.
func (c *SunoClient) Lyrics(ctx context.Context, trackID string) (string, error) {
	var data struct {
		Lyrics string `json:"lyrics"`
	}
	if err := c.getFlat(ctx, "/lyrics/"+url.PathEscape(trackID), &data); err != nil {
		return "", fmt.Errorf("suno lyrics %s: %w", trackID, err)
	}
	return data.Lyrics, nil
}

func (c *SunoClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	raw, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 0 && env.Code != http.StatusOK {
		return fmt.Errorf("api error %d: %s", env.Code, env.Msg)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// getFlat reads endpoints that answer without the code/msg/data envelope.
func (c *SunoClient) getFlat(ctx context.Context, path string, out interface{}) error {
	raw, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *SunoClient) request(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return raw, nil
}
