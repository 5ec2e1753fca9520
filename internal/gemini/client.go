// Package gemini is a REST client for the Gemini generateContent API,
// covering multimodal description and text-to-speech.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
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
	defaultBaseURL  = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel    = "gemini-2.5-flash-preview-05-20"
	defaultTTSModel = "gemini-2.5-flash-preview-tts"
	defaultTimeout  = 120 * time.Second
)

var safetyCategories = []string{
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

// Config holds connection settings
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	TTSModel string
	Timeout  time.Duration
}

// Client calls generateContent
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Part is one piece of multimodal content.
type Part struct {
	Text       string `json:"text,omitempty"`
	InlineData *Blob  `json:"inlineData,omitempty"`
}

// Blob is base64 encoded inline media.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// TextPart wraps a text prompt.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart wraps already base64 encoded image data.
func ImagePart(mimeType, base64Data string) Part {
	return Part{InlineData: &Blob{MimeType: mimeType, Data: base64Data}}
}

// NewClient builds a client; the API key is required.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.TTSModel == "" {
		cfg.TTSModel = defaultTTSModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	SafetySettings   []safetySetting   `json:"safetySettings,omitempty"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig struct {
			VoiceName string `json:"voiceName"`
		} `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GenerateText sends parts to the vision model and returns the joined text answer.
func (c *Client) GenerateText(ctx context.Context, parts []Part) (string, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	}
	for _, category := range safetyCategories {
		req.SafetySettings = append(req.SafetySettings, safetySetting{Category: category, Threshold: "BLOCK_NONE"})
	}

	resp, err := c.generate(ctx, c.cfg.Model, req)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			b.WriteString(part.Text)
		}
		if b.Len() > 0 {
			break
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("gemini: empty response")
	}
	return text, nil
}

// Speak renders text with the TTS model and returns raw 16-bit mono PCM at 24kHz.
func (c *Client) Speak(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = "Kore"
	}
	sc := &speechConfig{}
	sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voice
	req := generateRequest{
		Contents: []content{{Parts: []Part{TextPart(text)}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       sc,
		},
	}

	resp, err := c.generate(ctx, c.cfg.TTSModel, req)
	if err != nil {
		return nil, err
	}
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, fmt.Errorf("gemini: decode audio: %w", err)
			}
			return pcm, nil
		}
	}
	return nil, errors.New("gemini: no audio in response")
}

func (c *Client) generate(ctx context.Context, model string, payload generateRequest) (*generateResponse, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), url.PathEscape(model), url.QueryEscape(c.cfg.APIKey))

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("gemini: http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	return &decoded, nil
}
