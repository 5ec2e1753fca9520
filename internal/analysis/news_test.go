package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"truthscan/internal/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDetectBias(t *testing.T) {
	tests := []struct {
		name    string
		content string
		err     error
		want    Bias
		wantErr bool
	}{
		{name: "valid", content: `{"bias":"Left","confidence":0.8}`, want: Bias{Label: "left", Confidence: 0.8}},
		{name: "string confidence", content: `{"bias":"right","confidence":"0.65"}`, want: Bias{Label: "right", Confidence: 0.65}},
		{name: "unknown label", content: `{"bias":"libertarian","confidence":2}`, want: Bias{Label: "center", Confidence: 1}},
		{name: "api failure", err: errors.New("down"), want: FallbackBias, wantErr: true},
		{name: "unparseable", content: "center I think", want: FallbackBias, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockCompleter)
			m.On("Complete", mock.Anything, mock.Anything).Return(tt.content, tt.err)

			got, err := newTestService(m).DetectBias(context.Background(), "text")

			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDetectBiasTruncatesInput(t *testing.T) {
	m := new(MockCompleter)
	m.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Count(req.User, "x") == 4000
	})).Return(`{"bias":"center","confidence":0.5}`, nil)

	_, err := newTestService(m).DetectBias(context.Background(), strings.Repeat("x", 5000))
	require.NoError(t, err)
	m.AssertExpectations(t)
}

func TestSummarizeFallsBack(t *testing.T) {
	m := new(MockCompleter)
	m.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("quota"))

	long := strings.Repeat("é", 400)
	got, err := newTestService(m).Summarize(context.Background(), long)

	assert.Error(t, err)
	assert.Equal(t, strings.Repeat("é", 350), got)
}

func TestSummarize(t *testing.T) {
	m := new(MockCompleter)
	m.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return req.System == "Summarize in under 4 sentences, preserve truth." && !req.JSON
	})).Return(" Short. ", nil)

	got, err := newTestService(m).Summarize(context.Background(), "Long article")
	require.NoError(t, err)
	assert.Equal(t, "Short.", got)
}

func TestExtractNewsClaims(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{name: "bare array", content: `[{"claim_text":"X happened","claim_type":"factual","context":"politics"},{"claim_text":"  "}]`, want: 1},
		{name: "wrapped", content: `{"claims":[{"claim_text":"Y caused Z","claim_type":"causal"}]}`, want: 1},
		{name: "prose", content: "Sure! [{\"claim_text\":\"A\"},{\"claim_text\":\"B\"}]", want: 2},
		{name: "garbage", content: "no claims here", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockCompleter)
			m.On("Complete", mock.Anything, mock.Anything).Return(tt.content, nil)

			got, err := newTestService(m).ExtractNewsClaims(context.Background(), "article")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestGenerateLyrics(t *testing.T) {
	m := new(MockCompleter)
	m.On("Complete", mock.Anything, mock.MatchedBy(func(req llm.Request) bool {
		return strings.Contains(req.User, "gangsta rap song") && req.MaxTokens == 500
	})).Return("Verse one\n", nil)

	got, err := newTestService(m).GenerateLyrics(context.Background(), "Title", "Summary", "")
	require.NoError(t, err)
	assert.Equal(t, "Verse one", got)
}
