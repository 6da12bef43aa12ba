package oracle

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantSentiment  float64
		wantConfidence float64
		wantDims       bool
		wantErr        bool
	}{
		{
			name:           "bare json",
			body:           `{"sentiment_score": 0.72, "confidence": 0.9}`,
			wantSentiment:  0.72,
			wantConfidence: 0.9,
		},
		{
			name:           "fenced json with prose",
			body:           "Here is my analysis:\n```json\n{\"sentiment_score\": 0.4, \"confidence\": 0.6}\n```\nThanks",
			wantSentiment:  0.4,
			wantConfidence: 0.6,
		},
		{
			name:           "ten point scale",
			body:           `{"sentiment_score": 7, "confidence": 0.5}`,
			wantSentiment:  0.7,
			wantConfidence: 0.5,
		},
		{
			name:           "numeric strings",
			body:           `{"sentiment_score": "0.55", "confidence": "0.8"}`,
			wantSentiment:  0.55,
			wantConfidence: 0.8,
		},
		{
			name:           "missing confidence",
			body:           `{"sentiment_score": 0.3}`,
			wantSentiment:  0.3,
			wantConfidence: defaultConfidence,
		},
		{
			name: "with dimensions",
			body: `{"sentiment_score": 0.6, "confidence": 0.7, "cultural_dimensions": {
				"power_distance": 30, "individualism": 85, "masculinity": 75,
				"uncertainty_avoidance": 35, "long_term_orientation": 40, "indulgence": 70}}`,
			wantSentiment:  0.6,
			wantConfidence: 0.7,
			wantDims:       true,
		},
		{
			name:           "partial dimensions ignored",
			body:           `{"sentiment_score": 0.6, "confidence": 0.7, "cultural_dimensions": {"individualism": 85}}`,
			wantSentiment:  0.6,
			wantConfidence: 0.7,
		},
		{name: "no json", body: "I cannot help with that", wantErr: true},
		{name: "missing sentiment", body: `{"confidence": 0.5}`, wantErr: true},
		{name: "sentiment out of range", body: `{"sentiment_score": 42, "confidence": 0.5}`, wantErr: true},
		{name: "confidence out of range", body: `{"sentiment_score": 0.5, "confidence": 3}`, wantErr: true},
		{name: "non numeric sentiment", body: `{"sentiment_score": "positive"}`, wantErr: true},
		{name: "broken json", body: `{"sentiment_score": 0.5,`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResponse(tt.body)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantSentiment, got.Sentiment, 1e-9)
			assert.InDelta(t, tt.wantConfidence, got.Confidence, 1e-9)
			assert.Equal(t, tt.wantDims, got.Dimensions != nil)
		})
	}
}

func TestParseResponseConcerns(t *testing.T) {
	got, err := ParseResponse(`{"sentiment_score": 0.5, "confidence": 0.5, "concerns": ["direct tone"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"direct tone"}, got.Concerns)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("Unlock your potential", CountryContext{
		Code:        "JP",
		Name:        "Japan",
		Description: "Japanese culture emphasizing group harmony",
		Dimensions:  reference.Vector{PowerDistance: 54, Individualism: 46},
	})

	assert.Contains(t, prompt, "Japan (JP)")
	assert.Contains(t, prompt, "group harmony")
	assert.Contains(t, prompt, "Unlock your potential")
	assert.Contains(t, prompt, "power_distance=54")
	assert.Contains(t, prompt, `"sentiment_score"`)

	fallback := BuildPrompt("text", CountryContext{Code: "ZZ"})
	assert.Contains(t, fallback, "Cultural context for ZZ")
}

func TestNewGeminiOracleRequiresKey(t *testing.T) {
	_, err := NewGeminiOracle(context.Background(), GeminiConfig{})
	assert.Error(t, err)
}

func TestGeminiOracleInferSentiment(t *testing.T) {
	var gotPath, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		reply := map[string]interface{}{
			"candidates": []interface{}{
				map[string]interface{}{
					"content": map[string]interface{}{
						"role": "model",
						"parts": []interface{}{
							map[string]interface{}{"text": "```json\n{\"sentiment_score\": 0.64, \"confidence\": 0.8}\n```"},
						},
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(reply)
	}))
	defer server.Close()

	o, err := NewGeminiOracle(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		Model:      "gemini-test-model",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)
	assert.Equal(t, "gemini", o.Name())

	signal, err := o.InferSentiment(context.Background(), "Celebrate together", CountryContext{Code: "BR", Name: "Brazil"})
	require.NoError(t, err)
	assert.InDelta(t, 0.64, signal.Sentiment, 1e-9)
	assert.InDelta(t, 0.8, signal.Confidence, 1e-9)

	assert.Contains(t, gotPath, "gemini-test-model")
	assert.Contains(t, gotBody, "Celebrate together")
}

func TestGeminiOracleServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": {"code": 500, "message": "internal", "status": "INTERNAL"}}`))
	}))
	defer server.Close()

	o, err := NewGeminiOracle(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	_, err = o.InferSentiment(context.Background(), "text", CountryContext{Code: "US"})
	assert.Error(t, err)
}
