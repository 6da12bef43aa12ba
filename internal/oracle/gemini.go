package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cast"
	"google.golang.org/genai"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
)

// DefaultGeminiModel is used when no model is configured
const DefaultGeminiModel = "gemini-2.5-flash"

// defaultConfidence applies when the model omits its confidence
const defaultConfidence = 0.5

// GeminiConfig configures the Gemini oracle
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string // optional endpoint override
	HTTPClient *http.Client
}

// GeminiOracle asks a Gemini model for a per-country cultural reading of the
// campaign text
type GeminiOracle struct {
	client *genai.Client
	model  string
}

// NewGeminiOracle creates a Gemini-backed oracle
func NewGeminiOracle(ctx context.Context, cfg GeminiConfig) (*GeminiOracle, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiOracle{client: client, model: cfg.Model}, nil
}

// Name returns "gemini"
func (g *GeminiOracle) Name() string {
	return "gemini"
}

// InferSentiment sends one prompt per country and parses the JSON reply
func (g *GeminiOracle) InferSentiment(ctx context.Context, text string, country CountryContext) (Signal, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(text, country)), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	})
	if err != nil {
		return Signal{}, fmt.Errorf("gemini generate content failed: %w", err)
	}

	return ParseResponse(resp.Text())
}

const promptTemplate = `You are a cultural analysis expert specializing in cross-cultural marketing and communication.

Analyze the following campaign content for cultural appropriateness and reception in %s (%s).

Cultural context: %s

Reference cultural dimensions for %s (0-100): %s

Campaign content:
"""
%s
"""

Respond with a single JSON object and nothing else:
{
  "sentiment_score": <how positively the audience in %s would receive the content, 0.0-1.0>,
  "confidence": <your confidence in this assessment, 0.0-1.0>,
  "cultural_dimensions": {
    "power_distance": <0-100>,
    "individualism": <0-100>,
    "masculinity": <0-100>,
    "uncertainty_avoidance": <0-100>,
    "long_term_orientation": <0-100>,
    "indulgence": <0-100>
  },
  "concerns": ["<specific cultural risk>", "..."]
}

cultural_dimensions scores the values the content itself expresses, not the country.`

// BuildPrompt renders the cultural analysis prompt for one country
func BuildPrompt(text string, country CountryContext) string {
	name := country.Name
	if name == "" {
		name = country.Code
	}
	description := country.Description
	if description == "" {
		description = "Cultural context for " + name
	}

	dims := make([]string, 0, len(reference.Dimensions()))
	for _, d := range reference.Dimensions() {
		dims = append(dims, fmt.Sprintf("%s=%.0f", d, country.Dimensions.Get(d)))
	}

	return fmt.Sprintf(promptTemplate,
		name, country.Code,
		description,
		name, strings.Join(dims, ", "),
		text,
		name,
	)
}

type geminiReply struct {
	SentimentScore     interface{}            `json:"sentiment_score"`
	Confidence         interface{}            `json:"confidence"`
	CulturalDimensions map[string]interface{} `json:"cultural_dimensions"`
	Concerns           []string               `json:"concerns"`
}

// ParseResponse extracts a Signal from a model reply. The JSON may be bare,
// fenced, or surrounded by prose. Sentiment on a 0-10 scale is rescaled.
func ParseResponse(body string) (Signal, error) {
	raw := extractJSON(body)
	if raw == "" {
		return Signal{}, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}

	var reply geminiReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if reply.SentimentScore == nil {
		return Signal{}, fmt.Errorf("%w: sentiment_score missing", ErrMalformedResponse)
	}
	sentiment, err := cast.ToFloat64E(reply.SentimentScore)
	if err != nil {
		return Signal{}, fmt.Errorf("%w: sentiment_score: %v", ErrMalformedResponse, err)
	}
	if sentiment > 1 && sentiment <= 10 {
		sentiment /= 10
	}

	confidence := defaultConfidence
	if reply.Confidence != nil {
		confidence, err = cast.ToFloat64E(reply.Confidence)
		if err != nil {
			return Signal{}, fmt.Errorf("%w: confidence: %v", ErrMalformedResponse, err)
		}
	}

	signal := Signal{
		Sentiment:  sentiment,
		Confidence: confidence,
		Concerns:   reply.Concerns,
	}

	if dims, ok, err := parseDimensions(reply.CulturalDimensions); err != nil {
		return Signal{}, err
	} else if ok {
		signal.Dimensions = &dims
	}

	if err := signal.Validate(); err != nil {
		return Signal{}, err
	}
	return signal, nil
}

// parseDimensions requires all six dimensions; a partial block is ignored
func parseDimensions(raw map[string]interface{}) (reference.Vector, bool, error) {
	var v reference.Vector
	if len(raw) == 0 {
		return v, false, nil
	}
	for _, d := range reference.Dimensions() {
		value, ok := raw[string(d)]
		if !ok || value == nil {
			return reference.Vector{}, false, nil
		}
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return reference.Vector{}, false, fmt.Errorf("%w: %s: %v", ErrMalformedResponse, d, err)
		}
		v = v.With(d, f)
	}
	return v, true, nil
}

func extractJSON(body string) string {
	body = strings.TrimSpace(body)

	if start := strings.Index(body, "```"); start >= 0 {
		rest := body[start+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			body = strings.TrimSpace(rest[:end])
		}
	}

	open := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if open < 0 || end < open {
		return ""
	}
	return body[open : end+1]
}
