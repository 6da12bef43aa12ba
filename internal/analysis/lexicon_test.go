package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
)

const fitnessCopy = "Unlock your potential with our revolutionary fitness app! Join millions of successful individuals..."

func testLexicon(t *testing.T) *Lexicon {
	t.Helper()
	lex, err := DefaultLexicon()
	require.NoError(t, err)
	return lex
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"punctuation", "Unlock your potential!", []string{"unlock", "your", "potential"}},
		{"hyphen and apostrophe", "Well-being isn’t optional", []string{"well-being", "isn't", "optional"}},
		{"numbers", "Top 10 picks", []string{"top", "10", "picks"}},
		{"non latin", "Équipe 日本", []string{"équipe", "日本"}},
		{"blank", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.text))
		})
	}
}

func TestHitsWorkedExample(t *testing.T) {
	lex := testLexicon(t)
	hits := lex.Hits(Tokenize(fitnessCopy), "", "fitness")

	assert.Equal(t, PoleHits{}, hits[reference.PowerDistance])
	assert.Equal(t, PoleHits{High: 2}, hits[reference.Individualism])
	assert.Equal(t, PoleHits{High: 1.5}, hits[reference.Masculinity])
	assert.Equal(t, PoleHits{Low: 1}, hits[reference.UncertaintyAvoidance])
	assert.Equal(t, PoleHits{Low: 1}, hits[reference.LongTermOrientation])
	assert.Equal(t, PoleHits{High: 0.5}, hits[reference.Indulgence])
}

func TestHitsCountsKeywordOnce(t *testing.T) {
	lex := testLexicon(t)
	hits := lex.Hits(Tokenize("community community community"), "", "")
	assert.Equal(t, PoleHits{Low: 1}, hits[reference.Individualism])
}

func TestHitsPhraseNeedsConsecutiveWords(t *testing.T) {
	lex := testLexicon(t)

	hits := lex.Hits(Tokenize("stand out"), "", "")
	assert.Equal(t, 1.0, hits[reference.Individualism].High)

	hits = lex.Hits(Tokenize("stand and look out"), "", "")
	assert.Equal(t, 0.0, hits[reference.Individualism].High)
}

func TestHitsCampaignTypeNormalisation(t *testing.T) {
	lex := testLexicon(t)

	for _, campaignType := range []string{"social_media", "Social Media", "social-media"} {
		hits := lex.Hits(nil, campaignType, "")
		assert.Equal(t, 0.5, hits[reference.Indulgence].High, campaignType)
	}

	hits := lex.Hits(nil, "unheard-of", "unknown industry")
	for _, d := range reference.Dimensions() {
		assert.Equal(t, PoleHits{}, hits[d], d)
	}
}

func TestLoadLexiconErrors(t *testing.T) {
	allDimensions := `
  power_distance: {high: [a]}
  individualism: {high: [a]}
  masculinity: {high: [a]}
  uncertainty_avoidance: {high: [a]}
  long_term_orientation: {high: [a]}
  indulgence: {high: [a]}`

	tests := []struct {
		name string
		data string
	}{
		{"bad yaml", "dimensions: [x"},
		{"negative prior", "prior_weight: -1\ndimensions:" + allDimensions},
		{"missing dimension", "dimensions:\n  power_distance: {high: [a]}"},
		{"unknown dimension", "dimensions:" + allDimensions + "\n  humour: {high: [a]}"},
		{"unknown industry dimension", "dimensions:" + allDimensions + "\nindustries:\n  fitness: {high: [humour]}"},
		{"unknown campaign dimension", "dimensions:" + allDimensions + "\ncampaign_types:\n  b2b: {low: [humour]}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadLexicon([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadLexiconFileMissing(t *testing.T) {
	_, err := LoadLexiconFile("does-not-exist.yaml")
	assert.Error(t, err)
}
