package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/types"
)

const (
	penaltyCap         = 0.8
	maxConfidenceBonus = 0.05
	confidenceLevel    = 0.95
	highSeverity       = 8
	maxFlagSuggestions = 3

	// DefaultMarginK calibrates margin_of_error = (1-data_quality)*K
	DefaultMarginK = 0.10
	// DefaultAdaptationThreshold is the score below which a country gets an
	// adaptation recommendation
	DefaultAdaptationThreshold = 0.70

	// sufficientWords is the word count at which text stops lowering data quality
	sufficientWords = 20
)

// data quality weights
var qualityWeights = struct {
	completeness, text, oracle float64
}{0.4, 0.3, 0.3}

// ScorerConfig configures the Scorer
type ScorerConfig struct {
	AdaptationThreshold float64
	MarginK             float64
}

// DefaultScorerConfig returns the defaults
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		AdaptationThreshold: DefaultAdaptationThreshold,
		MarginK:             DefaultMarginK,
	}
}

// Scorer turns analyzer output and bias flags into country assessments
type Scorer struct {
	config ScorerConfig
}

// NewScorer creates a scorer, filling unset values with defaults
func NewScorer(config ScorerConfig) *Scorer {
	if config.AdaptationThreshold <= 0 || config.AdaptationThreshold > 1 {
		config.AdaptationThreshold = DefaultAdaptationThreshold
	}
	if config.MarginK <= 0 {
		config.MarginK = DefaultMarginK
	}
	return &Scorer{config: config}
}

// AdaptationThreshold returns the configured threshold
func (s *Scorer) AdaptationThreshold() float64 {
	return s.config.AdaptationThreshold
}

// ScoreInput is everything the scorer needs for one country
type ScoreInput struct {
	CountryCode  string
	CulturalFit  float64
	KeywordFit   float64
	Flags        []types.BiasFlag
	OracleUsed   bool
	Sentiment    float64
	Confidence   float64
	Completeness float64
	WordCount    int
}

// Score computes the assessment: clamp(fit - penalty + bonus, 0, 1) with an
// interval whose width shrinks as data quality rises
func (s *Scorer) Score(in ScoreInput) types.CountryAssessment {
	fit := clip(in.CulturalFit, 0, 1)
	penalty := BiasPenalty(in.Flags, fit)
	bonus := ConfidenceBonus(in.OracleUsed, in.KeywordFit, in.Sentiment, in.Confidence)
	quality := DataQuality(in.Completeness, in.WordCount, in.OracleUsed)
	score := clip(fit-penalty+bonus, 0, 1)

	return types.CountryAssessment{
		CountryCode:        in.CountryCode,
		CulturalFit:        fit,
		BiasPenalty:        penalty,
		ConfidenceBonus:    bonus,
		DataQuality:        quality,
		Score:              score,
		ConfidenceInterval: Interval(score, quality, s.config.MarginK),
	}
}

// BiasPenalty is the severity sum over 100, capped at min(0.8, fit) so the
// penalty alone never drives a score below zero
func BiasPenalty(flags []types.BiasFlag, fit float64) float64 {
	total := 0.0
	for _, f := range flags {
		total += float64(f.Severity) / 100
	}
	return math.Min(total, math.Min(penaltyCap, math.Max(fit, 0)))
}

// ConfidenceBonus rewards an oracle reading that agrees with the keyword fit
// on which side of 0.5 it falls
func ConfidenceBonus(oracleUsed bool, keywordFit, sentiment, confidence float64) float64 {
	if !oracleUsed {
		return 0
	}
	if (keywordFit >= 0.5) != (sentiment >= 0.5) {
		return 0
	}
	return maxConfidenceBonus * clip(confidence, 0, 1)
}

// DataQuality weighs reference completeness, text length and oracle use
func DataQuality(completeness float64, words int, oracleUsed bool) float64 {
	textSufficiency := math.Min(1, float64(words)/sufficientWords)
	oracle := 0.0
	if oracleUsed {
		oracle = 1
	}
	q := qualityWeights.completeness*clip(completeness, 0, 1) +
		qualityWeights.text*textSufficiency +
		qualityWeights.oracle*oracle
	return clip(q, 0, 1)
}

// Interval returns the 95% interval around score
func Interval(score, dataQuality, k float64) types.ConfidenceInterval {
	margin := (1 - clip(dataQuality, 0, 1)) * k
	return types.ConfidenceInterval{
		LowerBound:      clip(score-margin, 0, 1),
		UpperBound:      clip(score+margin, 0, 1),
		ConfidenceLevel: confidenceLevel,
		MarginOfError:   margin,
		DataQuality:     dataQuality,
	}
}

// Overall is the unweighted mean of scores
func Overall(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// RiskLevel bands the overall score: low >= 0.75, medium >= 0.5
func RiskLevel(overall float64) types.RiskLevel {
	switch {
	case overall >= 0.75:
		return types.RiskLow
	case overall >= 0.5:
		return types.RiskMedium
	default:
		return types.RiskHigh
	}
}

// RecommendInput pairs an assessment with the analysis that produced it
type RecommendInput struct {
	Assessment types.CountryAssessment
	Analysis   CountryAnalysis
}

// Recommend builds recommendations for countries scoring below the
// adaptation threshold, and for every country when any flag was raised.
// Output is ordered by priority, then score ascending, then country code.
func (s *Scorer) Recommend(inputs []RecommendInput, flags []types.BiasFlag) []types.Recommendation {
	maxSeverity := 0
	for _, f := range flags {
		if f.Severity > maxSeverity {
			maxSeverity = f.Severity
		}
	}

	scores := make(map[string]float64, len(inputs))
	out := make([]types.Recommendation, 0, len(inputs))
	for _, in := range inputs {
		score := in.Assessment.Score
		belowThreshold := score < s.config.AdaptationThreshold
		if !belowThreshold && len(flags) == 0 {
			continue
		}

		var priority types.Priority
		switch {
		case score < 0.5 || maxSeverity >= highSeverity:
			priority = types.PriorityHigh
		case belowThreshold:
			priority = types.PriorityMedium
		default:
			priority = types.PriorityLow
		}

		code := in.Assessment.CountryCode
		scores[code] = score
		out = append(out, types.Recommendation{
			Country:             code,
			Priority:            priority,
			Type:                recommendationType(priority),
			Message:             recommendationMessage(priority, in.Analysis, score),
			SpecificSuggestions: specificSuggestions(in.Analysis, flags),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
		if scores[a.Country] != scores[b.Country] {
			return scores[a.Country] < scores[b.Country]
		}
		return a.Country < b.Country
	})
	return out
}

func recommendationType(p types.Priority) string {
	switch p {
	case types.PriorityHigh:
		return "cultural_adaptation"
	case types.PriorityMedium:
		return "minor_adjustments"
	default:
		return "bias_review"
	}
}

func recommendationMessage(p types.Priority, a CountryAnalysis, score float64) string {
	name := a.Country.Name
	if name == "" {
		name = a.Country.Code
	}

	gap := ""
	if worst, ok := largestGap(a.Alignments); ok {
		gap = fmt.Sprintf("; largest gap on %s (content %.0f vs %.0f)",
			worst.Dimension.Label(), worst.Signal, worst.Reference)
	}

	switch p {
	case types.PriorityHigh:
		return fmt.Sprintf("Significant cultural adaptation needed for %s (score %.2f)%s", name, score, gap)
	case types.PriorityMedium:
		return fmt.Sprintf("Minor cultural adjustments recommended for %s (score %.2f)%s", name, score, gap)
	default:
		return fmt.Sprintf("Review flagged bias patterns before launching in %s (score %.2f)", name, score)
	}
}

func largestGap(alignments []DimensionAlignment) (DimensionAlignment, bool) {
	if len(alignments) == 0 {
		return DimensionAlignment{}, false
	}
	worst := alignments[0]
	for _, al := range alignments[1:] {
		if al.Gap() > worst.Gap() {
			worst = al
		}
	}
	return worst, true
}

// specificSuggestions lists dimension suggestions, then the cultural context
// of the most severe flags, without duplicates
func specificSuggestions(a CountryAnalysis, flags []types.BiasFlag) []string {
	out := make([]string, 0, len(a.Suggestions)+maxFlagSuggestions)
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, s := range a.Suggestions {
		add(s)
	}
	for i, f := range flags {
		if i == maxFlagSuggestions {
			break
		}
		add(f.CulturalContext)
	}
	return out
}
