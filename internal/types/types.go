package types

import "time"

// AnalyzeRequest represents the request structure for the analyze endpoint
type AnalyzeRequest struct {
	CampaignContent string   `json:"campaign_content"`
	TargetCountries []string `json:"target_countries"`
	CampaignType    string   `json:"campaign_type,omitempty"`
	Industry        string   `json:"industry,omitempty"`
}

// BiasType classifies a bias pattern
type BiasType string

const (
	BiasCulturalAssumption BiasType = "cultural_assumption"
	BiasStereotype         BiasType = "stereotype"
	BiasLinguistic         BiasType = "linguistic"
	BiasRepresentation     BiasType = "representation"
)

// Valid reports whether t is one of the known bias types
func (t BiasType) Valid() bool {
	switch t {
	case BiasCulturalAssumption, BiasStereotype, BiasLinguistic, BiasRepresentation:
		return true
	}
	return false
}

// BiasFlag is a detected bias pattern. Flags are never mutated after creation.
type BiasFlag struct {
	Type            BiasType `json:"type"`
	PatternID       string   `json:"pattern_id"`
	Severity        int      `json:"severity"`
	Description     string   `json:"description"`
	Matches         []string `json:"matches"`
	CulturalContext string   `json:"cultural_context"`
}

// ConfidenceInterval is always reported at the 95% level
type ConfidenceInterval struct {
	LowerBound      float64 `json:"lower_bound"`
	UpperBound      float64 `json:"upper_bound"`
	ConfidenceLevel float64 `json:"confidence_level"`
	MarginOfError   float64 `json:"margin_of_error"`
	DataQuality     float64 `json:"data_quality"`
}

// CountryAssessment is the per-country score breakdown
type CountryAssessment struct {
	CountryCode        string             `json:"country_code"`
	CulturalFit        float64            `json:"cultural_fit"`
	BiasPenalty        float64            `json:"bias_penalty"`
	ConfidenceBonus    float64            `json:"confidence_bonus"`
	DataQuality        float64            `json:"data_quality"`
	Score              float64            `json:"score"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
}

// Priority of an adaptation recommendation
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank orders priorities, high first
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	default:
		return 2
	}
}

// Recommendation is an adaptation suggestion for one country
type Recommendation struct {
	Country             string   `json:"country"`
	Priority            Priority `json:"priority"`
	Type                string   `json:"type"`
	Message             string   `json:"message"`
	SpecificSuggestions []string `json:"specific_suggestions"`
}

// RiskLevel is the coarse banding of the overall score
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// AnalysisResult is assembled once per request and not modified afterwards
type AnalysisResult struct {
	AnalysisID          string                        `json:"analysis_id"`
	OverallScore        float64                       `json:"overall_score"`
	CountryScores       map[string]float64            `json:"country_scores"`
	ScoreBreakdown      map[string]CountryAssessment  `json:"score_breakdown"`
	BiasFlags           []BiasFlag                    `json:"bias_flags"`
	CulturalInsights    map[string]string             `json:"cultural_insights"`
	Recommendations     []Recommendation              `json:"recommendations"`
	RiskLevel           RiskLevel                     `json:"risk_level"`
	ConfidenceIntervals map[string]ConfidenceInterval `json:"confidence_intervals"`
	Timestamp           time.Time                     `json:"timestamp"`
}
