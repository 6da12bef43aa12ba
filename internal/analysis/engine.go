package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/bias"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/errors"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/monitoring"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/types"
)

// Engine is the analysis entry point. It validates a request, runs the bias
// detector and cultural analyzer, scores every country and assembles the
// result. It holds only read-only state and is safe for concurrent use.
type Engine struct {
	store    *reference.Store
	detector *bias.Detector
	analyzer *CulturalAnalyzer
	scorer   *Scorer

	metrics *monitoring.Metrics
	logger  *monitoring.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides analysis ID generation
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithMetrics records every completed run
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger for run summaries
func WithLogger(l *monitoring.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine wires the components together
func NewEngine(store *reference.Store, detector *bias.Detector, analyzer *CulturalAnalyzer, scorer *Scorer, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		detector: detector,
		analyzer: analyzer,
		scorer:   scorer,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the reference dataset the engine scores against
func (e *Engine) Store() *reference.Store { return e.store }

// Detector returns the bias detector
func (e *Engine) Detector() *bias.Detector { return e.detector }

// Scorer returns the scorer
func (e *Engine) Scorer() *Scorer { return e.scorer }

// Run analyzes one request. Validation failures reject the request before
// any scoring. Oracle failures never surface here; they only lower data
// quality for the countries affected.
func (e *Engine) Run(ctx context.Context, req types.AnalyzeRequest) (*types.AnalysisResult, error) {
	start := time.Now()

	codes, err := e.validate(req)
	if err != nil {
		return nil, err
	}

	var (
		flags    []types.BiasFlag
		analyses map[string]CountryAnalysis
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		flags = e.detector.Detect(req.CampaignContent)
		return nil
	})
	g.Go(func() error {
		var err error
		analyses, err = e.analyzer.Analyze(gctx, req.CampaignContent, codes, req.CampaignType, req.Industry)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewTimeoutError("analysis did not complete before the request deadline", err)
	}

	result := e.assemble(codes, flags, analyses)

	duration := time.Since(start)
	flagTypes := make([]string, 0, len(flags))
	for _, f := range flags {
		flagTypes = append(flagTypes, string(f.Type))
	}
	e.metrics.RecordAnalysis(string(result.RiskLevel), flagTypes, duration)
	if e.logger != nil {
		e.logger.AnalysisLogger(result.AnalysisID, codes, result.OverallScore, string(result.RiskLevel), len(flags), duration)
	}

	return result, nil
}

// validate returns the canonical, de-duplicated country codes in request order
func (e *Engine) validate(req types.AnalyzeRequest) ([]string, error) {
	if strings.TrimSpace(req.CampaignContent) == "" {
		return nil, errors.NewValidationError("campaign_content must not be empty")
	}
	if len(req.TargetCountries) == 0 {
		return nil, errors.NewValidationError("target_countries must not be empty")
	}

	codes := make([]string, 0, len(req.TargetCountries))
	seen := make(map[string]bool, len(req.TargetCountries))
	var unknown []string
	for _, raw := range req.TargetCountries {
		code, ok := e.store.Resolve(raw)
		if !ok {
			n := reference.Normalize(raw)
			if n == "" {
				n = "(empty)"
			}
			if !seen["?"+n] {
				seen["?"+n] = true
				unknown = append(unknown, n)
			}
			continue
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}

	if len(unknown) > 0 {
		return nil, errors.NewUnknownCountryError(unknown)
	}
	return codes, nil
}

func (e *Engine) assemble(codes []string, flags []types.BiasFlag, analyses map[string]CountryAnalysis) *types.AnalysisResult {
	result := &types.AnalysisResult{
		AnalysisID:          e.newID(),
		CountryScores:       make(map[string]float64, len(codes)),
		ScoreBreakdown:      make(map[string]types.CountryAssessment, len(codes)),
		BiasFlags:           flags,
		CulturalInsights:    make(map[string]string, len(codes)),
		ConfidenceIntervals: make(map[string]types.ConfidenceInterval, len(codes)),
		Timestamp:           e.now(),
	}
	if result.BiasFlags == nil {
		result.BiasFlags = []types.BiasFlag{}
	}

	scores := make([]float64, 0, len(codes))
	inputs := make([]RecommendInput, 0, len(codes))
	for _, code := range codes {
		a := analyses[code]

		in := ScoreInput{
			CountryCode:  code,
			CulturalFit:  a.CulturalFit,
			KeywordFit:   a.KeywordFit,
			Flags:        flags,
			OracleUsed:   a.OracleUsed,
			Completeness: a.Country.Completeness(),
			WordCount:    a.WordCount,
		}
		if a.Oracle != nil {
			in.Sentiment = a.Oracle.Sentiment
			in.Confidence = a.Oracle.Confidence
		}

		assessment := e.scorer.Score(in)
		result.CountryScores[code] = assessment.Score
		result.ScoreBreakdown[code] = assessment
		result.ConfidenceIntervals[code] = assessment.ConfidenceInterval
		result.CulturalInsights[code] = a.Insight

		scores = append(scores, assessment.Score)
		inputs = append(inputs, RecommendInput{Assessment: assessment, Analysis: a})
	}

	result.OverallScore = Overall(scores)
	result.RiskLevel = RiskLevel(result.OverallScore)
	result.Recommendations = e.scorer.Recommend(inputs, flags)
	return result
}
