package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/errors"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/oracle"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
)

const (
	// oracleBlendWeight scales the oracle's confidence into its share of the signal
	oracleBlendWeight = 0.5
	// suggestionAlignment is the alignment below which a dimension gets a suggestion
	suggestionAlignment = 0.6
	// defaultConcurrency bounds per-country fan-out
	defaultConcurrency = 8
)

// AnalyzerConfig configures the CulturalAnalyzer
type AnalyzerConfig struct {
	Concurrency   int
	OracleTimeout time.Duration
}

// DefaultAnalyzerConfig returns the defaults
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		Concurrency:   defaultConcurrency,
		OracleTimeout: oracle.DefaultTimeout,
	}
}

// CountryAnalysis is the analyzer's output for one country
type CountryAnalysis struct {
	Country     reference.Country    `json:"country"`
	CulturalFit float64              `json:"cultural_fit"`
	KeywordFit  float64              `json:"keyword_fit"`
	Signal      reference.Vector     `json:"dimension_signal"`
	Alignments  []DimensionAlignment `json:"alignments"`
	Insight     string               `json:"insight"`
	Suggestions []string             `json:"suggestions"`
	OracleUsed  bool                 `json:"oracle_used"`
	Oracle      *oracle.Signal       `json:"oracle,omitempty"`
	WordCount   int                  `json:"word_count"`
}

// CulturalAnalyzer scores how well a text's cultural signal fits each
// target country
type CulturalAnalyzer struct {
	store   *reference.Store
	lexicon *Lexicon
	oracle  oracle.Oracle
	config  AnalyzerConfig
	logger  *slog.Logger
}

// NewCulturalAnalyzer creates an analyzer. o may be nil, in which case only
// the keyword signal is used.
func NewCulturalAnalyzer(store *reference.Store, lexicon *Lexicon, o oracle.Oracle, config AnalyzerConfig) *CulturalAnalyzer {
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}
	if config.OracleTimeout <= 0 {
		config.OracleTimeout = oracle.DefaultTimeout
	}
	return &CulturalAnalyzer{
		store:   store,
		lexicon: lexicon,
		oracle:  o,
		config:  config,
		logger:  slog.Default(),
	}
}

// WithLogger returns a copy of the analyzer that logs to l
func (a *CulturalAnalyzer) WithLogger(l *slog.Logger) *CulturalAnalyzer {
	cp := *a
	cp.logger = l
	return &cp
}

// OracleEnabled reports whether an oracle is configured
func (a *CulturalAnalyzer) OracleEnabled() bool {
	return a.oracle != nil
}

// Analyze computes a CountryAnalysis per code. Any unknown code fails the
// whole call with an unknown-country validation error. Oracle failures fall
// back to the keyword signal for that country only.
func (a *CulturalAnalyzer) Analyze(ctx context.Context, text string, codes []string, campaignType, industry string) (map[string]CountryAnalysis, error) {
	countries := make([]reference.Country, 0, len(codes))
	var unknown []string
	for _, code := range codes {
		c, ok := a.store.Lookup(code)
		if !ok {
			unknown = append(unknown, reference.Normalize(code))
			continue
		}
		countries = append(countries, c)
	}
	if len(unknown) > 0 {
		return nil, errors.NewUnknownCountryError(unknown)
	}

	tokens := Tokenize(text)
	keywordSignal := KeywordSignal(a.lexicon.Hits(tokens, campaignType, industry))

	results := make([]CountryAnalysis, len(countries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.Concurrency)

	for i, c := range countries {
		g.Go(func() error {
			results[i] = a.analyzeCountry(gctx, text, len(tokens), keywordSignal, c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]CountryAnalysis, len(results))
	for _, r := range results {
		out[r.Country.Code] = r
	}
	return out, nil
}

func (a *CulturalAnalyzer) analyzeCountry(ctx context.Context, text string, words int, keywordSignal reference.Vector, c reference.Country) CountryAnalysis {
	keywordAlign := Align(keywordSignal, c.Dimensions)

	result := CountryAnalysis{
		Country:    c,
		KeywordFit: Fit(keywordAlign),
		Signal:     keywordSignal,
		Alignments: keywordAlign,
		WordCount:  words,
	}

	if sig, ok := a.consultOracle(ctx, text, c); ok {
		result.OracleUsed = true
		result.Oracle = &sig
		if sig.Dimensions != nil {
			result.Signal = BlendSignal(keywordSignal, *sig.Dimensions, oracleBlendWeight*sig.Confidence)
			result.Alignments = Align(result.Signal, c.Dimensions)
		}
	}

	result.CulturalFit = Fit(result.Alignments)
	result.Insight = buildInsight(c, result.CulturalFit, result.Alignments, result.Oracle)
	result.Suggestions = dimensionSuggestions(c, result.Alignments)
	return result
}

func (a *CulturalAnalyzer) consultOracle(ctx context.Context, text string, c reference.Country) (oracle.Signal, bool) {
	if a.oracle == nil {
		return oracle.Signal{}, false
	}

	callCtx, cancel := context.WithTimeout(ctx, a.config.OracleTimeout)
	defer cancel()

	sig, err := a.oracle.InferSentiment(callCtx, text, oracle.CountryContext{
		Code:        c.Code,
		Name:        c.Name,
		Description: a.store.ContextFor(c.Code),
		Dimensions:  c.Dimensions,
	})
	if err == nil {
		err = sig.Validate()
	}
	if err != nil {
		a.logger.Warn("Oracle unavailable, using keyword signal",
			"country", c.Code,
			"oracle", a.oracle.Name(),
			"error", err)
		return oracle.Signal{}, false
	}
	return sig, true
}

func buildInsight(c reference.Country, fit float64, alignments []DimensionAlignment, sig *oracle.Signal) string {
	var b strings.Builder

	switch {
	case fit > 0.8:
		fmt.Fprintf(&b, "Excellent cultural alignment with %s.", c.Name)
	case fit > 0.6:
		fmt.Fprintf(&b, "Good cultural alignment with %s.", c.Name)
	default:
		fmt.Fprintf(&b, "Cultural misalignment detected for %s.", c.Name)
	}

	if len(alignments) > 0 {
		strongest, weakest := alignments[0], alignments[0]
		for _, al := range alignments[1:] {
			if al.Alignment > strongest.Alignment {
				strongest = al
			}
			if al.Alignment < weakest.Alignment {
				weakest = al
			}
		}
		fmt.Fprintf(&b, " Strongest alignment: %s (%.2f); weakest: %s (%.2f).",
			strongest.Dimension.Label(), strongest.Alignment,
			weakest.Dimension.Label(), weakest.Alignment)
	}

	for _, note := range culturalNotes(c) {
		b.WriteString(" ")
		b.WriteString(note)
	}

	if sig != nil && len(sig.Concerns) > 0 {
		fmt.Fprintf(&b, " Reviewer concerns: %s.", strings.Join(sig.Concerns, "; "))
	}

	return b.String()
}

// culturalNotes flags extreme reference values
func culturalNotes(c reference.Country) []string {
	var notes []string
	for _, d := range reference.Dimensions() {
		v := c.Dimensions.Get(d)
		switch {
		case v > 80:
			notes = append(notes, fmt.Sprintf("Very high %s (%.0f): align strongly with this trait.", d.Label(), v))
		case v < 20:
			notes = append(notes, fmt.Sprintf("Very low %s (%.0f): avoid assumptions tied to this trait.", d.Label(), v))
		}
	}
	return notes
}

var suggestionsByDimension = map[reference.Dimension][2]string{
	reference.PowerDistance: {
		"Consider emphasizing hierarchy, authority, and formal structures",
		"Focus on equality, accessibility, and collaborative approaches",
	},
	reference.Individualism: {
		"Highlight personal choice, individual benefits, and self-expression",
		"Emphasize community, family, and collective benefits",
	},
	reference.Masculinity: {
		"Focus on achievement, competition, and performance metrics",
		"Emphasize cooperation, quality of life, and relationships",
	},
	reference.UncertaintyAvoidance: {
		"Provide security, guarantees, and detailed information",
		"Embrace flexibility, innovation, and risk-taking",
	},
	reference.LongTermOrientation: {
		"Emphasize tradition, patience, and long-term benefits",
		"Focus on immediate results and current trends",
	},
	reference.Indulgence: {
		"Highlight enjoyment, freedom, and positive emotions",
		"Emphasize control, modesty, and serious benefits",
	},
}

// dimensionSuggestions returns one suggestion per poorly aligned dimension,
// largest gap first, phrased for the country's own pole
func dimensionSuggestions(c reference.Country, alignments []DimensionAlignment) []string {
	weak := make([]DimensionAlignment, 0, len(alignments))
	for _, al := range alignments {
		if al.Alignment < suggestionAlignment {
			weak = append(weak, al)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool {
		return weak[i].Gap() > weak[j].Gap()
	})

	out := make([]string, 0, len(weak))
	for _, al := range weak {
		pair := suggestionsByDimension[al.Dimension]
		if c.Dimensions.Get(al.Dimension) > 50 {
			out = append(out, pair[0])
		} else {
			out = append(out, pair[1])
		}
	}
	return out
}
