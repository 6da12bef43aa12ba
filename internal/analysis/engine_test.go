package analysis

import (
	"bytes"
	"context"
	stderrors "errors"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/bias"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/errors"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/monitoring"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/oracle"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

var fixedTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestEngine(t *testing.T, o oracle.Oracle, opts ...Option) *Engine {
	t.Helper()

	lib, err := bias.DefaultLibrary()
	require.NoError(t, err)

	store := defaultStore(t)
	analyzer := NewCulturalAnalyzer(store, testLexicon(t), o, DefaultAnalyzerConfig())

	opts = append([]Option{
		WithClock(func() time.Time { return fixedTime }),
		WithIDGenerator(func() string { return "analysis-1" }),
	}, opts...)
	return NewEngine(store, bias.NewDetector(lib), analyzer, NewScorer(DefaultScorerConfig()), opts...)
}

func workedRequest() types.AnalyzeRequest {
	return types.AnalyzeRequest{
		CampaignContent: fitnessCopy,
		TargetCountries: []string{"US", "JP"},
		Industry:        "fitness",
	}
}

func findFlag(flags []types.BiasFlag, id string) (types.BiasFlag, bool) {
	for _, f := range flags {
		if f.PatternID == id {
			return f, true
		}
	}
	return types.BiasFlag{}, false
}

func TestRunWorkedExample(t *testing.T) {
	e := newTestEngine(t, nil)

	res, err := e.Run(context.Background(), workedRequest())
	require.NoError(t, err)

	us, jp := res.ScoreBreakdown["US"], res.ScoreBreakdown["JP"]
	assert.GreaterOrEqual(t, us.CulturalFit, 0.75)
	assert.LessOrEqual(t, jp.CulturalFit, 0.65)
	assert.InDelta(t, 0.765, res.CountryScores["US"], 1e-9)
	assert.InDelta(t, 0.5183333, res.CountryScores["JP"], 1e-6)

	flag, ok := findFlag(res.BiasFlags, "cultural_assumption.individual_achievement")
	require.True(t, ok)
	assert.Equal(t, types.BiasCulturalAssumption, flag.Type)
	assert.Contains(t, flag.Matches, "successful individuals")

	assert.Equal(t, "analysis-1", res.AnalysisID)
	assert.Equal(t, fixedTime, res.Timestamp)
	assert.Equal(t, types.RiskMedium, res.RiskLevel)
	assert.NotEmpty(t, res.CulturalInsights["US"])
	assert.NotEmpty(t, res.CulturalInsights["JP"])

	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, "JP", res.Recommendations[0].Country)
	assert.Equal(t, types.PriorityMedium, res.Recommendations[0].Priority)
	assert.Equal(t, "US", res.Recommendations[1].Country)
	assert.Equal(t, types.PriorityLow, res.Recommendations[1].Priority)
}

func TestRunProperties(t *testing.T) {
	e := newTestEngine(t, nil)

	requests := []types.AnalyzeRequest{
		workedRequest(),
		{
			CampaignContent: "Celebrate Christmas season with the whole family. Everyone loves our exotic flavours!",
			TargetCountries: []string{"IN", "SA", "CN", "US", "BR"},
			CampaignType:    "promotion",
			Industry:        "food",
		},
		{
			CampaignContent: "Secure, proven and certified banking for generations.",
			TargetCountries: []string{"DE", "JP", "SG"},
			CampaignType:    "b2b",
			Industry:        "banking",
		},
		{
			CampaignContent: "Hi",
			TargetCountries: []string{"FR"},
		},
	}

	for _, req := range requests {
		res, err := e.Run(context.Background(), req)
		require.NoError(t, err)

		sum := 0.0
		for code, score := range res.CountryScores {
			ci := res.ConfidenceIntervals[code]
			assert.GreaterOrEqual(t, score, 0.0, code)
			assert.LessOrEqual(t, score, 1.0, code)
			assert.LessOrEqual(t, ci.LowerBound, score, code)
			assert.GreaterOrEqual(t, ci.UpperBound, score, code)
			assert.Equal(t, 0.95, ci.ConfidenceLevel, code)
			assert.Equal(t, res.ScoreBreakdown[code].ConfidenceInterval, ci, code)
			sum += score
		}
		assert.InDelta(t, sum/float64(len(res.CountryScores)), res.OverallScore, 1e-12)
		assert.Equal(t, RiskLevel(res.OverallScore), res.RiskLevel)
		assert.NotNil(t, res.BiasFlags)
		assert.NotNil(t, res.Recommendations)
	}
}

func TestRunNoBiasFlags(t *testing.T) {
	e := newTestEngine(t, nil)

	res, err := e.Run(context.Background(), types.AnalyzeRequest{
		CampaignContent: "Quality coffee for calm mornings.",
		TargetCountries: []string{"US", "JP", "DE"},
	})
	require.NoError(t, err)

	assert.NotNil(t, res.BiasFlags)
	assert.Empty(t, res.BiasFlags)
	for code, a := range res.ScoreBreakdown {
		assert.Equal(t, 0.0, a.BiasPenalty, code)
	}
}

func TestRunValidation(t *testing.T) {
	e := newTestEngine(t, nil)

	tests := []struct {
		name        string
		req         types.AnalyzeRequest
		wantUnknown bool
	}{
		{"empty content", types.AnalyzeRequest{CampaignContent: "", TargetCountries: []string{"US"}}, false},
		{"blank content", types.AnalyzeRequest{CampaignContent: " \n\t", TargetCountries: []string{"US"}}, false},
		{"no countries", types.AnalyzeRequest{CampaignContent: fitnessCopy}, false},
		{"unknown country", types.AnalyzeRequest{CampaignContent: fitnessCopy, TargetCountries: []string{"US", "ZZ"}}, true},
		{"only unknown", types.AnalyzeRequest{CampaignContent: fitnessCopy, TargetCountries: []string{"zz", "ZZ"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, stderrors.Is(err, errors.ErrValidation))
			assert.Equal(t, tt.wantUnknown, stderrors.Is(err, errors.ErrUnknownCountry))

			appErr := errors.ToAppError(err)
			assert.Equal(t, errors.CategoryValidation, appErr.Category)
		})
	}
}

func TestRunUnknownCountryNamesEveryCodeOnce(t *testing.T) {
	e := newTestEngine(t, nil)

	_, err := e.Run(context.Background(), types.AnalyzeRequest{
		CampaignContent: fitnessCopy,
		TargetCountries: []string{"zz", "US", "ZZ", "QQ"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ZZ, QQ")
}

func TestRunUnknownCountryNamesBlankCodes(t *testing.T) {
	e := newTestEngine(t, nil)

	tests := []struct {
		name      string
		countries []string
		want      string
	}{
		{"empty string", []string{"US", ""}, "Unsupported target countries: (empty)"},
		{"whitespace only", []string{"  ", "JP"}, "Unsupported target countries: (empty)"},
		{"blank and unknown", []string{"", "ZZ", " "}, "Unsupported target countries: (empty), ZZ"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Run(context.Background(), types.AnalyzeRequest{
				CampaignContent: fitnessCopy,
				TargetCountries: tt.countries,
			})
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.ErrUnknownCountry))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunNormalisesCountries(t *testing.T) {
	e := newTestEngine(t, nil)

	res, err := e.Run(context.Background(), types.AnalyzeRequest{
		CampaignContent: fitnessCopy,
		TargetCountries: []string{" us", "US", "uk", "GB"},
	})
	require.NoError(t, err)

	assert.Len(t, res.CountryScores, 2)
	assert.Contains(t, res.CountryScores, "US")
	assert.Contains(t, res.CountryScores, "GB")
}

func TestRunOracleFailureLowersDataQuality(t *testing.T) {
	healthy := newTestEngine(t, oracle.Stub{Signal: oracle.Signal{Sentiment: 0.8, Confidence: 0.9}})
	failing := newTestEngine(t, oracle.Stub{Err: stderrors.New("oracle down")})

	good, err := healthy.Run(context.Background(), workedRequest())
	require.NoError(t, err)
	degraded, err := failing.Run(context.Background(), workedRequest())
	require.NoError(t, err)

	for _, code := range []string{"US", "JP"} {
		assert.Less(t, degraded.ScoreBreakdown[code].DataQuality, good.ScoreBreakdown[code].DataQuality, code)
		assert.Greater(t, degraded.ConfidenceIntervals[code].MarginOfError, good.ConfidenceIntervals[code].MarginOfError, code)
		assert.Equal(t, 0.0, degraded.ScoreBreakdown[code].ConfidenceBonus, code)
	}

	// both keyword fits sit above 0.5, as does the stub sentiment
	assert.InDelta(t, 0.045, good.ScoreBreakdown["US"].ConfidenceBonus, 1e-9)
	assert.InDelta(t, 0.045, good.ScoreBreakdown["JP"].ConfidenceBonus, 1e-9)
}

func TestRunIdempotent(t *testing.T) {
	e := newTestEngine(t, oracle.Stub{Signal: oracle.Signal{Sentiment: 0.3, Confidence: 0.7}})

	req := workedRequest()
	req.TargetCountries = []string{"US", "JP", "DE", "BR", "IN", "NG", "SE"}

	first, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := e.Run(context.Background(), req)
		require.NoError(t, err)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestRunCancelledContext(t *testing.T) {
	e := newTestEngine(t, oracle.Func(func(ctx context.Context, _ string, _ oracle.CountryContext) (oracle.Signal, error) {
		<-ctx.Done()
		return oracle.Signal{}, ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res, err := e.Run(ctx, workedRequest())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, errors.CategoryTimeout, errors.ToAppError(err).Category)
}

func TestRunLogsAndRecordsMetrics(t *testing.T) {
	var buf bytes.Buffer
	logger := monitoring.NewLoggerWithWriter(&buf, slog.LevelInfo)
	metrics := monitoring.NewMetrics()

	e := newTestEngine(t, nil, WithLogger(logger), WithMetrics(metrics))
	res, err := e.Run(context.Background(), workedRequest())
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Analysis Completed")
	assert.Contains(t, buf.String(), res.AnalysisID)
	assert.False(t, math.IsNaN(res.OverallScore))
}

func TestNewEngineDefaults(t *testing.T) {
	lib, err := bias.DefaultLibrary()
	require.NoError(t, err)
	store := defaultStore(t)

	e := NewEngine(store, bias.NewDetector(lib), newTestAnalyzer(t, nil), NewScorer(DefaultScorerConfig()))
	res, err := e.Run(context.Background(), workedRequest())
	require.NoError(t, err)

	assert.Len(t, res.AnalysisID, 36)
	assert.WithinDuration(t, time.Now(), res.Timestamp, time.Minute)
	assert.Same(t, store, e.Store())
	assert.NotNil(t, e.Detector())
	assert.NotNil(t, e.Scorer())
}
