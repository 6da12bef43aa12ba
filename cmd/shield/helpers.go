package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/analysis"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/bias"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/config"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/monitoring"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/oracle"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
)

// engineOptions selects the optional parts of a CLI engine
type engineOptions struct {
	oracle   bool
	logLevel string
}

// newEngine loads the datasets named by cfg and assembles an engine. The
// oracle is only wired when requested and configured.
func newEngine(ctx context.Context, cmd *cobra.Command, cfg config.Config, opts engineOptions) (*analysis.Engine, error) {
	logger := monitoring.NewLoggerWithWriter(cmd.ErrOrStderr(), monitoring.ParseLevel(opts.logLevel))

	store, err := loadStore(cfg)
	if err != nil {
		return nil, err
	}
	library, err := loadLibrary(cfg)
	if err != nil {
		return nil, err
	}

	lexicon, err := loadLexicon(cfg)
	if err != nil {
		return nil, err
	}

	var o oracle.Oracle
	if opts.oracle && cfg.OracleConfigured() {
		gemini, err := oracle.NewGeminiOracle(ctx, oracle.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini oracle: %w", err)
		}
		guardCfg := oracle.DefaultGuardConfig()
		guardCfg.Timeout = cfg.OracleTimeout
		o = oracle.NewGuard(gemini, guardCfg, nil, logger)
	}

	analyzer := analysis.NewCulturalAnalyzer(store, lexicon, o, analysis.AnalyzerConfig{
		Concurrency:   cfg.AnalysisConcurrency,
		OracleTimeout: cfg.OracleTimeout,
	}).WithLogger(logger.Logger)

	scorer := analysis.NewScorer(analysis.ScorerConfig{
		AdaptationThreshold: cfg.AdaptationThreshold,
		MarginK:             analysis.DefaultMarginK,
	})

	return analysis.NewEngine(store, bias.NewDetector(library), analyzer, scorer,
		analysis.WithLogger(logger)), nil
}

func loadStore(cfg config.Config) (*reference.Store, error) {
	var (
		store *reference.Store
		err   error
	)
	if cfg.ReferenceDataPath != "" {
		store, err = reference.LoadFile(cfg.ReferenceDataPath)
	} else {
		store, err = reference.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load reference data: %w", err)
	}
	return store, nil
}

func loadLibrary(cfg config.Config) (*bias.Library, error) {
	var (
		lib *bias.Library
		err error
	)
	if cfg.PatternLibraryPath != "" {
		lib, err = bias.LoadLibraryFile(cfg.PatternLibraryPath)
	} else {
		lib, err = bias.DefaultLibrary()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bias patterns: %w", err)
	}
	return lib, nil
}

func loadLexicon(cfg config.Config) (*analysis.Lexicon, error) {
	var (
		lex *analysis.Lexicon
		err error
	)
	if cfg.LexiconPath != "" {
		lex, err = analysis.LoadLexiconFile(cfg.LexiconPath)
	} else {
		lex, err = analysis.DefaultLexicon()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lexicon: %w", err)
	}
	return lex, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
