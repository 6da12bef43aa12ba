package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/config"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/security"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/types"
)

type analyzeFlags struct {
	countries    []string
	industry     string
	campaignType string
	file         string
	noOracle     bool
	failOn       string
	logLevel     string
}

func newAnalyzeCmd() *cobra.Command {
	var flags analyzeFlags

	cmd := &cobra.Command{
		Use:   "analyze [content...]",
		Short: "Score campaign content against target countries",
		Long: `Analyze campaign copy and print the full result as JSON.

Usage:
  shield analyze -c US,JP "Unlock your potential..."
  shield analyze -c DE --file campaign.txt
  cat campaign.txt | shield analyze -c BR,MX --no-oracle

With --fail-on the command exits non-zero when the overall risk level is at
or above the given level, which lets CI gate copy changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, flags)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&flags.countries, "countries", "c", nil, "Target country codes (comma separated)")
	f.StringVar(&flags.industry, "industry", "", "Industry label, e.g. fitness")
	f.StringVar(&flags.campaignType, "campaign-type", "", "Campaign type label, e.g. social")
	f.StringVarP(&flags.file, "file", "f", "", "Read content from a file (- for stdin)")
	f.BoolVar(&flags.noOracle, "no-oracle", false, "Skip the Gemini oracle even when configured")
	f.StringVar(&flags.failOn, "fail-on", "", "Exit non-zero at this risk level or above (low, medium, high)")
	f.StringVar(&flags.logLevel, "log-level", "warn", "Log level for stderr output")
	_ = cmd.MarkFlagRequired("countries")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string, flags analyzeFlags) error {
	threshold, err := parseRisk(flags.failOn)
	if err != nil {
		return err
	}

	content, err := readContent(cmd, args, flags.file)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	req := types.AnalyzeRequest{
		CampaignContent: content,
		TargetCountries: flags.countries,
		CampaignType:    flags.campaignType,
		Industry:        flags.industry,
	}
	if err := security.DefaultInputPolicy().ValidateAnalyzeRequest(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
	defer cancel()

	engine, err := newEngine(ctx, cmd, cfg, engineOptions{
		oracle:   !flags.noOracle,
		logLevel: flags.logLevel,
	})
	if err != nil {
		return err
	}

	result, err := engine.Run(ctx, req)
	if err != nil {
		return err
	}
	if err := printJSON(cmd, result); err != nil {
		return err
	}

	if threshold > 0 && riskRank[result.RiskLevel] >= threshold {
		return fmt.Errorf("risk level %s is at or above --fail-on %s", result.RiskLevel, flags.failOn)
	}
	return nil
}

var riskRank = map[types.RiskLevel]int{
	types.RiskLow:    1,
	types.RiskMedium: 2,
	types.RiskHigh:   3,
}

// parseRisk returns 0 for an empty level
func parseRisk(level string) (int, error) {
	if level == "" {
		return 0, nil
	}
	rank, ok := riskRank[types.RiskLevel(strings.ToLower(level))]
	if !ok {
		return 0, fmt.Errorf("invalid --fail-on %q: want low, medium or high", level)
	}
	return rank, nil
}

// readContent takes the content from --file, then positional args, then stdin
func readContent(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case file == "-":
		return readAll(cmd.InOrStdin())
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read content: %w", err)
		}
		return string(data), nil
	case len(args) > 0:
		return strings.Join(args, " "), nil
	default:
		return readAll(cmd.InOrStdin())
	}
}

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read content: %w", err)
	}
	return string(data), nil
}
