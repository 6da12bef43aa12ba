package main

import (
	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/config"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/errors"
	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/reference"
)

type countryRow struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Region       string  `json:"region"`
	Completeness float64 `json:"completeness"`
}

func newCountriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "countries",
		Short: "List supported countries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := loadStore(cfg)
			if err != nil {
				return err
			}

			rows := make([]countryRow, 0, store.Len())
			for _, c := range store.Countries() {
				rows = append(rows, countryRow{Code: c.Code, Name: c.Name, Region: c.Region, Completeness: c.Completeness()})
			}
			return printJSON(cmd, rows)
		},
	}
}

func newDimensionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dimensions CODE",
		Short: "Show the cultural dimension profile of a country",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := loadStore(cfg)
			if err != nil {
				return err
			}

			country, ok := store.Lookup(args[0])
			if !ok {
				return errors.NewNotFoundError("country", reference.Normalize(args[0]))
			}

			return printJSON(cmd, map[string]interface{}{
				"country":          country.Code,
				"name":             country.Name,
				"region":           country.Region,
				"dimensions":       country.Dimensions,
				"interpretation":   reference.Interpret(country.Dimensions),
				"estimated":        country.Estimated,
				"completeness":     country.Completeness(),
				"cultural_context": store.ContextFor(country.Code),
			})
		},
	}
}

type patternRow struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Severity    int    `json:"base_severity"`
	Description string `json:"description"`
}

func newPatternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the bias pattern catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			lib, err := loadLibrary(cfg)
			if err != nil {
				return err
			}

			rows := make([]patternRow, 0, lib.Len())
			for _, p := range lib.Patterns() {
				rows = append(rows, patternRow{
					ID:          p.ID,
					Type:        string(p.Type),
					Severity:    p.BaseSeverity,
					Description: p.Description,
				})
			}
			return printJSON(cmd, rows)
		},
	}
}
