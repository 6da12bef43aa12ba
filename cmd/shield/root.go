package main

import (
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "shield",
		Short: "Score campaign copy for cultural alignment and bias",
		Long: "shield runs the cultural alignment engine locally. Datasets and the\n" +
			"Gemini oracle are configured with the same environment variables as the\n" +
			"HTTP server.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}

	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newCountriesCmd())
	root.AddCommand(newDimensionsCmd())
	root.AddCommand(newPatternsCmd())
	return root
}
