package main

import (
	"github.com/spf13/cobra"

	"github.com/bookforge/bookforge/version"
)

var (
	cfgFile string
	homeDir string
)

var rootCmd = &cobra.Command{
	Use:   "bookforge",
	Short: "Book generation pipeline with LLM-powered writing and formatting",
	Long: `Bookforge turns a plain-text source document into a complete book
using LLM-powered generation.

The pipeline includes:
  - Title, description, and chapter outline generation
  - Parallel chapter writing with caching and retries
  - Optional cover and chapter illustrations
  - PDF, ePub, and HTML output with packaging`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.bookforge/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "bookforge home directory (default: ~/.bookforge)",
	)

	rootCmd.AddCommand(versionCmd)
}
