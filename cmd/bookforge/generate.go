package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/bookforge/bookforge/internal/cache"
	"github.com/bookforge/bookforge/internal/config"
	"github.com/bookforge/bookforge/internal/home"
	"github.com/bookforge/bookforge/internal/pipeline"
	"github.com/bookforge/bookforge/internal/providers"
)

var (
	genOutputDir   string
	genFormats     []string
	genProvider    string
	genImgProvider string
	genWorkers     int
	genSequential  bool
	genNoCache     bool
	genImages      bool
	genVerbose     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <input-file>",
	Short: "Generate a complete book from a source document",
	Long: `Generate a book from a plain-text source document.

The input is analyzed to produce a title, description, and chapter outline,
then chapters are written in parallel with caching and retries. Rendered
formats and generation artifacts are packaged into a timestamped directory.

Examples:
  bookforge generate notes.txt                    # All configured formats
  bookforge generate notes.txt --formats pdf      # PDF only
  bookforge generate notes.txt --images           # With cover + illustrations
  bookforge generate notes.txt --workers 8        # More parallel chapters`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		level := slog.LevelInfo
		if genVerbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		}))

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		path := cfgFile
		if path == "" && h.ConfigExists() {
			path = h.ConfigPath()
		}
		mgr, err := config.NewManager(path)
		if err != nil {
			return err
		}
		if path != "" {
			mgr.OnChange(func(*config.Config) {
				logger.Info("configuration reloaded", "file", path)
			})
			mgr.WatchConfig()
		}
		cfg := mgr.Get()
		applyGenerateFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		registry := providers.NewRegistry()
		registry.SetLogger(logger)
		if err := registry.LoadFromConfig(cfg.ToProviderRegistryConfig()); err != nil {
			return err
		}
		content, err := registry.GetContent(cfg.Defaults.ContentProvider)
		if err != nil {
			return err
		}
		var images providers.ImageClient
		if cfg.Generation.Images {
			images, err = registry.GetImage(cfg.Defaults.ImageProvider)
			if err != nil {
				return err
			}
		}

		var store cache.Store
		if cfg.Concurrency.UseCache {
			dir := cfg.Cache.Dir
			if dir == "" {
				dir = h.CachePath()
			}
			store, err = cache.NewDiskStore(dir, logger)
			if err != nil {
				return err
			}
		}

		outputDir := genOutputDir
		if outputDir == "" {
			outputDir = cfg.Output.Dir
		}
		if outputDir == "" {
			outputDir = h.OutputPath()
		}
		if err := os.MkdirAll(outputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		res, err := pipeline.New(cfg, content, images, store, logger).Run(ctx, args[0], outputDir)
		if err != nil {
			return err
		}

		printSummary(res)
		return nil
	},
}

// applyGenerateFlags overlays explicitly-set flags onto the loaded config.
func applyGenerateFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("formats") {
		cfg.Output.Formats = genFormats
	}
	if flags.Changed("content-provider") {
		cfg.Defaults.ContentProvider = genProvider
	}
	if flags.Changed("image-provider") {
		cfg.Defaults.ImageProvider = genImgProvider
	}
	if flags.Changed("workers") {
		cfg.Concurrency.MaxWorkers = genWorkers
	}
	if genSequential {
		cfg.Concurrency.Parallel = false
	}
	if genNoCache {
		cfg.Concurrency.UseCache = false
	}
	if flags.Changed("images") {
		cfg.Generation.Images = genImages
	}
}

func printSummary(res *pipeline.Result) {
	fmt.Printf("\nBook: %s\n", res.Book.Metadata.Title)
	fmt.Printf("Package: %s\n", res.PackageDir)
	fmt.Printf("Elapsed: %s\n\n", res.Elapsed.Round(time.Millisecond))

	fmt.Printf("%-12s %6s %8s %6s %8s %10s\n", "STAGE", "CALLS", "FAILURES", "CACHED", "TOKENS", "DURATION")
	for _, s := range res.Stages {
		fmt.Printf("%-12s %6d %8d %6d %8d %10s\n",
			s.Stage, s.Calls, s.Failures, s.CacheHits, s.TotalTokens, s.Duration.Round(time.Millisecond))
	}

	if total := res.CacheStats.Hits + res.CacheStats.Misses; total > 0 {
		fmt.Printf("\nCache: %d hits, %d misses (%.0f%% hit rate)\n",
			res.CacheStats.Hits, res.CacheStats.Misses, res.CacheStats.HitRate()*100)
	}
}

func init() {
	generateCmd.Flags().StringVarP(&genOutputDir, "output", "o", "", "output directory (default: ~/.bookforge/output)")
	generateCmd.Flags().StringSliceVar(&genFormats, "formats", nil, "output formats: pdf, epub, html")
	generateCmd.Flags().StringVar(&genProvider, "content-provider", "", "content provider to use")
	generateCmd.Flags().StringVar(&genImgProvider, "image-provider", "", "image provider to use")
	generateCmd.Flags().IntVar(&genWorkers, "workers", 0, "max parallel chapter workers")
	generateCmd.Flags().BoolVar(&genSequential, "sequential", false, "generate chapters one at a time")
	generateCmd.Flags().BoolVar(&genNoCache, "no-cache", false, "bypass the generation cache")
	generateCmd.Flags().BoolVar(&genImages, "images", false, "generate cover and chapter illustrations")
	generateCmd.Flags().BoolVarP(&genVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(generateCmd)
}
