package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bookforge/bookforge/internal/cache"
	"github.com/bookforge/bookforge/internal/home"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the generation cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		stats := store.Stats()
		fmt.Printf("Cache directory: %s\n", store.Dir())
		fmt.Printf("Entries:         %d\n", stats.Entries)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all cached generation results",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openCache()
		if err != nil {
			return err
		}
		entries := store.Stats().Entries
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Printf("Cleared %d cache entries from %s\n", entries, store.Dir())
		return nil
	},
}

func openCache() (*cache.DiskStore, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	return cache.NewDiskStore(h.CachePath(), logger)
}

func init() {
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
