package main

import (
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/dartrefs/internal/cache"
	"github.com/panbanda/dartrefs/internal/output"
	"github.com/panbanda/dartrefs/pkg/config"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the per-file scan cache",
		Subcommands: []*cli.Command{
			{
				Name:      "stats",
				Usage:     "Show cache statistics",
				ArgsUsage: "[path]",
				Flags:     outputFlags(),
				Action:    runCacheStats,
			},
			{
				Name:      "clear",
				Usage:     "Remove every cache entry",
				ArgsUsage: "[path]",
				Action:    runCacheClear,
			},
		},
	}
}

// openCache opens the cache configured for the project root, even when
// caching is disabled for analysis.
func openCache(c *cli.Context) (*cache.Cache, *config.Config, error) {
	root, err := filepath.Abs(getRoot(c))
	if err != nil {
		return nil, nil, err
	}
	loaded, err := loadConfig(c, root)
	if err != nil {
		return nil, nil, err
	}
	cfg := loaded.Config
	ch, err := cache.New(resolveCacheDir(cfg, root), cfg.Cache.TTL, true)
	return ch, cfg, err
}

// forgetCached drops the cache entries of deleted files. Failures are logged
// at debug level.
func forgetCached(cfg *config.Config, root string, files []string, logger *slog.Logger) {
	ch, err := cache.New(resolveCacheDir(cfg, root), cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		return
	}
	for _, f := range files {
		if err := ch.Invalidate(f); err != nil {
			logger.Debug("cache entry not removed", "file", f, "error", err)
		}
	}
}

func runCacheStats(c *cli.Context) error {
	ch, cfg, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := ch.GetStats()
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	rows := [][]string{
		{"Directory", ch.Dir()},
		{"Entries", strconv.Itoa(stats.Entries)},
		{"Size", strconv.FormatInt(stats.TotalSize, 10) + " bytes"},
		{"Oldest", stats.OldestAge.Round(time.Second).String()},
		{"Newest", stats.NewestAge.Round(time.Second).String()},
	}
	return formatter.Output(output.NewTable("Cache", []string{"Metric", "Value"}, rows, nil, stats))
}

func runCacheClear(c *cli.Context) error {
	ch, _, err := openCache(c)
	if err != nil {
		return err
	}
	if err := ch.Clear(); err != nil {
		return err
	}
	color.Green("Cleared cache at %s", ch.Dir())
	return nil
}
