package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/dartrefs/internal/cache"
	"github.com/panbanda/dartrefs/internal/output"
	"github.com/panbanda/dartrefs/internal/progress"
	"github.com/panbanda/dartrefs/internal/scanner"
	"github.com/panbanda/dartrefs/pkg/analyzer"
	"github.com/panbanda/dartrefs/pkg/analyzer/collector"
	"github.com/panbanda/dartrefs/pkg/analyzer/usage"
	"github.com/panbanda/dartrefs/pkg/config"
	"github.com/panbanda/dartrefs/pkg/models"
)

// getRoot returns the project root from the first positional argument,
// defaulting to the current directory.
func getRoot(c *cli.Context) string {
	if c.Args().Len() > 0 {
		return c.Args().First()
	}
	return "."
}

// outputFlags are shared by every command that prints a result.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, markdown, toon",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to file",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Disable caching",
		},
	}
}

// analysisFlags override the [analysis] section of the config file.
func analysisFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "functions",
			Usage: "Also analyze functions, methods and constructors",
		},
		&cli.BoolFlag{
			Name:  "trace",
			Usage: "Log every reference decision (implies --verbose)",
		},
		&cli.StringFlag{
			Name:  "duplicates",
			Usage: "Duplicate declaration policy: last-wins or coexist",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Number of parallel workers (default 2x CPUs)",
		},
	}
}

// loadConfig loads the config named by --config, or searches root for one,
// and applies command-line overrides.
func loadConfig(c *cli.Context, root string) (*config.LoadResult, error) {
	opts := []config.LoadOption{config.WithSearchDir(root)}
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}

	cfg := result.Config
	if c.IsSet("functions") {
		cfg.Analysis.Functions = c.Bool("functions")
	}
	if c.IsSet("trace") {
		cfg.Analysis.Trace = c.Bool("trace")
	}
	if c.IsSet("duplicates") {
		cfg.Analysis.DuplicatePolicy = c.String("duplicates")
	}
	if c.IsSet("workers") {
		cfg.Analysis.Workers = c.Int("workers")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}
	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

// newLogger returns a text logger on w. Info records are shown when verbose,
// debug records when tracing.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := slog.LevelWarn
	if cfg.Output.Verbose {
		level = slog.LevelInfo
	}
	if cfg.Analysis.Trace {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// resolveCacheDir returns the cache directory, relative paths taken from root.
func resolveCacheDir(cfg *config.Config, root string) string {
	if filepath.IsAbs(cfg.Cache.Dir) {
		return cfg.Cache.Dir
	}
	return filepath.Join(root, cfg.Cache.Dir)
}

// newAnalyzer builds the usage analyzer described by cfg.
func newAnalyzer(cfg *config.Config, root string, logger *slog.Logger) (*usage.Analyzer, error) {
	policy, err := models.ParseDuplicatePolicy(cfg.Analysis.DuplicatePolicy)
	if err != nil {
		return nil, err
	}

	cacheDir := resolveCacheDir(cfg, root)
	c, err := cache.New(cacheDir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		logger.Warn("cache disabled", "dir", cacheDir, "error", err)
		c = nil
	}

	return usage.New(
		usage.WithFunctions(cfg.Analysis.Functions),
		usage.WithTrace(cfg.Analysis.Trace),
		usage.WithDuplicatePolicy(policy),
		usage.WithWorkers(cfg.Analysis.Workers),
		usage.WithMaxFileSize(cfg.Analysis.MaxFileSize),
		usage.WithFramework(collector.Framework(cfg.Framework)),
		usage.WithCache(c),
		usage.WithLogger(logger),
		usage.WithScanner(scanner.NewScanner(cfg)),
	), nil
}

// runAnalysis loads the config and analyzes the project named on the
// command line, showing a progress bar on stderr.
func runAnalysis(c *cli.Context) (*usage.Result, *config.Config, error) {
	root, err := filepath.Abs(getRoot(c))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid path: %w", err)
	}
	loaded, err := loadConfig(c, root)
	if err != nil {
		return nil, nil, err
	}
	cfg := loaded.Config
	logger := newLogger(c.App.ErrWriter, cfg)
	if loaded.Source != "" {
		logger.Info("loaded config", "path", loaded.Source)
	}

	a, err := newAnalyzer(cfg, root, logger)
	if err != nil {
		return nil, nil, err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(contextOrBackground(c), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracker := progress.NewTrackerTo(c.App.ErrWriter, "Analyzing", 0)
	ctx = analyzer.WithTracker(ctx, tracker.AnalyzerTracker())
	res, err := a.AnalyzeProject(ctx, root)
	if err != nil {
		tracker.FinishError(err)
		return nil, nil, fmt.Errorf("analysis failed: %w", err)
	}
	tracker.FinishSuccess()

	if len(res.Skipped) > 0 {
		color.New(color.FgYellow).Fprintf(c.App.ErrWriter, "Skipped %d unreadable files\n", len(res.Skipped))
	}
	return res, cfg, nil
}

// newFormatter opens the formatter for --output and the configured format.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	return output.NewFormatter(output.ParseFormat(cfg.Output.Format), c.String("output"), cfg.Output.Color)
}

// relPath shortens path to be relative to root when possible.
func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

// contextOrBackground guards against commands invoked without a context.
func contextOrBackground(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
