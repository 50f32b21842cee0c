package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/dartrefs/internal/output"
	"github.com/panbanda/dartrefs/pkg/analyzer/usage"
	"github.com/panbanda/dartrefs/pkg/watch"
)

func watchCmd() *cli.Command {
	flags := append(analysisFlags(), outputFlags()...)
	flags = append(flags, &cli.DurationFlag{
		Name:  "debounce",
		Value: watch.DefaultDebounce,
		Usage: "Quiet period before re-analyzing",
	})
	return &cli.Command{
		Name:      "watch",
		Usage:     "Re-run the usage summary whenever Dart files change",
		ArgsUsage: "[path]",
		Flags:     flags,
		Action:    runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	root, err := filepath.Abs(getRoot(c))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	loaded, err := loadConfig(c, root)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	logger := newLogger(c.App.ErrWriter, cfg)

	a, err := newAnalyzer(cfg, root, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(contextOrBackground(c), os.Interrupt, syscall.SIGTERM)
	defer stop()

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	msg := output.NewMessenger(c.App.Writer, cfg.Output.Color)
	analyze := func() {
		res, err := a.AnalyzeProject(ctx, root)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				msg.Error("Analysis failed: %v", err)
			}
			return
		}
		if err := formatter.Output(summaryTable(res)); err != nil {
			msg.Error("Output failed: %v", err)
		}
		printHeadline(msg, res)
	}

	w, err := watch.NewWatcher(root, cfg, c.Duration("debounce"))
	if err != nil {
		return err
	}
	defer w.Stop()
	w.SetErrorHandler(func(err error) {
		msg.Error("Watch error: %v", err)
	})
	w.SetCallback(func(changed []string) {
		for _, path := range changed {
			msg.Warning("Changed: %s", relPath(root, path))
		}
		analyze()
	})

	analyze()
	msg.Info("Watching for changes in %s...", root)
	msg.Info("Press Ctrl+C to stop")

	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// printHeadline prints the one-line outcome of a watch iteration.
func printHeadline(msg *output.Messenger, res *usage.Result) {
	s := res.Summary
	line := fmt.Sprintf("%d declarations in %d files: %d unused, %d commented out", s.Total, len(res.Files), s.Unused, s.Commented)
	if s.Unused == 0 && s.Commented == 0 {
		msg.Success("%s", line)
		return
	}
	msg.Warning("%s", line)
}
