package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/dartrefs/internal/report"
	"github.com/panbanda/dartrefs/pkg/analyzer/usage"
)

func reportCmd() *cli.Command {
	flags := append(analysisFlags(),
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Value:   "dartrefs-report.html",
			Usage:   "HTML file to write",
		},
		&cli.StringFlag{
			Name:  "from",
			Usage: "Render a result saved with --format json instead of analyzing",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Disable caching",
		},
	)
	return &cli.Command{
		Name:      "report",
		Usage:     "Generate a standalone HTML usage report",
		ArgsUsage: "[path]",
		Flags:     flags,
		Action:    runReportCmd,
	}
}

func runReportCmd(c *cli.Context) error {
	renderer, err := report.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load report template: %w", err)
	}

	var res *usage.Result
	if from := c.String("from"); from != "" {
		res, err = report.LoadResult(from)
	} else {
		res, _, err = runAnalysis(c)
	}
	if err != nil {
		return err
	}

	out := c.String("output")
	if err := renderer.RenderToFile(res, version, out); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	color.Green("Report written to %s", out)
	return nil
}
