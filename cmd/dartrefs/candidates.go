package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/dartrefs/internal/cleanup"
	"github.com/panbanda/dartrefs/internal/output"
)

func candidatesCmd() *cli.Command {
	flags := append(analysisFlags(), outputFlags()...)
	flags = append(flags,
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Also list files that must be kept and why",
		},
		&cli.BoolFlag{
			Name:  "delete",
			Usage: "Delete the candidate files",
		},
		&cli.BoolFlag{
			Name:    "yes",
			Aliases: []string{"y"},
			Usage:   "Do not ask for confirmation before deleting",
		},
	)
	return &cli.Command{
		Name:      "candidates",
		Aliases:   []string{"dead"},
		Usage:     "List files that only contain unused or commented-out declarations",
		ArgsUsage: "[path]",
		Flags:     flags,
		Action:    runCandidatesCmd,
	}
}

func runCandidatesCmd(c *cli.Context) error {
	res, cfg, err := runAnalysis(c)
	if err != nil {
		return err
	}

	verdicts := cleanup.Judge(res)
	files := cleanup.Candidates(verdicts)

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	var rows [][]string
	var shown []cleanup.Verdict
	for _, v := range verdicts {
		if !v.Eligible && !c.Bool("all") {
			continue
		}
		shown = append(shown, v)
		status := "delete"
		if !v.Eligible {
			status = "keep"
		}
		rows = append(rows, []string{relPath(res.Root, v.File), status, strconv.Itoa(v.Entities), v.Reason})
	}
	table := output.NewTable(
		"Deletion candidates",
		[]string{"File", "Status", "Declarations", "Reason"},
		rows,
		[]string{"", "", "Candidates", strconv.Itoa(len(files))},
		shown,
	)
	if err := formatter.Output(table); err != nil {
		return err
	}

	if !c.Bool("delete") {
		return nil
	}
	msg := output.NewMessenger(c.App.ErrWriter, cfg.Output.Color)
	if len(files) == 0 {
		msg.Warning("No files to delete")
		return nil
	}

	if cfg.Cleanup.Confirm && !c.Bool("yes") {
		prompter := cleanup.NewPrompter(c.App.Reader, c.App.ErrWriter)
		ok, err := prompter.Confirm(fmt.Sprintf("Delete %d files?", len(files)))
		if err != nil {
			return err
		}
		if !ok {
			msg.Warning("Aborted, no files deleted")
			return nil
		}
	}

	removed, err := cleanup.Delete(files)
	forgetCached(cfg, res.Root, removed, newLogger(c.App.ErrWriter, cfg))
	msg.Success("Deleted %d of %d files", len(removed), len(files))
	return err
}
