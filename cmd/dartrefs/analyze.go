package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/dartrefs/internal/output"
	"github.com/panbanda/dartrefs/pkg/analyzer/categorize"
	"github.com/panbanda/dartrefs/pkg/analyzer/usage"
	"github.com/panbanda/dartrefs/pkg/models"
)

func analyzeCmd() *cli.Command {
	flags := append(analysisFlags(), outputFlags()...)
	flags = append(flags, &cli.StringSliceFlag{
		Name:    "bucket",
		Aliases: []string{"b"},
		Usage:   "Only show these buckets (unused, commented, internal_only, external_only, mixed, entry_point, framework_lifecycle)",
	})
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Count references to every declaration and group them by usage",
		ArgsUsage: "[path]",
		Flags:     flags,
		Action:    runAnalyzeCmd,
	}
}

func runAnalyzeCmd(c *cli.Context) error {
	buckets, err := parseBuckets(c.StringSlice("bucket"))
	if err != nil {
		return err
	}

	res, cfg, err := runAnalysis(c)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	colored := formatter.Colored() && formatter.Format() == output.FormatText
	return formatter.Output(buildReport(res, buckets, colored))
}

// parseBuckets validates bucket names; no names selects every bucket.
func parseBuckets(names []string) ([]categorize.Bucket, error) {
	if len(names) == 0 {
		return categorize.AllBuckets, nil
	}
	var out []categorize.Bucket
	for _, n := range names {
		b := categorize.Bucket(strings.ReplaceAll(strings.ToLower(n), "-", "_"))
		if !slices.Contains(categorize.AllBuckets, b) {
			return nil, fmt.Errorf("unknown bucket %q", n)
		}
		out = append(out, b)
	}
	return out, nil
}

// buildReport renders the summary and one table per non-empty bucket.
// JSON and TOON output serialize the whole result instead.
func buildReport(res *usage.Result, buckets []categorize.Bucket, colored bool) *output.Report {
	report := &output.Report{
		Title: "Declaration usage",
		Data:  res,
	}
	report.Sections = append(report.Sections, summaryTable(res))
	for _, b := range buckets {
		entities := res.Buckets.Get(b)
		if len(entities) == 0 {
			continue
		}
		report.Sections = append(report.Sections, bucketTable(res.Root, b, entities, colored))
	}
	if len(res.ExportCycles) > 0 {
		var rows [][]string
		for _, cycle := range res.ExportCycles {
			names := make([]string, len(cycle))
			for i, f := range cycle {
				names[i] = relPath(res.Root, f)
			}
			rows = append(rows, []string{strings.Join(names, " <-> ")})
		}
		report.Sections = append(report.Sections, output.NewTable("Export cycles", []string{"Files"}, rows, nil, nil))
	}
	if len(res.Warnings) > 0 {
		report.Sections = append(report.Sections, &output.List{Title: "Warnings", Items: res.Warnings})
	}
	if len(res.Skipped) > 0 {
		skipped := make([]string, len(res.Skipped))
		for i, f := range res.Skipped {
			skipped[i] = relPath(res.Root, f)
		}
		report.Sections = append(report.Sections, &output.List{Title: "Skipped files", Items: skipped})
	}
	return report
}

func summaryTable(res *usage.Result) *output.Table {
	s := res.Summary
	rows := [][]string{
		{"Files", strconv.Itoa(len(res.Files))},
		{"Declarations", strconv.Itoa(s.Total)},
		{"Types", strconv.Itoa(s.Types)},
		{"Functions", strconv.Itoa(s.Functions)},
	}
	for _, b := range categorize.AllBuckets {
		rows = append(rows, []string{bucketTitle(b), strconv.Itoa(len(res.Buckets.Get(b)))})
	}
	if len(res.Skipped) > 0 {
		rows = append(rows, []string{"Skipped files", strconv.Itoa(len(res.Skipped))})
	}
	return output.NewTable("Summary", []string{"Metric", "Count"}, rows, nil, s)
}

func bucketTable(root string, b categorize.Bucket, entities []*models.Entity, colored bool) *output.Table {
	rows := make([][]string, 0, len(entities))
	for _, e := range entities {
		internal := strconv.Itoa(e.Internal)
		external := strconv.Itoa(e.TotalExternal())
		if colored {
			internal = output.CountColor(e.Internal)
			external = output.CountColor(e.TotalExternal())
		}
		rows = append(rows, []string{
			fmt.Sprintf("%s:%d", relPath(root, e.File), e.Location.Line),
			e.QualifiedName(),
			string(e.Category),
			internal,
			external,
			strconv.Itoa(len(e.External)),
		})
	}
	return output.NewTable(
		bucketTitle(b),
		[]string{"Location", "Name", "Category", "Internal", "External", "Files"},
		rows,
		[]string{"", "", "", "", "Total", strconv.Itoa(len(entities))},
		entities,
	)
}

func bucketTitle(b categorize.Bucket) string {
	switch b {
	case categorize.BucketUnused:
		return "Unused"
	case categorize.BucketCommented:
		return "Commented out"
	case categorize.BucketInternalOnly:
		return "Internal only"
	case categorize.BucketExternalOnly:
		return "External only"
	case categorize.BucketMixed:
		return "Internal and external"
	case categorize.BucketEntryPoint:
		return "Entry points"
	case categorize.BucketFrameworkLifecycle:
		return "Framework lifecycle"
	}
	return string(b)
}
