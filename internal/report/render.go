// Package report renders an analysis result as a standalone HTML page.
package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/panbanda/dartrefs/internal/cleanup"
	"github.com/panbanda/dartrefs/pkg/analyzer/categorize"
	"github.com/panbanda/dartrefs/pkg/analyzer/usage"
	"github.com/panbanda/dartrefs/pkg/models"
)

//go:embed template.html
var templateFS embed.FS

// RenderData contains all data needed to render the report.
type RenderData struct {
	Metadata     Metadata
	Cards        []SummaryCard
	Sections     []BucketSection
	Candidates   []string
	ExportCycles [][]string
	Warnings     []string
	Skipped      []string
}

// Renderer handles HTML report generation.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer creates a new renderer with the embedded template.
func NewRenderer() (*Renderer, error) {
	printer := message.NewPrinter(language.English)
	funcMap := template.FuncMap{
		"title": cases.Title(language.English).String,
		"truncatePath": func(s string, n int) string {
			if len(s) <= n {
				return s
			}
			parts := strings.Split(s, "/")
			filename := parts[len(parts)-1]
			if len(parts) <= 2 || len(filename) >= n-3 {
				return "..." + s[len(s)-n+3:]
			}
			remaining := max(n-len(filename)-4, 0)
			prefix := strings.Join(parts[:len(parts)-1], "/")
			if len(prefix) > remaining {
				prefix = prefix[len(prefix)-remaining:]
			}
			return ".../" + prefix + "/" + filename
		},
		"percent": func(a, b int) float64 {
			if b == 0 {
				return 0
			}
			return float64(a) / float64(b) * 100
		},
		"num": func(n int) string {
			return printer.Sprintf("%d", n)
		},
	}

	tmplContent, err := templateFS.ReadFile("template.html")
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New("report").Funcs(funcMap).Parse(string(tmplContent))
	if err != nil {
		return nil, err
	}

	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the HTML report for res.
func (r *Renderer) Render(res *usage.Result, version string, w io.Writer) error {
	return r.tmpl.Execute(w, Build(res, version, time.Now()))
}

// RenderToFile writes the HTML report for res to outputPath.
func (r *Renderer) RenderToFile(res *usage.Result, version, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer f.Close()

	return r.Render(res, version, f)
}

// LoadResult reads a result previously written with the JSON formatter.
// Only the serialized fields are restored, so deletion candidates are not
// available for loaded results.
func LoadResult(path string) (*usage.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var res usage.Result
	if err := json.NewDecoder(f).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if res.Buckets == nil {
		res.Buckets = &categorize.Buckets{}
	}
	return &res, nil
}

var bucketBadges = map[categorize.Bucket]string{
	categorize.BucketUnused:             "critical",
	categorize.BucketCommented:          "high",
	categorize.BucketInternalOnly:       "medium",
	categorize.BucketExternalOnly:       "low",
	categorize.BucketMixed:              "low",
	categorize.BucketEntryPoint:         "info",
	categorize.BucketFrameworkLifecycle: "info",
}

// Build assembles the template data for res.
func Build(res *usage.Result, version string, now time.Time) *RenderData {
	data := &RenderData{
		Metadata: Metadata{
			Project:     filepath.Base(res.Root),
			GeneratedAt: now,
			Version:     version,
			Functions:   res.Functions,
			Files:       len(res.Files),
			Total:       res.Summary.Total,
		},
		ExportCycles: relativeGroups(res.Root, res.ExportCycles),
		Warnings:     res.Warnings,
		Skipped:      relativeAll(res.Root, res.Skipped),
	}

	s := res.Summary
	data.Cards = []SummaryCard{
		{Label: "Declarations", Value: s.Total, Badge: "info"},
		{Label: "Unused", Value: s.Unused, Badge: bucketBadges[categorize.BucketUnused]},
		{Label: "Commented", Value: s.Commented, Badge: bucketBadges[categorize.BucketCommented]},
		{Label: "Internal only", Value: s.InternalOnly, Badge: bucketBadges[categorize.BucketInternalOnly]},
		{Label: "External only", Value: s.ExternalOnly, Badge: bucketBadges[categorize.BucketExternalOnly]},
		{Label: "Mixed", Value: s.Mixed, Badge: bucketBadges[categorize.BucketMixed]},
	}

	for _, b := range categorize.AllBuckets {
		entities := res.Buckets.Get(b)
		if len(entities) == 0 {
			continue
		}
		section := BucketSection{
			Key:   string(b),
			Title: strings.ReplaceAll(string(b), "_", " "),
			Badge: bucketBadges[b],
		}
		for _, e := range entities {
			section.Rows = append(section.Rows, row(res.Root, e))
		}
		data.Sections = append(data.Sections, section)
	}

	if res.Table != nil {
		data.Candidates = relativeAll(res.Root, cleanup.Candidates(cleanup.Judge(res)))
	}
	return data
}

func row(root string, e *models.Entity) Row {
	return Row{
		Name:          e.QualifiedName(),
		Category:      strings.ReplaceAll(string(e.Category), "_", " "),
		Location:      relative(root, e.File) + ":" + strconv.Itoa(e.Location.Line),
		Internal:      e.Internal,
		External:      e.TotalExternal(),
		ExternalFiles: len(e.External),
	}
}

func relative(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

func relativeAll(root string, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = relative(root, p)
	}
	return out
}

func relativeGroups(root string, groups [][]string) [][]string {
	out := make([][]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, relativeAll(root, g))
	}
	return out
}
