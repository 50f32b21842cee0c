package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// Table is a titled grid with an optional footer. Data, when set, replaces
// the rows in machine formats.
type Table struct {
	Title   string     `json:"-"`
	Headers []string   `json:"-"`
	Rows    [][]string `json:"-"`
	Footer  []string   `json:"-"`
	Data    any        `json:"data,omitempty"`
}

// NewTable creates a table.
func NewTable(title string, headers []string, rows [][]string, footer []string, data any) *Table {
	return &Table{
		Title:   title,
		Headers: headers,
		Rows:    rows,
		Footer:  footer,
		Data:    data,
	}
}

// RenderData returns Data, or the rows keyed by header.
func (t *Table) RenderData() any {
	if t.Data != nil {
		return t.Data
	}
	out := make([]map[string]string, len(t.Rows))
	for i, row := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				m[h] = row[j]
			}
		}
		out[i] = m
	}
	return out
}

func (t *Table) RenderText(w io.Writer, colored bool) error {
	heading(w, t.Title, "=", colored, color.Bold)

	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
			},
			Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
			Footer: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignLeft}},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{Left: tw.Off, Right: tw.Off, Top: tw.Off, Bottom: tw.Off},
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenColumns: tw.Off},
			},
		}),
	)
	table.Header(t.Headers)
	for _, row := range t.Rows {
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if len(t.Footer) > 0 {
		cells := make([]any, len(t.Footer))
		for i, c := range t.Footer {
			cells[i] = c
		}
		table.Footer(cells...)
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w)
	return err
}

func (t *Table) RenderMarkdown(w io.Writer) error {
	if t.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", t.Title)
	}
	row := func(cells []string) {
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
	row(t.Headers)
	seps := make([]string, len(t.Headers))
	for i := range seps {
		seps[i] = "---"
	}
	row(seps)
	for _, r := range t.Rows {
		row(r)
	}
	if len(t.Footer) > 0 {
		row(t.Footer)
	}
	_, err := fmt.Fprintln(w)
	return err
}

// List is a titled list of lines, such as warnings or skipped files.
type List struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

// RenderData returns the list itself.
func (l *List) RenderData() any {
	return l
}

func (l *List) RenderText(w io.Writer, colored bool) error {
	heading(w, l.Title, "-", colored, color.FgYellow)
	for _, item := range l.Items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func (l *List) RenderMarkdown(w io.Writer) error {
	if l.Title != "" {
		fmt.Fprintf(w, "## %s\n\n", l.Title)
	}
	for _, item := range l.Items {
		fmt.Fprintf(w, "- %s\n", item)
	}
	_, err := fmt.Fprintln(w)
	return err
}

// Report is a titled sequence of views rendered one after another.
type Report struct {
	Title    string       `json:"title,omitempty"`
	Sections []Renderable `json:"-"`
	Data     any          `json:"data,omitempty"`
}

// RenderData returns Data, or the data of every section.
func (r *Report) RenderData() any {
	if r.Data != nil {
		return r.Data
	}
	parts := make([]any, len(r.Sections))
	for i, s := range r.Sections {
		parts[i] = s.RenderData()
	}
	return map[string]any{
		"title":    r.Title,
		"sections": parts,
	}
}

func (r *Report) RenderText(w io.Writer, colored bool) error {
	heading(w, r.Title, "=", colored, color.Bold, color.FgCyan)
	for _, s := range r.Sections {
		if err := s.RenderText(w, colored); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) RenderMarkdown(w io.Writer) error {
	if r.Title != "" {
		fmt.Fprintf(w, "# %s\n\n", r.Title)
	}
	for _, s := range r.Sections {
		if err := s.RenderMarkdown(w); err != nil {
			return err
		}
	}
	return nil
}

// heading prints title underlined with rule, followed by a blank line.
func heading(w io.Writer, title, rule string, colored bool, attrs ...color.Attribute) {
	if title == "" {
		return
	}
	if colored {
		color.New(attrs...).Fprintln(w, title)
	} else {
		fmt.Fprintln(w, title)
	}
	fmt.Fprintln(w, strings.Repeat(rule, len(title)))
	fmt.Fprintln(w)
}
