// Package output renders analysis results as text, JSON, Markdown or TOON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	toon "github.com/toon-format/toon-go"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatTOON     Format = "toon"
)

// ParseFormat converts a string to Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	case "toon":
		return FormatTOON
	default:
		return FormatText
	}
}

// Renderable is a view that knows its human-readable layouts. Machine
// formats serialize RenderData instead.
type Renderable interface {
	RenderText(w io.Writer, colored bool) error
	RenderMarkdown(w io.Writer) error
	RenderData() any
}

// Formatter writes views to stdout or to a file in one format.
type Formatter struct {
	format  Format
	writer  io.Writer
	file    *os.File
	colored bool
}

// NewFormatter creates a formatter. A non-empty output names the file to
// create; file output is never colored.
func NewFormatter(format Format, output string, colored bool) (*Formatter, error) {
	if output == "" {
		return NewWriterFormatter(format, os.Stdout, colored), nil
	}
	f, err := os.Create(output)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", output, err)
	}
	return &Formatter{format: format, writer: f, file: f}, nil
}

// NewWriterFormatter creates a formatter that writes to w.
func NewWriterFormatter(format Format, w io.Writer, colored bool) *Formatter {
	return &Formatter{format: format, writer: w, colored: colored}
}

// Close closes the output file, if any.
func (f *Formatter) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Format returns the configured format.
func (f *Formatter) Format() Format {
	return f.format
}

// Colored reports whether text output may use ANSI colors.
func (f *Formatter) Colored() bool {
	return f.colored
}

// Output writes data in the configured format. Values that are not
// Renderable are serialized as JSON for text output and as a fenced JSON
// block for Markdown.
func (f *Formatter) Output(data any) error {
	r, ok := data.(Renderable)
	switch f.format {
	case FormatJSON:
		return f.writeJSON(payload(data, r, ok))
	case FormatTOON:
		return f.writeTOON(payload(data, r, ok))
	case FormatMarkdown:
		if ok {
			return r.RenderMarkdown(f.writer)
		}
		fmt.Fprintln(f.writer, "```json")
		if err := f.writeJSON(data); err != nil {
			return err
		}
		_, err := fmt.Fprintln(f.writer, "```")
		return err
	default:
		if ok {
			return r.RenderText(f.writer, f.colored)
		}
		return f.writeJSON(data)
	}
}

func payload(data any, r Renderable, ok bool) any {
	if ok {
		return r.RenderData()
	}
	return data
}

func (f *Formatter) writeJSON(data any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *Formatter) writeTOON(data any) error {
	out, err := toon.Marshal(data, toon.WithIndent(2))
	if err != nil {
		return fmt.Errorf("failed to marshal toon: %w", err)
	}
	_, err = fmt.Fprintln(f.writer, string(out))
	return err
}
