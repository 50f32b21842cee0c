package lexer

import (
	"fmt"
	"os"
)

// Source is a classified file: every line scanned once, shared by the
// collection, directive and reference passes.
type Source struct {
	Path  string
	Lines []Line

	codes   []string
	offsets []int
}

// NewSource classifies src as the contents of path.
func NewSource(path string, src []byte) *Source {
	text := string(src)
	lines := ScanAll(text)
	codes := make([]string, len(lines))
	for i, l := range lines {
		codes[i] = l.Code()
	}
	return &Source{
		Path:    path,
		Lines:   lines,
		codes:   codes,
		offsets: LineOffsets(text),
	}
}

// ReadSource reads and classifies the file at path.
func ReadSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewSource(path, data), nil
}

// Code returns the code text of line i (0-based) with comments and strings blanked.
func (s *Source) Code(i int) string {
	return s.codes[i]
}

// Codes returns the code text of every line.
func (s *Source) Codes() []string {
	return s.codes
}

// Offset converts a 0-based line and column into a byte offset within the file.
func (s *Source) Offset(line, col int) int {
	if line < 0 || line >= len(s.offsets) {
		return col
	}
	return s.offsets[line] + col
}

// Len returns the number of lines.
func (s *Source) Len() int {
	return len(s.Lines)
}
