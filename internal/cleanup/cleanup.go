// Package cleanup decides which Dart files hold nothing but dead code and
// removes them after confirmation.
package cleanup

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/panbanda/dartrefs/pkg/analyzer/usage"
	"github.com/panbanda/dartrefs/pkg/models"
)

// ErrInvalidConfirmationInput is returned when the answer is neither yes nor no.
var ErrInvalidConfirmationInput = errors.New("invalid confirmation input, expected y or n")

// Verdict is the deletion judgment for one file.
type Verdict struct {
	File     string `json:"file" toon:"file"`
	Eligible bool   `json:"eligible" toon:"eligible"`
	Reason   string `json:"reason,omitempty" toon:"reason,omitempty"`
	Entities int    `json:"entities" toon:"entities"`
}

// Judge returns a verdict for every analyzed file, in file order.
//
// A file is eligible only when it declares at least one entity, every
// entity is unused or commented out, none is an entry point or lifecycle
// member, it has no live top-level declaration the collector could not
// analyze, and it takes no part in a part/part-of library.
func Judge(res *usage.Result) []Verdict {
	byFile := make(map[string][]*models.Entity)
	for _, e := range res.Table.Entities() {
		byFile[e.File] = append(byFile[e.File], e)
	}

	out := make([]Verdict, 0, len(res.Files))
	for _, file := range res.Files {
		v := Verdict{File: file, Entities: len(byFile[file])}
		v.Reason = blocker(res, file, byFile[file])
		v.Eligible = v.Reason == ""
		out = append(out, v)
	}
	return out
}

// Candidates returns the eligible files.
func Candidates(verdicts []Verdict) []string {
	var files []string
	for _, v := range verdicts {
		if v.Eligible {
			files = append(files, v.File)
		}
	}
	return files
}

// blocker returns why file must be kept, or "" when it may be deleted.
func blocker(res *usage.Result, file string, entities []*models.Entity) string {
	switch {
	case len(entities) == 0:
		return "no declarations"
	case res.Graph != nil && res.Graph.IsPart(file):
		return "part of another library"
	case res.Graph != nil && res.Graph.HasParts(file):
		return "library with parts"
	case len(res.Unanalyzed[file]) > 0:
		return fmt.Sprintf("unanalyzed declaration on line %d", res.Unanalyzed[file][0])
	}
	for _, e := range entities {
		if e.CommentedOut {
			continue
		}
		if e.Exempt() {
			return "exempt: " + e.QualifiedName()
		}
		if e.Total() > 0 {
			return "used: " + e.QualifiedName()
		}
	}
	return ""
}

// Prompter asks the user a yes/no question.
type Prompter struct {
	reader *bufio.Reader
	out    io.Writer
}

// NewPrompter reads answers from in and writes questions to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{reader: bufio.NewReader(in), out: out}
}

// Confirm prints message with a [y/N] hint and waits for one line of input.
// An empty answer or end of input means no.
func (p *Prompter) Confirm(message string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", message)

	input, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "":
		return false, nil
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, ErrInvalidConfirmationInput
	}
}

// Delete removes files and returns those actually removed. Failures are
// joined into the returned error; the remaining files are still attempted.
func Delete(files []string) ([]string, error) {
	var (
		removed []string
		errs    []error
	)
	for _, f := range files {
		if err := os.Remove(f); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", f, err))
			continue
		}
		removed = append(removed, f)
	}
	return removed, errors.Join(errs...)
}
