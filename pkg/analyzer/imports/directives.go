// Package imports extracts Dart namespace directives, resolves their URIs to
// project files and builds the import/export visibility graph.
package imports

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/panbanda/dartrefs/pkg/lexer"
	"github.com/panbanda/dartrefs/pkg/models"
)

// ErrMalformedDirective marks a directive that could not be parsed.
var ErrMalformedDirective = errors.New("malformed directive")

// maxDirectiveLines bounds how many lines one directive statement may span.
const maxDirectiveLines = 16

var (
	headPattern        = regexp.MustCompile(`^(import|export)\s*(?:'([^']*)'|"([^"]*)")`)
	partOfPattern      = regexp.MustCompile(`^part\s+of\s+(?:'([^']*)'|"([^"]*)"|([A-Za-z_$][A-Za-z0-9_$.]*))`)
	partPattern        = regexp.MustCompile(`^part\s*(?:'([^']*)'|"([^"]*)")`)
	conditionalPattern = regexp.MustCompile(`^if\s*\([^)]*\)\s*(?:'([^']*)'|"([^"]*)")`)
	deferredPattern    = regexp.MustCompile(`^deferred\s+as\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	aliasPattern       = regexp.MustCompile(`^as\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	combinatorPattern  = regexp.MustCompile(`^(show|hide)\s+([A-Za-z0-9_$,\s]+?)\s*(?:;|$|\b(?:show|hide)\b)`)
)

// ParseDirectives extracts the import, export and part directives of src.
// Directives that cannot be parsed are skipped and reported as errors
// wrapping ErrMalformedDirective; they never stop the scan.
func ParseDirectives(src *lexer.Source) ([]models.ImportDirective, []error) {
	var (
		out  []models.ImportDirective
		errs []error
	)
	for i := 0; i < src.Len(); i++ {
		if !startsDirective(src.Lines[i]) {
			continue
		}
		stmt, end := joinStatement(src, i)
		d, err := parseStatement(stmt)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s:%d: %w", src.Path, i+1, err))
		}
		if d != nil {
			d.Owner = src.Path
			d.Line = i + 1
			out = append(out, *d)
		}
		i = end
	}
	return out, errs
}

// DirectiveLines marks the lines covered by import, export, part and
// library statements. Names on those lines are not references.
func DirectiveLines(src *lexer.Source) []bool {
	marked := make([]bool, src.Len())
	for i := 0; i < src.Len(); i++ {
		if !startsDirective(src.Lines[i]) && !startsLibrary(src.Code(i)) {
			continue
		}
		_, end := joinStatement(src, i)
		for j := i; j <= end; j++ {
			marked[j] = true
		}
		i = end
	}
	return marked
}

func startsLibrary(code string) bool {
	t := strings.TrimLeft(code, " \t")
	return strings.HasPrefix(t, "library") && (len(t) == len("library") || !lexer.IsIdentPart(t[len("library")]))
}

// startsDirective reports whether a line begins a directive: the keyword
// is code and is followed by a URI string, "of", or nothing on this line.
func startsDirective(line lexer.Line) bool {
	code := strings.TrimLeft(line.Code(), " \t")
	text := strings.TrimLeft(line.WithoutComments(), " \t")
	for _, kw := range []string{"import", "export", "part"} {
		if !strings.HasPrefix(code, kw) || !strings.HasPrefix(text, kw) {
			continue
		}
		if len(code) > len(kw) && lexer.IsIdentPart(code[len(kw)]) {
			return false
		}
		next := strings.TrimLeft(text[len(kw):], " \t")
		if next == "" || next[0] == '\'' || next[0] == '"' {
			return true
		}
		return kw == "part" && strings.HasPrefix(next, "of") && (len(next) == 2 || !lexer.IsIdentPart(next[2]))
	}
	return false
}

// joinStatement joins lines from i up to the terminating ';' and returns the
// statement text (comments removed, strings kept) and its last line.
func joinStatement(src *lexer.Source, i int) (string, int) {
	var b strings.Builder
	end := i
	for j := i; j < src.Len() && j < i+maxDirectiveLines; j++ {
		end = j
		text := src.Lines[j].WithoutComments()
		code := src.Code(j)
		if k := strings.IndexByte(code, ';'); k >= 0 {
			b.WriteString(text[:k+1])
			break
		}
		b.WriteString(text)
		b.WriteByte(' ')
	}
	return strings.TrimSpace(b.String()), end
}

func quoted(m []string, groups ...int) string {
	for _, g := range groups {
		if m[g] != "" {
			return m[g]
		}
	}
	return ""
}

// parseStatement parses one directive statement. A nil directive means the
// statement was not a directive at all.
func parseStatement(stmt string) (*models.ImportDirective, error) {
	switch {
	case strings.HasPrefix(stmt, "part"):
		if m := partOfPattern.FindStringSubmatch(stmt); m != nil {
			return &models.ImportDirective{Kind: models.DirectivePartOf, Raw: quoted(m, 1, 2, 3)}, nil
		}
		if m := partPattern.FindStringSubmatch(stmt); m != nil {
			return &models.ImportDirective{Kind: models.DirectivePart, Raw: quoted(m, 1, 2)}, nil
		}
		return nil, nil
	}

	m := headPattern.FindStringSubmatchIndex(stmt)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedDirective, stmt)
	}
	d := &models.ImportDirective{Kind: models.DirectiveImport}
	if stmt[m[2]:m[3]] == "export" {
		d.Kind = models.DirectiveExport
	}
	if m[4] >= 0 {
		d.Raw = stmt[m[4]:m[5]]
	} else {
		d.Raw = stmt[m[6]:m[7]]
	}

	var err error
	rest := strings.TrimSpace(stmt[m[1]:])
	for rest != "" && rest != ";" {
		switch {
		case conditionalPattern.MatchString(rest):
			cm := conditionalPattern.FindStringSubmatch(rest)
			d.Conditional = append(d.Conditional, quoted(cm, 1, 2))
			rest = rest[len(cm[0]):]
		case deferredPattern.MatchString(rest):
			dm := deferredPattern.FindStringSubmatch(rest)
			d.Deferred = true
			d.Alias = dm[1]
			rest = rest[len(dm[0]):]
		case aliasPattern.MatchString(rest):
			am := aliasPattern.FindStringSubmatch(rest)
			d.Alias = am[1]
			rest = rest[len(am[0]):]
		case combinatorPattern.MatchString(rest):
			loc := combinatorPattern.FindStringSubmatchIndex(rest)
			names := splitNames(rest[loc[4]:loc[5]])
			if rest[loc[2]:loc[3]] == "show" {
				d.Show = append(d.Show, names...)
			} else {
				d.Hide = append(d.Hide, names...)
			}
			rest = rest[loc[5]:]
		default:
			return d, fmt.Errorf("%w: unexpected %q in %q", ErrMalformedDirective, rest, stmt)
		}
		rest = strings.TrimSpace(rest)
	}

	if len(d.Show) > 0 && len(d.Hide) > 0 {
		err = fmt.Errorf("%w: %w in %q", ErrMalformedDirective, models.ErrShowAndHide, stmt)
		d.Show = slices.DeleteFunc(d.Show, func(n string) bool { return slices.Contains(d.Hide, n) })
		d.Hide = nil
	}
	return d, err
}

func splitNames(list string) []string {
	var names []string
	for _, part := range strings.Split(list, ",") {
		if n := strings.TrimSpace(part); n != "" {
			names = append(names, n)
		}
	}
	return names
}
