// Package references counts how often each collected entity is referenced
// and attributes every reference to the declaring file or to a consuming
// file that can see the declaration through its imports.
//
// Files are scanned independently into Tally values; nothing is written to
// the entity table until the tallies are merged, so scans can run in parallel
// against a frozen table and graph.
package references

import (
	"github.com/panbanda/dartrefs/pkg/analyzer/imports"
	"github.com/panbanda/dartrefs/pkg/lexer"
	"github.com/panbanda/dartrefs/pkg/models"
)

// Reason explains why an occurrence was or was not counted.
type Reason string

const (
	ReasonInternal     Reason = "internal"
	ReasonExternal     Reason = "external"
	ReasonDeclaration  Reason = "declaration"
	ReasonNamedArg     Reason = "named_argument"
	ReasonMemberAccess Reason = "member_access"
	ReasonNotVisible   Reason = "not_visible"
)

// Decision records the outcome for one occurrence. Decisions are only kept
// when tracing.
type Decision struct {
	Entity *models.Entity
	Line   int
	Column int
	Alias  string
	Reason Reason
}

// Tally holds the counts produced by scanning one file.
type Tally struct {
	File     string
	Internal map[*models.Entity]int
	External map[*models.Entity]int
	// Ignored counts occurrences that matched a name but were not counted.
	Ignored   int
	Decisions []Decision
}

func newTally(file string) *Tally {
	return &Tally{
		File:     file,
		Internal: make(map[*models.Entity]int),
		External: make(map[*models.Entity]int),
	}
}

// Counted returns the number of references the tally attributes.
func (t *Tally) Counted() int {
	n := 0
	for _, c := range t.Internal {
		n += c
	}
	for _, c := range t.External {
		n += c
	}
	return n
}

// Scanner resolves references against a frozen table and graph.
type Scanner struct {
	table *models.Table
	graph *imports.Graph
	trace bool
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithTrace keeps a Decision for every matched occurrence.
func WithTrace(enabled bool) Option {
	return func(s *Scanner) {
		s.trace = enabled
	}
}

// New creates a scanner. The table and graph must not change while it is in use.
func New(table *models.Table, graph *imports.Graph, opts ...Option) *Scanner {
	s := &Scanner{table: table, graph: graph}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanFile tallies the references found in src.
func (s *Scanner) ScanFile(src *lexer.Source) *Tally {
	t := newTally(src.Path)
	directives := imports.DirectiveLines(src)
	for i, code := range src.Codes() {
		if directives[i] {
			continue
		}
		for _, tok := range lexer.Identifiers(code) {
			s.occurrence(t, src.Path, code, i, tok)
		}
	}
	return t
}

// occurrence handles one identifier token on line i.
func (s *Scanner) occurrence(t *Tally, file, code string, i int, tok lexer.Token) {
	qualifier, qualified := qualifierOf(code, tok.Start)
	alias := ""
	if qualified && s.graph.IsAlias(file, qualifier) {
		alias = qualifier
	}

	candidates := s.table.Lookup(tok.Text)
	if pair, ok := namedConstructor(code, tok); ok {
		for _, ctor := range s.table.LookupFunctions(pair) {
			s.count(t, ctor, file, code, i, tok, alias, false)
		}
	}
	if len(candidates) == 0 {
		return
	}

	candidates = preferLocal(candidates, file)
	for _, e := range candidates {
		memberAccess := qualified && alias == "" && !e.IsMember()
		s.count(t, e, file, code, i, tok, alias, memberAccess)
	}
}

// count applies the per-occurrence rules to one candidate entity.
func (s *Scanner) count(t *Tally, e *models.Entity, file, code string, i int, tok lexer.Token, alias string, memberAccess bool) {
	reason := s.decide(e, file, code, i, tok, alias, memberAccess)
	switch reason {
	case ReasonInternal:
		t.Internal[e]++
	case ReasonExternal:
		t.External[e]++
	default:
		t.Ignored++
	}
	if s.trace {
		t.Decisions = append(t.Decisions, Decision{
			Entity: e,
			Line:   i + 1,
			Column: tok.Start,
			Alias:  alias,
			Reason: reason,
		})
	}
}

func (s *Scanner) decide(e *models.Entity, file, code string, i int, tok lexer.Token, alias string, memberAccess bool) Reason {
	if e.File == file && e.Location.Line == i+1 {
		return ReasonDeclaration
	}
	if !e.Category.IsType() && isNamedArgLabel(code, tok) {
		return ReasonNamedArg
	}
	if memberAccess {
		return ReasonMemberAccess
	}
	if e.File == file {
		return ReasonInternal
	}

	vis := s.graph.Visibility(file, e.File, e.VisibleName())
	if e.IsMember() {
		if vis.Visible() {
			return ReasonExternal
		}
		return ReasonNotVisible
	}
	if vis.Allows(alias) {
		return ReasonExternal
	}
	return ReasonNotVisible
}

// preferLocal keeps only same-file records for names declared more than
// once under the same qualified name, which only happens under the coexist
// policy.
func preferLocal(candidates []*models.Entity, file string) []*models.Entity {
	if len(candidates) < 2 {
		return candidates
	}
	local := make(map[string]bool)
	for _, e := range candidates {
		if e.File == file {
			local[key(e)] = true
		}
	}
	if len(local) == 0 {
		return candidates
	}
	out := candidates[:0:0]
	for _, e := range candidates {
		if e.File == file || !local[key(e)] {
			out = append(out, e)
		}
	}
	return out
}

func key(e *models.Entity) string {
	if e.Category.IsType() {
		return "type:" + e.QualifiedName()
	}
	return "func:" + e.QualifiedName()
}

// qualifierOf returns the identifier before a '.' that directly precedes the
// token at start. Cascades ("..") have no qualifier but still count as
// qualified.
func qualifierOf(code string, start int) (string, bool) {
	j := lexer.PrevNonSpace(code, start)
	if j < 0 || code[j] != '.' {
		return "", false
	}
	if j > 0 && code[j-1] == '.' {
		return "", true
	}
	k := lexer.PrevNonSpace(code, j)
	if k < 0 {
		return "", true
	}
	name, _ := lexer.IdentBefore(code, k+1)
	return name, true
}

// namedConstructor returns "Class.name" when tok is followed by ".name".
func namedConstructor(code string, tok lexer.Token) (string, bool) {
	j := lexer.NextNonSpace(code, tok.End)
	if j < 0 || code[j] != '.' || (j+1 < len(code) && code[j+1] == '.') {
		return "", false
	}
	k := lexer.NextNonSpace(code, j+1)
	if k < 0 || !lexer.IsIdentStart(code[k]) {
		return "", false
	}
	end := k
	for end < len(code) && lexer.IsIdentPart(code[end]) {
		end++
	}
	return tok.Text + "." + code[k:end], true
}

// isNamedArgLabel reports whether tok is the label of a named argument or
// parameter, as in "f(name: value)".
func isNamedArgLabel(code string, tok lexer.Token) bool {
	next := lexer.NextNonSpace(code, tok.End)
	if next < 0 || code[next] != ':' {
		return false
	}
	prev := lexer.PrevNonSpace(code, tok.Start)
	if prev < 0 {
		return true
	}
	switch code[prev] {
	case '(', ',', '{':
		return true
	}
	return false
}

// Merge applies tallies to their entities. It must run after every scan has
// finished; counts only ever grow.
func Merge(tallies ...*Tally) {
	for _, t := range tallies {
		if t == nil {
			continue
		}
		for e, n := range t.Internal {
			e.Internal += n
		}
		for e, n := range t.External {
			e.AddExternal(t.File, n)
		}
	}
}
