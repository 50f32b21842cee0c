// Package collector discovers Dart type and function declarations in a
// single file and turns them into entity records.
//
// Collection is lexical: each line is classified by the lexer, declarations
// are recognised by anchored patterns and brace depth tracks which type body
// a member belongs to. Nothing here needs the rest of the project.
package collector

import (
	"strings"

	"github.com/panbanda/dartrefs/pkg/lexer"
	"github.com/panbanda/dartrefs/pkg/models"
)

// entryLookback is how many preceding non-blank lines may carry an entry-point marker.
const entryLookback = 5

// headerLines bounds how many lines of a class header are joined to find its extends clause.
const headerLines = 5

// Framework names the UI-framework conventions the collector recognises.
type Framework struct {
	StatefulBases         []string `json:"stateful_bases" toml:"stateful_bases" yaml:"stateful_bases" koanf:"stateful_bases"`
	ContainerBases        []string `json:"container_bases" toml:"container_bases" yaml:"container_bases" koanf:"container_bases"`
	LifecycleMethods      []string `json:"lifecycle_methods" toml:"lifecycle_methods" yaml:"lifecycle_methods" koanf:"lifecycle_methods"`
	EntryPointAnnotations []string `json:"entry_point_annotations" toml:"entry_point_annotations" yaml:"entry_point_annotations" koanf:"entry_point_annotations"`
	EntryFunctions        []string `json:"entry_functions" toml:"entry_functions" yaml:"entry_functions" koanf:"entry_functions"`
}

// DefaultFramework returns the Flutter conventions.
func DefaultFramework() Framework {
	return Framework{
		StatefulBases:  []string{"State"},
		ContainerBases: []string{"StatelessWidget", "StatefulWidget"},
		LifecycleMethods: []string{
			"initState",
			"dispose",
			"build",
			"didChangeDependencies",
			"didUpdateWidget",
			"deactivate",
			"reassemble",
			"activate",
		},
		EntryPointAnnotations: []string{
			"@pragma('vm:entry-point')",
			`@pragma("vm:entry-point")`,
		},
		EntryFunctions: []string{"main"},
	}
}

// Collector scans files for declarations.
type Collector struct {
	functions bool

	stateful   map[string]bool
	containers map[string]bool
	lifecycle  map[string]bool
	entryFuncs map[string]bool
	markers    []string
}

// Option configures a Collector.
type Option func(*Collector)

// WithFunctions enables the function and constructor sub-scan.
func WithFunctions(enabled bool) Option {
	return func(c *Collector) {
		c.functions = enabled
	}
}

// WithFramework replaces the framework conventions.
func WithFramework(fw Framework) Option {
	return func(c *Collector) {
		c.setFramework(fw)
	}
}

// New creates a collector with the Flutter conventions and function analysis off.
func New(opts ...Option) *Collector {
	c := &Collector{}
	c.setFramework(DefaultFramework())
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Collector) setFramework(fw Framework) {
	c.stateful = toSet(fw.StatefulBases)
	c.containers = toSet(fw.ContainerBases)
	c.lifecycle = toSet(fw.LifecycleMethods)
	c.entryFuncs = toSet(fw.EntryFunctions)
	c.markers = make([]string, 0, len(fw.EntryPointAnnotations))
	for _, m := range fw.EntryPointAnnotations {
		c.markers = append(c.markers, compact(m))
	}
}

// Functions reports whether function analysis is enabled.
func (c *Collector) Functions() bool {
	return c.functions
}

// Result is the collection output for one file.
type Result struct {
	File     string           `json:"file"`
	Entities []*models.Entity `json:"entities"`
	// Unanalyzed holds the 1-based lines of live top-level declarations that
	// produced no entity: variables, getters, and functions when function
	// analysis is off.
	Unanalyzed []int `json:"unanalyzed,omitempty"`
}

// CollectFile reads and collects the file at path.
func (c *Collector) CollectFile(path string) (*Result, error) {
	src, err := lexer.ReadSource(path)
	if err != nil {
		return nil, err
	}
	return c.Collect(src), nil
}

// Collect scans a classified source file.
func (c *Collector) Collect(src *lexer.Source) *Result {
	res := &Result{File: src.Path}
	st := newScanState()
	codes := src.Codes()

	for i, line := range src.Lines {
		code := codes[i]
		live := line.HasCode()
		memberLevel := st.atMemberLevel()
		topLevel := memberLevel && st.depth == 0

		if !live {
			if body, ok := commentBody(line, st.docBlock); ok {
				c.collectCommented(res, src, st, i, body)
			}
		} else {
			claimed := c.collectTypes(res, src, st, i, code)
			if !claimed && memberLevel && c.functions {
				claimed = c.collectFunction(res, src, st, i)
			}
			if !claimed && topLevel && !isDirectiveOrAnnotation(code) {
				res.Unanalyzed = append(res.Unanalyzed, i+1)
			}
			st.advance(code)
			st.endLine(code)
		}

		st.docBlock = endsInDocComment(src, i, st.docBlock)
	}
	return res
}

// collectTypes records a type declared on line i and reports whether one was found.
func (c *Collector) collectTypes(res *Result, src *lexer.Source, st *scanState, i int, code string) bool {
	rest, cut := stripAnnotations(code)
	trimmed := strings.TrimLeft(rest, " \t")
	base := cut + len(rest) - len(trimmed)

	tm, ok := matchType(trimmed)
	if !ok {
		return false
	}

	e := models.NewEntity(tm.name, tm.category, src.Path, models.Location{
		Line:   i + 1,
		Offset: src.Offset(i, base+tm.col),
	})
	e.EntryPoint = c.entryMarked(src, i, base)

	stateful := false
	switch tm.kind {
	case kindClass, kindModifiedClass:
		clause := afterTypeParams(joinHeader(src.Codes(), i, base+tm.col), tm.name)
		if m := extendsPattern.FindStringSubmatch(clause); m != nil {
			switch {
			case c.stateful[m[1]]:
				stateful = true
				if tm.kind == kindClass {
					e.Category = models.CategoryStateClass
				}
			case c.containers[m[1]] && tm.kind == kindClass:
				e.Category = models.CategoryLifecycleContainer
			}
		}
	case kindMixin:
		clause := afterTypeParams(joinHeader(src.Codes(), i, base+tm.col), tm.name)
		if m := onPattern.FindStringSubmatch(clause); m != nil && c.stateful[m[1]] {
			stateful = true
		}
	}

	res.Entities = append(res.Entities, e)
	if tm.hasBody {
		st.expect(frame{name: tm.name, category: e.Category, stateful: stateful})
	}
	return true
}

// collectFunction records a function or constructor declared on line i.
func (c *Collector) collectFunction(res *Result, src *lexer.Source, st *scanState, i int) bool {
	owner := st.top()
	fm, ok := matchFunction(src.Codes(), i, owner, false)
	if !ok {
		return false
	}
	e := c.functionEntity(src, owner, fm, i)
	e.Location.Offset = src.Offset(i, fm.col)
	trimmed := strings.TrimSpace(src.Code(i))
	e.Static = trimmed == "static" || strings.HasPrefix(trimmed, "static ")
	e.EntryPoint = e.EntryPoint || c.entryMarked(src, i, fm.col)
	res.Entities = append(res.Entities, e)
	return true
}

func (c *Collector) functionEntity(src *lexer.Source, owner *frame, fm funcMatch, i int) *models.Entity {
	category := models.CategoryFunction
	if fm.ctor {
		category = models.CategoryConstructor
	}
	e := models.NewEntity(fm.name, category, src.Path, models.Location{Line: i + 1})
	e.EmptyBody = fm.empty
	e.Constructor = fm.ctor
	if owner != nil {
		e.EnclosingClass = owner.name
		e.FrameworkLifecycle = !fm.ctor && owner.stateful && c.lifecycle[fm.name]
	} else {
		e.EntryPoint = c.entryFuncs[fm.name]
	}
	return e
}

// collectCommented records declarations found in the text of a commented-out line.
func (c *Collector) collectCommented(res *Result, src *lexer.Source, st *scanState, i int, body string) {
	var ls lexer.State
	code := ls.Scan(body).Code()
	trimmed := strings.TrimLeft(code, " \t")
	col := commentColumn(src.Lines[i].Text, body) + len(code) - len(trimmed)

	if tm, ok := matchType(trimmed); ok {
		e := models.NewEntity(tm.name, tm.category, src.Path, models.Location{
			Line:   i + 1,
			Offset: src.Offset(i, col+tm.col),
		})
		e.CommentedOut = true
		e.EntryPoint = c.entryMarked(src, i, -1)
		res.Entities = append(res.Entities, e)
		return
	}

	if !c.functions || !st.atMemberLevel() {
		return
	}
	owner := st.top()
	fm, ok := matchFunction([]string{code}, 0, owner, true)
	if !ok || !fm.hasPrefix {
		return
	}
	e := c.functionEntity(src, owner, fm, i)
	e.Location.Offset = src.Offset(i, commentColumn(src.Lines[i].Text, body)+fm.col)
	e.CommentedOut = true
	e.EntryPoint = false
	e.FrameworkLifecycle = false
	res.Entities = append(res.Entities, e)
}

// entryMarked reports whether an entry-point marker precedes the declaration
// on line i: earlier on the same line (before col) or among the preceding
// non-blank lines, skipping annotations and comments.
func (c *Collector) entryMarked(src *lexer.Source, i, col int) bool {
	if len(c.markers) == 0 {
		return false
	}
	if col > 0 {
		text := src.Lines[i].WithoutComments()
		if col <= len(text) && c.hasMarker(text[:col]) {
			return true
		}
	}
	seen := 0
	for j := i - 1; j >= 0 && seen < entryLookback; j-- {
		line := src.Lines[j]
		trimmed := strings.TrimSpace(line.Text)
		if trimmed == "" {
			continue
		}
		seen++
		if !line.HasCode() {
			continue
		}
		if rest, _ := stripAnnotations(line.Code()); strings.TrimSpace(rest) != "" {
			return false
		}
		if c.hasMarker(line.WithoutComments()) {
			return true
		}
	}
	return false
}

func (c *Collector) hasMarker(text string) bool {
	text = compact(text)
	for _, m := range c.markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// commentBody returns the text of a line with no code once its comment
// markers are removed. Documentation comments are not commented-out code.
func commentBody(line lexer.Line, docBlock bool) (string, bool) {
	t := strings.TrimSpace(line.Text)
	if t == "" || line.Class(strings.Index(line.Text, t)) != lexer.Comment {
		return "", false
	}
	if line.StartsInComment {
		if docBlock {
			return "", false
		}
		t = strings.TrimLeft(strings.TrimSuffix(t, "*/"), "*")
		return t, true
	}
	switch {
	case strings.HasPrefix(t, "///") && !strings.HasPrefix(t, "////"):
		return "", false
	case strings.HasPrefix(t, "//"):
		return strings.TrimLeft(t, "/"), true
	case strings.HasPrefix(t, "/**"):
		return "", false
	case strings.HasPrefix(t, "/*"):
		t = strings.TrimSuffix(t[2:], "*/")
		return t, true
	}
	return "", false
}

// commentColumn locates body within the raw line text.
func commentColumn(text, body string) int {
	if body == "" {
		return 0
	}
	if idx := strings.Index(text, body); idx >= 0 {
		return idx
	}
	return 0
}

// endsInDocComment updates the documentation-block flag after line i.
func endsInDocComment(src *lexer.Source, i int, docBlock bool) bool {
	if i+1 >= src.Len() || !src.Lines[i+1].StartsInComment {
		return false
	}
	if src.Lines[i].StartsInComment && !src.Lines[i].HasCode() {
		return docBlock
	}
	text := src.Lines[i].Text
	idx := strings.LastIndex(text, "/*")
	return idx >= 0 && strings.HasPrefix(text[idx:], "/**")
}

// joinHeader joins the code of a type header from line i (starting at col)
// up to its opening brace or terminating semicolon.
func joinHeader(codes []string, i, col int) string {
	var b strings.Builder
	for j := i; j < len(codes) && j < i+headerLines; j++ {
		text := codes[j]
		if j == i {
			text = text[col:]
		}
		if k := strings.IndexAny(text, "{;"); k >= 0 {
			b.WriteString(text[:k])
			break
		}
		b.WriteString(text)
		b.WriteByte(' ')
	}
	return b.String()
}

// afterTypeParams strips name and its type parameter list from the start of
// header, so bounds like <T extends State> are not read as superclasses.
func afterTypeParams(header, name string) string {
	rest := strings.TrimLeft(strings.TrimPrefix(header, name), " \t")
	if !strings.HasPrefix(rest, "<") {
		return rest
	}
	end := skipAngles(rest, 0)
	if end < 0 {
		return ""
	}
	return rest[end:]
}

func isDirectiveOrAnnotation(code string) bool {
	t := strings.TrimSpace(code)
	if t == "" || !lexer.IsIdentStart(t[0]) {
		return true
	}
	tok := lexer.Identifiers(t)[0].Text
	switch tok {
	case "import", "export", "part", "library":
		return true
	}
	return false
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

// compact removes blanks so markers match regardless of spacing.
func compact(s string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
}
