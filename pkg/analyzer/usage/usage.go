// Package usage runs the full reference analysis of a Dart project:
// collection and directive parsing of every file, then reference
// resolution against the frozen entity table and visibility graph, then
// categorization.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/panbanda/dartrefs/internal/cache"
	"github.com/panbanda/dartrefs/internal/fileproc"
	"github.com/panbanda/dartrefs/internal/scanner"
	"github.com/panbanda/dartrefs/pkg/analyzer"
	"github.com/panbanda/dartrefs/pkg/analyzer/categorize"
	"github.com/panbanda/dartrefs/pkg/analyzer/collector"
	"github.com/panbanda/dartrefs/pkg/analyzer/imports"
	"github.com/panbanda/dartrefs/pkg/analyzer/references"
	"github.com/panbanda/dartrefs/pkg/lexer"
	"github.com/panbanda/dartrefs/pkg/models"
)

// ErrRootUnreadable is returned when the project root cannot be scanned.
var ErrRootUnreadable = errors.New("project root is unreadable")

// cacheVersion changes whenever the cached scan layout changes.
const cacheVersion = "scan-v1"

// Analyzer counts references to every declaration of a project.
type Analyzer struct {
	functions   bool
	trace       bool
	policy      models.DuplicatePolicy
	workers     int
	maxFileSize int64
	framework   collector.Framework
	cache       *cache.Cache
	logger      *slog.Logger
	scanner     *scanner.Scanner
	root        string
}

// Compile-time check that Analyzer implements ProjectAnalyzer.
var _ analyzer.ProjectAnalyzer[*Result] = (*Analyzer)(nil)

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithFunctions enables function and constructor analysis.
func WithFunctions(enabled bool) Option {
	return func(a *Analyzer) {
		a.functions = enabled
	}
}

// WithTrace logs every reference decision at debug level.
func WithTrace(enabled bool) Option {
	return func(a *Analyzer) {
		a.trace = enabled
	}
}

// WithDuplicatePolicy sets how repeated declarations of a name are kept.
func WithDuplicatePolicy(p models.DuplicatePolicy) Option {
	return func(a *Analyzer) {
		a.policy = p
	}
}

// WithWorkers sets the worker count of both phases. Zero means 2x NumCPU.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithMaxFileSize skips files larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) Option {
	return func(a *Analyzer) {
		a.maxFileSize = n
	}
}

// WithFramework replaces the framework conventions used for exemptions.
func WithFramework(fw collector.Framework) Option {
	return func(a *Analyzer) {
		a.framework = fw
	}
}

// WithCache reuses per-file scan results across runs.
func WithCache(c *cache.Cache) Option {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithScanner sets the scanner used by AnalyzeProject.
func WithScanner(s *scanner.Scanner) Option {
	return func(a *Analyzer) {
		a.scanner = s
	}
}

// WithRoot sets the project root used for package resolution by Analyze.
// Without it the deepest directory shared by all files is used.
func WithRoot(root string) Option {
	return func(a *Analyzer) {
		a.root = root
	}
}

// New creates an analyzer. Function analysis is off by default.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		policy:    models.DuplicateLastWins,
		framework: collector.DefaultFramework(),
		logger:    slog.New(slog.DiscardHandler),
		scanner:   scanner.NewScanner(nil),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Close releases any resources held by the analyzer.
func (a *Analyzer) Close() {}

// Result is the outcome of one analysis run.
type Result struct {
	Root         string              `json:"root" toon:"root"`
	Files        []string            `json:"files" toon:"files"`
	Functions    bool                `json:"functions_analyzed" toon:"functions_analyzed"`
	Policy       string              `json:"duplicate_policy" toon:"duplicate_policy"`
	Summary      categorize.Summary  `json:"summary" toon:"summary"`
	Buckets      *categorize.Buckets `json:"buckets" toon:"buckets"`
	Unanalyzed   map[string][]int    `json:"unanalyzed,omitempty" toon:"unanalyzed,omitempty"`
	ExportCycles [][]string          `json:"export_cycles,omitempty" toon:"export_cycles,omitempty"`
	Warnings     []string            `json:"warnings,omitempty" toon:"warnings,omitempty"`
	Skipped      []string            `json:"skipped,omitempty" toon:"skipped,omitempty"`

	Table      *models.Table                       `json:"-" toon:"-"`
	Graph      *imports.Graph                      `json:"-" toon:"-"`
	Directives map[string][]models.ImportDirective `json:"-" toon:"-"`
	Errors     *fileproc.ProcessingErrors          `json:"-" toon:"-"`
}

// EntitiesIn returns the entities declared in file, ordered by line.
func (r *Result) EntitiesIn(file string) []*models.Entity {
	var out []*models.Entity
	for _, e := range r.Table.Entities() {
		if e.File == file {
			out = append(out, e)
		}
	}
	return out
}

// fileScan is the phase-one output for one file. Everything but Source is
// cacheable.
type fileScan struct {
	Source     *lexer.Source            `json:"-"`
	Collected  *collector.Result        `json:"collected"`
	Directives []models.ImportDirective `json:"directives"`
	Malformed  []string                 `json:"malformed,omitempty"`
}

// AnalyzeProject scans root for Dart files and analyzes them. Only an
// unreadable root is fatal.
func (a *Analyzer) AnalyzeProject(ctx context.Context, root string) (*Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootUnreadable, abs)
	}

	files, err := a.scanner.ScanDir(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRootUnreadable, err)
	}
	a.logger.Debug("scanned project", "root", abs, "files", len(files))

	sub := *a
	sub.root = abs
	return sub.Analyze(ctx, files)
}

// Analyze processes the given Dart files. Files that cannot be read are
// logged and skipped.
func (a *Analyzer) Analyze(ctx context.Context, files []string) (*Result, error) {
	files = normalize(files)
	root := a.root
	if root == "" {
		root = commonDir(files)
	}
	root = filepath.Clean(root)

	res := &Result{
		Root:       root,
		Functions:  a.functions,
		Policy:     string(a.policy),
		Unanalyzed: make(map[string][]int),
		Directives: make(map[string][]models.ImportDirective),
		Errors:     &fileproc.ProcessingErrors{},
	}

	tracker := analyzer.TrackerFromContext(ctx)
	tracker.Add(2 * len(files))

	// Phase 1: collect declarations and directives of every file.
	tracker.Enter(analyzer.StageCollect)
	start := time.Now()
	coll := collector.New(collector.WithFunctions(a.functions), collector.WithFramework(a.framework))
	settings := a.settings()
	scans, errs := fileproc.ForEachFile(ctx, files, a.workers, a.maxFileSize, func(path string) (*fileScan, error) {
		return a.scanFile(coll, settings, path)
	})
	a.recordErrors(res, errs)
	tracker.Drop(len(files) - len(scans))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table := models.NewTable(a.policy)
	sources := make(map[string]*lexer.Source, len(scans))
	for _, s := range scans {
		path := s.Source.Path
		res.Files = append(res.Files, path)
		sources[path] = s.Source
		for _, e := range s.Collected.Entities {
			if replaced := table.Add(e); replaced != nil {
				a.logger.Debug("declaration replaced",
					"name", e.QualifiedName(),
					"kept", location(e),
					"dropped", location(replaced))
			}
		}
		if len(s.Collected.Unanalyzed) > 0 {
			res.Unanalyzed[path] = s.Collected.Unanalyzed
		}
		for _, m := range s.Malformed {
			a.logger.Warn("malformed directive", "error", m)
			res.Warnings = append(res.Warnings, m)
		}
	}

	resolver, err := imports.NewResolver(root, res.Files)
	if err != nil {
		a.logger.Warn("package manifests skipped", "error", err)
		res.Warnings = append(res.Warnings, err.Error())
	}
	unresolved := 0
	for _, s := range scans {
		path := s.Source.Path
		resolved := resolver.ResolveAll(s.Directives)
		for _, d := range resolved {
			if !d.IsResolved() {
				unresolved++
			}
		}
		res.Directives[path] = resolved
	}
	graph := imports.NewGraph(res.Files, res.Directives)
	res.Table = table
	res.Graph = graph
	res.ExportCycles = graph.ExportCycles()
	for _, cycle := range res.ExportCycles {
		a.logger.Debug("export cycle", "files", cycle)
	}
	a.logger.Info("collection finished",
		"files", len(res.Files),
		"entities", table.Len(),
		"packages", len(resolver.Packages()),
		"unresolved_directives", unresolved,
		"duration", time.Since(start))

	// Phase 2: resolve references against the frozen table and graph.
	tracker.Enter(analyzer.StageReferences)
	start = time.Now()
	refs := references.New(table, graph, references.WithTrace(a.trace))
	tallies, errs := fileproc.ForEachFileIndexed(ctx, res.Files, a.workers, func(path string) (*references.Tally, error) {
		return refs.ScanFile(sources[path]), nil
	})
	a.recordErrors(res, errs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	references.Merge(tallies...)

	ignored := 0
	for _, t := range tallies {
		if t == nil {
			continue
		}
		ignored += t.Ignored
		if a.trace {
			a.logTrace(t)
		}
	}
	a.logger.Info("resolution finished",
		"files", len(tallies),
		"ignored_occurrences", ignored,
		"duration", time.Since(start))

	res.Buckets, res.Summary = categorize.Categorize(table.Entities())
	return res, nil
}

// scanFile reads one file and returns its collection result, from the
// cache when the content and settings are unchanged.
func (a *Analyzer) scanFile(coll *collector.Collector, settings []string, path string) (*fileScan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	src := lexer.NewSource(path, data)

	hash := cache.Fingerprint(data, settings...)
	var cached fileScan
	if a.cache.Load(path, hash, &cached) && cached.Collected != nil {
		cached.Source = src
		return &cached, nil
	}

	scan := &fileScan{Source: src, Collected: coll.Collect(src)}
	dirs, errs := imports.ParseDirectives(src)
	scan.Directives = dirs
	for _, err := range errs {
		scan.Malformed = append(scan.Malformed, err.Error())
	}
	if err := a.cache.Store(path, hash, scan); err != nil {
		a.logger.Debug("cache write failed", "file", path, "error", err)
	}
	return scan, nil
}

// settings lists everything besides file content that shapes a fileScan.
func (a *Analyzer) settings() []string {
	fw := a.framework
	return []string{
		cacheVersion,
		"functions=" + strconv.FormatBool(a.functions),
		"stateful=" + strings.Join(fw.StatefulBases, ","),
		"containers=" + strings.Join(fw.ContainerBases, ","),
		"lifecycle=" + strings.Join(fw.LifecycleMethods, ","),
		"markers=" + strings.Join(fw.EntryPointAnnotations, ","),
		"entries=" + strings.Join(fw.EntryFunctions, ","),
	}
}

func (a *Analyzer) recordErrors(res *Result, errs *fileproc.ProcessingErrors) {
	if !errs.HasErrors() {
		return
	}
	for _, e := range errs.Errors {
		if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
			continue
		}
		a.logger.Warn("file skipped", "file", e.Path, "error", e.Err)
		res.Errors.Add(e.Path, e.Err)
		if !slices.Contains(res.Skipped, e.Path) {
			res.Skipped = append(res.Skipped, e.Path)
		}
	}
	sort.Strings(res.Skipped)
}

func (a *Analyzer) logTrace(t *references.Tally) {
	for _, d := range t.Decisions {
		a.logger.Debug("reference",
			"file", t.File,
			"line", d.Line,
			"column", d.Column,
			"entity", d.Entity.QualifiedName(),
			"declared", location(d.Entity),
			"alias", d.Alias,
			"reason", string(d.Reason))
	}
}

func location(e *models.Entity) string {
	return e.File + ":" + strconv.Itoa(e.Location.Line)
}

// normalize returns the cleaned absolute paths of files, sorted and
// deduplicated, so collection order and last-wins replacement are stable.
func normalize(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		out = append(out, filepath.Clean(f))
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// commonDir returns the deepest directory containing every file.
func commonDir(files []string) string {
	if len(files) == 0 {
		return "."
	}
	dir := filepath.Dir(files[0])
	for _, f := range files[1:] {
		for !strings.HasPrefix(f, dir+string(filepath.Separator)) && dir != filepath.Dir(dir) {
			dir = filepath.Dir(dir)
		}
	}
	return dir
}
