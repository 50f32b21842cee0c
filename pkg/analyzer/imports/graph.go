package imports

import (
	"path/filepath"
	"slices"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/panbanda/dartrefs/pkg/models"
)

// edge is one resolved import or export.
type edge struct {
	to     uint32
	alias  string
	filter models.Filter
}

// Route is one way a file sees the declarations of another: an import of
// the file's library followed by zero or more export hops.
type Route struct {
	Target  uint32
	Alias   string
	Filters []models.Filter
}

// Accepts reports whether every filter along the route lets name through.
func (r Route) Accepts(name string) bool {
	for _, f := range r.Filters {
		if !f.Accepts(name) {
			return false
		}
	}
	return true
}

// Visibility describes how a declaration can be referenced from a file.
type Visibility struct {
	// Bare is true when the name is usable without a prefix.
	Bare bool
	// Aliases lists the import prefixes the name is reachable through.
	Aliases []string
}

// Visible reports whether any route exposes the declaration.
func (v Visibility) Visible() bool {
	return v.Bare || len(v.Aliases) > 0
}

// Allows reports whether a reference written with the given prefix is
// covered. An empty alias means an unprefixed reference.
func (v Visibility) Allows(alias string) bool {
	if alias == "" {
		return v.Bare
	}
	return slices.Contains(v.Aliases, alias)
}

// Graph is the import/export visibility graph of a project. It is built once
// and is safe for concurrent readers afterwards.
type Graph struct {
	files   []string
	index   map[string]uint32
	imports [][]edge
	exports [][]edge
	library []uint32
	parts   [][]uint32
	aliases []map[string]bool

	mu     sync.RWMutex
	routes map[routeKey][]Route
}

// routeKey memoises routes per importing library and declaration name.
type routeKey struct {
	lib  uint32
	name string
}

// NewGraph builds the graph from resolved directives keyed by owning file.
// Directives whose target is not one of files contribute no edges.
func NewGraph(files []string, directives map[string][]models.ImportDirective) *Graph {
	sorted := make([]string, len(files))
	for i, f := range files {
		sorted[i] = filepath.Clean(f)
	}
	sort.Strings(sorted)
	sorted = slices.Compact(sorted)

	n := len(sorted)
	g := &Graph{
		files:   sorted,
		index:   make(map[string]uint32, n),
		imports: make([][]edge, n),
		exports: make([][]edge, n),
		library: make([]uint32, n),
		parts:   make([][]uint32, n),
		aliases: make([]map[string]bool, n),
		routes:  make(map[routeKey][]Route),
	}
	for i, f := range sorted {
		g.index[f] = uint32(i)
		g.library[i] = uint32(i)
	}

	for _, f := range sorted {
		from := g.index[f]
		for _, d := range directives[f] {
			to, ok := g.index[filepath.Clean(d.Resolved)]
			if d.Resolved == "" || !ok {
				continue
			}
			e := edge{to: to, alias: d.Alias, filter: d.Filter()}
			switch d.Kind {
			case models.DirectiveImport:
				g.imports[from] = append(g.imports[from], e)
				if d.Alias != "" {
					if g.aliases[from] == nil {
						g.aliases[from] = make(map[string]bool)
					}
					g.aliases[from][d.Alias] = true
				}
			case models.DirectiveExport:
				g.exports[from] = append(g.exports[from], e)
			case models.DirectivePart:
				g.library[to] = from
			case models.DirectivePartOf:
				if g.library[from] == from {
					g.library[from] = to
				}
			}
		}
	}
	for i := range g.library {
		if lib := g.library[i]; lib != uint32(i) {
			g.parts[lib] = append(g.parts[lib], uint32(i))
		}
	}
	return g
}

// Index returns the index of file.
func (g *Graph) Index(file string) (uint32, bool) {
	i, ok := g.index[filepath.Clean(file)]
	return i, ok
}

// Library returns the index of the library file that file belongs to.
func (g *Graph) Library(file string) (uint32, bool) {
	i, ok := g.Index(file)
	if !ok {
		return 0, false
	}
	return g.library[i], true
}

// IsPart reports whether file is a part of another library.
func (g *Graph) IsPart(file string) bool {
	i, ok := g.Index(file)
	return ok && g.library[i] != i
}

// HasParts reports whether file is a library with part files.
func (g *Graph) HasParts(file string) bool {
	i, ok := g.Index(file)
	return ok && len(g.parts[i]) > 0
}

// SameLibrary reports whether a and b belong to the same library.
func (g *Graph) SameLibrary(a, b string) bool {
	la, ok := g.Library(a)
	if !ok {
		return false
	}
	lb, ok := g.Library(b)
	return ok && la == lb
}

// IsAlias reports whether name is an import prefix in scope in file.
func (g *Graph) IsAlias(file, name string) bool {
	lib, ok := g.Library(file)
	return ok && g.aliases[lib][name]
}

// Routes returns every route from file's library imports across export
// edges that lets name through. Edges whose filter rejects name are not
// followed, so a file reached first through a narrower path is still reached
// through a wider one. Each import starts its own walk with a fresh visited
// set, so an export cycle ends the walk instead of extending it.
func (g *Graph) Routes(file, name string) []Route {
	lib, ok := g.Library(file)
	if !ok {
		return nil
	}

	key := routeKey{lib: lib, name: name}
	g.mu.RLock()
	cached, ok := g.routes[key]
	g.mu.RUnlock()
	if ok {
		return cached
	}

	var routes []Route
	for _, imp := range g.imports[lib] {
		routes = append(routes, g.walk(imp, name)...)
	}

	g.mu.Lock()
	g.routes[key] = routes
	g.mu.Unlock()
	return routes
}

func (g *Graph) walk(start edge, name string) []Route {
	if !start.filter.Accepts(name) {
		return nil
	}
	var routes []Route
	visited := roaring.New()
	queue := []Route{{Target: start.to, Alias: start.alias, Filters: filters(nil, start.filter)}}

	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		if visited.Contains(r.Target) {
			continue
		}
		visited.Add(r.Target)
		routes = append(routes, r)

		for _, exp := range g.exports[r.Target] {
			if visited.Contains(exp.to) || !exp.filter.Accepts(name) {
				continue
			}
			queue = append(queue, Route{
				Target:  exp.to,
				Alias:   r.Alias,
				Filters: filters(r.Filters, exp.filter),
			})
		}
	}
	return routes
}

// filters appends f to chain when it restricts anything. The chain is copied
// so sibling routes never share a backing array.
func filters(chain []models.Filter, f models.Filter) []models.Filter {
	out := make([]models.Filter, len(chain), len(chain)+1)
	copy(out, chain)
	if !f.Empty() {
		out = append(out, f)
	}
	return out
}

// Visibility reports how name, declared in definer, can be referenced from
// file. Files of the same library see each other's declarations unprefixed.
func (g *Graph) Visibility(file, definer, name string) Visibility {
	var v Visibility
	if g.SameLibrary(file, definer) {
		v.Bare = true
	}
	target, ok := g.Library(definer)
	if !ok {
		return v
	}
	for _, r := range g.Routes(file, name) {
		if r.Target != target {
			continue
		}
		if r.Alias == "" {
			v.Bare = true
		} else if !slices.Contains(v.Aliases, r.Alias) {
			v.Aliases = append(v.Aliases, r.Alias)
		}
	}
	return v
}

// ExportCycles returns the groups of files that re-export each other,
// each group sorted, groups ordered by their first file.
func (g *Graph) ExportCycles() [][]string {
	dg := simple.NewDirectedGraph()
	for i := range g.files {
		dg.AddNode(simple.Node(int64(i)))
	}
	selfLoop := make(map[int64]bool)
	for from, edges := range g.exports {
		for _, e := range edges {
			if int(e.to) == from {
				selfLoop[int64(from)] = true
				continue
			}
			dg.SetEdge(simple.Edge{F: simple.Node(int64(from)), T: simple.Node(int64(e.to))})
		}
	}

	var cycles [][]string
	for _, scc := range topo.TarjanSCC(dg) {
		if len(scc) == 1 && !selfLoop[scc[0].ID()] {
			continue
		}
		group := make([]string, 0, len(scc))
		for _, n := range scc {
			group = append(group, g.files[n.ID()])
		}
		sort.Strings(group)
		cycles = append(cycles, group)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}
