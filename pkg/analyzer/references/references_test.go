package references

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/dartrefs/pkg/analyzer/collector"
	"github.com/panbanda/dartrefs/pkg/analyzer/imports"
	"github.com/panbanda/dartrefs/pkg/lexer"
	"github.com/panbanda/dartrefs/pkg/models"
)

type fixture struct {
	root    string
	table   *models.Table
	tallies map[string]*Tally
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.root, name)
}

// entity returns the live record named name declared in file.
func (f *fixture) entity(t *testing.T, name, file string) *models.Entity {
	t.Helper()
	for _, e := range f.table.Lookup(name) {
		if e.File == f.path(file) {
			return e
		}
	}
	t.Fatalf("no entity %s in %s", name, file)
	return nil
}

type setup struct {
	functions bool
	policy    models.DuplicatePolicy
	trace     bool
}

func analyze(t *testing.T, s setup, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{root: root, tallies: make(map[string]*Tally)}

	var paths []string
	srcs := make(map[string]*lexer.Source)
	for name, content := range files {
		p := filepath.Join(root, name)
		paths = append(paths, p)
		srcs[p] = lexer.NewSource(p, []byte(content))
	}
	sort.Strings(paths)

	resolver, err := imports.NewResolver(root, paths)
	require.NoError(t, err)

	f.table = models.NewTable(s.policy)
	c := collector.New(collector.WithFunctions(s.functions))
	dirs := make(map[string][]models.ImportDirective)
	for _, p := range paths {
		for _, e := range c.Collect(srcs[p]).Entities {
			f.table.Add(e)
		}
		parsed, errs := imports.ParseDirectives(srcs[p])
		require.Empty(t, errs)
		dirs[p] = resolver.ResolveAll(parsed)
	}

	scanner := New(f.table, imports.NewGraph(paths, dirs), WithTrace(s.trace))
	var tallies []*Tally
	for _, p := range paths {
		tally := scanner.ScanFile(srcs[p])
		f.tallies[p] = tally
		tallies = append(tallies, tally)
	}
	Merge(tallies...)
	return f
}

func TestScan_ShowFilter(t *testing.T) {
	f := analyze(t, setup{}, map[string]string{
		"g.dart": "class X {}\nclass Y {}\n",
		"f.dart": "import 'g.dart' show X;\n\nfinal a = X();\nfinal b = Y();\n",
	})

	x := f.entity(t, "X", "g.dart")
	assert.Equal(t, 1, x.External[f.path("f.dart")])
	assert.Equal(t, 1, x.Total())

	// Names in the show list are not references.
	y := f.entity(t, "Y", "g.dart")
	assert.Equal(t, 0, y.Total())
}

func TestScan_HideFilter(t *testing.T) {
	f := analyze(t, setup{}, map[string]string{
		"g.dart": "class X {}\nclass Y {}\n",
		"f.dart": "import 'g.dart' hide X;\n\nfinal a = X();\nfinal b = Y();\n",
	})

	assert.Equal(t, 0, f.entity(t, "X", "g.dart").TotalExternal())
	assert.Equal(t, 1, f.entity(t, "Y", "g.dart").External[f.path("f.dart")])
}

func TestScan_AliasRequiresPrefix(t *testing.T) {
	f := analyze(t, setup{}, map[string]string{
		"g.dart": "class Y {}\n",
		"f.dart": "import 'g.dart' as g;\n\nfinal a = Y();\nfinal b = g.Y();\n",
	})

	y := f.entity(t, "Y", "g.dart")
	assert.Equal(t, 1, y.External[f.path("f.dart")])
	assert.Equal(t, 1, y.Total())
}

func TestScan_TransitiveExport(t *testing.T) {
	f := analyze(t, setup{}, map[string]string{
		"b.dart": "class Z {}\n",
		"a.dart": "export 'b.dart';\n",
		"f.dart": "import 'a.dart';\n\nfinal z = Z();\n",
	})

	z := f.entity(t, "Z", "b.dart")
	assert.Equal(t, map[string]int{f.path("f.dart"): 1}, z.External)
}

func TestScan_DiamondExportReachesFilteredName(t *testing.T) {
	f := analyze(t, setup{}, map[string]string{
		"b.dart":    "class X {}\nclass Y {}\n",
		"c.dart":    "export 'b.dart';\n",
		"api.dart":  "export 'b.dart' show X;\nexport 'c.dart';\n",
		"main.dart": "import 'api.dart';\n\nfinal y = Y();\n",
	})

	y := f.entity(t, "Y", "b.dart")
	assert.Equal(t, map[string]int{f.path("main.dart"): 1}, y.External)
	assert.Equal(t, 0, f.entity(t, "X", "b.dart").TotalExternal())
}

func TestScan_ExportCycleTerminates(t *testing.T) {
	f := analyze(t, setup{}, map[string]string{
		"a.dart": "export 'b.dart';\nclass InA {}\n",
		"b.dart": "export 'a.dart';\nclass InB {}\n",
		"f.dart": "import 'a.dart';\n\nfinal x = InA();\nfinal y = InB();\n",
	})

	assert.Equal(t, 1, f.entity(t, "InA", "a.dart").TotalExternal())
	assert.Equal(t, 1, f.entity(t, "InB", "b.dart").TotalExternal())
}

func TestScan_InternalAndUnused(t *testing.T) {
	f := analyze(t, setup{}, map[string]string{
		"a.dart": "class Active {}\nclass Used {}\n\nfinal u = Used();\nfinal v = Used();\n",
	})

	active := f.entity(t, "Active", "a.dart")
	assert.Equal(t, 0, active.Internal)
	assert.Equal(t, 0, active.TotalExternal())
	assert.Equal(t, 0, active.Total())

	used := f.entity(t, "Used", "a.dart")
	assert.Equal(t, 2, used.Internal)
	assert.Empty(t, used.External)
}

func TestScan_NotImportedIsIgnored(t *testing.T) {
	f := analyze(t, setup{}, map[string]string{
		"g.dart": "class Foo {}\n",
		"f.dart": "final a = Foo();\n",
	})

	assert.Equal(t, 0, f.entity(t, "Foo", "g.dart").Total())
	assert.Equal(t, 1, f.tallies[f.path("f.dart")].Ignored)
}

func TestScan_CommentsAndStrings(t *testing.T) {
	f := analyze(t, setup{}, map[string]string{
		"a.dart": `class Foo {}
// Foo is mentioned here
/* and Foo here */
final s = 'Foo';
final t = "${Foo()}";
`,
	})

	assert.Equal(t, 1, f.entity(t, "Foo", "a.dart").Internal)
}

func TestScan_MemberAccessOnUnrelatedObject(t *testing.T) {
	f := analyze(t, setup{}, map[string]string{
		"g.dart": "class Foo {}\n",
		"f.dart": "import 'g.dart';\n\nfinal a = other.Foo;\nfinal b = other..Foo;\n",
	})

	assert.Equal(t, 0, f.entity(t, "Foo", "g.dart").Total())
}

func TestScan_NamedArgumentLabel(t *testing.T) {
	f := analyze(t, setup{functions: true}, map[string]string{
		"a.dart": `void value() {}

void run() {
  call(value: 1);
  call(
    value: 2,
  );
  final x = flag ? value : null;
}
`,
	})

	// Only the ternary operand is a reference.
	assert.Equal(t, 1, f.entity(t, "value", "a.dart").Internal)
}

func TestScan_NamedConstructor(t *testing.T) {
	f := analyze(t, setup{functions: true}, map[string]string{
		"g.dart": "class Point {\n  Point.origin();\n}\n",
		"f.dart": "import 'g.dart';\n\nfinal p = Point.origin();\n",
	})

	var ctor *models.Entity
	for _, e := range f.table.Functions() {
		if e.Name == "Point.origin" {
			ctor = e
		}
	}
	require.NotNil(t, ctor)
	assert.Equal(t, 1, ctor.External[f.path("f.dart")])

	point := f.entity(t, "Point", "g.dart")
	assert.Equal(t, 1, point.External[f.path("f.dart")])
}

func TestScan_ConstructorSelfMatch(t *testing.T) {
	// Known limitation: the class name inside its own constructor
	// declaration counts as an internal reference.
	f := analyze(t, setup{functions: true}, map[string]string{
		"a.dart": "class Foo {\n  Foo();\n}\n",
	})

	var class *models.Entity
	for _, e := range f.table.Types() {
		if e.Name == "Foo" {
			class = e
		}
	}
	require.NotNil(t, class)
	assert.Equal(t, 1, class.Internal)
}

func TestScan_MembersNeedAnyRoute(t *testing.T) {
	f := analyze(t, setup{functions: true}, map[string]string{
		"g.dart": "class A {\n  void helper() {}\n}\n",
		"f.dart": "import 'g.dart' as g;\n\nvoid run(g.A a) {\n  a.helper();\n}\n",
		"h.dart": "void other(dynamic a) {\n  a.helper();\n}\n",
	})

	helper := f.entity(t, "helper", "g.dart")
	assert.Equal(t, map[string]int{f.path("f.dart"): 1}, helper.External)
}

func TestScan_CoexistPrefersLocal(t *testing.T) {
	f := analyze(t, setup{policy: models.DuplicateCoexist}, map[string]string{
		"a.dart": "class Dup {}\nfinal x = Dup();\n",
		"b.dart": "import 'a.dart';\nclass Dup {}\nfinal y = Dup();\n",
	})

	a := f.entity(t, "Dup", "a.dart")
	b := f.entity(t, "Dup", "b.dart")
	assert.Equal(t, 1, a.Internal)
	assert.Empty(t, a.External)
	assert.Equal(t, 1, b.Internal)
}

func TestScan_PartsShareScope(t *testing.T) {
	f := analyze(t, setup{}, map[string]string{
		"lib.dart":  "part 'part.dart';\n\nfinal p = Piece();\n",
		"part.dart": "part of 'lib.dart';\n\nclass Piece {}\n",
	})

	piece := f.entity(t, "Piece", "part.dart")
	assert.Equal(t, 1, piece.External[f.path("lib.dart")])
}

func TestScan_Trace(t *testing.T) {
	f := analyze(t, setup{trace: true}, map[string]string{
		"g.dart": "class Foo {}\n",
		"f.dart": "final a = Foo();\n",
	})

	tally := f.tallies[f.path("f.dart")]
	require.Len(t, tally.Decisions, 1)
	assert.Equal(t, ReasonNotVisible, tally.Decisions[0].Reason)
	assert.Equal(t, 1, tally.Decisions[0].Line)

	decl := f.tallies[f.path("g.dart")]
	require.Len(t, decl.Decisions, 1)
	assert.Equal(t, ReasonDeclaration, decl.Decisions[0].Reason)
}

func TestTotalsInvariant(t *testing.T) {
	f := analyze(t, setup{functions: true}, map[string]string{
		"g.dart": "class A {}\nvoid helper() {}\nfinal a = A();\n",
		"f.dart": "import 'g.dart';\n\nfinal x = A();\nvoid run() { helper(); helper(); }\n",
		"h.dart": "import 'g.dart';\n\nfinal y = A();\n",
	})

	for _, e := range f.table.Entities() {
		sum := 0
		for _, n := range e.External {
			sum += n
		}
		assert.Equal(t, e.Internal+sum, e.Total(), e.Name)
	}
	a := f.entity(t, "A", "g.dart")
	assert.Equal(t, 1, a.Internal)
	assert.Equal(t, 2, a.TotalExternal())
	assert.Equal(t, 2, f.entity(t, "helper", "g.dart").External[f.path("f.dart")])
}
