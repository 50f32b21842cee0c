package imports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/dartrefs/pkg/lexer"
	"github.com/panbanda/dartrefs/pkg/models"
)

func parse(t *testing.T, src string) ([]models.ImportDirective, []error) {
	t.Helper()
	return ParseDirectives(lexer.NewSource("/p/lib/main.dart", []byte(src)))
}

func TestParseDirectives(t *testing.T) {
	src := `library app;

import 'dart:async';
import "package:app/models.dart" as m;
import 'widgets.dart' show Button, Label;
import 'utils.dart' hide internalHelper;
import 'heavy.dart' deferred as heavy;
export 'src/api.dart';
export 'src/filtered.dart' show Public;
import 'stub.dart'
    if (dart.library.io) 'io_impl.dart'
    if (dart.library.html) 'web_impl.dart';
import 'multi.dart'
    show
        A,
        B;
// import 'commented.dart';
part 'main.g.dart';
`
	dirs, errs := parse(t, src)
	require.Empty(t, errs)
	require.Len(t, dirs, 10)

	assert.Equal(t, models.ImportDirective{
		Owner: "/p/lib/main.dart", Kind: models.DirectiveImport, Raw: "dart:async", Line: 3,
	}, dirs[0])

	assert.Equal(t, "package:app/models.dart", dirs[1].Raw)
	assert.Equal(t, "m", dirs[1].Alias)

	assert.Equal(t, []string{"Button", "Label"}, dirs[2].Show)
	assert.Empty(t, dirs[2].Hide)

	assert.Equal(t, []string{"internalHelper"}, dirs[3].Hide)

	assert.True(t, dirs[4].Deferred)
	assert.Equal(t, "heavy", dirs[4].Alias)

	assert.True(t, dirs[5].IsExport())
	assert.True(t, dirs[5].Wildcard())
	assert.Equal(t, 8, dirs[5].Line)

	assert.True(t, dirs[6].IsExport())
	assert.False(t, dirs[6].Wildcard())
	assert.Equal(t, []string{"Public"}, dirs[6].Show)

	assert.Equal(t, "stub.dart", dirs[7].Raw)
	assert.Equal(t, []string{"io_impl.dart", "web_impl.dart"}, dirs[7].Conditional)

	assert.Equal(t, []string{"A", "B"}, dirs[8].Show)
	assert.Equal(t, 13, dirs[8].Line)

	assert.Equal(t, models.DirectivePart, dirs[9].Kind)
	assert.Equal(t, "main.g.dart", dirs[9].Raw)
}

func TestParseDirectives_PartOf(t *testing.T) {
	dirs, errs := parse(t, "part of 'main.dart';\n")
	require.Empty(t, errs)
	require.Len(t, dirs, 1)
	assert.Equal(t, models.DirectivePartOf, dirs[0].Kind)
	assert.Equal(t, "main.dart", dirs[0].Raw)

	dirs, _ = parse(t, "part of my.library;\n")
	require.Len(t, dirs, 1)
	assert.Equal(t, "my.library", dirs[0].Raw)
}

func TestParseDirectives_ShowAndHideFolded(t *testing.T) {
	dirs, errs := parse(t, "import 'a.dart' show A, B hide B;\n")
	require.Len(t, dirs, 1)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrMalformedDirective)
	assert.ErrorIs(t, errs[0], models.ErrShowAndHide)

	assert.Equal(t, []string{"A"}, dirs[0].Show)
	assert.Empty(t, dirs[0].Hide)
	assert.NoError(t, dirs[0].Validate())
}

func TestParseDirectives_IgnoresNonDirectives(t *testing.T) {
	src := `final part = 3;
void importData() {}
var s = 'import "x.dart";';
`
	dirs, errs := parse(t, src)
	assert.Empty(t, dirs)
	assert.Empty(t, errs)
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolver(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, PubspecFile), "name: app\nversion: 1.0.0\n")
	a := writeFile(t, filepath.Join(root, "lib", "a.dart"), "")
	b := writeFile(t, filepath.Join(root, "lib", "src", "b.dart"), "")
	writeFile(t, filepath.Join(root, "packages", "core", PubspecFile), "name: core\n")
	c := writeFile(t, filepath.Join(root, "packages", "core", "lib", "core.dart"), "")
	shared := writeFile(t, filepath.Join(root, "shared.dart"), "")

	r, err := NewResolver(root, []string{a, b, c, shared})
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "core"}, r.Packages())

	assert.Equal(t, b, r.Resolve(a, "package:app/src/b.dart"))
	assert.Equal(t, b, r.Resolve(a, "src/b.dart"))
	assert.Equal(t, a, r.Resolve(b, "../a.dart"))
	assert.Equal(t, c, r.Resolve(a, "package:core/core.dart"))
	assert.Equal(t, shared, r.Resolve(a, "shared.dart"))

	assert.Empty(t, r.Resolve(a, "dart:async"))
	assert.Empty(t, r.Resolve(a, "package:flutter/material.dart"))
	assert.Empty(t, r.Resolve(a, "package:app/missing.dart"))
	assert.Empty(t, r.Resolve(a, "https://example.com/x.dart"))
}

func TestResolver_OnDisk(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, filepath.Join(root, "a.dart"), "")
	writeFile(t, filepath.Join(root, "b.dart"), "")

	r, err := NewResolver(root, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "b.dart"), r.Resolve(a, "b.dart"))
	assert.Empty(t, r.Resolve(a, "c.dart"))
}

func TestResolver_BadPubspec(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, PubspecFile), "name: [unterminated\n")
	writeFile(t, filepath.Join(root, "pkg", PubspecFile), "name: good\n")
	a := writeFile(t, filepath.Join(root, "pkg", "lib", "a.dart"), "")

	r, err := NewResolver(root, []string{a})
	assert.Error(t, err)
	require.NotNil(t, r)
	assert.Equal(t, []string{"good"}, r.Packages())
}

func TestResolveAll_ExpandsConditional(t *testing.T) {
	root := t.TempDir()
	a := writeFile(t, filepath.Join(root, "a.dart"), "")
	stub := writeFile(t, filepath.Join(root, "stub.dart"), "")
	io := writeFile(t, filepath.Join(root, "io.dart"), "")

	r, err := NewResolver(root, []string{a, stub, io})
	require.NoError(t, err)

	got := r.ResolveAll([]models.ImportDirective{{
		Owner:       a,
		Kind:        models.DirectiveImport,
		Raw:         "stub.dart",
		Alias:       "p",
		Conditional: []string{"io.dart", "missing.dart"},
	}})
	require.Len(t, got, 2)
	assert.Equal(t, stub, got[0].Resolved)
	assert.Equal(t, io, got[1].Resolved)
	assert.Equal(t, "p", got[1].Alias)
}

// graphOf builds a graph over /p/<name>.dart files from directives given as
// owner -> directives with Raw holding the target name.
func graphOf(names []string, dirs map[string][]models.ImportDirective) *Graph {
	var files []string
	for _, n := range names {
		files = append(files, path(n))
	}
	resolved := make(map[string][]models.ImportDirective)
	for owner, ds := range dirs {
		for _, d := range ds {
			d.Owner = path(owner)
			d.Resolved = path(d.Raw)
			resolved[path(owner)] = append(resolved[path(owner)], d)
		}
	}
	return NewGraph(files, resolved)
}

func path(name string) string {
	return filepath.Join(string(filepath.Separator)+"p", name+".dart")
}

func imp(target string) models.ImportDirective {
	return models.ImportDirective{Kind: models.DirectiveImport, Raw: target}
}

func exp(target string) models.ImportDirective {
	return models.ImportDirective{Kind: models.DirectiveExport, Raw: target}
}

func TestGraph_ShowHideAlias(t *testing.T) {
	show := imp("g")
	show.Show = []string{"X"}
	hide := imp("h")
	hide.Hide = []string{"X"}
	alias := imp("k")
	alias.Alias = "k"

	g := graphOf([]string{"f", "g", "h", "k"}, map[string][]models.ImportDirective{
		"f": {show, hide, alias},
	})

	assert.True(t, g.Visibility(path("f"), path("g"), "X").Bare)
	assert.False(t, g.Visibility(path("f"), path("g"), "Y").Visible())

	assert.False(t, g.Visibility(path("f"), path("h"), "X").Visible())
	assert.True(t, g.Visibility(path("f"), path("h"), "Y").Bare)

	v := g.Visibility(path("f"), path("k"), "Y")
	assert.False(t, v.Bare)
	assert.True(t, v.Allows("k"))
	assert.False(t, v.Allows(""))
	assert.True(t, g.IsAlias(path("f"), "k"))
	assert.False(t, g.IsAlias(path("g"), "k"))
}

func TestGraph_TransitiveExports(t *testing.T) {
	filtered := exp("c")
	filtered.Show = []string{"Z"}

	g := graphOf([]string{"f", "a", "b", "c"}, map[string][]models.ImportDirective{
		"f": {imp("a")},
		"a": {exp("b"), filtered},
	})

	assert.True(t, g.Visibility(path("f"), path("b"), "Anything").Bare)
	assert.True(t, g.Visibility(path("f"), path("c"), "Z").Bare)
	assert.False(t, g.Visibility(path("f"), path("c"), "W").Visible())
	assert.False(t, g.Visibility(path("a"), path("f"), "Q").Visible())
}

func TestGraph_DiamondExportsUseWidestPath(t *testing.T) {
	narrow := exp("b")
	narrow.Show = []string{"X"}

	g := graphOf([]string{"main", "api", "b", "c"}, map[string][]models.ImportDirective{
		"main": {imp("api")},
		"api":  {narrow, exp("c")},
		"c":    {exp("b")},
	})

	assert.True(t, g.Visibility(path("main"), path("b"), "X").Bare)
	assert.True(t, g.Visibility(path("main"), path("b"), "Y").Bare)
	require.Len(t, g.Routes(path("main"), "Y"), 3)
	require.Len(t, g.Routes(path("main"), "X"), 3)
}

func TestGraph_ExportCycleTerminates(t *testing.T) {
	g := graphOf([]string{"f", "a", "b", "c"}, map[string][]models.ImportDirective{
		"f": {imp("a")},
		"a": {exp("b")},
		"b": {exp("a"), exp("c")},
	})

	routes := g.Routes(path("f"), "Z")
	require.Len(t, routes, 3)
	assert.True(t, g.Visibility(path("f"), path("c"), "Z").Bare)

	assert.Equal(t, [][]string{{path("a"), path("b")}}, g.ExportCycles())
}

func TestGraph_Parts(t *testing.T) {
	g := graphOf([]string{"lib", "part", "user"}, map[string][]models.ImportDirective{
		"lib":  {{Kind: models.DirectivePart, Raw: "part"}},
		"part": {{Kind: models.DirectivePartOf, Raw: "lib"}},
		"user": {imp("lib")},
	})

	assert.True(t, g.IsPart(path("part")))
	assert.True(t, g.HasParts(path("lib")))
	assert.True(t, g.SameLibrary(path("lib"), path("part")))

	// Importing a library exposes the declarations of its parts.
	assert.True(t, g.Visibility(path("user"), path("part"), "P").Bare)
	// Library members see each other without imports.
	assert.True(t, g.Visibility(path("part"), path("lib"), "L").Bare)
}

func TestGraph_PartsShareLibraryImports(t *testing.T) {
	g := graphOf([]string{"lib", "part", "dep"}, map[string][]models.ImportDirective{
		"lib": {{Kind: models.DirectivePart, Raw: "part"}, imp("dep")},
	})

	assert.True(t, g.Visibility(path("part"), path("dep"), "D").Bare)
}

func TestGraph_UnknownFiles(t *testing.T) {
	g := graphOf([]string{"f"}, map[string][]models.ImportDirective{
		"f": {imp("outside")},
	})
	assert.Empty(t, g.Routes(path("f"), "X"))
	assert.Empty(t, g.Routes(path("nope"), "X"))
	assert.False(t, g.Visibility(path("nope"), path("f"), "X").Visible())
}
