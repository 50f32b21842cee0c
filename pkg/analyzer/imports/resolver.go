package imports

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/panbanda/dartrefs/pkg/models"
)

// PubspecFile is the Dart package manifest.
const PubspecFile = "pubspec.yaml"

// pubspec holds the manifest fields the resolver needs.
type pubspec struct {
	Name string `yaml:"name"`
}

// Resolver maps directive URIs to project files.
//
// Plain paths are resolved against the owning file and then against the
// project root. package: URIs are resolved through every pubspec.yaml found
// between a project file and the root. dart: URIs and anything outside the
// project stay unresolved.
type Resolver struct {
	root     string
	known    map[string]bool
	packages map[string]string // package name -> package directory
}

// NewResolver creates a resolver for the given project files. When files is
// empty, candidate targets are checked on disk instead.
//
// Unreadable or malformed manifests are skipped and reported in the returned
// error; the resolver is usable either way.
func NewResolver(root string, files []string) (*Resolver, error) {
	r := &Resolver{
		root:     filepath.Clean(root),
		packages: make(map[string]string),
	}
	if len(files) > 0 {
		r.known = make(map[string]bool, len(files))
		for _, f := range files {
			r.known[filepath.Clean(f)] = true
		}
	}
	return r, r.discoverPackages(files)
}

// discoverPackages reads the manifest of the root and of every directory
// between a project file and the root.
func (r *Resolver) discoverPackages(files []string) error {
	var errs []error
	seen := make(map[string]bool)
	visit := func(dir string) {
		if seen[dir] {
			return
		}
		seen[dir] = true
		name, err := readPackageName(filepath.Join(dir, PubspecFile))
		if err != nil {
			errs = append(errs, err)
			return
		}
		if name != "" {
			if _, dup := r.packages[name]; !dup {
				r.packages[name] = dir
			}
		}
	}

	visit(r.root)
	for _, f := range files {
		for dir := filepath.Dir(filepath.Clean(f)); within(r.root, dir); dir = filepath.Dir(dir) {
			visit(dir)
			if dir == r.root {
				break
			}
		}
	}
	return errors.Join(errs...)
}

// readPackageName returns the package name declared in the manifest at path,
// or "" when there is none.
func readPackageName(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	var spec pubspec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	return strings.TrimSpace(spec.Name), nil
}

// Packages returns the discovered package names in sorted order.
func (r *Resolver) Packages() []string {
	names := make([]string, 0, len(r.packages))
	for n := range r.packages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Resolve maps raw, as written in owner, to an absolute project file.
// It returns "" when the target is not part of the project.
func (r *Resolver) Resolve(owner, raw string) string {
	switch {
	case raw == "":
		return ""
	case strings.HasPrefix(raw, "dart:"):
		return ""
	case strings.HasPrefix(raw, "package:"):
		rest := strings.TrimPrefix(raw, "package:")
		name, path, ok := strings.Cut(rest, "/")
		if !ok {
			return ""
		}
		dir, ok := r.packages[name]
		if !ok {
			return ""
		}
		return r.accept(filepath.Join(dir, "lib", filepath.FromSlash(path)))
	case strings.Contains(raw, ":") && !filepath.IsAbs(raw):
		// other URI schemes (http:, file: with authority, ...)
		return ""
	}

	p := filepath.FromSlash(raw)
	if filepath.IsAbs(p) {
		return r.accept(p)
	}
	if got := r.accept(filepath.Join(filepath.Dir(owner), p)); got != "" {
		return got
	}
	return r.accept(filepath.Join(r.root, p))
}

// ResolveAll resolves every directive of a file. The alternates of a
// configurable import become extra directives sharing its alias and filters.
func (r *Resolver) ResolveAll(dirs []models.ImportDirective) []models.ImportDirective {
	out := make([]models.ImportDirective, 0, len(dirs))
	for _, d := range dirs {
		d.Resolved = r.Resolve(d.Owner, d.Raw)
		out = append(out, d)
		for _, alt := range d.Conditional {
			extra := d
			extra.Raw = alt
			extra.Conditional = nil
			extra.Resolved = r.Resolve(d.Owner, alt)
			if extra.Resolved != "" && extra.Resolved != d.Resolved {
				out = append(out, extra)
			}
		}
	}
	return out
}

func (r *Resolver) accept(p string) string {
	p = filepath.Clean(p)
	if r.known != nil {
		if r.known[p] {
			return p
		}
		return ""
	}
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return ""
	}
	return p
}

// within reports whether path lies inside root (or is root).
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
