package models

import (
	"fmt"
	"slices"
	"sort"
)

// DuplicatePolicy decides what happens when a live name is declared twice.
type DuplicatePolicy string

const (
	// DuplicateLastWins replaces the earlier live declaration with the later one.
	DuplicateLastWins DuplicatePolicy = "last-wins"
	// DuplicateCoexist keeps both declarations under disambiguated keys.
	DuplicateCoexist DuplicatePolicy = "coexist"
)

// ParseDuplicatePolicy converts a config string into a policy.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(s) {
	case "", DuplicateLastWins:
		return DuplicateLastWins, nil
	case DuplicateCoexist:
		return DuplicateCoexist, nil
	default:
		return "", fmt.Errorf("unknown duplicate policy %q (want %s or %s)", s, DuplicateLastWins, DuplicateCoexist)
	}
}

type namespace struct {
	byKey   map[string]*Entity
	keys    map[*Entity]string
	current map[string]*Entity   // qualified name -> live record under that key
	live    map[string][]*Entity // plain name -> live records
}

func newNamespace() namespace {
	return namespace{
		byKey:   make(map[string]*Entity),
		keys:    make(map[*Entity]string),
		current: make(map[string]*Entity),
		live:    make(map[string][]*Entity),
	}
}

func (ns *namespace) put(key string, e *Entity) {
	ns.byKey[key] = e
	ns.keys[e] = key
}

func (ns *namespace) remove(e *Entity) {
	delete(ns.byKey, ns.keys[e])
	delete(ns.keys, e)
	ns.live[e.Name] = slices.DeleteFunc(ns.live[e.Name], func(x *Entity) bool { return x == e })
	if len(ns.live[e.Name]) == 0 {
		delete(ns.live, e.Name)
	}
}

// Table is the project-wide entity table. Types and functions are kept in
// separate namespaces so a class and its unnamed constructor do not collide.
//
// Entities are stored under a disambiguated key: the qualified name
// (Class.method for members) for the live declaration, and
// name@file:line for commented-out declarations and for extra declarations
// kept by DuplicateCoexist. Members of different types never collide.
//
// A Table is built by a single goroutine and is read-only afterwards.
type Table struct {
	policy DuplicatePolicy
	types  namespace
	funcs  namespace
}

// NewTable creates an empty table.
func NewTable(policy DuplicatePolicy) *Table {
	if policy == "" {
		policy = DuplicateLastWins
	}
	return &Table{
		policy: policy,
		types:  newNamespace(),
		funcs:  newNamespace(),
	}
}

// Policy returns the duplicate policy in effect.
func (t *Table) Policy() DuplicatePolicy {
	return t.policy
}

func (t *Table) namespaceFor(e *Entity) *namespace {
	if e.Category.IsType() {
		return &t.types
	}
	return &t.funcs
}

// Add inserts e. It returns the entity that e replaced under DuplicateLastWins, if any.
func (t *Table) Add(e *Entity) *Entity {
	ns := t.namespaceFor(e)

	if e.CommentedOut {
		ns.put(e.LocationKey(), e)
		return nil
	}

	qualified := e.QualifiedName()
	existing := ns.current[qualified]
	switch {
	case existing == nil:
		ns.put(qualified, e)
		ns.current[qualified] = e
		ns.live[e.Name] = append(ns.live[e.Name], e)
		return nil
	case t.policy == DuplicateCoexist:
		ns.put(e.LocationKey(), e)
		ns.live[e.Name] = append(ns.live[e.Name], e)
		return nil
	}

	ns.remove(existing)
	ns.put(qualified, e)
	ns.current[qualified] = e
	ns.live[e.Name] = append(ns.live[e.Name], e)
	return existing
}

// Lookup returns the live records named name across both namespaces.
func (t *Table) Lookup(name string) []*Entity {
	types := t.types.live[name]
	funcs := t.funcs.live[name]
	if len(funcs) == 0 {
		return types
	}
	if len(types) == 0 {
		return funcs
	}
	out := make([]*Entity, 0, len(types)+len(funcs))
	out = append(out, types...)
	return append(out, funcs...)
}

// LookupFunctions returns the live function records named name.
func (t *Table) LookupFunctions(name string) []*Entity {
	return t.funcs.live[name]
}

// Has reports whether any live record is named name.
func (t *Table) Has(name string) bool {
	return len(t.types.live[name]) > 0 || len(t.funcs.live[name]) > 0
}

// Type returns the type stored under a disambiguated key.
func (t *Table) Type(key string) (*Entity, bool) {
	e, ok := t.types.byKey[key]
	return e, ok
}

// Function returns the function stored under a disambiguated key.
func (t *Table) Function(key string) (*Entity, bool) {
	e, ok := t.funcs.byKey[key]
	return e, ok
}

// Len returns the number of stored entities.
func (t *Table) Len() int {
	return len(t.types.byKey) + len(t.funcs.byKey)
}

// Types returns every stored type ordered by file, line and name.
func (t *Table) Types() []*Entity {
	return sorted(t.types.byKey)
}

// Functions returns every stored function ordered by file, line and name.
func (t *Table) Functions() []*Entity {
	return sorted(t.funcs.byKey)
}

// Entities returns every stored entity ordered by file, line and name.
func (t *Table) Entities() []*Entity {
	all := make([]*Entity, 0, t.Len())
	all = append(all, t.Types()...)
	all = append(all, t.Functions()...)
	SortEntities(all)
	return all
}

func sorted(m map[string]*Entity) []*Entity {
	out := make([]*Entity, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	SortEntities(out)
	return out
}

// SortEntities orders entities by file, line, name and category.
func SortEntities(entities []*Entity) {
	sort.Slice(entities, func(i, j int) bool {
		a, b := entities[i], entities[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Location.Line != b.Location.Line {
			return a.Location.Line < b.Location.Line
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Category < b.Category
	})
}
