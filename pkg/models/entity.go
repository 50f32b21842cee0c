package models

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Category classifies a collected declaration.
type Category string

const (
	CategoryClass              Category = "class"
	CategoryAbstractClass      Category = "abstract_class"
	CategorySealedClass        Category = "sealed_class"
	CategoryBaseClass          Category = "base_class"
	CategoryFinalClass         Category = "final_class"
	CategoryInterfaceClass     Category = "interface_class"
	CategoryMixin              Category = "mixin"
	CategoryMixinClass         Category = "mixin_class"
	CategoryEnum               Category = "enum"
	CategoryExtension          Category = "extension"
	CategoryAnonymousExtension Category = "anonymous_extension"
	CategoryTypedef            Category = "typedef"
	CategoryStateClass         Category = "state_class"
	CategoryLifecycleContainer Category = "lifecycle_container"
	CategoryFunction           Category = "function"
	CategoryConstructor        Category = "constructor"
)

// IsType reports whether the category names a type-like declaration.
// Types and functions live in separate namespaces of the Table.
func (c Category) IsType() bool {
	return c != CategoryFunction && c != CategoryConstructor
}

// Location pinpoints a declaration inside its file.
type Location struct {
	Line   int `json:"line" toon:"line"`
	Offset int `json:"offset" toon:"offset"` // byte offset of the name
}

// Entity is a collected type or function declaration together with its usage counts.
type Entity struct {
	ID       uint64   `json:"id" toon:"id"`
	Name     string   `json:"name" toon:"name"`
	Category Category `json:"category" toon:"category"`
	File     string   `json:"file" toon:"file"`
	Location Location `json:"location" toon:"location"`

	CommentedOut       bool   `json:"commented_out" toon:"commented_out"`
	EntryPoint         bool   `json:"entry_point" toon:"entry_point"`
	FrameworkLifecycle bool   `json:"framework_lifecycle" toon:"framework_lifecycle"`
	EnclosingClass     string `json:"enclosing_class,omitempty" toon:"enclosing_class,omitempty"`

	// Function-only flags.
	Static      bool `json:"static,omitempty" toon:"static,omitempty"`
	Constructor bool `json:"constructor,omitempty" toon:"constructor,omitempty"`
	EmptyBody   bool `json:"empty_body,omitempty" toon:"empty_body,omitempty"`

	Internal int            `json:"internal" toon:"internal"`
	External map[string]int `json:"external" toon:"-"`
}

// NewEntity creates an entity with its stable ID assigned.
func NewEntity(name string, category Category, file string, loc Location) *Entity {
	e := &Entity{
		Name:     name,
		Category: category,
		File:     file,
		Location: loc,
		External: make(map[string]int),
	}
	e.ID = xxhash.Sum64String(file + ":" + strconv.Itoa(loc.Line) + ":" + name)
	return e
}

// TotalExternal sums the external usages over all consuming files.
func (e *Entity) TotalExternal() int {
	total := 0
	for _, n := range e.External {
		total += n
	}
	return total
}

// Total returns internal plus external usages.
func (e *Entity) Total() int {
	return e.Internal + e.TotalExternal()
}

// AddExternal records n references from file.
func (e *Entity) AddExternal(file string, n int) {
	if n <= 0 {
		return
	}
	if e.External == nil {
		e.External = make(map[string]int)
	}
	e.External[file] += n
}

// Exempt reports whether the entity is presumed used regardless of counts.
func (e *Entity) Exempt() bool {
	return e.EntryPoint || e.FrameworkLifecycle
}

// IsMember reports whether the entity is declared inside a type body.
// Constructors are not members: they are reached through their class name.
func (e *Entity) IsMember() bool {
	return e.EnclosingClass != "" && !e.Constructor
}

// VisibleName is the top-level name that show/hide lists refer to.
func (e *Entity) VisibleName() string {
	if e.EnclosingClass != "" {
		return e.EnclosingClass
	}
	if i := strings.IndexByte(e.Name, '.'); i > 0 {
		return e.Name[:i]
	}
	return e.Name
}

// QualifiedName is the name prefixed by the enclosing type for members.
func (e *Entity) QualifiedName() string {
	if e.IsMember() {
		return e.EnclosingClass + "." + e.Name
	}
	return e.Name
}

// LocationKey is the name qualified by its declaration site.
func (e *Entity) LocationKey() string {
	return e.Name + "@" + e.File + ":" + strconv.Itoa(e.Location.Line)
}
