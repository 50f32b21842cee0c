package models

import (
	"errors"
	"slices"
)

// ErrShowAndHide is returned for a directive carrying both show and hide lists.
var ErrShowAndHide = errors.New("directive has both show and hide lists")

// DirectiveKind distinguishes the Dart namespace directives.
type DirectiveKind string

const (
	DirectiveImport DirectiveKind = "import"
	DirectiveExport DirectiveKind = "export"
	DirectivePart   DirectiveKind = "part"
	DirectivePartOf DirectiveKind = "part_of"
)

// Filter is a show or hide restriction. At most one list is non-empty.
type Filter struct {
	Show []string `json:"show,omitempty" toon:"show,omitempty"`
	Hide []string `json:"hide,omitempty" toon:"hide,omitempty"`
}

// Accepts reports whether name passes the filter.
func (f Filter) Accepts(name string) bool {
	if len(f.Show) > 0 {
		return slices.Contains(f.Show, name)
	}
	return !slices.Contains(f.Hide, name)
}

// Empty reports whether the filter lets every name through.
func (f Filter) Empty() bool {
	return len(f.Show) == 0 && len(f.Hide) == 0
}

// ImportDirective is one import, export or part directive of a file.
type ImportDirective struct {
	Owner       string        `json:"owner" toon:"owner"`
	Kind        DirectiveKind `json:"kind" toon:"kind"`
	Raw         string        `json:"raw" toon:"raw"`
	Resolved    string        `json:"resolved,omitempty" toon:"resolved,omitempty"`
	Alias       string        `json:"alias,omitempty" toon:"alias,omitempty"`
	Show        []string      `json:"show,omitempty" toon:"show,omitempty"`
	Hide        []string      `json:"hide,omitempty" toon:"hide,omitempty"`
	Deferred    bool          `json:"deferred,omitempty" toon:"deferred,omitempty"`
	Conditional []string      `json:"conditional,omitempty" toon:"conditional,omitempty"`
	Line        int           `json:"line" toon:"line"`
}

// IsExport reports whether the directive re-exports its target.
func (d ImportDirective) IsExport() bool {
	return d.Kind == DirectiveExport
}

// Wildcard reports whether the directive is an unfiltered export.
func (d ImportDirective) Wildcard() bool {
	return d.IsExport() && len(d.Show) == 0 && len(d.Hide) == 0
}

// IsResolved reports whether the target was mapped to a project file.
func (d ImportDirective) IsResolved() bool {
	return d.Resolved != ""
}

// Filter returns the show/hide restriction of the directive.
func (d ImportDirective) Filter() Filter {
	return Filter{Show: d.Show, Hide: d.Hide}
}

// Validate checks the directive invariants.
func (d ImportDirective) Validate() error {
	if len(d.Show) > 0 && len(d.Hide) > 0 {
		return ErrShowAndHide
	}
	return nil
}
