// Package selection models the typed selection tree the JIT compiler
// consumes.
//
// A tree is rooted at a synthetic object field named "query" whose resolver
// is Identity. Object fields carry an ordered mapping from response alias to
// child field; scalar fields are leaves. Trees are built once per compile
// request and are not modified afterwards.
package selection

import "fmt"

// RootName is the name of the synthetic root field.
const RootName = "query"

// Resolver produces a field value from its parent value and the execution
// context. A returned error is recorded as the field's failure.
type Resolver func(source, context any) (any, error)

// Identity is the resolver of the root field.
func Identity(source, context any) (any, error) { return source, nil }

// Field is either a *ScalarField or an *ObjectField.
type Field interface {
	Name() string
	// Resolver returns nil when the field is resolved by the default
	// resolver.
	Resolver() Resolver
	Nullable() bool

	field()
}

// ScalarField resolves to a leaf value.
type ScalarField struct {
	FieldName  string
	Resolve    Resolver
	IsNullable bool
}

func (f *ScalarField) Name() string       { return f.FieldName }
func (f *ScalarField) Resolver() Resolver { return f.Resolve }
func (f *ScalarField) Nullable() bool     { return f.IsNullable }
func (*ScalarField) field()               {}

// ObjectField resolves to a value whose own fields are selected by Selection.
type ObjectField struct {
	FieldName  string
	Resolve    Resolver
	IsNullable bool
	Selection  *Selection
}

func (f *ObjectField) Name() string       { return f.FieldName }
func (f *ObjectField) Resolver() Resolver { return f.Resolve }
func (f *ObjectField) Nullable() bool     { return f.IsNullable }
func (*ObjectField) field()               {}

// Root wraps sel into the synthetic root field.
func Root(sel *Selection) *ObjectField {
	return &ObjectField{FieldName: RootName, Resolve: Identity, IsNullable: true, Selection: sel}
}

// Entry is one alias of a selection.
type Entry struct {
	Alias string
	Field Field
}

// Selection is an insertion-ordered mapping from alias to field.
type Selection struct {
	entries []Entry
	index   map[string]int
}

// New builds a selection from entries, panicking on duplicate aliases. It is
// meant for literal trees; use Add when the aliases come from input.
func New(entries ...Entry) *Selection {
	s := &Selection{}
	for _, e := range entries {
		if err := s.Add(e.Alias, e.Field); err != nil {
			panic(err)
		}
	}
	return s
}

// Add appends f under alias.
func (s *Selection) Add(alias string, f Field) error {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[alias]; ok {
		return fmt.Errorf("duplicate alias %q", alias)
	}
	s.index[alias] = len(s.entries)
	s.entries = append(s.entries, Entry{Alias: alias, Field: f})
	return nil
}

// Get returns the field selected under alias.
func (s *Selection) Get(alias string) (Field, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[alias]
	if !ok {
		return nil, false
	}
	return s.entries[i].Field, true
}

// Len returns the number of aliases.
func (s *Selection) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

// Entries returns the aliases in declaration order.
func (s *Selection) Entries() []Entry {
	if s == nil {
		return nil
	}
	return append([]Entry(nil), s.entries...)
}
