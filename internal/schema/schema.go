// Package schema holds the executable schema: named types, field types and
// the resolvers bound to fields.
package schema

import "fmt"

type Schema struct {
	QueryType        string
	MutationType     string
	SubscriptionType string
	Types            map[string]*Type
}

// GetQueryType returns the query root, or nil.
func (s *Schema) GetQueryType() *Type { return s.Types[s.QueryType] }

// GetMutationType returns the mutation root, or nil.
func (s *Schema) GetMutationType() *Type { return s.Types[s.MutationType] }

// Bind attaches fn as the resolver of typeName.fieldName.
func (s *Schema) Bind(typeName, fieldName string, fn ResolveFunc) error {
	t := s.Types[typeName]
	if t == nil {
		return fmt.Errorf("unknown type %q", typeName)
	}
	f := t.Field(fieldName)
	if f == nil {
		return fmt.Errorf("type %q has no field %q", typeName, fieldName)
	}
	f.Resolve = fn
	return nil
}

type TypeKind string

const (
	TypeKindScalar      TypeKind = "SCALAR"
	TypeKindObject      TypeKind = "OBJECT"
	TypeKindInterface   TypeKind = "INTERFACE"
	TypeKindUnion       TypeKind = "UNION"
	TypeKindEnum        TypeKind = "ENUM"
	TypeKindInputObject TypeKind = "INPUT_OBJECT"
)

// Type is a named type. Fields are kept for objects and interfaces,
// possible types for interfaces and unions, values for enums.
type Type struct {
	Name          string
	Kind          TypeKind
	Description   string
	Fields        []*Field
	Interfaces    []string
	PossibleTypes []string
	EnumValues    []string
}

// Field returns the field named name, or nil.
func (t *Type) Field(name string) *Field {
	for _, f := range t.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// IsLeaf reports whether values of the type are returned as is.
func (t *Type) IsLeaf() bool {
	return t.Kind == TypeKindScalar || t.Kind == TypeKindEnum
}

// ResolveFunc resolves a field value from its parent value and the
// execution context.
type ResolveFunc func(source, context any) (any, error)

type Field struct {
	Name        string
	Description string
	Type        *TypeRef
	Resolve     ResolveFunc // nil selects the default resolver
}

type TypeRefKind string

const (
	TypeRefKindNamed   TypeRefKind = "NAMED"
	TypeRefKindList    TypeRefKind = "LIST"
	TypeRefKindNonNull TypeRefKind = "NON_NULL"
)

// TypeRef is a possibly wrapped reference to a named type.
type TypeRef struct {
	Kind   TypeRefKind
	OfType *TypeRef
	Named  string
}

func NonNullType(t *TypeRef) *TypeRef { return &TypeRef{Kind: TypeRefKindNonNull, OfType: t} }
func ListType(t *TypeRef) *TypeRef    { return &TypeRef{Kind: TypeRefKindList, OfType: t} }
func NamedType(name string) *TypeRef  { return &TypeRef{Kind: TypeRefKindNamed, Named: name} }

// nullable strips one non-null wrapper.
func (t *TypeRef) nullable() *TypeRef {
	if t.Kind == TypeRefKindNonNull {
		return t.OfType
	}
	return t
}

func (t *TypeRef) IsList() bool { return t.nullable().Kind == TypeRefKindList }

// GetNamedType returns the name under all wrappers.
func (t *TypeRef) GetNamedType() string {
	for t.Kind != TypeRefKindNamed {
		t = t.OfType
	}
	return t.Named
}

func (t *TypeRef) String() string {
	switch t.Kind {
	case TypeRefKindList:
		return "[" + t.OfType.String() + "]"
	case TypeRefKindNonNull:
		return t.OfType.String() + "!"
	}
	return t.Named
}

// IsNonNull reports whether t is wrapped with non-null.
func IsNonNull(t *TypeRef) bool { return t != nil && t.Kind == TypeRefKindNonNull }

// IsList reports whether t, ignoring non-null, is a list.
func IsList(t *TypeRef) bool { return t != nil && t.IsList() }
