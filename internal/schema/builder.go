package schema

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

var builtinScalars = []string{"String", "Int", "Float", "Boolean", "ID"}

// NewSchema returns a schema holding the built-in scalars, with queryType as
// its query root name.
func NewSchema(queryType string) *Schema {
	s := &Schema{QueryType: queryType, Types: map[string]*Type{}}
	for _, name := range builtinScalars {
		s.Types[name] = &Type{Name: name, Kind: TypeKindScalar}
	}
	return s
}

// Object returns a new object type with fields.
func Object(name string, fields ...*Field) *Type {
	return &Type{Name: name, Kind: TypeKindObject, Fields: fields}
}

// Add registers types, replacing any with the same name.
func (s *Schema) Add(types ...*Type) *Schema {
	for _, t := range types {
		s.Types[t.Name] = t
	}
	return s
}

// BuildFromSDL parses and validates sdl and returns the corresponding
// Schema. Introspection types and fields are left out.
func BuildFromSDL(sdl string) (*Schema, error) {
	doc, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, err
	}
	s := NewSchema("")
	if doc.Query != nil {
		s.QueryType = doc.Query.Name
	}
	if doc.Mutation != nil {
		s.MutationType = doc.Mutation.Name
	}
	if doc.Subscription != nil {
		s.SubscriptionType = doc.Subscription.Name
	}

	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		if strings.HasPrefix(name, "__") {
			continue
		}
		if _, builtin := s.Types[name]; builtin {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if t := buildType(doc.Types[name]); t != nil {
			s.Add(t)
		}
	}
	return s, nil
}

var kinds = map[ast.DefinitionKind]TypeKind{
	ast.Object:      TypeKindObject,
	ast.Interface:   TypeKindInterface,
	ast.Union:       TypeKindUnion,
	ast.Enum:        TypeKindEnum,
	ast.Scalar:      TypeKindScalar,
	ast.InputObject: TypeKindInputObject,
}

func buildType(def *ast.Definition) *Type {
	kind, ok := kinds[def.Kind]
	if !ok {
		return nil
	}
	t := &Type{
		Name:          def.Name,
		Kind:          kind,
		Description:   def.Description,
		Interfaces:    def.Interfaces,
		PossibleTypes: def.Types,
	}
	for _, v := range def.EnumValues {
		t.EnumValues = append(t.EnumValues, v.Name)
	}
	if kind != TypeKindObject && kind != TypeKindInterface {
		return t
	}
	for _, fd := range def.Fields {
		if strings.HasPrefix(fd.Name, "__") {
			continue
		}
		t.Fields = append(t.Fields, &Field{Name: fd.Name, Description: fd.Description, Type: buildTypeRef(fd.Type)})
	}
	return t
}

func buildTypeRef(t *ast.Type) *TypeRef {
	var ref *TypeRef
	if t.Elem != nil {
		ref = ListType(buildTypeRef(t.Elem))
	} else {
		ref = NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = NonNullType(ref)
	}
	return ref
}
