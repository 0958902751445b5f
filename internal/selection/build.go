package selection

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/hanpama/gqljit/internal/language"
	"github.com/hanpama/gqljit/internal/schema"
)

// FromQuery builds the selection tree for set, selected on the object type
// root. Fragments are resolved against doc and @skip/@include conditions are
// evaluated with variables. Every field that cannot be compiled is reported.
func FromQuery(
	sch *schema.Schema,
	root *schema.Type,
	set language.SelectionSet,
	doc *language.QueryDocument,
	variables map[string]any,
) (*ObjectField, error) {
	b := &builder{schema: sch, document: doc, variables: variables}
	sel := b.selection(root, []language.SelectionSet{set}, RootName)
	if err := b.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return Root(sel), nil
}

type builder struct {
	schema    *schema.Schema
	document  *language.QueryDocument
	variables map[string]any
	errs      *multierror.Error
}

func (b *builder) fail(path string, format string, args ...any) {
	b.errs = multierror.Append(b.errs, fmt.Errorf("%s: %s", path, fmt.Sprintf(format, args...)))
}

func (b *builder) selection(objectType *schema.Type, sets []language.SelectionSet, path string) *Selection {
	grouped := newCollectedFieldMap()
	for _, set := range sets {
		b.collectFields(objectType, set, grouped, map[string]bool{})
	}
	sel := &Selection{}
	for _, cf := range grouped.orderedFields() {
		f := b.field(objectType, cf.Fields, path+"."+cf.ResponseName)
		if f == nil {
			continue
		}
		if err := sel.Add(cf.ResponseName, f); err != nil {
			b.fail(path, "%v", err)
		}
	}
	return sel
}

func (b *builder) field(parent *schema.Type, nodes []*language.Field, path string) Field {
	name := nodes[0].Name
	if name == "__typename" {
		typeName := parent.Name
		return &ScalarField{
			FieldName: name,
			Resolve:   func(any, any) (any, error) { return typeName, nil },
		}
	}
	def := parent.Field(name)
	if def == nil {
		b.fail(path, "Cannot query field '%s' on type '%s'", name, parent.Name)
		return nil
	}
	var resolve Resolver
	if def.Resolve != nil {
		resolve = Resolver(def.Resolve)
	}
	nullable := !schema.IsNonNull(def.Type)

	named := b.schema.Types[def.Type.GetNamedType()]
	if named == nil {
		b.fail(path, "unknown type %s", def.Type)
		return nil
	}
	var subsets []language.SelectionSet
	for _, n := range nodes {
		if len(n.SelectionSet) > 0 {
			subsets = append(subsets, n.SelectionSet)
		}
	}

	if named.IsLeaf() {
		if len(subsets) > 0 {
			b.fail(path, "field '%s' of type %s must not have a selection", name, def.Type)
			return nil
		}
		return &ScalarField{FieldName: name, Resolve: resolve, IsNullable: nullable}
	}
	switch {
	case schema.IsList(def.Type):
		b.fail(path, "field '%s' returns a list of %s; only lists of leaf types are supported", name, named.Name)
		return nil
	case named.Kind != schema.TypeKindObject:
		b.fail(path, "field '%s' returns abstract type %s, which is not supported", name, named.Name)
		return nil
	case len(subsets) == 0:
		b.fail(path, "field '%s' of type %s must have a selection", name, def.Type)
		return nil
	}
	sel := b.selection(named, subsets, path)
	if sel.Len() == 0 {
		b.fail(path, "field '%s' selects no fields", name)
		return nil
	}
	return &ObjectField{FieldName: name, Resolve: resolve, IsNullable: nullable, Selection: sel}
}
