package selection

import (
	"slices"

	"github.com/hanpama/gqljit/internal/language"
	"github.com/hanpama/gqljit/internal/schema"
)

// collectedFieldMap preserves field order from the original query
type collectedFieldMap struct {
	fields []collectedField
	index  map[string]int
}

type collectedField struct {
	ResponseName string
	Fields       []*language.Field
}

func newCollectedFieldMap() *collectedFieldMap {
	return &collectedFieldMap{index: make(map[string]int)}
}

func (cfm *collectedFieldMap) add(responseName string, field *language.Field) {
	if idx, exists := cfm.index[responseName]; exists {
		cfm.fields[idx].Fields = append(cfm.fields[idx].Fields, field)
		return
	}
	cfm.index[responseName] = len(cfm.fields)
	cfm.fields = append(cfm.fields, collectedField{
		ResponseName: responseName,
		Fields:       []*language.Field{field},
	})
}

func (cfm *collectedFieldMap) orderedFields() []collectedField {
	return cfm.fields
}

func (b *builder) collectFields(objectType *schema.Type, set language.SelectionSet, grouped *collectedFieldMap, visitedFragments map[string]bool) {
	for _, sel := range set {
		switch sel := sel.(type) {
		case *language.Field:
			if !b.shouldInclude(sel.Directives) {
				continue
			}
			responseName := sel.Alias
			if responseName == "" {
				responseName = sel.Name
			}
			grouped.add(responseName, sel)

		case *language.InlineFragment:
			if !b.shouldInclude(sel.Directives) || !b.typeApplies(objectType, sel.TypeCondition) {
				continue
			}
			b.collectFields(objectType, sel.SelectionSet, grouped, visitedFragments)

		case *language.FragmentSpread:
			if !b.shouldInclude(sel.Directives) || visitedFragments[sel.Name] {
				continue
			}
			visitedFragments[sel.Name] = true

			fragment := b.fragment(sel.Name)
			if fragment == nil {
				b.fail(objectType.Name, "unknown fragment %q", sel.Name)
				continue
			}
			if !b.typeApplies(objectType, fragment.TypeCondition) || !b.shouldInclude(fragment.Directives) {
				continue
			}
			b.collectFields(objectType, fragment.SelectionSet, grouped, visitedFragments)
		}
	}
}

func (b *builder) fragment(name string) *language.FragmentDefinition {
	if b.document == nil {
		return nil
	}
	return b.document.Fragments.ForName(name)
}

// typeApplies reports whether a fragment with the given type condition
// applies to objectType.
func (b *builder) typeApplies(objectType *schema.Type, condition string) bool {
	if condition == "" || condition == objectType.Name {
		return true
	}
	if slices.Contains(objectType.Interfaces, condition) {
		return true
	}
	if t := b.schema.Types[condition]; t != nil && t.Kind == schema.TypeKindUnion {
		return slices.Contains(t.PossibleTypes, objectType.Name)
	}
	return false
}

// shouldInclude evaluates @skip and @include.
func (b *builder) shouldInclude(directives language.DirectiveList) bool {
	if skip := directives.ForName("skip"); skip != nil {
		if v, ok := b.directiveArgument(skip, "if"); ok && v == true {
			return false
		}
	}
	if include := directives.ForName("include"); include != nil {
		if v, ok := b.directiveArgument(include, "if"); ok && v == false {
			return false
		}
	}
	return true
}

func (b *builder) directiveArgument(directive *language.Directive, name string) (any, bool) {
	arg := directive.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return nil, false
	}
	v, err := arg.Value.Value(b.variables)
	if err != nil {
		return nil, false
	}
	return v, true
}
