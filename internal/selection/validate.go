package selection

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// Validate checks the structural invariants of the tree rooted at root:
// every object field has a non-empty selection, no entry is nil and every
// alias and field name is non-empty. All violations are reported together.
func Validate(root *ObjectField) error {
	if root == nil {
		return fmt.Errorf("nil root field")
	}
	var result *multierror.Error
	validateObject(root, []string{root.FieldName}, &result)
	return result.ErrorOrNil()
}

func validateObject(f *ObjectField, path []string, result **multierror.Error) {
	at := strings.Join(path, ".")
	if f.FieldName == "" {
		*result = multierror.Append(*result, fmt.Errorf("%s: empty field name", at))
	}
	if f.Selection.Len() == 0 {
		*result = multierror.Append(*result, fmt.Errorf("%s: object field %q has an empty selection", at, f.FieldName))
		return
	}
	for _, e := range f.Selection.Entries() {
		child := append(path[:len(path):len(path)], e.Alias)
		childAt := strings.Join(child, ".")
		if e.Alias == "" {
			*result = multierror.Append(*result, fmt.Errorf("%s: empty alias", at))
		}
		switch cf := e.Field.(type) {
		case *ObjectField:
			if cf == nil {
				*result = multierror.Append(*result, fmt.Errorf("%s: nil field", childAt))
				continue
			}
			validateObject(cf, child, result)
		case *ScalarField:
			if cf == nil {
				*result = multierror.Append(*result, fmt.Errorf("%s: nil field", childAt))
				continue
			}
			if cf.FieldName == "" {
				*result = multierror.Append(*result, fmt.Errorf("%s: empty field name", childAt))
			}
		default:
			*result = multierror.Append(*result, fmt.Errorf("%s: unsupported field %T", childAt, e.Field))
		}
	}
}
