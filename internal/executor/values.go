package executor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hanpama/gqljit/internal/language"
	"github.com/hanpama/gqljit/internal/schema"
)

// coerceVariableValues checks the provided variables against the operation's
// definitions. Missing variables take their default; a missing or null
// non-null variable is an error. Variables the operation does not declare
// are dropped.
func coerceVariableValues(
	operation *language.OperationDefinition,
	provided map[string]any,
) (map[string]any, error) {
	coerced := make(map[string]any, len(operation.VariableDefinitions))
	for _, def := range operation.VariableDefinitions {
		name := def.Variable
		t := typeRefFromAST(def.Type)
		val, ok := provided[name]
		if !ok {
			val, ok = provided[strings.TrimPrefix(name, "$")]
		}
		if !ok {
			if def.DefaultValue != nil {
				v, err := def.DefaultValue.Value(nil)
				if err != nil {
					return nil, fmt.Errorf("variable $%s: invalid default: %w", name, err)
				}
				coerced[name] = v
				continue
			}
			if schema.IsNonNull(t) {
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, t)
			}
			continue
		}
		cv, err := coerceValue(val, t)
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %w", name, t, err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	if t == nil {
		return nil
	}
	var ref *schema.TypeRef
	if t.Elem != nil {
		ref = schema.ListType(typeRefFromAST(t.Elem))
	} else {
		ref = schema.NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = schema.NonNullType(ref)
	}
	return ref
}

// coerceValue coerces an input value to t. Builtin scalars are converted;
// custom scalars, enums and input objects pass through.
func coerceValue(value any, t *schema.TypeRef) (any, error) {
	if t.Kind == schema.TypeRefKindNonNull {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type")
		}
		return coerceValue(value, t.OfType)
	}
	if value == nil {
		return nil, nil
	}
	if t.Kind == schema.TypeRefKindList {
		items, ok := value.([]any)
		if !ok {
			// A single value becomes a list of one.
			items = []any{value}
		}
		out := make([]any, len(items))
		for i, item := range items {
			v, err := coerceValue(item, t.OfType)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
	switch t.Named {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		if s, ok := value.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to string", value, value)
	case "Boolean":
		if b, ok := value.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to boolean", value, value)
	case "ID":
		switch v := value.(type) {
		case string:
			return v, nil
		case int:
			return strconv.Itoa(v), nil
		case int64:
			return strconv.FormatInt(v, 10), nil
		case float64:
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10), nil
			}
		}
		return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
	}
	return value, nil
}

// JSON numbers arrive as float64; integral ones are accepted as Int.
func coerceToInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int(v)) {
			return int(v), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to int", value, value)
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to float", value, value)
}
