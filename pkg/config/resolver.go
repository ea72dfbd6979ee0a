package config

import (
	"errors"
	"fmt"
)

// Resolution errors
var (
	ErrUnknownParameter    = errors.New("unknown parameter reference")
	ErrInvalidParameter    = errors.New("parameter value is not a number or vector of numbers")
	ErrUnknownObservedEdge = errors.New("observed edge does not exist")
)

// Resolver maps a parameter reference (a string key naming a constant in a
// configuration table) to its numeric value. The core only consumes resolved
// values; it never interprets the reference syntax.
type Resolver interface {
	Resolve(key string) (any, error)
}

// TableResolver resolves references against a flat name -> value table.
type TableResolver map[string]any

// NewTableResolver normalizes a raw table (as decoded from JSON or YAML)
// into one holding only float64 scalars and []float64 vectors.
func NewTableResolver(table map[string]any) (TableResolver, error) {
	out := make(TableResolver, len(table))
	for key, raw := range table {
		v, err := normalizeValue(raw)
		if err != nil {
			return nil, fmt.Errorf("parameter table entry %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

// Resolve returns the table value for key.
func (t TableResolver) Resolve(key string) (any, error) {
	v, ok := t[key]
	if !ok {
		return nil, fmt.Errorf("%q: %w", key, ErrUnknownParameter)
	}
	return v, nil
}

// ResolveParams normalizes a descriptor's parameter map, replacing string
// references through the resolver. The result holds only float64 scalars and
// []float64 vectors.
func ResolveParams(raw map[string]any, resolver Resolver) (map[string]any, error) {
	out := make(map[string]any, len(raw))
	for name, value := range raw {
		if ref, ok := value.(string); ok {
			resolved, err := resolver.Resolve(ref)
			if err != nil {
				return nil, fmt.Errorf("parameter %q: %w", name, err)
			}
			value = resolved
		}
		v, err := normalizeValue(value)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}

// normalizeValue coerces JSON/YAML number representations to float64 scalars
// or []float64 vectors.
func normalizeValue(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case bool:
		if v {
			return 1.0, nil
		}
		return 0.0, nil
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out, nil
	case []any:
		out := make([]float64, len(v))
		for i, elem := range v {
			n, err := normalizeValue(elem)
			if err != nil {
				return nil, err
			}
			f, ok := n.(float64)
			if !ok {
				return nil, ErrInvalidParameter
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%T: %w", raw, ErrInvalidParameter)
	}
}
