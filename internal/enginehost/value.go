package enginehost

import "fmt"

// Marshal applies the uniform value-marshalling rule used by get_property,
// call_method's result, and wait_for's last_value: primitives pass through
// as-is, arrays/mappings recurse element-wise preserving insertion order,
// and anything else degrades to its string form. Map keys are coerced to
// string.
func Marshal(v any) any {
	switch t := v.(type) {
	case nil, bool, string:
		return t
	case int, int32, int64, float32, float64:
		return t
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Marshal(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Marshal(e)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprintf("%v", k)] = Marshal(e)
		}
		return out
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Stringify produces the canonical string form used by wait_for's equality
// check. It is deliberately the same stringification `%v` uses after
// Marshal, documented here as the contract clients must know (per
// spec.md §4.H and §9: compound engine values lack stable JSON equivalence,
// so string comparison is the explicit, documented contract).
func Stringify(v any) string {
	return fmt.Sprintf("%v", Marshal(v))
}
