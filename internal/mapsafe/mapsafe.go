// Package mapsafe reads typed values out of loosely typed parameter maps.
package mapsafe

// Get retrieves a typed value from a map[string]any.
// If the key is missing or the type cannot be converted, it returns the default value.
// Numbers decoded from YAML, TOML or JSON are converted between int and float64.
func Get[T any](m map[string]any, key string, defaultValue T) T {
	val, ok := m[key]
	if !ok {
		return defaultValue
	}

	switch any(defaultValue).(type) {
	case int:
		if n, ok := asFloat(val); ok {
			return any(int(n)).(T)
		}
	case float64:
		if n, ok := asFloat(val); ok {
			return any(n).(T)
		}
	case string:
		if s, ok := val.(string); ok {
			return any(s).(T)
		}
	case bool:
		if b, ok := val.(bool); ok {
			return any(b).(T)
		}
	default:
		// fallback: if type matches exactly
		if v2, ok := val.(T); ok {
			return v2
		}
	}
	return defaultValue
}

// Has reports whether key is present.
func Has(m map[string]any, key string) bool {
	_, ok := m[key]
	return ok
}

// Merge returns a new map with the entries of base overridden by over.
func Merge(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	default:
		return 0, false
	}
}
