// Package naming converts payload keys between the camelCase used on the
// wire and the snake_case used in storage.
package naming

import (
	"strings"
)

// SnakeKey converts "trackName" to "track_name". Keys that are already
// snake_case are returned unchanged.
func SnakeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key) + 4)
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c >= 'A' && c <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteByte(c + ('a' - 'A'))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// CamelKey converts "track_name" to "trackName". An underscore is only
// consumed when a lowercase letter follows it, so "_id" and "a__b" keep
// their underscores.
func CamelKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == '_' && i > 0 && i+1 < len(key) {
			next := key[i+1]
			if next >= 'a' && next <= 'z' {
				b.WriteByte(next - ('a' - 'A'))
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// ToExternal rewrites every mapping key in v to camelCase.
func ToExternal(v any) any {
	return convert(v, CamelKey)
}

// ToInternal rewrites every mapping key in v to snake_case.
func ToInternal(v any) any {
	return convert(v, SnakeKey)
}

// ExternalMap is ToExternal for the common top-level case.
func ExternalMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return convertMap(m, CamelKey)
}

// InternalMap is ToInternal for the common top-level case.
func InternalMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return convertMap(m, SnakeKey)
}

func convert(v any, key func(string) string) any {
	switch t := v.(type) {
	case map[string]any:
		return convertMap(t, key)
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, m := range t {
			out[i] = convertMap(m, key)
		}
		return out
	case []any:
		// Elements are converted one level at a time; nested arrays are left as they are.
		out := make([]any, len(t))
		for i, e := range t {
			if m, ok := e.(map[string]any); ok {
				out[i] = convertMap(m, key)
			} else {
				out[i] = e
			}
		}
		return out
	default:
		return v
	}
}

func convertMap(m map[string]any, key func(string) string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[key(k)] = convert(v, key)
	}
	return out
}
