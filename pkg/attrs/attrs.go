// Package attrs reads slog-style alternating key/value argument lists.
package attrs

// Lookup returns the first value stored under key, provided it has type T.
// Pairs whose key is not a string are skipped; a trailing key without a
// value is ignored.
func Lookup[T any](kv []any, key string) (T, bool) {
	var zero T
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); !ok || k != key {
			continue
		}
		v, ok := kv[i+1].(T)
		return v, ok
	}
	return zero, false
}
