// Package attrs reads slog-style key/value attribute slices.
package attrs

import (
	"fmt"
	"reflect"
)

// ExtractString returns the value stored under key in a slice formatted as
// [key1, value1, key2, value2, ...]. Values of any string kind and
// fmt.Stringer values are returned as text; anything else, or a missing key,
// yields "".
func ExtractString(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok || k != key {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
		if rv := reflect.ValueOf(kv[i+1]); rv.Kind() == reflect.String {
			return rv.String()
		}
		return ""
	}
	return ""
}

// ToMap renders every pair as text. Non-string keys are skipped and a
// trailing key without a value is ignored.
func ToMap(kv []any) map[string]string {
	out := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		out[k] = fmt.Sprint(kv[i+1])
	}
	return out
}
