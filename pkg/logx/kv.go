package logx

import "fmt"

// KV converts alternating key/value pairs (logr style) into fields.
// A dangling key is logged with a nil value.
func KV(keysAndValues ...any) []Field {
	out := make([]Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		k := fmt.Sprint(keysAndValues[i])
		var v any
		if i+1 < len(keysAndValues) {
			v = keysAndValues[i+1]
		}
		if err, ok := v.(error); ok {
			out = append(out, String(k, err.Error()))
			continue
		}
		out = append(out, Any(k, v))
	}
	return out
}
