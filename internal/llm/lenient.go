package llm

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// extractJSON returns the first balanced JSON value in text that starts with
// open ('{' or '['). Models often wrap JSON in Markdown fences or add prose
// around it; both are skipped.
func extractJSON(text string, open byte) (string, bool) {
	var closer byte = '}'
	if open == '[' {
		closer = ']'
	}

	start := strings.IndexByte(text, open)
	for start >= 0 {
		if end, ok := matchClosing(text, start, open, closer); ok {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], open)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchClosing finds the index of the bracket closing the one at start,
// ignoring brackets inside JSON strings.
func matchClosing(text string, start int, open, closer byte) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case closer:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// decodeObject decodes the first JSON object found in text.
func decodeObject(text string) (map[string]any, bool) {
	raw, ok := extractJSON(text, '{')
	if !ok {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false
	}
	return m, true
}

// decodeArray decodes the first JSON array found in text. An object holding
// a single array field is unwrapped, which is what providers restricted to
// object responses return.
func decodeArray(text string) ([]any, bool) {
	arrStart := strings.IndexByte(text, '[')
	objStart := strings.IndexByte(text, '{')

	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		if raw, ok := extractJSON(text, '['); ok {
			var arr []any
			if err := json.Unmarshal([]byte(raw), &arr); err == nil {
				return arr, true
			}
		}
	}

	if m, ok := decodeObject(text); ok {
		for _, v := range m {
			if arr, isArr := v.([]any); isArr {
				return arr, true
			}
		}
	}
	return nil, false
}

// stringValue coerces a decoded JSON value to text. Lists are joined so that
// a model answering with bullet points still fills a text field.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := stringValue(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}

// stringOr returns the text of m[key], or def when the key is missing or empty.
func stringOr(m map[string]any, key, def string) string {
	if s := stringValue(m[key]); s != "" {
		return s
	}
	return def
}

// floatOr coerces m[key] to a number, accepting numeric strings. NaN and
// infinities count as missing.
func floatOr(m map[string]any, key string, def float64) float64 {
	var f float64
	switch t := m[key].(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// boolOr coerces m[key] to a boolean, accepting "true"/"false"/"yes"/"no".
func boolOr(m map[string]any, key string, def bool) bool {
	switch t := m[key].(type) {
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes":
			return true
		case "false", "no":
			return false
		}
	}
	return def
}

// stringSlice coerces m[key] to a list of non-empty strings. A bare string
// becomes a one-element list.
func stringSlice(m map[string]any, key string) []string {
	switch t := m[key].(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s := stringValue(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	}
	return []string{}
}

// objects returns the elements of v that are JSON objects.
func objects(v any) []map[string]any {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if obj, ok := e.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return min(1, max(0, f))
}
