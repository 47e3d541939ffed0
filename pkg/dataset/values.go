package dataset

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Row is one table row keyed by source column name. Values are nil, string,
// bool, int64, float64, json.Number, []string or []any depending on the
// file format they were read from.
type Row map[string]any

// nullStrings are cell spellings treated as missing.
var nullStrings = map[string]struct{}{
	"":     {},
	"nan":  {},
	"NaN":  {},
	"None": {},
	"null": {},
	"<NA>": {},
	"NaT":  {},
}

// IsNull reports whether v represents a missing value.
func IsNull(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		_, ok := nullStrings[strings.TrimSpace(val)]

		return ok
	case float64:
		return math.IsNaN(val)
	default:
		return false
	}
}

// AsString renders a scalar as text. Integral floats drop their fraction so
// ids survive a round trip through float columns.
func AsString(v any) string {
	if IsNull(v) {
		return ""
	}

	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case float32:
		return formatFloat(float64(val))
	case float64:
		return formatFloat(val)
	case []byte:
		return string(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}

		return string(b)
	}
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}

	return strconv.FormatFloat(f, 'g', -1, 64)
}

// AsInt converts v to an integer. The second result is false for missing or
// non-numeric values.
func AsInt(v any) (int64, bool) {
	if IsNull(v) {
		return 0, false
	}

	switch val := v.(type) {
	case int64:
		return val, true
	case int32:
		return int64(val), true
	case int:
		return int64(val), true
	case float64:
		return int64(val), true
	case float32:
		return int64(val), true
	case bool:
		if val {
			return 1, true
		}

		return 0, true
	}

	s := AsString(v)

	i, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return i, true
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}

	return int64(f), true
}

// AsFloat converts v to a float. The second result is false for missing or
// non-numeric values.
func AsFloat(v any) (float64, bool) {
	if IsNull(v) {
		return 0, false
	}

	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int64:
		return float64(val), true
	case int:
		return float64(val), true
	}

	f, err := strconv.ParseFloat(AsString(v), 64)
	if err != nil {
		return 0, false
	}

	return f, true
}

// AsBool converts v to a boolean; missing values are false.
func AsBool(v any) bool {
	if IsNull(v) {
		return false
	}

	switch val := v.(type) {
	case bool:
		return val
	case int64, int32, int, float64, float32, json.Number:
		n, ok := AsFloat(AsString(val))

		return ok && n != 0
	}

	switch strings.ToLower(AsString(v)) {
	case "true", "t", "yes", "y", "1":
		return true
	default:
		return false
	}
}

// AsStringList converts a list-valued cell. Text cells may hold a JSON array
// or a Python-style list literal such as "['Extract Method', 'Rename']".
func AsStringList(v any) []string {
	if IsNull(v) {
		return []string{}
	}

	switch val := v.(type) {
	case []string:
		return append([]string{}, val...)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if !IsNull(item) {
				out = append(out, AsString(item))
			}
		}

		return out
	}

	return parseListLiteral(AsString(v))
}

// parseListLiteral accepts JSON arrays, Python list reprs with single or
// double quotes, and numpy array reprs without commas.
func parseListLiteral(s string) []string {
	s = strings.TrimSpace(s)

	var asJSON []string
	if json.Unmarshal([]byte(s), &asJSON) == nil {
		return asJSON
	}

	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	out := []string{}

	var (
		current strings.Builder
		quote   rune
		inItem  bool
	)

	flush := func() {
		item := strings.TrimSpace(current.String())
		if item != "" || inItem {
			out = append(out, item)
		}

		current.Reset()

		inItem = false
	}

	for _, r := range s {
		switch {
		case quote != 0 && r == quote:
			quote = 0
		case quote != 0:
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inItem = true
		case r == ',':
			flush()
		case r == ' ' && inItem:
			flush()
		default:
			current.WriteRune(r)
		}
	}

	flush()

	cleaned := out[:0]

	for _, item := range out {
		if item != "" {
			cleaned = append(cleaned, item)
		}
	}

	return cleaned
}
