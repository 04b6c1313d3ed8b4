package core

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
)

// Fields returns the members of a JSON object, or nil when raw is not an object.
func Fields(raw json.RawMessage) map[string]json.RawMessage {
	if !isKind(raw, '{') {
		return nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// Items returns the elements of a JSON array; anything else is an empty (non-nil) list.
func Items(raw json.RawMessage) []json.RawMessage {
	items := make([]json.RawMessage, 0)
	if !isKind(raw, '[') {
		return items
	}
	_ = json.Unmarshal(raw, &items)
	return items
}

// ToNum coerces raw to a finite number; anything else is 0.
func ToNum(raw json.RawMessage) float64 {
	n, _ := toNumber(raw)
	return n
}

// ToCount coerces raw to a non-negative integer.
func ToCount(raw json.RawMessage) int {
	n := ToNum(raw)
	if n <= 0 {
		return 0
	}
	if n >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// ToID coerces raw to an integer identifier (0 when absent or not a number).
func ToID(raw json.RawMessage) int64 {
	n := ToNum(raw)
	if n >= math.MaxInt64 || n <= math.MinInt64 {
		return 0
	}
	return int64(n)
}

// ToStr renders scalars as text. null, objects and arrays render as "".
func ToStr(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	}
	return string(raw) // numbers and booleans
}

func toNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !(raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9')) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func isKind(raw json.RawMessage, open byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == open
}

// CamelizeKeys rewrites snake_case object keys to camelCase, recursively.
// Values (including numbers) are kept verbatim.
func CamelizeKeys(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return raw
	}
	out, err := json.Marshal(camelize(v))
	if err != nil {
		return raw
	}
	return out
}

func camelize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[CamelCase(k)] = camelize(item)
		}
		return out
	case []interface{}:
		for i, item := range val {
			val[i] = camelize(item)
		}
		return val
	}
	return v
}

// CamelCase turns "user_count" into "userCount". Only "_" followed by a lowercase letter is folded.
func CamelCase(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '_' && i+1 < len(s) && s[i+1] >= 'a' && s[i+1] <= 'z' {
			b.WriteByte(s[i+1] - 'a' + 'A')
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
