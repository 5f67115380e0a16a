package iati

import (
	"strconv"
	"strings"
)

// Payload helpers. External activity payloads arrive as decoded JSON with no
// schema guarantees: elements that can repeat show up as a single object or a
// list, narratives as a bare string, an object, or a list of objects. These
// helpers absorb that variance so the normalizer reads one shape.

// asList returns v as a slice: nil stays nil, a list stays itself, and a
// singular value becomes a one-element list.
func asList(v interface{}) []interface{} {
	if v == nil {
		return nil
	}
	if list, ok := v.([]interface{}); ok {
		return list
	}
	return []interface{}{v}
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

// stringValue renders a scalar JSON value as a string. Integral numbers render
// without a decimal point so codes like 2 become "2".
func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// attrString returns the first non-empty value among the given keys.
func attrString(m map[string]interface{}, keys ...string) string {
	if m == nil {
		return ""
	}
	for _, key := range keys {
		if s := stringValue(m[key]); s != "" {
			return s
		}
	}
	return ""
}

// codeValue extracts a code that may appear as a bare scalar or as an object
// carrying the code in an attribute. The "@code" attribute wins over a plain
// "code" key when both are present.
func codeValue(v interface{}) string {
	if s := stringValue(v); s != "" {
		return s
	}
	if m := asMap(v); m != nil {
		return attrString(m, "@code", "code", "text", "#text")
	}
	return ""
}

// narrativeText extracts human text that may be a bare string, an object with
// a "narrative" (or "text") member, or a list of either. Multiple narratives
// reduce to the first non-empty one.
func narrativeText(v interface{}) string {
	for _, item := range asList(v) {
		if s := stringValue(item); s != "" {
			return s
		}
		m := asMap(item)
		if m == nil {
			continue
		}
		if nested, ok := m["narrative"]; ok {
			if s := narrativeText(nested); s != "" {
				return s
			}
		}
		if s := attrString(m, "text", "#text", "$"); s != "" {
			return s
		}
	}
	return ""
}

// pick returns the first present key's value, tolerating the hyphenated,
// snake_case and camelCase spellings different exporters produce.
func pick(payload map[string]interface{}, keys ...string) interface{} {
	for _, key := range keys {
		if v, ok := payload[key]; ok {
			return v
		}
	}
	return nil
}
