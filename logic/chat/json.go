package chat

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Object is a JSON object pulled out of model output. A nil Object means the
// output held nothing usable, which is distinct from an empty object.
type Object map[string]json.RawMessage

// ExtractJSON parses the span from the first '{' to the last '}' of text,
// or the whole text when there is no such span. It returns nil on any
// parse failure and has no side effects.
func ExtractJSON(text string) Object {
	candidate := text
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		candidate = text[start : end+1]
	}

	var obj Object
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil
	}
	return obj
}

// Has reports whether key is present with a non-null value. The typed
// accessors treat null as absent.
func (o Object) Has(key string) bool {
	raw, ok := o[key]
	return ok && string(raw) != "null"
}

// Float accepts a JSON number or a numeric string.
func (o Object) Float(key string) (float64, bool) {
	if !o.Has(key) {
		return 0, false
	}
	raw := o[key]
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func (o Object) String(key string) (string, bool) {
	if !o.Has(key) {
		return "", false
	}
	raw := o[key]
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Strings accepts an array (non-string items are skipped) or a single string.
func (o Object) Strings(key string) ([]string, bool) {
	if !o.Has(key) {
		return nil, false
	}
	raw := o[key]
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, false
		}
		return []string{s}, true
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil && strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out, true
}

// Objects returns the elements of an array field. Elements that are not
// objects come back as nil entries so callers can count them.
func (o Object) Objects(key string) ([]Object, bool) {
	if !o.Has(key) {
		return nil, false
	}
	raw := o[key]
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]Object, len(items))
	for i, item := range items {
		var obj Object
		if err := json.Unmarshal(item, &obj); err == nil {
			out[i] = obj
		}
	}
	return out, true
}
