package schema

import (
	"encoding/json"
	"strings"
)

// FormData is a decoded exam-type-scoped answer document.
type FormData map[string]interface{}

// DecodeFormData parses the raw formData payload. An empty payload decodes
// to an empty document rather than an error.
func DecodeFormData(raw json.RawMessage) (FormData, error) {
	if len(raw) == 0 {
		return FormData{}, nil
	}
	var doc FormData
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = FormData{}
	}
	return doc, nil
}

// Lookup resolves a dotted field id ("amt.score") against nested objects.
func (d FormData) Lookup(id string) (interface{}, bool) {
	parts := strings.Split(id, ".")
	var current interface{} = map[string]interface{}(d)
	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Bool reads a boolean field; absent or mistyped values read as false.
func (d FormData) Bool(id string) bool {
	value, ok := d.Lookup(id)
	if !ok {
		return false
	}
	b, _ := value.(bool)
	return b
}

// String reads a trimmed string field; absent values read as "".
func (d FormData) String(id string) string {
	value, ok := d.Lookup(id)
	if !ok {
		return ""
	}
	s, _ := value.(string)
	return strings.TrimSpace(s)
}

// Number reads a numeric field.
func (d FormData) Number(id string) (float64, bool) {
	value, ok := d.Lookup(id)
	if !ok {
		return 0, false
	}
	n, ok := value.(float64)
	return n, ok
}

// Blank reports whether a field is absent or holds an empty value. Booleans
// are never blank; false is a deliberate answer.
func (d FormData) Blank(id string) bool {
	value, ok := d.Lookup(id)
	if !ok || value == nil {
		return true
	}
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}
