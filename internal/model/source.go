package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SourceEntity is one instance returned by the metadata source. ID is the
// entity UUID taken from the "id" field; Fields holds the raw payload.
type SourceEntity struct {
	ID     string
	Fields map[string]any
}

// UnmarshalJSON decodes a raw instance and extracts its id.
func (e *SourceEntity) UnmarshalJSON(data []byte) error {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	e.Fields = fields
	e.ID = UUID(e.String("id"))
	return nil
}

// MarshalJSON renders the raw payload.
func (e SourceEntity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Fields)
}

// String returns the string value of key, or "".
func (e *SourceEntity) String(key string) string {
	switch v := e.Fields[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// Strings returns the string elements of key. A single string is returned as
// a one-element list.
func (e *SourceEntity) Strings(key string) []string {
	switch v := e.Fields[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Objects returns the object elements of key as entities.
func (e *SourceEntity) Objects(key string) []SourceEntity {
	var raw []any
	switch v := e.Fields[key].(type) {
	case []any:
		raw = v
	case map[string]any:
		raw = []any{v}
	default:
		return nil
	}
	out := make([]SourceEntity, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			obj := SourceEntity{Fields: m}
			obj.ID = UUID(obj.String("id"))
			out = append(out, obj)
		}
	}
	return out
}

// UUID returns the last path segment of an instance IRI, or the input when
// it has none.
func UUID(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		return id[i+1:]
	}
	return id
}
