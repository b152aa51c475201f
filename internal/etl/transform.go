package etl

import (
	"fmt"
	"strings"
)

// ── Transformer ────────────────────────────────────────────
// Transformers modify records in-flight between source and destination.
// They are composable: each takes a record, returns a (possibly modified)
// record and a boolean indicating whether to keep it.

// Transformer processes a single record.
// Returns (transformed record, keep). If keep is false, the record is dropped.
type Transformer interface {
	Transform(Record) (Record, bool)
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(Record) (Record, bool)

func (f TransformerFunc) Transform(r Record) (Record, bool) { return f(r) }

// TransformConfig is a declarative transform definition (stored as JSON).
type TransformConfig struct {
	Type   string         `json:"type"` // "filter" | "rename" | "select" | "limit"
	Config map[string]any `json:"config"`
}

// ── Built-in Transforms ────────────────────────────────────

// FilterTransform drops records where the given field does not match the value.
type FilterTransform struct {
	Field string
	Op    string // "eq" | "neq" | "contains"
	Value any
}

func (t *FilterTransform) Transform(r Record) (Record, bool) {
	v, ok := r.Data[t.Field]
	if !ok {
		return r, false
	}
	switch t.Op {
	case "eq":
		return r, fmt.Sprint(v) == fmt.Sprint(t.Value)
	case "neq":
		return r, fmt.Sprint(v) != fmt.Sprint(t.Value)
	case "contains":
		return r, strings.Contains(fmt.Sprint(v), fmt.Sprint(t.Value))
	default:
		return r, true
	}
}

// RenameTransform renames fields in a record.
type RenameTransform struct {
	Mapping map[string]string // oldName → newName
}

func (t *RenameTransform) Transform(r Record) (Record, bool) {
	for old, new_ := range t.Mapping {
		if v, ok := r.Data[old]; ok {
			r.Data[new_] = v
			delete(r.Data, old)
		}
	}
	return r, true
}

// SelectTransform keeps only the specified fields.
type SelectTransform struct {
	Fields []string
}

func (t *SelectTransform) Transform(r Record) (Record, bool) {
	filtered := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		if v, ok := r.Data[f]; ok {
			filtered[f] = v
		}
	}
	r.Data = filtered
	return r, true
}

// DedupeTransform drops records with duplicate values for the given key.
type DedupeTransform struct {
	Key  string
	seen map[string]bool
}

func NewDedupeTransform(key string) *DedupeTransform {
	return &DedupeTransform{Key: key, seen: make(map[string]bool)}
}

func (t *DedupeTransform) Transform(r Record) (Record, bool) {
	v := fmt.Sprint(r.Data[t.Key])
	if t.seen[v] {
		return r, false
	}
	t.seen[v] = true
	return r, true
}

// LimitTransform caps the number of records.
type LimitTransform struct {
	Count int
	seen  int
}

func NewLimitTransform(count int) *LimitTransform {
	return &LimitTransform{Count: count}
}

func (t *LimitTransform) Transform(r Record) (Record, bool) {
	t.seen++
	return r, t.seen <= t.Count
}

// ── Helpers ────────────────────────────────────────────────

// ApplyTransformers runs a chain of transformers on a record.
func ApplyTransformers(r Record, ts []Transformer) (Record, bool) {
	for _, t := range ts {
		var keep bool
		r, keep = t.Transform(r)
		if !keep {
			return r, false
		}
	}
	return r, true
}

// BuildTransformers converts declarative TransformConfig into Transformer instances.
func BuildTransformers(configs []TransformConfig, dedupeKey string) []Transformer {
	var ts []Transformer

	for _, tc := range configs {
		switch tc.Type {
		case "filter":
			field, _ := tc.Config["field"].(string)
			op, _ := tc.Config["op"].(string)
			value := tc.Config["value"]
			if field != "" && op != "" {
				ts = append(ts, &FilterTransform{Field: field, Op: op, Value: value})
			}

		case "rename":
			if mapping, ok := tc.Config["mapping"].(map[string]any); ok {
				m := make(map[string]string)
				for k, v := range mapping {
					m[k] = fmt.Sprint(v)
				}
				ts = append(ts, &RenameTransform{Mapping: m})
			}

		case "select":
			if fields, ok := tc.Config["fields"].([]any); ok {
				var ff []string
				for _, f := range fields {
					ff = append(ff, fmt.Sprint(f))
				}
				ts = append(ts, &SelectTransform{Fields: ff})
			}

		case "limit":
			if count, ok := tc.Config["count"].(float64); ok && count > 0 {
				ts = append(ts, NewLimitTransform(int(count)))
			}
		}
	}

	// Dedupe is always applied last if a key is specified.
	if dedupeKey != "" {
		ts = append(ts, NewDedupeTransform(dedupeKey))
	}

	return ts
}
