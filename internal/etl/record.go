package etl

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// All sources emit Records, all destinations consume Records.

// Field describes a single column in a dataset.
type Field struct {
	Name string `json:"name"`
	Type string `json:"type"` // "text" | "number"
}

// Schema describes the shape of records coming from a source.
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns an ordered list of field names.
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Record is a single row of data flowing through the pipeline.
// Values are strings, ints (coerced numeric fields), or nil for an
// absent numeric value. A record is owned by whoever receives it;
// sources keep no reference after emitting.
type Record struct {
	Data map[string]any `json:"data"`
}
