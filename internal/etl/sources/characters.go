package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"comicdb/internal/domain"
	"comicdb/internal/etl"
)

// ── Character CSV Source ────────────────────────────────────
// Streams character records from a per-publisher wikia CSV dump.
// The file is never materialized in memory: rows are read one at a
// time and handed off as soon as they are parsed.

// numericFields are the columns coerced from text to int. An empty
// cell becomes nil; non-empty text that is not a base-10 integer is a
// malformed-row error, never silently defaulted.
var numericFields = map[string]bool{
	"YEAR":        true,
	"APPEARANCES": true,
}

// RowReader is a pull-based iterator over one character CSV file.
// It holds the open file handle between calls to Next and releases it
// on exhaustion, on the first error, or on Close — whichever comes
// first. A RowReader is not restartable; open a new one to re-read.
type RowReader struct {
	f      *os.File
	cr     *csv.Reader
	header []string
	line   int // 1-based data row counter, for error messages
	closed bool
}

// OpenRows opens the CSV at path and parses its header line.
// On any failure the file handle is not left open.
func OpenRows(path string) (*RowReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}

	cr := csv.NewReader(f)
	header, err := cr.Read()
	if err != nil {
		f.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("empty dataset: %s", path)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	return &RowReader{f: f, cr: cr, header: header}, nil
}

// Header returns the field names from the file's first line.
func (r *RowReader) Header() []string {
	return r.header
}

// Next returns the next record, io.EOF when the file is exhausted, or
// a malformed-row error. Every record carries the full header key set;
// values for numeric fields are int or nil. After io.EOF or an error
// the underlying file is already closed.
func (r *RowReader) Next() (etl.Record, error) {
	if r.closed {
		return etl.Record{}, io.EOF
	}

	row, err := r.cr.Read()
	if err == io.EOF {
		r.Close()
		return etl.Record{}, io.EOF
	}
	if err != nil {
		// encoding/csv enforces the header's field count, so a short
		// or long row surfaces here as a parse error.
		r.Close()
		return etl.Record{}, fmt.Errorf("malformed row: %w", err)
	}
	r.line++

	data := make(map[string]any, len(r.header))
	for i, name := range r.header {
		cell := row[i]
		if !numericFields[name] {
			data[name] = cell
			continue
		}
		if cell == "" {
			data[name] = nil
			continue
		}
		n, convErr := strconv.Atoi(cell)
		if convErr != nil {
			r.Close()
			return etl.Record{}, fmt.Errorf("row %d: field %s: invalid integer %q", r.line, name, cell)
		}
		data[name] = n
	}

	return etl.Record{Data: data}, nil
}

// Close releases the file handle. Safe to call more than once and
// after Next has already closed the reader.
func (r *RowReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.f.Close()
}

// ── etl.Source wrapper ─────────────────────────────────────

type charactersSource struct{}

func init() { etl.RegisterSource(&charactersSource{}) }

func (s *charactersSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "characters_csv",
		Label: "Character CSV",
		ConfigFields: []etl.ConfigField{
			{Key: "publisher", Label: "Publisher", Type: "select", Required: true, Options: []string{"dc", "marvel"}, Help: "Which publisher's dataset to read"},
			{Key: "dataDir", Label: "Data Directory", Type: "file", Required: false, Default: "data", Help: "Directory holding the per-publisher CSV files"},
		},
	}
}

// resolvePath validates the publisher identifier and maps it to a file
// path. Rejection happens here, before any file access.
func resolvePath(cfg etl.SourceConfig) (string, error) {
	publisher, _ := cfg["publisher"].(string)
	if publisher == "" {
		return "", fmt.Errorf("publisher is required")
	}
	dataDir, _ := cfg["dataDir"].(string)
	if dataDir == "" {
		dataDir = "data"
	}
	return domain.ResolveDataset(dataDir, domain.Publisher(publisher))
}

func (s *charactersSource) Discover(ctx context.Context, cfg etl.SourceConfig) (*etl.Schema, error) {
	path, err := resolvePath(cfg)
	if err != nil {
		return nil, err
	}

	r, err := OpenRows(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	schema := &etl.Schema{Fields: make([]etl.Field, len(r.Header()))}
	for i, name := range r.Header() {
		ft := "text"
		if numericFields[name] {
			ft = "number"
		}
		schema.Fields[i] = etl.Field{Name: name, Type: ft}
	}
	return schema, nil
}

func (s *charactersSource) Read(ctx context.Context, cfg etl.SourceConfig) (<-chan etl.Record, <-chan error) {
	out := make(chan etl.Record, 100)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		path, err := resolvePath(cfg)
		if err != nil {
			errCh <- err
			return
		}

		r, err := OpenRows(path)
		if err != nil {
			errCh <- err
			return
		}
		defer r.Close()

		for {
			rec, err := r.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- err
				return
			}
			select {
			case out <- rec:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, errCh
}
