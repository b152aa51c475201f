package sources_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"comicdb/internal/etl"
	"comicdb/internal/etl/sources"
)

// ─────────────────────────────────────────────────────────────
// RowReader tests — streaming CSV iteration and numeric coercion
// ─────────────────────────────────────────────────────────────

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.csv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readAll(t *testing.T, path string) []etl.Record {
	t.Helper()
	r, err := sources.OpenRows(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var records []etl.Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records
		}
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		records = append(records, rec)
	}
}

func TestRowReader_CoercesNumericFields(t *testing.T) {
	path := writeCSV(t,
		"name,YEAR,APPEARANCES",
		"Alice,1990,12",
		"Bob,,5",
		"Carol,2001,",
	)

	records := readAll(t, path)
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	want := []map[string]any{
		{"name": "Alice", "YEAR": 1990, "APPEARANCES": 12},
		{"name": "Bob", "YEAR": nil, "APPEARANCES": 5},
		{"name": "Carol", "YEAR": 2001, "APPEARANCES": nil},
	}
	for i, w := range want {
		if !reflect.DeepEqual(records[i].Data, w) {
			t.Errorf("record %d: got %v, want %v", i, records[i].Data, w)
		}
	}
}

func TestRowReader_EmptyNumericIsNilNotZero(t *testing.T) {
	path := writeCSV(t, "name,YEAR", "Bob,")

	records := readAll(t, path)
	v, present := records[0].Data["YEAR"]
	if !present {
		t.Fatal("YEAR key must be present even when the cell is empty")
	}
	if v != nil {
		t.Fatalf("empty YEAR must be nil, got %v (%T)", v, v)
	}
}

func TestRowReader_NonNumericIsFatal(t *testing.T) {
	path := writeCSV(t, "name,YEAR", "X,not-a-year")

	r, err := sources.OpenRows(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	_, err = r.Next()
	if err == nil || err == io.EOF {
		t.Fatal("expected a malformed-row error for non-numeric YEAR")
	}
	if !strings.Contains(err.Error(), "not-a-year") {
		t.Errorf("error should name the offending value, got: %v", err)
	}

	// No further records after the failure.
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected io.EOF after failure, got %v", err)
	}
}

func TestRowReader_RowsBeforeFailureStayValid(t *testing.T) {
	path := writeCSV(t,
		"name,YEAR",
		"Alice,1990",
		"X,not-a-year",
	)

	r, err := sources.OpenRows(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("first row should parse: %v", err)
	}
	if rec.Data["name"] != "Alice" || rec.Data["YEAR"] != 1990 {
		t.Fatalf("unexpected first record: %v", rec.Data)
	}

	if _, err := r.Next(); err == nil {
		t.Fatal("expected error on second row")
	}
}

func TestRowReader_ShortRowIsMalformed(t *testing.T) {
	path := writeCSV(t,
		"name,YEAR,APPEARANCES",
		"Alice,1990",
	)

	r, err := sources.OpenRows(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.Next(); err == nil || err == io.EOF {
		t.Fatal("expected malformed-row error for short row")
	}
}

func TestRowReader_KeySetMatchesHeader(t *testing.T) {
	path := writeCSV(t,
		"page_id,name,urlslug,ID,ALIGN,EYE,HAIR,SEX,GSM,ALIVE,APPEARANCES,FIRST APPEARANCE,YEAR",
		`1422,"Batman (Bruce Wayne)",\/wiki\/Batman_(Bruce_Wayne),Secret Identity,Good Characters,Blue Eyes,Black Hair,Male Characters,,Living Characters,3093,"1939, May",1939`,
		`23387,"Wonder Woman (Diana Prince)",\/wiki\/Wonder_Woman_(Diana_Prince),Public Identity,Good Characters,Blue Eyes,Black Hair,Female Characters,,Living Characters,1231,"1941, December",1941`,
	)

	r, err := sources.OpenRows(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	header := r.Header()
	for i := 0; ; i++ {
		rec, err := r.Next()
		if err == io.EOF {
			if i != 2 {
				t.Fatalf("expected 2 records, got %d", i)
			}
			return
		}
		if err != nil {
			t.Fatal(err)
		}
		if len(rec.Data) != len(header) {
			t.Fatalf("record %d: %d keys, header has %d", i, len(rec.Data), len(header))
		}
		for _, field := range header {
			if _, ok := rec.Data[field]; !ok {
				t.Fatalf("record %d missing key %q", i, field)
			}
		}
	}
}

func TestRowReader_Idempotent(t *testing.T) {
	path := writeCSV(t,
		"name,YEAR,APPEARANCES",
		"Alice,1990,12",
		"Bob,,5",
		"Carol,2001,",
	)

	first := readAll(t, path)
	second := readAll(t, path)

	if len(first) != len(second) {
		t.Fatalf("runs differ in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if !reflect.DeepEqual(first[i].Data, second[i].Data) {
			t.Errorf("record %d differs between runs: %v vs %v", i, first[i].Data, second[i].Data)
		}
	}
}

func TestRowReader_EarlyTerminationReleasesHandle(t *testing.T) {
	path := writeCSV(t,
		"name,YEAR",
		"Alice,1990",
		"Bob,1991",
		"Carol,1992",
	)

	r, err := sources.OpenRows(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Next(); err != nil {
		t.Fatal(err)
	}

	// Abandon iteration after one record.
	if err := r.Close(); err != nil {
		t.Fatalf("close after partial read: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("close must be idempotent: %v", err)
	}
	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next after Close should report io.EOF, got %v", err)
	}

	// The file is immediately reusable.
	if err := os.Remove(path); err != nil {
		t.Fatalf("could not remove file after close: %v", err)
	}
}

func TestOpenRows_MissingFile(t *testing.T) {
	if _, err := sources.OpenRows(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOpenRows_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := sources.OpenRows(path); err == nil {
		t.Fatal("expected error for empty file")
	}
}

// ─────────────────────────────────────────────────────────────
// charactersSource tests — the etl.Source wrapper
// ─────────────────────────────────────────────────────────────

func writeDataset(t *testing.T, publisher string, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, publisher+"-wikia-data.csv")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestCharactersSource_Read(t *testing.T) {
	dir := writeDataset(t, "dc",
		"name,YEAR,APPEARANCES",
		"Alice,1990,12",
		"Bob,,5",
	)

	src, err := etl.GetSource("characters_csv")
	if err != nil {
		t.Fatal(err)
	}

	cfg := etl.SourceConfig{"publisher": "dc", "dataDir": dir}
	recCh, errCh := src.Read(context.Background(), cfg)

	var count int
	for range recCh {
		count++
	}
	if err := <-errCh; err != nil {
		t.Fatalf("unexpected source error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 records, got %d", count)
	}
}

func TestCharactersSource_UnknownPublisher(t *testing.T) {
	src, err := etl.GetSource("characters_csv")
	if err != nil {
		t.Fatal(err)
	}

	cfg := etl.SourceConfig{"publisher": "image", "dataDir": t.TempDir()}
	recCh, errCh := src.Read(context.Background(), cfg)

	for range recCh {
		t.Fatal("no records expected for unknown publisher")
	}
	err = <-errCh
	if err == nil {
		t.Fatal("expected configuration error for unknown publisher")
	}
	if !strings.Contains(err.Error(), "image") {
		t.Errorf("error should name the bad publisher, got: %v", err)
	}
}

func TestCharactersSource_Discover(t *testing.T) {
	dir := writeDataset(t, "marvel",
		"page_id,name,APPEARANCES,YEAR",
		"1,Spider-Man,4043,1962",
	)

	src, err := etl.GetSource("characters_csv")
	if err != nil {
		t.Fatal(err)
	}

	schema, err := src.Discover(context.Background(), etl.SourceConfig{"publisher": "marvel", "dataDir": dir})
	if err != nil {
		t.Fatal(err)
	}

	wantTypes := map[string]string{
		"page_id":     "text",
		"name":        "text",
		"APPEARANCES": "number",
		"YEAR":        "number",
	}
	if len(schema.Fields) != len(wantTypes) {
		t.Fatalf("expected %d fields, got %d", len(wantTypes), len(schema.Fields))
	}
	for _, f := range schema.Fields {
		if wantTypes[f.Name] != f.Type {
			t.Errorf("field %s: got type %q, want %q", f.Name, f.Type, wantTypes[f.Name])
		}
	}
}

func TestCharactersSource_ContextCancellation(t *testing.T) {
	lines := []string{"name,YEAR"}
	for i := 0; i < 1000; i++ {
		lines = append(lines, "Someone,1990")
	}
	dir := writeDataset(t, "dc", lines...)

	src, err := etl.GetSource("characters_csv")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	recCh, errCh := src.Read(ctx, etl.SourceConfig{"publisher": "dc", "dataDir": dir})

	// Take a few records, then walk away.
	for i := 0; i < 3; i++ {
		if _, ok := <-recCh; !ok {
			t.Fatal("channel closed too early")
		}
	}
	cancel()

	// The channel must close and no error is reported for a cancelled read.
	for range recCh {
	}
	if err := <-errCh; err != nil {
		t.Fatalf("cancelled read should not error, got %v", err)
	}
}

func TestCharactersSource_MalformedRowSurfacesError(t *testing.T) {
	dir := writeDataset(t, "dc",
		"name,YEAR",
		"Alice,1990",
		"X,not-a-year",
	)

	src, err := etl.GetSource("characters_csv")
	if err != nil {
		t.Fatal(err)
	}

	recCh, errCh := src.Read(context.Background(), etl.SourceConfig{"publisher": "dc", "dataDir": dir})

	var got []etl.Record
	for rec := range recCh {
		got = append(got, rec)
	}
	if err := <-errCh; err == nil {
		t.Fatal("expected malformed-row error")
	}
	if len(got) != 1 || got[0].Data["name"] != "Alice" {
		t.Fatalf("rows before the failure should still arrive, got %v", got)
	}
}
