package etl_test

import (
	"testing"

	"comicdb/internal/etl"
)

func rec(data map[string]any) etl.Record {
	return etl.Record{Data: data}
}

func TestFilterTransform(t *testing.T) {
	f := &etl.FilterTransform{Field: "ALIGN", Op: "eq", Value: "Good Characters"}

	if _, keep := f.Transform(rec(map[string]any{"ALIGN": "Good Characters"})); !keep {
		t.Error("expected matching record to be kept")
	}
	if _, keep := f.Transform(rec(map[string]any{"ALIGN": "Bad Characters"})); keep {
		t.Error("expected non-matching record to be dropped")
	}
	if _, keep := f.Transform(rec(map[string]any{"name": "X"})); keep {
		t.Error("expected record without the field to be dropped")
	}
}

func TestRenameTransform(t *testing.T) {
	tr := &etl.RenameTransform{Mapping: map[string]string{"YEAR": "first_year"}}

	out, keep := tr.Transform(rec(map[string]any{"YEAR": 1990, "name": "Alice"}))
	if !keep {
		t.Fatal("rename should never drop")
	}
	if out.Data["first_year"] != 1990 {
		t.Errorf("expected renamed value, got %v", out.Data)
	}
	if _, ok := out.Data["YEAR"]; ok {
		t.Error("old key should be gone")
	}
}

func TestSelectTransform(t *testing.T) {
	tr := &etl.SelectTransform{Fields: []string{"name", "YEAR"}}

	out, _ := tr.Transform(rec(map[string]any{"name": "Alice", "YEAR": 1990, "EYE": "Blue Eyes"}))
	if len(out.Data) != 2 {
		t.Fatalf("expected 2 fields, got %v", out.Data)
	}
	if _, ok := out.Data["EYE"]; ok {
		t.Error("unselected field should be gone")
	}
}

func TestDedupeTransform(t *testing.T) {
	tr := etl.NewDedupeTransform("page_id")

	if _, keep := tr.Transform(rec(map[string]any{"page_id": 1})); !keep {
		t.Error("first occurrence should be kept")
	}
	if _, keep := tr.Transform(rec(map[string]any{"page_id": 1})); keep {
		t.Error("duplicate should be dropped")
	}
	if _, keep := tr.Transform(rec(map[string]any{"page_id": 2})); !keep {
		t.Error("new key should be kept")
	}
}

func TestLimitTransform(t *testing.T) {
	tr := etl.NewLimitTransform(2)

	kept := 0
	for i := 0; i < 5; i++ {
		if _, keep := tr.Transform(rec(map[string]any{"i": i})); keep {
			kept++
		}
	}
	if kept != 2 {
		t.Fatalf("expected 2 kept, got %d", kept)
	}
}

func TestApplyTransformers_ChainStopsOnDrop(t *testing.T) {
	chain := []etl.Transformer{
		&etl.FilterTransform{Field: "SEX", Op: "eq", Value: "Female Characters"},
		&etl.SelectTransform{Fields: []string{"name"}},
	}

	out, keep := etl.ApplyTransformers(rec(map[string]any{
		"name": "Wonder Woman", "SEX": "Female Characters", "YEAR": 1941,
	}), chain)
	if !keep {
		t.Fatal("expected record to pass the chain")
	}
	if len(out.Data) != 1 || out.Data["name"] != "Wonder Woman" {
		t.Fatalf("unexpected output: %v", out.Data)
	}

	if _, keep := etl.ApplyTransformers(rec(map[string]any{
		"name": "Batman", "SEX": "Male Characters",
	}), chain); keep {
		t.Fatal("expected record to be dropped by the filter")
	}
}

func TestBuildTransformers(t *testing.T) {
	configs := []etl.TransformConfig{
		{Type: "filter", Config: map[string]any{"field": "ALIGN", "op": "eq", "value": "Good Characters"}},
		{Type: "select", Config: map[string]any{"fields": []any{"name", "ALIGN"}}},
		{Type: "limit", Config: map[string]any{"count": float64(10)}},
	}

	ts := etl.BuildTransformers(configs, "name")
	if len(ts) != 4 { // 3 configured + dedupe
		t.Fatalf("expected 4 transformers, got %d", len(ts))
	}
}
