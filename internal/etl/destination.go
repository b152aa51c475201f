package etl

import (
	"context"
	"fmt"

	"comicdb/internal/dbclient"
)

// ── Destination ────────────────────────────────────────────
// A Destination writes records into a target system.
// The only destination here is the MongoDB document store.

// SyncMode determines how records are written to the destination.
type SyncMode string

const (
	SyncReplace SyncMode = "replace" // clear the collection, insert fresh
	SyncAppend  SyncMode = "append"  // add documents without clearing
)

// Destination writes a batch of records to a target collection.
type Destination interface {
	Write(ctx context.Context, collection string, schema *Schema, records []Record, mode SyncMode) (int, error)
}

// ── MongoDB Destination ────────────────────────────────────

// insertBatchSize caps how many documents go into a single InsertMany.
const insertBatchSize = 500

// MongoWriter implements Destination for the document store.
type MongoWriter struct {
	Store dbclient.DocumentStore
}

func (w *MongoWriter) Write(ctx context.Context, collection string, schema *Schema, records []Record, mode SyncMode) (int, error) {
	if mode == SyncReplace {
		if _, err := w.Store.DeleteMany(ctx, collection, nil); err != nil {
			return 0, fmt.Errorf("clear collection: %w", err)
		}
	}

	written := 0
	for start := 0; start < len(records); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(records) {
			end = len(records)
		}

		docs := make([]map[string]any, 0, end-start)
		for _, rec := range records[start:end] {
			docs = append(docs, rec.Data)
		}

		n, err := w.Store.InsertMany(ctx, collection, docs)
		written += n
		if err != nil {
			return written, fmt.Errorf("insert batch at %d: %w", start, err)
		}
	}

	return written, nil
}
