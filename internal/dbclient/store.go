package dbclient

import "context"

// ── Document store abstraction ─────────────────────────────
// The load pipeline and query commands talk to MongoDB through this
// interface so services stay testable with an in-memory fake.

// Config describes how to reach the document store.
// Host may be a plain hostname or a full mongodb:// / mongodb+srv://
// connection string, in which case Port and Username are ignored.
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Database string `json:"database"`
}

// DocumentStore abstracts interaction with the character database.
type DocumentStore interface {
	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// InsertOne writes a single document into the collection.
	InsertOne(ctx context.Context, collection string, doc map[string]any) error

	// InsertMany bulk-writes documents and returns the inserted count.
	InsertMany(ctx context.Context, collection string, docs []map[string]any) (int, error)

	// FindOne returns the first document matching the filter, or nil
	// if nothing matches.
	FindOne(ctx context.Context, collection string, filter map[string]any) (map[string]any, error)

	// Find returns up to limit documents matching the filter.
	// limit <= 0 means no limit.
	Find(ctx context.Context, collection string, filter map[string]any, limit int64) ([]map[string]any, error)

	// Count returns the number of documents matching the filter.
	Count(ctx context.Context, collection string, filter map[string]any) (int64, error)

	// DeleteMany removes all documents matching the filter and returns
	// the deleted count.
	DeleteMany(ctx context.Context, collection string, filter map[string]any) (int64, error)

	// Close releases the connection.
	Close() error
}
