package service

import (
	"context"
	"fmt"
	"time"

	"comicdb/internal/dbclient"
)

// ─────────────────────────────────────────────────────────────
// Query Service — read-side access to the character collections
// ─────────────────────────────────────────────────────────────

// QueryService wraps the document store for the CLI and MCP query
// commands. Filters arrive as JSON strings and are decoded with
// Extended JSON support.
type QueryService struct {
	docs dbclient.DocumentStore
}

// NewQueryService creates a QueryService.
func NewQueryService(docs dbclient.DocumentStore) *QueryService {
	return &QueryService{docs: docs}
}

// FindOne returns the first matching document, or nil when nothing matches.
func (s *QueryService) FindOne(ctx context.Context, collection, filterJSON string) (map[string]any, error) {
	filter, err := dbclient.ParseFilter(filterJSON)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.docs.FindOne(ctx, collection, filter)
}

// Find returns up to limit matching documents.
func (s *QueryService) Find(ctx context.Context, collection, filterJSON string, limit int64) ([]map[string]any, error) {
	filter, err := dbclient.ParseFilter(filterJSON)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.docs.Find(ctx, collection, filter, limit)
}

// Count returns the number of matching documents.
func (s *QueryService) Count(ctx context.Context, collection, filterJSON string) (int64, error) {
	filter, err := dbclient.ParseFilter(filterJSON)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.docs.Count(ctx, collection, filter)
}

// Insert writes a single document given as JSON.
func (s *QueryService) Insert(ctx context.Context, collection, docJSON string) error {
	doc, err := dbclient.ParseFilter(docJSON)
	if err != nil {
		return err
	}
	if len(doc) == 0 {
		return fmt.Errorf("document must not be empty")
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return s.docs.InsertOne(ctx, collection, doc)
}
