package service

import (
	"context"
	"log"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter — decouples services from their host process
// ─────────────────────────────────────────────────────────────

// EventEmitter is an interface for emitting lifecycle events
// (job finished, collection updated). The CLI logs them; the MCP
// server forwards them as notifications. Services receive this
// interface instead of a concrete sink, which makes them
// independently testable with a mock emitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes events to the process log.
type LogEmitter struct{}

func (LogEmitter) Emit(_ context.Context, event string, data any) {
	log.Printf("event %s: %v", event, data)
}

// NoopEmitter discards all events.
type NoopEmitter struct{}

func (NoopEmitter) Emit(_ context.Context, _ string, _ any) {}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}
