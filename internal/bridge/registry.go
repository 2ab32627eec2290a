package bridge

import (
	"context"
	"strings"
	"sync"

	"incident-pipeline/internal/apperr"
)

// Registration is the outcome of registering an event id.
type Registration struct {
	IsDuplicate       bool   `json:"is_duplicate"`
	NormalizedEventID string `json:"normalized_event_id"`
}

// Registry is the single dedup authority for at-least-once deliveries.
// Register must check and insert atomically. Entries are never removed.
// Contains lets a caller skip known duplicates and register an id only
// once its effects are stored.
type Registry interface {
	Register(ctx context.Context, eventID string) (Registration, error)
	Contains(ctx context.Context, eventID string) (bool, error)
}

// NormalizeEventID trims eventID and rejects it when nothing is left.
func NormalizeEventID(eventID string) (string, error) {
	id := strings.TrimSpace(eventID)
	if id == "" {
		return "", apperr.InvalidArgument("event_id is required")
	}
	return id, nil
}

// MemoryRegistry keeps processed event ids for the life of the process.
type MemoryRegistry struct {
	mu        sync.Mutex
	processed map[string]struct{}
}

// NewMemoryRegistry returns an empty registry, optionally seeded with ids
// that were already processed (for example loaded from the database).
func NewMemoryRegistry(seed ...string) *MemoryRegistry {
	r := &MemoryRegistry{processed: make(map[string]struct{}, len(seed))}
	for _, id := range seed {
		if id = strings.TrimSpace(id); id != "" {
			r.processed[id] = struct{}{}
		}
	}
	return r
}

// Register implements Registry.
func (r *MemoryRegistry) Register(_ context.Context, eventID string) (Registration, error) {
	return RegisterIdempotentEvent(eventID, r)
}

// Contains implements Registry.
func (r *MemoryRegistry) Contains(_ context.Context, eventID string) (bool, error) {
	id, err := NormalizeEventID(eventID)
	if err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.processed[id]
	return ok, nil
}

// Len returns the number of processed ids.
func (r *MemoryRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.processed)
}

// RegisterIdempotentEvent marks eventID as processed in r. A duplicate leaves
// r untouched.
func RegisterIdempotentEvent(eventID string, r *MemoryRegistry) (Registration, error) {
	id, err := NormalizeEventID(eventID)
	if err != nil {
		return Registration{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.processed[id]; seen {
		return Registration{IsDuplicate: true, NormalizedEventID: id}, nil
	}
	r.processed[id] = struct{}{}
	return Registration{IsDuplicate: false, NormalizedEventID: id}, nil
}
