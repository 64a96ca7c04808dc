package services

import (
	"context"
	"sync"
)

// ConfidentialTracker collects the secret values and raw tokens materialized
// while serving one request. The activity recorder scans response payloads
// against it before persisting anything.
type ConfidentialTracker struct {
	mu     sync.Mutex
	values map[string]struct{}
}

// NewConfidentialTracker returns an empty tracker.
func NewConfidentialTracker() *ConfidentialTracker {
	return &ConfidentialTracker{values: make(map[string]struct{})}
}

// Add registers a confidential value. Empty values are ignored.
func (t *ConfidentialTracker) Add(value string) {
	if t == nil || value == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.values[value] = struct{}{}
}

// Contains reports whether s exactly matches a tracked value.
func (t *ConfidentialTracker) Contains(s string) bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.values[s]
	return ok
}

// Len returns the number of tracked values.
func (t *ConfidentialTracker) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.values)
}

type trackerContextKey struct{}

// WithTracker attaches a tracker to the context.
func WithTracker(ctx context.Context, t *ConfidentialTracker) context.Context {
	return context.WithValue(ctx, trackerContextKey{}, t)
}

// TrackerFrom returns the request's tracker, or nil when none is attached.
func TrackerFrom(ctx context.Context) *ConfidentialTracker {
	t, _ := ctx.Value(trackerContextKey{}).(*ConfidentialTracker)
	return t
}

// track registers value with the context's tracker when one is present.
func track(ctx context.Context, value string) {
	TrackerFrom(ctx).Add(value)
}
