// Package reqcontext provides typed, TTL-bounded registries for per-request
// state that must outlive the HTTP response.
//
// All registries of a process share one underlying ttlstore keyed by
// "<kind>:<id>", so a single sweeper covers every context kind. Each
// Registry is a typed view over one kind.
package reqcontext

import (
	"strings"
	"time"

	"github.com/marmos91/imgforge/pkg/ttlstore"
)

// Kind names a context namespace within the shared store.
type Kind string

const (
	KindControllerParams  Kind = "controller-params"
	KindImageOptimization Kind = "image-optimization"
	KindUser              Kind = "user"
	KindRequest           Kind = "request"
)

// Entry wraps a stored value with bookkeeping fields.
type Entry[T any] struct {
	ClientID  string
	Value     T
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Registry is a typed facade over the shared TTL store for one context kind.
type Registry[T any] struct {
	kind  Kind
	store *ttlstore.Store[any]
	ttl   time.Duration

	now func() time.Time
}

// NewRegistry creates a registry for kind backed by store.
// ttl applies to every Set; non-positive falls back to the store default.
func NewRegistry[T any](kind Kind, store *ttlstore.Store[any], ttl time.Duration) *Registry[T] {
	return &Registry[T]{
		kind:  kind,
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (r *Registry[T]) key(id string) string {
	return string(r.kind) + ":" + id
}

// Set stores value under id, merging with any prior entry: ClientID defaults
// to the id, CreatedAt is preserved across updates, UpdatedAt is refreshed.
// The entry's TTL restarts on every Set.
func (r *Registry[T]) Set(id string, value T) {
	now := r.now()

	entry := Entry[T]{
		ClientID:  id,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if prev, ok := r.GetEntry(id); ok {
		entry.ClientID = prev.ClientID
		entry.CreatedAt = prev.CreatedAt
	}

	r.store.SetWithTTL(r.key(id), entry, r.ttl)
}

// Get returns the stored value for id.
func (r *Registry[T]) Get(id string) (T, bool) {
	entry, ok := r.GetEntry(id)
	if !ok {
		var zero T
		return zero, false
	}
	return entry.Value, true
}

// GetEntry returns the full entry for id, including bookkeeping fields.
func (r *Registry[T]) GetEntry(id string) (Entry[T], bool) {
	raw, ok := r.store.Get(r.key(id))
	if !ok {
		return Entry[T]{}, false
	}
	entry, ok := raw.(Entry[T])
	if !ok {
		// A different kind wrote under our key prefix; treat as absent.
		return Entry[T]{}, false
	}
	return entry, true
}

// Has reports whether an unexpired entry exists for id.
func (r *Registry[T]) Has(id string) bool {
	_, ok := r.GetEntry(id)
	return ok
}

// Delete removes the entry for id. Returns true if one was present.
func (r *Registry[T]) Delete(id string) bool {
	return r.store.Delete(r.key(id))
}

// UpdateTTL extends the expiry of an existing entry.
func (r *Registry[T]) UpdateTTL(id string, ttl time.Duration) bool {
	return r.store.UpdateTTL(r.key(id), ttl)
}

// IDs returns the ids of all unexpired entries of this kind.
func (r *Registry[T]) IDs() []string {
	prefix := string(r.kind) + ":"

	var ids []string
	for _, k := range r.store.Keys() {
		if strings.HasPrefix(k, prefix) {
			ids = append(ids, strings.TrimPrefix(k, prefix))
		}
	}
	return ids
}

// Count returns the number of unexpired entries of this kind.
func (r *Registry[T]) Count() int {
	return len(r.IDs())
}
