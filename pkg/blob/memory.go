package blob

import (
	"context"
	"sync"
)

// MemorySink is an in-memory Sink for tests and local development.
type MemorySink struct {
	mu      sync.Mutex
	objects map[string]MemoryObject
}

// MemoryObject is one stored artifact.
type MemoryObject struct {
	Data        []byte
	ContentType string
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{objects: make(map[string]MemoryObject)}
}

// Put stores data under key.
func (m *MemorySink) Put(_ context.Context, key string, data []byte, contentType string) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	m.objects[key] = MemoryObject{Data: cp, ContentType: contentType}
	m.mu.Unlock()
	return nil
}

// Ping always succeeds.
func (m *MemorySink) Ping(context.Context) error {
	return nil
}

// Get returns the object stored under key.
func (m *MemorySink) Get(key string) (MemoryObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	return obj, ok
}

// Len returns the number of stored objects.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Keys returns the stored keys in unspecified order.
func (m *MemorySink) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		keys = append(keys, k)
	}
	return keys
}
