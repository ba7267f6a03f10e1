// Package blob abstracts the object store that receives optimized artifacts.
package blob

import "context"

// Sink stores optimized artifacts under caller-chosen keys.
//
// Put must be safe for concurrent use; the pipeline uploads batch results
// in parallel.
type Sink interface {
	// Put stores data under key with the given content type.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
