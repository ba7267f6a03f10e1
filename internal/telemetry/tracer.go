package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for optimization pipeline operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// Client attributes
	AttrClientIP   = "client.ip"
	AttrClientAddr = "client.address"

	// Optimization attributes
	AttrOptimizationID = "optimization.id"
	AttrFilename       = "image.filename"
	AttrFormat         = "image.format"
	AttrWidth          = "image.width"
	AttrHeight         = "image.height"
	AttrQuality        = "image.quality"
	AttrOriginalSize   = "image.original_size"
	AttrOptimizedSize  = "image.optimized_size"
	AttrBatchSize      = "optimization.batch_size"

	// Worker pool attributes
	AttrQueueDepth = "pool.queue_depth"
	AttrWorkers    = "pool.workers"

	// Storage backend attributes
	AttrBucket = "storage.bucket"
	AttrKey    = "storage.key"
	AttrRegion = "storage.region"

	// Event fanout attributes
	AttrCallbackURL = "callback.url"
	AttrEventType   = "event.type"
)

// Span names.
// Format: <component>.<operation>
const (
	SpanOptimizeAccept  = "optimize.accept"
	SpanOptimizeRun     = "optimize.run"
	SpanTransform       = "transform.apply"
	SpanStorageUpload   = "storage.upload"
	SpanStorageDownload = "storage.download"
	SpanCallbackNotify  = "callback.notify"
	SpanSSEPublish      = "sse.publish"
	SpanCleanupSweep    = "cleanup.sweep"
)

// ClientIP returns an attribute for client IP address
func ClientIP(ip string) attribute.KeyValue {
	return attribute.String(AttrClientIP, ip)
}

// ClientAddr returns an attribute for full client address
func ClientAddr(addr string) attribute.KeyValue {
	return attribute.String(AttrClientAddr, addr)
}

// OptimizationID returns an attribute for the optimization request identifier
func OptimizationID(id string) attribute.KeyValue {
	return attribute.String(AttrOptimizationID, id)
}

// Filename returns an attribute for the uploaded file name
func Filename(name string) attribute.KeyValue {
	return attribute.String(AttrFilename, name)
}

// Format returns an attribute for the target image format
func Format(f string) attribute.KeyValue {
	return attribute.String(AttrFormat, f)
}

// Width returns an attribute for image width in pixels
func Width(w int) attribute.KeyValue {
	return attribute.Int(AttrWidth, w)
}

// Height returns an attribute for image height in pixels
func Height(h int) attribute.KeyValue {
	return attribute.Int(AttrHeight, h)
}

// Quality returns an attribute for encoding quality
func Quality(q int) attribute.KeyValue {
	return attribute.Int(AttrQuality, q)
}

// OriginalSize returns an attribute for the uploaded payload size in bytes
func OriginalSize(n int64) attribute.KeyValue {
	return attribute.Int64(AttrOriginalSize, n)
}

// OptimizedSize returns an attribute for the optimized payload size in bytes
func OptimizedSize(n int64) attribute.KeyValue {
	return attribute.Int64(AttrOptimizedSize, n)
}

// BatchSize returns an attribute for the number of files in a batch
func BatchSize(n int) attribute.KeyValue {
	return attribute.Int(AttrBatchSize, n)
}

// QueueDepth returns an attribute for worker pool queue depth
func QueueDepth(n int) attribute.KeyValue {
	return attribute.Int(AttrQueueDepth, n)
}

// Bucket returns an attribute for blob store bucket name
func Bucket(name string) attribute.KeyValue {
	return attribute.String(AttrBucket, name)
}

// StorageKey returns an attribute for blob store object key
func StorageKey(key string) attribute.KeyValue {
	return attribute.String(AttrKey, key)
}

// Region returns an attribute for cloud region
func Region(region string) attribute.KeyValue {
	return attribute.String(AttrRegion, region)
}

// CallbackURL returns an attribute for a webhook callback URL
func CallbackURL(url string) attribute.KeyValue {
	return attribute.String(AttrCallbackURL, url)
}

// EventType returns an attribute for a published event type
func EventType(t string) attribute.KeyValue {
	return attribute.String(AttrEventType, t)
}

// StartOptimizeSpan starts a span for an optimization pipeline stage.
// This is a convenience function that sets common attributes.
func StartOptimizeSpan(ctx context.Context, name, optimizationID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		OptimizationID(optimizationID),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}

// StartStorageSpan starts a span for a blob store operation.
func StartStorageSpan(ctx context.Context, name, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		StorageKey(key),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, name, trace.WithAttributes(allAttrs...))
}
