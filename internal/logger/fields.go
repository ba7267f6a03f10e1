package logger

import "log/slog"

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so logs can be
// aggregated and queried by field.
const (
	// Distributed tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Optimization pipeline
	KeyOptimizationID = "optimization_id"
	KeyFilename       = "filename"
	KeyFormat         = "format"
	KeyOriginalSize   = "original_size"
	KeyOptimizedSize  = "optimized_size"
	KeyNewFilePath    = "new_file_path"
	KeyBatchIndex     = "batch_index"
	KeyBatchSize      = "batch_size"

	// Client identification
	KeyClientIP  = "client_ip"
	KeyRequestID = "request_id"

	// Storage backend
	KeyBucket     = "bucket"
	KeyKey        = "key"
	KeyAttempt    = "attempt"
	KeyMaxRetries = "max_retries"

	// Callbacks and events
	KeyCallbackURL = "callback_url"
	KeyEventType   = "event_type"
	KeySubscribers = "subscribers"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyEvicted    = "evicted"
	KeyQueueDepth = "queue_depth"
	KeyWorkers    = "workers"
)

// OptimizationID returns a slog.Attr for the optimization request identifier
func OptimizationID(id string) slog.Attr {
	return slog.String(KeyOptimizationID, id)
}

// Filename returns a slog.Attr for the uploaded file name
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// Bucket returns a slog.Attr for the blob store bucket name
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Key returns a slog.Attr for an object key in the blob store
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
