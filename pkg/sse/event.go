package sse

// EventType discriminates the optimization event variants.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Event is one message on an optimization stream. Exactly one of the
// variant constructors below should produce it.
type Event struct {
	Type EventType `json:"type"`
	ID   string    `json:"optimizationId"`

	// Progress fields
	Percent int    `json:"percent,omitempty"`
	Message string `json:"message,omitempty"`

	// File-scoped progress fields for batches
	FileName  string `json:"fileName,omitempty"`
	FileIndex int    `json:"fileIndex,omitempty"`

	// Complete payload
	Payload any `json:"payload,omitempty"`
}

// Progress reports pipeline progress for id.
func Progress(id string, percent int, message string) Event {
	return Event{Type: EventProgress, ID: id, Percent: percent, Message: message}
}

// FileProgress reports per-file progress within a batch.
func FileProgress(id string, percent int, message, fileName string, fileIndex int) Event {
	return Event{
		Type:      EventProgress,
		ID:        id,
		Percent:   percent,
		Message:   message,
		FileName:  fileName,
		FileIndex: fileIndex,
	}
}

// Complete marks id finished, carrying the completion payload.
func Complete(id string, payload any) Event {
	return Event{Type: EventComplete, ID: id, Percent: 100, Payload: payload}
}

// Error marks id failed.
func Error(id, message string) Event {
	return Event{Type: EventError, ID: id, Message: message}
}

// Terminal reports whether the event ends its stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}
