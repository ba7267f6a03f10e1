package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/imgforge/internal/logger"
	"github.com/marmos91/imgforge/pkg/sse"
)

// keepaliveInterval is how often an SSE comment is written to keep
// intermediaries from closing an idle stream.
const keepaliveInterval = 15 * time.Second

// SSEHandler bridges broker streams onto HTTP responses.
type SSEHandler struct {
	broker *sse.Broker
}

// NewSSEHandler creates the SSE handler.
func NewSSEHandler(broker *sse.Broker) *SSEHandler {
	return &SSEHandler{broker: broker}
}

// Subscribe handles GET /image-optimization-sse/subscribe/{id}.
//
// The connection stays open until the client disconnects or the broker
// closes the stream after its terminal event. Events are written in
// standard SSE framing with the event type as the event name.
func (h *SSEHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	flusher, ok := w.(http.Flusher)
	if !ok {
		InternalServerError(w, "streaming unsupported")
		return
	}

	events, cancel, err := h.broker.Subscribe(id)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	logger.Debug("SSE subscriber connected", logger.KeyOptimizationID, id)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug("SSE subscriber disconnected", logger.KeyOptimizationID, id)
			return

		case ev, open := <-events:
			if !open {
				// Terminal event delivered and grace period elapsed.
				return
			}
			if err := writeEvent(w, ev); err != nil {
				logger.Debug("SSE write failed",
					logger.KeyOptimizationID, id, logger.KeyError, err)
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev sse.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
