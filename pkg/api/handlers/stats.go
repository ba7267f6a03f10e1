package handlers

import (
	"net/http"

	"github.com/marmos91/imgforge/pkg/sse"
	"github.com/marmos91/imgforge/pkg/ttlstore"
	"github.com/marmos91/imgforge/pkg/workerpool"
)

// StatsHandler reports point-in-time pipeline state.
type StatsHandler struct {
	pool     *workerpool.Pool
	contexts *ttlstore.Store[any]
	broker   *sse.Broker
}

// NewStatsHandler creates the stats handler. Any collaborator may be nil;
// its section is then omitted.
func NewStatsHandler(pool *workerpool.Pool, contexts *ttlstore.Store[any], broker *sse.Broker) *StatsHandler {
	return &StatsHandler{pool: pool, contexts: contexts, broker: broker}
}

type statsResponse struct {
	Pool       *workerpool.Stats `json:"pool,omitempty"`
	Contexts   int               `json:"contexts"`
	SSEStreams int               `json:"sseStreams"`
}

// Stats handles GET /image-optimization/stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := statsResponse{}

	if h.pool != nil {
		stats := h.pool.Stats()
		resp.Pool = &stats
	}
	if h.contexts != nil {
		resp.Contexts = h.contexts.Size()
	}
	if h.broker != nil {
		resp.SSEStreams = h.broker.StreamCount()
	}

	writeJSON(w, http.StatusOK, okResponse(resp))
}
