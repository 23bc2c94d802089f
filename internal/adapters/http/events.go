package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/betomay/papertoplan/internal/core/domain"
)

// subscriberBuffer absorbs bursts from the worker; a subscriber that falls
// this far behind loses events and re-syncs by polling.
const subscriberBuffer = 16

const heartbeatInterval = 15 * time.Second

// EventHub fans record status events out to the owning user's open SSE
// streams. Delivery is best-effort and never blocks the broadcaster.
type EventHub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.StatusEvent]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[string]map[chan domain.StatusEvent]struct{}),
	}
}

// Broadcast delivers the event to every live stream of its owner. Slow
// subscribers are skipped.
func (h *EventHub) Broadcast(event domain.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[event.Owner] {
		select {
		case ch <- event:
		default:
			slog.Warn("status event dropped", "owner", event.Owner, "record_id", event.RecordID)
		}
	}
}

func (h *EventHub) subscribe(owner string) (chan domain.StatusEvent, func()) {
	ch := make(chan domain.StatusEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[owner] == nil {
		h.subs[owner] = make(map[chan domain.StatusEvent]struct{})
	}
	h.subs[owner][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs[owner], ch)
		if len(h.subs[owner]) == 0 {
			delete(h.subs, owner)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (rt *Router) streamEvents(w http.ResponseWriter, r *http.Request) {
	owner := usernameFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming is not supported")
		return
	}

	events, cancel := rt.hub.subscribe(owner)
	defer cancel()

	if rt.metrics != nil {
		rt.metrics.StreamOpened()
		defer rt.metrics.StreamClosed()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event := <-events:
			payload, err := json.Marshal(event)
			if err != nil {
				slog.Warn("marshal status event", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
			if rt.metrics != nil {
				rt.metrics.RecordStreamEvent(rt.service, string(event.Status))
			}
		}
	}
}
