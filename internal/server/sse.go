package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/jonathan/content-agent/internal/engine"
)

// SSEWriter helps write Server-Sent Events.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter prepares the response for event streaming.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends one SSE event.
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Hub fans the coordinator's progress events out to SSE subscribers.
// Broadcast never blocks: a subscriber that cannot keep up drops events
// rather than stalling the pipeline.
type Hub struct {
	mu   sync.Mutex
	subs map[chan engine.ProgressEvent]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan engine.ProgressEvent]struct{})}
}

// Broadcast delivers an event to every subscriber. Safe to hand to
// Coordinator.SetProgressCallback.
func (h *Hub) Broadcast(ev engine.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new listener. Call the returned cancel func to
// unsubscribe.
func (h *Hub) Subscribe() (<-chan engine.ProgressEvent, func()) {
	ch := make(chan engine.ProgressEvent, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

// handleEvents streams all progress events until the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.streamEvents(w, r, "")
}

// handleRunEvents streams progress events for a single run.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid run id")
		return
	}
	if _, err := s.store.Get(id); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	s.streamEvents(w, r, id.String())
}

// streamEvents fans hub events to the client. An empty runID streams
// everything; otherwise events for other runs are filtered out.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request, runID string) {
	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	events, cancel := s.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			if runID != "" && ev.RunID != runID {
				continue
			}
			if err := sse.WriteEvent("progress", ev); err != nil {
				return
			}
		}
	}
}
