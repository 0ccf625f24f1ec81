package ui

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"permutest/domain/simulation"
	"permutest/internal"
)

// SSEHub fans simulation progress events out to connected SSE clients, one
// event per completed trial plus the loop-termination event.
type SSEHub struct {
	mu      sync.RWMutex
	clients map[chan simulation.ProgressEvent]bool
	log     *internal.Logger
}

// NewSSEHub creates a new SSE hub
func NewSSEHub(log *internal.Logger) *SSEHub {
	return &SSEHub{
		clients: make(map[chan simulation.ProgressEvent]bool),
		log:     log.With("sse"),
	}
}

// Broadcast sends an event to every connected client. Slow clients are
// skipped rather than blocking the engine's progress callback.
func (h *SSEHub) Broadcast(event simulation.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for clientChan := range h.clients {
		select {
		case clientChan <- event:
		default:
			h.log.Debug("client channel full, skipping event")
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *SSEHub) register() chan simulation.ProgressEvent {
	clientChan := make(chan simulation.ProgressEvent, 16)
	h.mu.Lock()
	h.clients[clientChan] = true
	h.mu.Unlock()
	return clientChan
}

func (h *SSEHub) unregister(clientChan chan simulation.ProgressEvent) {
	h.mu.Lock()
	delete(h.clients, clientChan)
	h.mu.Unlock()
}

// HandleSSE streams progress events until the client disconnects.
func (h *SSEHub) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := h.register()
	defer h.unregister(clientChan)
	h.log.Debug("client connected (total: %d)", h.ClientCount())

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case event := <-clientChan:
			payload, err := json.Marshal(event)
			if err != nil {
				h.log.Error("failed to marshal event: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
			flusher.Flush()

		case <-ping.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"status\":\"alive\"}\n\n")
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}
