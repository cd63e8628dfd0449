// Package gateway streams execution progress to WebSocket clients.
// executeMultiLegOrder is a long-running synchronous call, so UI and
// automation collaborators watch batches complete here instead of polling.
package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"execution-systemv1/internal/model"
)

// EventType identifies a progress event.
type EventType string

const (
	EventExecutionStarted  EventType = "execution_started"
	EventBatchStarted      EventType = "batch_started"
	EventBatchFinished     EventType = "batch_finished"
	EventExecutionFinished EventType = "execution_finished"
)

// Event is the envelope broadcast to every connected client.
type Event struct {
	Type        EventType `json:"type"`
	ExecutionID string    `json:"execution_id"`
	Seq         int64     `json:"seq"`
	TS          time.Time `json:"ts"`
	Data        any       `json:"data,omitempty"`
}

// BatchStartedData is the payload of a batch_started event.
type BatchStartedData struct {
	BatchIndex   int `json:"batch_index"`
	TotalBatches int `json:"total_batches"`
	Lots         int `json:"lots"`
}

// Hub fans progress events out to connected WebSocket clients. Slow
// clients drop events rather than stall the execution loop.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// AddClient registers a client and starts its pumps.
func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] ws client connected (%d total)", n)
}

// RemoveClient drops a client and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast stamps the event with a sequence number and timestamp and
// fans it out. Never blocks: a client with a full queue loses the event.
func (h *Hub) Broadcast(ev Event) {
	h.mu.Lock()
	h.seq++
	ev.Seq = h.seq
	if ev.TS.IsZero() {
		ev.TS = time.Now()
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		h.mu.Unlock()
		log.Printf("[gateway] event encode failed: %v", err)
		return
	}
	for c := range h.clients {
		select {
		case c.send <- raw:
		default: // slow client, drop
		}
	}
	h.mu.Unlock()
}

// ExecutionStarted announces a new execution.
func (h *Hub) ExecutionStarted(executionID string, totalLots, batches int) {
	h.Broadcast(Event{
		Type:        EventExecutionStarted,
		ExecutionID: executionID,
		Data:        map[string]int{"total_lots": totalLots, "batches": batches},
	})
}

// BatchStarted announces the start of one batch.
func (h *Hub) BatchStarted(executionID string, index, total, lots int) {
	h.Broadcast(Event{
		Type:        EventBatchStarted,
		ExecutionID: executionID,
		Data:        BatchStartedData{BatchIndex: index, TotalBatches: total, Lots: lots},
	})
}

// BatchFinished publishes a terminal batch with its leg results.
func (h *Hub) BatchFinished(executionID string, b model.OrderBatch) {
	h.Broadcast(Event{
		Type:        EventBatchFinished,
		ExecutionID: executionID,
		Data:        b,
	})
}

// ExecutionFinished publishes the final summary.
func (h *Hub) ExecutionFinished(summary *model.ExecutionSummary) {
	h.Broadcast(Event{
		Type:        EventExecutionFinished,
		ExecutionID: summary.ExecutionID,
		Data:        summary,
	})
}
