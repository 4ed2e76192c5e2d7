package realtime

import (
	"encoding/json"
	"log/slog"
)

// Event kinds pushed to clients.
const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"
)

// Event is the wire frame for server-to-client pushes.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Broadcaster delivers task mutation events to every member of the owner's
// channel. Delivery is fire-and-forget: a dead member is dropped, never
// failing the originating call.
type Broadcaster struct {
	registry *Registry
}

// NewBroadcaster creates a Broadcaster over the given registry.
func NewBroadcaster(registry *Registry) *Broadcaster {
	return &Broadcaster{registry: registry}
}

// Publish fans event/data out to the owner's live connections. Sequential
// calls for one owner reach each surviving member in call order, because
// each handle buffers into a single FIFO.
func (b *Broadcaster) Publish(ownerID int64, event string, data any) {
	payload, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		slog.Error("marshal event", "event", event, "error", err)
		return
	}

	for _, h := range b.registry.MembersOf(ownerID) {
		if !h.Send(payload) {
			b.registry.Leave(h)
			h.Close()
			slog.Debug("dropped dead connection", "user_id", ownerID, "event", event)
		}
	}
}
