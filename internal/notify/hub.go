package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Event is one progress message delivered to job subscribers.
type Event struct {
	Type   string                 `json:"type"`
	Step   string                 `json:"step"`
	Status string                 `json:"status"`
	Extra  map[string]interface{} `json:"extra,omitempty"`
}

// Conn is the subset of a websocket connection the hub writes to.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Hub is the per-job subscriber registry for progress events. All operations
// are safe under concurrent subscriber lifecycles; Publish serializes writes
// so concurrent broadcasts never interleave on one connection.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[Conn]struct{}
	logger *zap.Logger
}

// NewHub builds an empty registry.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[Conn]struct{}),
		logger: logger.Named("notify"),
	}
}

// Add registers a subscriber for a job id.
func (h *Hub) Add(jobID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[jobID]
	if !ok {
		set = make(map[Conn]struct{})
		h.subs[jobID] = set
	}
	set[conn] = struct{}{}
}

// Remove drops a subscriber. Safe to call for connections already pruned.
func (h *Hub) Remove(jobID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(jobID, conn)
}

// Publish broadcasts an event to every subscriber of the job. A failed
// delivery prunes that subscriber without affecting the others.
func (h *Hub) Publish(jobID string, event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[jobID]
	if len(set) == 0 {
		return
	}

	var failed []Conn
	for conn := range set {
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Warn("subscriber delivery failed, pruning",
				zap.String("job_id", jobID), zap.Error(err))
			failed = append(failed, conn)
		}
	}
	for _, conn := range failed {
		h.dropLocked(jobID, conn)
		_ = conn.Close()
	}
}

// SubscriberCount reports the active subscribers for a job id.
func (h *Hub) SubscriberCount(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[jobID])
}

func (h *Hub) dropLocked(jobID string, conn Conn) {
	set, ok := h.subs[jobID]
	if !ok {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.subs, jobID)
	}
}
