package chat

import (
	"log"
	"sync"
)

// Handle is the registry's view of one live connection: its outbound
// delivery queue and the user id it has announced, if any. The owning
// session holds the only other reference.
type Handle struct {
	id       string
	userID   string
	outgoing chan []byte
}

// Registry tracks live connections and fans server frames out to them.
// All methods are safe for concurrent use from any session goroutine.
type Registry struct {
	conns map[string]*Handle
	mu    sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Handle),
	}
}

// Register adds a connection with no bound user.
func (r *Registry) Register(id string, outgoing chan []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[id] = &Handle{id: id, outgoing: outgoing}
}

// Unregister removes the connection and returns the user id it was last
// bound to, if any.
func (r *Registry) Unregister(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.conns[id]
	if !ok {
		return "", false
	}
	delete(r.conns, id)
	return h.userID, h.userID != ""
}

// BindUser records the user id announced by a connection. It returns
// true only when this establishes a new binding; re-announcing the same
// id is a no-op.
func (r *Registry) BindUser(id, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.conns[id]
	if !ok || h.userID == userID {
		return false
	}
	h.userID = userID
	return true
}

// Broadcast enqueues an already-encoded frame on every registered
// connection's queue, including the originator's. A connection whose
// queue is full or closed is skipped and logged; it is removed only by
// its own disconnect path.
func (r *Registry) Broadcast(frame []byte) {
	r.mu.RLock()
	handles := make([]*Handle, 0, len(r.conns))
	for _, h := range r.conns {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	for _, h := range handles {
		if !enqueue(h, frame) {
			log.Printf("Failed to deliver frame to %s, skipping", h.id)
		}
	}
}

// SendTo delivers a frame to a single connection. Failure is logged only.
func (r *Registry) SendTo(id string, frame []byte) {
	r.mu.RLock()
	h := r.conns[id]
	r.mu.RUnlock()

	if h == nil || !enqueue(h, frame) {
		log.Printf("Failed to deliver frame to %s", id)
	}
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// enqueue performs a non-blocking send so a stalled consumer can never
// hold up the broadcast path. The recover guard covers the window where
// a disconnecting session has already closed its queue.
func enqueue(h *Handle, frame []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case h.outgoing <- frame:
		return true
	default:
		return false
	}
}
