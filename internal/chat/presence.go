package chat

import (
	"sync"

	"github.com/omochice/presence-relay/pkg/protocol"
)

// PresenceStore maps logical user ids to their last announced record.
// Records live for the process lifetime: they are mutated in place on
// status changes and only superseded by a later announce.
type PresenceStore struct {
	users map[string]protocol.PresenceUser
	mu    sync.RWMutex
}

// NewPresenceStore creates an empty PresenceStore.
func NewPresenceStore() *PresenceStore {
	return &PresenceStore{
		users: make(map[string]protocol.PresenceUser),
	}
}

// Upsert replaces the stored record for user.ID.
func (p *PresenceStore) Upsert(user protocol.PresenceUser) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[user.ID] = user
}

// SetStatus updates the status of an existing user and returns the
// resulting record. Unknown users are left untouched; there is nothing
// to report for a user that never announced.
func (p *PresenceStore) SetStatus(userID string, status protocol.Status) (protocol.PresenceUser, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	user, ok := p.users[userID]
	if !ok {
		return protocol.PresenceUser{}, false
	}
	user.Status = status
	p.users[userID] = user
	return user, true
}

// Get returns the stored record for userID.
func (p *PresenceStore) Get(userID string) (protocol.PresenceUser, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	user, ok := p.users[userID]
	return user, ok
}

// Snapshot returns a copy of every stored record.
func (p *PresenceStore) Snapshot() []protocol.PresenceUser {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make([]protocol.PresenceUser, 0, len(p.users))
	for _, user := range p.users {
		users = append(users, user)
	}
	return users
}

// RefCounter counts the live connections bound to each user id, so a
// user with several devices only goes offline when the last one
// disconnects. An entry exists only while its count is at least one;
// removal at zero is what drives the offline transition.
type RefCounter struct {
	counts map[string]int
	mu     sync.Mutex
}

// NewRefCounter creates an empty RefCounter.
func NewRefCounter() *RefCounter {
	return &RefCounter{
		counts: make(map[string]int),
	}
}

// Increment raises the connection count for userID and returns the new
// count, creating the entry if absent.
func (c *RefCounter) Increment(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[userID]++
	return c.counts[userID]
}

// Decrement lowers the connection count for userID, removing the entry
// when it reaches zero. It returns the remaining count; a missing entry
// counts as zero so the caller falls through to the offline transition.
func (c *RefCounter) Decrement(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count, ok := c.counts[userID]
	if !ok {
		return 0
	}
	if count > 1 {
		c.counts[userID] = count - 1
		return count - 1
	}
	delete(c.counts, userID)
	return 0
}

// Count returns the current connection count for userID.
func (c *RefCounter) Count(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[userID]
}

// Core bundles the shared relay state injected into every session.
type Core struct {
	Registry *Registry
	Presence *PresenceStore
	Counter  *RefCounter
}

// NewCore creates the shared state for one relay instance.
func NewCore() *Core {
	return &Core{
		Registry: NewRegistry(),
		Presence: NewPresenceStore(),
		Counter:  NewRefCounter(),
	}
}
