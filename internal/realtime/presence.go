package realtime

import (
	"log"
	"sync"
	"time"

	"talkio/backend/internal/models"
	"talkio/backend/internal/storage"
)

// Registry is the authoritative in-memory view of who is connected. It is
// process-wide shared state, initialized once at startup and guarded by a
// single mutex keyed by user identity.
//
// The model deliberately does not reference-count connections per identity:
// an Announce from any connection marks the user online, and a Retire from
// any connection marks them offline even if other connections for the same
// identity are still open. Clients that multi-home must re-identify.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]presenceEntry

	store    storage.Storage
	attempts int
	delay    time.Duration
}

type presenceEntry struct {
	IsOnline bool
	LastSeen time.Time
}

// NewRegistry builds an empty registry. attempts and delay bound the
// best-effort store write per transition.
func NewRegistry(store storage.Storage, attempts int, delay time.Duration) *Registry {
	return &Registry{
		entries:  make(map[string]presenceEntry),
		store:    store,
		attempts: attempts,
		delay:    delay,
	}
}

// Announce marks the user online. Repeated announces, from the same or
// additional connections, are not an error.
func (r *Registry) Announce(userID string) models.PresenceChanged {
	return r.transition(userID, true)
}

// Retire marks the user offline and stamps last-seen.
func (r *Registry) Retire(userID string) models.PresenceChanged {
	return r.transition(userID, false)
}

func (r *Registry) transition(userID string, online bool) models.PresenceChanged {
	now := time.Now()

	r.mu.Lock()
	r.entries[userID] = presenceEntry{IsOnline: online, LastSeen: now}
	r.mu.Unlock()

	// The store write must never block or fail the connection handler.
	go r.persist(userID, online, now)

	return models.PresenceChanged{UserID: userID, IsOnline: online, LastSeen: now}
}

// IsOnline reports the registry's current view of a user.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[userID].IsOnline
}

// LastSeen returns the last transition time for a user, if any was recorded.
func (r *Registry) LastSeen(userID string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[userID]
	return e.LastSeen, ok
}

// persist writes the transition through to the durable store with bounded
// retry. Presence is eventually consistent; after the last attempt the update
// is abandoned with a warning.
func (r *Registry) persist(userID string, online bool, lastSeen time.Time) {
	var err error
	for attempt := 0; attempt < r.attempts; attempt++ {
		if attempt > 0 {
			time.Sleep(r.delay)
		}
		if err = r.store.UpdateUserPresence(userID, online, lastSeen); err == nil {
			return
		}
	}
	log.Printf("WARNING: Abandoning presence update for user %s after %d attempts: %v", userID, r.attempts, err)
}
