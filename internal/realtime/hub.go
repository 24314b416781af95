package realtime

import (
	"log"
	"strings"
	"sync"
	"time"

	"talkio/backend/internal/config"
	"talkio/backend/internal/models"
	"talkio/backend/internal/storage"

	"github.com/google/uuid"
)

// legacyRoomPrefix is the namespace older clients still prepend to
// conversation room ids. Joins strip it; read receipts additionally target
// the prefixed alias so non-migrated clients keep receiving them.
const legacyRoomPrefix = "conversation:"

// MissedCallNotifier delivers an out-of-band alert when a ring times out and
// the receiver is offline.
type MissedCallNotifier interface {
	NotifyMissedCall(call *models.Call)
}

// Options tunes the hub. Zero values fall back to the production defaults
// from the config package.
type Options struct {
	RingTimeout        time.Duration
	PresenceAttempts   int
	PresenceRetryDelay time.Duration
	Notifier           MissedCallNotifier
}

// Hub owns every live connection and the room membership index. All three
// maps are guarded by a single mutex, which also serializes room fan-out so
// subscribers of one room observe events in the order the hub processed them.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*Session            // conn id -> session
	rooms    map[string]map[string]*Session // room id -> conn id -> session

	store    storage.Storage
	Presence *Registry
	Calls    *CallController

	// nodeID distinguishes this instance's own publications on the Redis
	// bridge from those of other instances.
	nodeID string
}

// NewHub builds a hub with its presence registry and call controller wired in.
func NewHub(store storage.Storage, opts Options) *Hub {
	if opts.RingTimeout <= 0 {
		opts.RingTimeout = config.CallRingTimeout
	}
	if opts.PresenceAttempts <= 0 {
		opts.PresenceAttempts = config.PresenceWriteAttempts
	}
	if opts.PresenceRetryDelay <= 0 {
		opts.PresenceRetryDelay = config.PresenceWriteRetryDelay
	}

	h := &Hub{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
		store:    store,
		nodeID:   uuid.New().String(),
	}
	h.Presence = NewRegistry(store, opts.PresenceAttempts, opts.PresenceRetryDelay)
	h.Calls = &CallController{
		hub:         h,
		store:       store,
		ringTimeout: opts.RingTimeout,
		notifier:    opts.Notifier,
	}
	return h
}

// Register attaches a new connection to the hub in the Unidentified state.
func (h *Hub) Register(c Client) *Session {
	s := &Session{
		client: c,
		connID: c.GetConnID(),
		rooms:  make(map[string]struct{}),
	}

	h.mu.Lock()
	h.sessions[s.connID] = s
	h.mu.Unlock()

	return s
}

// Unregister is the terminal transition for a connection: it retires the
// bound identity (if any), clears room membership and closes the client.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	s, ok := h.sessions[connID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.sessions, connID)
	for roomID := range s.rooms {
		h.leaveRoomLocked(s, roomID)
	}
	userID := s.userID
	h.mu.Unlock()

	if userID != "" {
		change := h.Presence.Retire(userID)
		h.BroadcastAllExcept(models.Event{Event: models.EventPresenceChanged, Data: change}, connID)
	}

	s.client.Close()
}

// Identify binds a verified user identity to the connection, joins the
// personal room and announces presence. Repeated identifies are harmless.
func (h *Hub) Identify(s *Session, userID string) {
	if userID == "" {
		return
	}

	h.mu.Lock()
	s.userID = userID
	h.joinRoomLocked(s, userID)
	h.mu.Unlock()

	change := h.Presence.Announce(userID)
	h.BroadcastAllExcept(models.Event{Event: models.EventPresenceChanged, Data: change}, s.connID)
}

// JoinRoom subscribes the connection to a room. The identifier is normalized
// first and joining twice is a no-op. No membership check happens here; the
// CRUD layer authorizes conversation ids before clients learn them.
func (h *Hub) JoinRoom(s *Session, roomID string) {
	roomID = NormalizeRoomID(roomID)
	if roomID == "" {
		return
	}
	h.mu.Lock()
	h.joinRoomLocked(s, roomID)
	h.mu.Unlock()
}

// NormalizeRoomID strips the legacy namespace prefix from a room identifier.
func NormalizeRoomID(roomID string) string {
	return strings.TrimPrefix(roomID, legacyRoomPrefix)
}

func (h *Hub) joinRoomLocked(s *Session, roomID string) {
	s.rooms[roomID] = struct{}{}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Session)
		h.rooms[roomID] = members
	}
	members[s.connID] = s
}

func (h *Hub) leaveRoomLocked(s *Session, roomID string) {
	delete(s.rooms, roomID)
	if members, ok := h.rooms[roomID]; ok {
		delete(members, s.connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// EmitToRoom delivers an event to every connection joined to the room, here
// and on other instances via the Redis bridge.
func (h *Hub) EmitToRoom(roomID string, event models.Event) {
	h.emit(roomID, event, "")
}

// EmitToRoomExcept behaves like EmitToRoom but skips one connection,
// typically the event's originator.
func (h *Hub) EmitToRoomExcept(roomID string, event models.Event, excludeConnID string) {
	h.emit(roomID, event, excludeConnID)
}

// BroadcastAllExcept delivers an event to every live connection except one.
func (h *Hub) BroadcastAllExcept(event models.Event, excludeConnID string) {
	h.emit("", event, excludeConnID)
}

// emit is the single fan-out path. An empty roomID addresses all connections.
func (h *Hub) emit(roomID string, event models.Event, excludeConnID string) {
	h.emitLocal(roomID, event, excludeConnID)
	h.publish(roomID, event, excludeConnID)
}

func (h *Hub) emitLocal(roomID string, event models.Event, excludeConnID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var targets map[string]*Session
	if roomID == "" {
		targets = h.sessions
	} else {
		targets = h.rooms[roomID]
	}

	for connID, s := range targets {
		if connID == excludeConnID {
			continue
		}
		select {
		case s.client.GetSendChannel() <- event:
		default:
			// Slow consumer; dropping beats blocking every other member.
			log.Printf("WARNING: Dropping %s event for slow connection %s", event.Event, connID)
		}
	}
}

// deliver sends an event to a single session, bypassing the room index. Used
// for operation results addressed to the originating connection.
func (h *Hub) deliver(s *Session, event models.Event) {
	select {
	case s.client.GetSendChannel() <- event:
	default:
		log.Printf("WARNING: Dropping %s event for slow connection %s", event.Event, s.connID)
	}
}

func (h *Hub) signalError(s *Session, callID, message string) {
	h.deliver(s, models.Event{
		Event: models.EventSignalError,
		Data:  models.SignalError{Message: message, CallID: callID},
	})
}
