package realtime

import (
	"encoding/json"
	"log"

	"talkio/backend/internal/models"
)

// Session is the per-connection state threaded through every event handler.
// A session starts Unidentified; Identify binds a user and unlocks the
// presence and call paths. The userID field is written only from the owning
// connection's handler goroutine; the rooms set is guarded by the hub mutex.
type Session struct {
	client Client
	connID string
	userID string
	rooms  map[string]struct{}
}

// ConnID returns the connection identifier.
func (s *Session) ConnID() string { return s.connID }

// UserID returns the bound user identity, or "" while Unidentified.
func (s *Session) UserID() string { return s.userID }

// eventHandler processes one inbound event for one connection.
type eventHandler func(h *Hub, s *Session, data json.RawMessage)

// eventHandlers is the dispatch table for the inbound wire contract.
var eventHandlers = map[string]eventHandler{
	models.EventIdentify:     (*Hub).handleIdentify,
	models.EventJoinRoom:     (*Hub).handleJoinRoom,
	models.EventMessage:      (*Hub).handleMessage,
	models.EventMessageRead:  (*Hub).handleMessageRead,
	models.EventCallInitiate: (*Hub).handleCallInitiate,
	models.EventCallAccept:   (*Hub).handleCallAccept,
	models.EventCallDecline:  (*Hub).handleCallDecline,
	models.EventCallEnd:      (*Hub).handleCallEnd,
	models.EventSignalOffer:  (*Hub).handleSignalOffer,
	models.EventSignalAnswer: (*Hub).handleSignalAnswer,
	models.EventSignalICE:    (*Hub).handleSignalICE,
}

// Dispatch routes one inbound envelope to its handler. Unknown events and
// handler failures are scoped to this single event; nothing here may
// terminate the connection.
func (h *Hub) Dispatch(connID string, env models.Envelope) {
	h.mu.RLock()
	s, ok := h.sessions[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	handler, ok := eventHandlers[env.Event]
	if !ok {
		log.Printf("WARNING: Unknown event %q from connection %s", env.Event, connID)
		return
	}
	handler(h, s, env.Data)
}

func (h *Hub) handleIdentify(s *Session, data json.RawMessage) {
	var p models.IdentifyPayload
	if err := json.Unmarshal(data, &p); err != nil || p.UserID == "" {
		log.Printf("WARNING: Invalid identify payload from connection %s: %v", s.connID, err)
		return
	}
	h.Identify(s, p.UserID)
}

func (h *Hub) handleJoinRoom(s *Session, data json.RawMessage) {
	var p models.JoinRoomPayload
	if err := json.Unmarshal(data, &p); err != nil || p.RoomID == "" {
		log.Printf("WARNING: Invalid joinRoom payload from connection %s: %v", s.connID, err)
		return
	}
	h.JoinRoom(s, p.RoomID)
}
