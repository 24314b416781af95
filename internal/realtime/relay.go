package realtime

import (
	"encoding/json"
	"log"

	"talkio/backend/internal/models"
)

// handleMessage relays a freshly created message to the conversation room.
// The originating connection is excluded: its client already rendered an
// optimistic copy. Persistence happened in the CRUD layer before this event.
func (h *Hub) handleMessage(s *Session, data json.RawMessage) {
	var msg models.ChatMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.ConversationID == "" {
		log.Printf("WARNING: Invalid message payload from connection %s: %v", s.connID, err)
		return
	}

	h.EmitToRoomExcept(msg.ConversationID, models.Event{
		Event: models.EventMessageNew,
		Data:  msg,
	}, s.connID)
}

// handleMessageRead fans a read receipt out to three targets: the original
// sender's personal room, the conversation room and the legacy-prefixed alias
// of the conversation room. No exclusion; the redundancy guarantees delivery
// even if the sender just reconnected on a different connection.
func (h *Hub) handleMessageRead(s *Session, data json.RawMessage) {
	var receipt models.ReadReceipt
	if err := json.Unmarshal(data, &receipt); err != nil || receipt.ConversationID == "" {
		log.Printf("WARNING: Invalid read receipt from connection %s: %v", s.connID, err)
		return
	}

	event := models.Event{Event: models.EventMessageRead, Data: receipt}
	if receipt.SenderID != "" {
		h.EmitToRoom(receipt.SenderID, event)
	}
	h.EmitToRoom(receipt.ConversationID, event)
	h.EmitToRoom(legacyRoomPrefix+receipt.ConversationID, event)
}
