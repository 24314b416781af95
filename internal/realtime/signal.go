package realtime

import (
	"encoding/json"
	"log"

	"talkio/backend/internal/models"
)

// relaySignal forwards an offer/answer payload between the two participants
// of a call. Two checks gate the relay: the sending connection must have
// identified as the claimed "from" user, and "from" must be a participant of
// the referenced call record. The payload itself is never inspected.
func (h *Hub) relaySignal(s *Session, eventName string, data json.RawMessage) {
	var p models.SignalPayload
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		h.signalError(s, "", "invalid signaling payload")
		return
	}

	if s.userID == "" || s.userID != p.From {
		log.Printf("WARNING: Signaling identity mismatch on connection %s: claims %q", s.connID, p.From)
		h.signalError(s, p.CallID, "signaling identity mismatch")
		return
	}

	call, err := h.Calls.store.GetCallByID(p.CallID)
	if err != nil {
		h.Calls.callLookupError(s, p.CallID, err)
		return
	}
	if p.From != call.CallerID && p.From != call.ReceiverID {
		h.signalError(s, p.CallID, "not a participant of this call")
		return
	}

	h.EmitToRoom(p.To, models.Event{Event: eventName, Data: p})
}

func (h *Hub) handleSignalOffer(s *Session, data json.RawMessage) {
	h.relaySignal(s, models.EventSignalOffer, data)
}

func (h *Hub) handleSignalAnswer(s *Session, data json.RawMessage) {
	h.relaySignal(s, models.EventSignalAnswer, data)
}

// handleSignalICE relays an ICE candidate. Candidates arrive at high volume
// during connection setup, so the per-candidate call lookup is skipped on
// purpose; only the identity binding is enforced. A rejected candidate is
// dropped without a client-visible error; losing one is non-fatal.
func (h *Hub) handleSignalICE(s *Session, data json.RawMessage) {
	var p models.SignalPayload
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		return
	}
	if s.userID == "" || s.userID != p.From {
		return
	}

	h.EmitToRoom(p.To, models.Event{Event: models.EventSignalICE, Data: p})
}
