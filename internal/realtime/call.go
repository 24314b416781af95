package realtime

import (
	"encoding/json"
	"errors"
	"log"
	"time"

	"talkio/backend/internal/models"
	"talkio/backend/internal/storage"
)

// CallController drives the lifecycle of calls: Ringing(missed) resolves to
// exactly one of answered, declined or missed-by-timeout; an answered call
// later records its end without touching the status. Every transition is an
// optimistic compare-and-swap on the persisted record, so a racing timer and
// handler cannot overwrite each other: the loser degrades to a no-op.
type CallController struct {
	hub         *Hub
	store       storage.Storage
	ringTimeout time.Duration
	notifier    MissedCallNotifier
}

func (c *CallController) initiate(s *Session, p models.CallInitiatePayload) {
	if p.CallerID == "" || p.ReceiverID == "" {
		c.hub.signalError(s, "", "callerId and receiverId are required")
		return
	}
	if p.CallerID == p.ReceiverID {
		c.hub.signalError(s, "", "cannot call yourself")
		return
	}

	call := &models.Call{
		CallerID:       p.CallerID,
		ReceiverID:     p.ReceiverID,
		ConversationID: models.ConversationIDFor(p.CallerID, p.ReceiverID),
		CallType:       p.CallType,
		Status:         models.CallStatusMissed,
		InitiatedBy:    p.CallerID,
		StartedAt:      time.Now(),
	}
	if err := c.store.CreateCall(call); err != nil {
		c.hub.signalError(s, "", "failed to start call")
		return
	}

	// Ring events go to the two personal rooms only. A conversation-wide
	// emit would leak the ring to other sessions of uninvolved parties.
	c.hub.EmitToRoom(call.ReceiverID, models.Event{Event: models.EventCallIncoming, Data: call})
	c.hub.EmitToRoom(call.CallerID, models.Event{Event: models.EventCallInitiated, Data: call})

	time.AfterFunc(c.ringTimeout, func() {
		c.timeout(call.ID, call.CallerID, call.ReceiverID)
	})
}

// timeout fires once per call. If the record is still ringing it stamps the
// end time and echoes a timeout-decline to the caller; if a transition
// already happened this is a no-op. The timer is intentionally never
// cancelled on answer or decline.
func (c *CallController) timeout(callID, callerID, receiverID string) {
	now := time.Now()
	ok, err := c.store.UpdateCallIf(callID, models.CallStatusMissed, map[string]interface{}{
		"ended_at": now,
	})
	if err != nil {
		log.Printf("ERROR: Ring timeout update failed for call %s: %v", callID, err)
		return
	}
	if !ok {
		return
	}

	c.hub.EmitToRoom(callerID, models.Event{
		Event: models.EventCallDeclined,
		Data:  models.CallDeclined{CallID: callID, IsTimeout: true},
	})

	if c.notifier != nil && !c.hub.Presence.IsOnline(receiverID) {
		if call, err := c.store.GetCallByID(callID); err == nil {
			c.notifier.NotifyMissedCall(call)
		}
	}
}

func (c *CallController) accept(s *Session, p models.CallAcceptPayload) {
	call, err := c.store.GetCallByID(p.CallID)
	if err != nil {
		c.callLookupError(s, p.CallID, err)
		return
	}

	// The ring-start time is overwritten with the answer time; duration is
	// measured from here.
	ok, err := c.store.UpdateCallIf(p.CallID, models.CallStatusMissed, map[string]interface{}{
		"status":     models.CallStatusAnswered,
		"started_at": time.Now(),
	})
	if err != nil {
		c.hub.signalError(s, p.CallID, "failed to accept call")
		return
	}
	if !ok {
		log.Printf("Call %s no longer ringing, accept ignored", p.CallID)
		c.hub.signalError(s, p.CallID, "call is not ringing")
		return
	}

	accepted := models.Event{Event: models.EventCallAccepted, Data: models.CallAcceptPayload{
		CallID:     p.CallID,
		ReceiverID: call.ReceiverID,
	}}
	c.hub.EmitToRoom(call.CallerID, accepted)
	c.hub.EmitToRoom(call.ReceiverID, accepted)
}

func (c *CallController) decline(s *Session, p models.CallDeclinePayload) {
	call, err := c.store.GetCallByID(p.CallID)
	if err != nil {
		c.callLookupError(s, p.CallID, err)
		return
	}

	// An explicit decline resolves the ring as "declined"; the caller-side
	// timeout echo keeps the terminal status "missed".
	status := models.CallStatusDeclined
	if p.IsTimeout {
		status = models.CallStatusMissed
	}
	ok, err := c.store.UpdateCallIf(p.CallID, models.CallStatusMissed, map[string]interface{}{
		"status":   status,
		"ended_at": time.Now(),
	})
	if err != nil {
		c.hub.signalError(s, p.CallID, "failed to decline call")
		return
	}
	if !ok {
		log.Printf("Call %s no longer ringing, decline ignored", p.CallID)
		return
	}

	c.hub.EmitToRoom(call.CallerID, models.Event{
		Event: models.EventCallDeclined,
		Data:  models.CallDeclined{CallID: p.CallID, IsTimeout: p.IsTimeout},
	})
}

func (c *CallController) end(s *Session, p models.CallEndPayload) {
	call, err := c.store.GetCallByID(p.CallID)
	if err != nil {
		c.callLookupError(s, p.CallID, err)
		return
	}

	// Status records how the ringing phase resolved, never how the call
	// ended, so it stays "answered" here.
	ok, err := c.store.UpdateCallIf(p.CallID, models.CallStatusAnswered, map[string]interface{}{
		"ended_at": time.Now(),
		"duration": p.Duration,
	})
	if err != nil {
		c.hub.signalError(s, p.CallID, "failed to end call")
		return
	}
	if !ok {
		log.Printf("Call %s is not answered, end ignored", p.CallID)
		c.hub.signalError(s, p.CallID, "call is not in progress")
		return
	}

	ended := models.Event{Event: models.EventCallEnded, Data: models.CallEnded{
		CallID:   p.CallID,
		Duration: p.Duration,
	}}
	c.hub.EmitToRoom(call.CallerID, ended)
	c.hub.EmitToRoom(call.ReceiverID, ended)
}

func (c *CallController) callLookupError(s *Session, callID string, err error) {
	if errors.Is(err, storage.ErrCallNotFound) {
		c.hub.signalError(s, callID, "call not found")
		return
	}
	c.hub.signalError(s, callID, "call lookup failed")
}

// Dispatch adapters.

func (h *Hub) handleCallInitiate(s *Session, data json.RawMessage) {
	var p models.CallInitiatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		h.signalError(s, "", "invalid call:initiate payload")
		return
	}
	h.Calls.initiate(s, p)
}

func (h *Hub) handleCallAccept(s *Session, data json.RawMessage) {
	var p models.CallAcceptPayload
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		h.signalError(s, "", "invalid call:accept payload")
		return
	}
	h.Calls.accept(s, p)
}

func (h *Hub) handleCallDecline(s *Session, data json.RawMessage) {
	var p models.CallDeclinePayload
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		h.signalError(s, "", "invalid call:decline payload")
		return
	}
	h.Calls.decline(s, p)
}

func (h *Hub) handleCallEnd(s *Session, data json.RawMessage) {
	var p models.CallEndPayload
	if err := json.Unmarshal(data, &p); err != nil || p.CallID == "" {
		h.signalError(s, "", "invalid call:end payload")
		return
	}
	h.Calls.end(s, p)
}
