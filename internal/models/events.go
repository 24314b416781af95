package models

import (
	"encoding/json"
	"time"
)

// Inbound event names. These are the stable wire contract between clients and
// the realtime core.
const (
	EventIdentify     = "identify"
	EventJoinRoom     = "joinRoom"
	EventMessage      = "message"
	EventMessageRead  = "message:read"
	EventCallInitiate = "call:initiate"
	EventCallAccept   = "call:accept"
	EventCallDecline  = "call:decline"
	EventCallEnd      = "call:end"
	EventSignalOffer  = "signal:offer"
	EventSignalAnswer = "signal:answer"
	EventSignalICE    = "signal:ice-candidate"
)

// Outbound event names.
const (
	EventPresenceChanged = "presence:changed"
	EventMessageNew      = "message:new"
	EventCallIncoming    = "call:incoming"
	EventCallInitiated   = "call:initiated"
	EventCallAccepted    = "call:accepted"
	EventCallDeclined    = "call:declined"
	EventCallEnded       = "call:ended"
	EventSignalError     = "signal:error"
)

// Envelope is the frame every websocket message travels in, both directions:
// {"event": "...", "data": {...}}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Event is an outbound frame before serialization. Data may be any
// JSON-marshalable payload, including a raw signaling blob.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// IdentifyPayload binds a verified user identity to the connection.
type IdentifyPayload struct {
	UserID string `json:"userId"`
}

// JoinRoomPayload subscribes the connection to a room. UserID is accepted for
// older clients that still send it but is not required.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId,omitempty"`
}

// ChatMessage is relayed verbatim between participants of a conversation.
// Persistence happens in the CRUD layer before the event reaches this core.
type ChatMessage struct {
	MessageID      string `json:"messageId,omitempty"`
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	Content        string `json:"content,omitempty"`
	ContentType    string `json:"contentType,omitempty"`
}

// ReadReceipt tells a message's sender the recipient has seen it.
type ReadReceipt struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId,omitempty"`
	ReaderID       string `json:"readerId"`
	SenderID       string `json:"senderId"`
}

// PresenceChanged announces an online/offline flip to other connections.
type PresenceChanged struct {
	UserID   string    `json:"userId"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// CallInitiatePayload starts a call.
type CallInitiatePayload struct {
	CallerID   string   `json:"callerId"`
	ReceiverID string   `json:"receiverId"`
	CallType   CallType `json:"callType"`
}

// CallAcceptPayload answers a ringing call.
type CallAcceptPayload struct {
	CallID     string `json:"callId"`
	ReceiverID string `json:"receiverId"`
}

// CallDeclinePayload rejects a ringing call. IsTimeout marks the caller-side
// echo of a ring timeout rather than an explicit decline.
type CallDeclinePayload struct {
	CallID     string `json:"callId"`
	ReceiverID string `json:"receiverId"`
	IsTimeout  bool   `json:"isTimeout"`
}

// CallEndPayload hangs up an answered call.
type CallEndPayload struct {
	CallID   string `json:"callId"`
	UserID   string `json:"userId"`
	Duration int    `json:"duration"`
}

// CallDeclined notifies the caller the call was rejected or timed out.
type CallDeclined struct {
	CallID    string `json:"callId"`
	IsTimeout bool   `json:"isTimeout"`
}

// CallEnded notifies both participants the call finished.
type CallEnded struct {
	CallID   string `json:"callId"`
	Duration int    `json:"duration"`
}

// SignalPayload carries an opaque offer/answer/ICE blob between the two
// participants of a call. The core relays Payload without inspecting it.
type SignalPayload struct {
	CallID  string          `json:"callId"`
	From    string          `json:"from"`
	To      string          `json:"to"`
	Payload json.RawMessage `json:"payload"`
}

// SignalError reports a failed signaling or call operation to the originating
// connection only.
type SignalError struct {
	Message string `json:"message"`
	CallID  string `json:"callId,omitempty"`
}
