package realtime

import "talkio/backend/internal/models"

// Client is the interface for any type of connection attached to the hub. It
// abstracts the underlying transport so the hub can fan out events without
// knowing whether a websocket (or a test double) sits on the other side.
type Client interface {
	// GetConnID returns the opaque identifier assigned to this connection.
	GetConnID() string

	// GetSendChannel returns the channel the hub enqueues outbound events on.
	// It is a send-only channel; delivery order is the enqueue order.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's outbound channel and connection.
	Close()
}
