package realtime

import (
	"encoding/json"
	"log"

	"talkio/backend/internal/models"
)

// wireEvent is the frame room events travel in on the Redis bridge. An empty
// Room addresses every connection. Exclude is a connection id and therefore
// only meaningful on the origin instance; remote instances deliver to all
// local members, which is correct because the excluded connection cannot live
// anywhere but the origin.
type wireEvent struct {
	Origin  string       `json:"origin"`
	Room    string       `json:"room"`
	Exclude string       `json:"exclude,omitempty"`
	Event   models.Event `json:"event"`
}

const broadcastChannel = "room:broadcast"

func roomChannel(roomID string) string {
	if roomID == "" {
		return broadcastChannel
	}
	return "room:" + roomID
}

// publish mirrors a local emit onto Redis so sibling instances can deliver it
// to their own connections. Publish failures are logged and swallowed; local
// delivery already happened.
func (h *Hub) publish(roomID string, event models.Event, excludeConnID string) {
	payload, err := json.Marshal(wireEvent{
		Origin:  h.nodeID,
		Room:    roomID,
		Exclude: excludeConnID,
		Event:   event,
	})
	if err != nil {
		log.Printf("ERROR: Failed to encode %s event for pub/sub: %v", event.Event, err)
		return
	}
	if err := h.store.PublishRoomEvent(roomChannel(roomID), payload); err != nil {
		log.Printf("WARNING: Failed to publish %s event to Redis: %v", event.Event, err)
	}
}

// StartPubSubListener runs a goroutine that re-emits room events published by
// other instances. Called once from main; tests drive the hub directly.
func (h *Hub) StartPubSubListener() {
	go func() {
		pubsub := h.store.SubscribeRoomEvents()
		defer pubsub.Close()

		for msg := range pubsub.Channel() {
			var we wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &we); err != nil {
				log.Printf("Error unmarshalling Redis message: %v", err)
				continue
			}
			if we.Origin == h.nodeID {
				continue // Our own publication, already delivered locally.
			}
			h.emitLocal(we.Room, we.Event, we.Exclude)
		}
	}()
}
