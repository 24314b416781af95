package handler

import "talkio/backend/internal/realtime"

// Handler holds the realtime hub and the JWT secret used on the websocket
// handshake.
type Handler struct {
	Hub    *realtime.Hub
	secret []byte
}

func NewHandler(hub *realtime.Hub, jwtSecret string) *Handler {
	return &Handler{Hub: hub, secret: []byte(jwtSecret)}
}
