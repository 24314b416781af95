package handler

import (
	"net/http"
	"strings"

	"talkio/backend/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten in production!
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades the HTTP connection and attaches it to the hub.
// A valid token on the handshake counts as the identify event; without one
// the connection starts Unidentified and must send identify itself.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	tokenString := bearerToken(c)

	var userID string
	if tokenString != "" {
		id, err := h.parseUserID(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token or expired"})
			return
		}
		userID = id
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	client := realtime.NewWSClient(h.Hub, conn)
	sess := h.Hub.Register(client)

	// Bind the handshake identity before the pumps start so no inbound event
	// can observe a half-identified session.
	if userID != "" {
		h.Hub.Identify(sess, userID)
	}

	client.Run()
}

// bearerToken pulls the token from the Authorization header or, for browser
// clients that cannot set headers on a websocket handshake, the query string.
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return c.Query("token")
}
