package websocket

import (
	"log"
	"net/http"

	"geminijoust/notifier"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	// In production, adjust the CheckOrigin function to allow only trusted origins.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler bridges notifier subscriptions onto WebSocket connections. Each
// connection watches one feed and receives full snapshots as JSON frames.
type Handler struct {
	hub *notifier.Hub
}

func NewHandler(hub *notifier.Hub) *Handler {
	return &Handler{hub: hub}
}

// Serve handles GET /ws. Query parameters select the feed:
//
//	feed=sessions&user=U     active sessions for user U
//	feed=messages&session=S  transcript of session S
//	feed=topic&topic=T       topic document T
//
// The current state arrives immediately, then a fresh snapshot per change.
// Closing the socket cancels the subscription; clients resume by reconnecting.
func (h *Handler) Serve(c *gin.Context) {
	ctx := c.Request.Context()

	var sub *notifier.Subscription
	var err error
	switch c.Query("feed") {
	case "sessions":
		user := c.Query("user")
		if user == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing user parameter"})
			return
		}
		sub, err = h.hub.SubscribeSessions(ctx, user)
	case "messages":
		session := c.Query("session")
		if session == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing session parameter"})
			return
		}
		sub, err = h.hub.SubscribeMessages(ctx, session)
	case "topic":
		topic := c.Query("topic")
		if topic == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing topic parameter"})
			return
		}
		sub, err = h.hub.SubscribeTopic(ctx, topic)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown feed"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Cancel()
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer sub.Cancel()

	// Reads are only used to notice the peer going away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Cancel()
				return
			}
		}
	}()

	for snap := range sub.C {
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}
}
