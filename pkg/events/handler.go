package events

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Handler exposes the settlement feed over WebSocket
type Handler struct {
	hub    *Hub
	logger interface {
		Printf(string, ...interface{})
	}
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{
		hub:    hub,
		logger: log.New(log.Writer(), "[events] ", log.LstdFlags),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin properly
		return true
	},
}

// HandleFeed validates subscriber_id from query and upgrades to WebSocket.
// The connection receives every settlement event until it closes.
func (h *Handler) HandleFeed(c *gin.Context) {
	uid := c.Query("subscriber_id")
	if _, err := uuid.Parse(uid); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscriber_id, must be UUID"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade error: %v", err)
		return
	}

	sub := h.hub.Subscribe(uid, conn)
	h.logger.Printf("subscriber %s connected", uid)

	go h.readLoop(sub)
	go h.writeLoop(sub)
}

// readLoop drains the connection; the feed is one-way, so inbound frames
// only matter for detecting disconnects and answering pings.
func (h *Handler) readLoop(sub *subscriber) {
	defer func() {
		h.hub.Unsubscribe(sub.UUID)
		sub.Conn.Close()
		h.logger.Printf("subscriber %s disconnected", sub.UUID)
	}()

	sub.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	sub.Conn.SetPongHandler(func(string) error {
		sub.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-sub.Done:
			return
		default:
		}

		if _, _, err := sub.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Printf("websocket error for subscriber %s: %v", sub.UUID, err)
			}
			return
		}
	}
}

func (h *Handler) writeLoop(sub *subscriber) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		sub.Conn.Close()
	}()

	for {
		select {
		case <-sub.Done:
			return

		case e := <-sub.Send:
			sub.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := sub.Conn.WriteJSON(e); err != nil {
				h.logger.Printf("write error for subscriber %s: %v", sub.UUID, err)
				return
			}

		case <-ticker.C:
			sub.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := sub.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
