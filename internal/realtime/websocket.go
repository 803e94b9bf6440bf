package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"bikeshop-auctions/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The realtime channel serves browser clients on other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// session is one websocket connection. rooms and closed are guarded by
// the hub's mutex.
type session struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
	rooms  map[string]bool
	closed bool
}

// clientMessage is what clients send: joinAuctionRoom / leaveAuctionRoom.
type clientMessage struct {
	Type      string `json:"type"`
	AuctionID string `json:"auctionId"`
}

// ServeWS upgrades the request and runs the session until disconnect.
// The caller's identity, when present, is taken from the userId query
// parameter so private notices can reach them.
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			utils.Warn("realtime: upgrade failed", map[string]any{"error": err.Error()})
			return
		}

		s := &session{
			hub:    hub,
			conn:   conn,
			userID: c.Query("userId"),
			send:   make(chan []byte, 32),
			rooms:  make(map[string]bool),
		}
		hub.register(s)
		utils.Info("realtime: client connected", map[string]any{"user_id": s.userID})

		go s.writePump()
		s.readPump()
	}
}

func (s *session) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
		utils.Info("realtime: client disconnected", map[string]any{"user_id": s.userID})
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.AuctionID == "" {
			continue
		}
		switch msg.Type {
		case "joinAuctionRoom":
			s.hub.joinRoom(s, msg.AuctionID)
		case "leaveAuctionRoom":
			s.hub.leaveRoom(s, msg.AuctionID)
		}
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
