package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rdkhokhar/parley/pkg/auth"
	"github.com/rdkhokhar/parley/pkg/broker"
	"github.com/rdkhokhar/parley/pkg/model"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Conn is one live bidirectional session between a client and the broker.
// It satisfies room.Member: fan-out payloads land on the buffered send
// channel and the write pump drains them in FIFO order, which preserves
// per-room publish order for this connection.
type Conn struct {
	id       string
	hub      *broker.Broker
	presence *presence
	conn     *websocket.Conn
	send     chan []byte
	member   model.Member

	closeOnce sync.Once
}

// Enqueue hands a fan-out frame to the connection without blocking. A
// full buffer or torn-down connection just reports false; the broker
// skips this member and moves on.
func (c *Conn) Enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// teardown runs the closed-state cleanup exactly once: membership in
// every joined room is released (with its presence mirror), then the
// transport goes down. The send channel is never closed; the write pump
// exits on the dead socket and the channel is simply dropped.
func (c *Conn) teardown() {
	c.closeOnce.Do(func() {
		for _, roomKey := range c.hub.Disconnect(c) {
			c.presence.left(roomKey, c.member.ID)
		}
		_ = c.conn.Close()
		log.Printf("Connection %s closed for user %s", c.id, c.member.ID)
	})
}

// readPump consumes inbound control events until the peer disconnects or
// misses the heartbeat window.
func (c *Conn) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Read error on %s: %v", c.id, err)
			}
			break
		}

		var env model.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			log.Printf("Bad frame on %s: %v", c.id, err)
			continue
		}
		c.handleEvent(env)
	}
}

func (c *Conn) handleEvent(env model.Envelope) {
	switch env.Event {
	case model.EventJoinChannel:
		var roomKey string
		if err := json.Unmarshal(env.Data, &roomKey); err != nil || roomKey == "" {
			return
		}
		c.hub.Join(c, roomKey)
		c.presence.joined(roomKey, c.member.ID)

	case model.EventLeaveChannel:
		var roomKey string
		if err := json.Unmarshal(env.Data, &roomKey); err != nil || roomKey == "" {
			return
		}
		c.hub.Leave(c, roomKey)
		c.presence.left(roomKey, c.member.ID)

	case model.EventNewMessage:
		var msg model.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil || msg.RoomKey == "" {
			return
		}
		c.hub.Publish(msg.RoomKey, model.CreateEventName(msg.RoomKey), msg)

	case model.EventUpdateMessage:
		var msg model.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil || msg.RoomKey == "" {
			return
		}
		c.hub.Publish(msg.RoomKey, model.UpdateEventName(msg.RoomKey), msg)
	}
}

// writePump drains the send queue and keeps the heartbeat going.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.teardown()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveWs authenticates and upgrades a websocket request, then hands the
// connection its pumps. Rooms are joined per-event afterwards, not here.
func serveWs(hub *broker.Broker, pres *presence, w http.ResponseWriter, r *http.Request) {
	tokenString := auth.TokenFromRequest(r)
	if tokenString == "" {
		log.Println("Unauthorized: no token provided")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	claims, err := auth.ValidateToken(tokenString)
	if err != nil {
		log.Printf("Unauthorized: invalid token: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}

	c := &Conn{
		id:       uuid.NewString(),
		hub:      hub,
		presence: pres,
		conn:     conn,
		send:     make(chan []byte, 256),
		member:   claims.Member(),
	}
	log.Printf("Connection %s open for user %s", c.id, c.member.ID)

	go c.writePump()
	go c.readPump()
}
