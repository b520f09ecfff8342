package chatsync

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rdkhokhar/parley/pkg/model"
)

// LiveChannel is the client end of the websocket fan-out: it emits the
// join/leave control events and pumps room events into a Controller.
type LiveChannel struct {
	conn *websocket.Conn

	mu sync.Mutex // serializes writes; gorilla allows one writer at a time
}

// DialLive connects and authenticates the live channel.
func DialLive(ctx context.Context, wsURL, token string) (*LiveChannel, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, err
	}
	return &LiveChannel{conn: conn}, nil
}

func (l *LiveChannel) send(event string, payload any) error {
	env, err := model.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conn.WriteJSON(env)
}

// Join subscribes this connection to a room's events.
func (l *LiveChannel) Join(roomKey string) error {
	return l.send(model.EventJoinChannel, roomKey)
}

// Leave unsubscribes from a room.
func (l *LiveChannel) Leave(roomKey string) error {
	return l.send(model.EventLeaveChannel, roomKey)
}

// Announce publishes an already-persisted message to its room through the
// socket write path. The sender receives its own echo and merges it
// idempotently.
func (l *LiveChannel) Announce(msg model.Message) error {
	return l.send(model.EventNewMessage, msg)
}

// AnnounceUpdate publishes an edit or tombstone through the socket write
// path.
func (l *LiveChannel) AnnounceUpdate(msg model.Message) error {
	return l.send(model.EventUpdateMessage, msg)
}

// Listen marks the controller live, pumps inbound envelopes into it until
// the connection drops, then flips it back to polling mode. Runs until
// error; callers typically reconnect around it.
func (l *LiveChannel) Listen(ctrl *Controller) error {
	ctrl.SetLive(true)
	defer ctrl.SetLive(false)

	for {
		_, frame, err := l.conn.ReadMessage()
		if err != nil {
			return err
		}
		var env model.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			continue
		}
		ctrl.HandleEvent(env.Event, env.Data)
	}
}

// Close sends a normal-closure frame and tears the connection down.
func (l *LiveChannel) Close() error {
	l.mu.Lock()
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	l.mu.Unlock()
	return l.conn.Close()
}
