// Package broker is the process-wide fan-out hub: it owns the room
// registry and re-emits published events to every connection joined to
// the event's room. It is injected into whatever needs to publish or
// subscribe rather than reached through a global, so a distributed
// backend could replace it without touching call sites.
package broker

import (
	"encoding/json"
	"log"

	"github.com/rdkhokhar/parley/pkg/model"
	"github.com/rdkhokhar/parley/pkg/room"
)

type Broker struct {
	registry *room.Registry
}

func New() *Broker {
	return &Broker{registry: room.NewRegistry()}
}

// Join subscribes m to a room's events.
func (b *Broker) Join(m room.Member, roomKey string) {
	b.registry.Join(m, roomKey)
}

// Leave unsubscribes m from one room.
func (b *Broker) Leave(m room.Member, roomKey string) {
	b.registry.Leave(m, roomKey)
}

// Disconnect unsubscribes m from every room and returns the rooms left.
func (b *Broker) Disconnect(m room.Member) []string {
	return b.registry.LeaveAll(m)
}

// Members exposes the current member snapshot of a room.
func (b *Broker) Members(roomKey string) []room.Member {
	return b.registry.Members(roomKey)
}

// RoomCount reports how many rooms currently have members.
func (b *Broker) RoomCount() int {
	return b.registry.RoomCount()
}

// Publish delivers payload, framed under the given event name, to every
// member of the room, the publisher included (its cache merge treats the
// echo as an idempotent duplicate). Delivery is best-effort: a member
// whose transport refuses the payload is skipped without affecting the
// others. Publishing to a room with no members is a no-op.
//
// Each member receives a room's events in publish order because Enqueue
// feeds a per-connection FIFO queue; no ordering holds across rooms.
func (b *Broker) Publish(roomKey, event string, payload any) {
	members := b.registry.Members(roomKey)
	if len(members) == 0 {
		return
	}

	env, err := model.NewEnvelope(event, payload)
	if err != nil {
		log.Printf("broker: marshal %s payload: %v", event, err)
		return
	}
	frame, err := json.Marshal(env)
	if err != nil {
		log.Printf("broker: marshal %s envelope: %v", event, err)
		return
	}

	for _, m := range members {
		if !m.Enqueue(frame) {
			log.Printf("broker: dropped %s for a closed or slow member", event)
		}
	}
}
