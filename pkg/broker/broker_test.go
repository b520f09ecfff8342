package broker

import (
	"encoding/json"
	"testing"

	"github.com/rdkhokhar/parley/pkg/model"
)

type recordingMember struct {
	frames [][]byte
	refuse bool
}

func (m *recordingMember) Enqueue(payload []byte) bool {
	if m.refuse {
		return false
	}
	m.frames = append(m.frames, payload)
	return true
}

func (m *recordingMember) events(t *testing.T) []model.Envelope {
	t.Helper()
	out := make([]model.Envelope, 0, len(m.frames))
	for _, frame := range m.frames {
		var env model.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		out = append(out, env)
	}
	return out
}

func TestPublishToEmptyRoomIsNoop(t *testing.T) {
	b := New()
	// Must not panic or error; there is simply nobody to deliver to.
	b.Publish("channel:1", model.CreateEventName("channel:1"), model.Message{ID: 1})
}

func TestPublishReachesAllMembersIncludingPublisher(t *testing.T) {
	b := New()
	author := &recordingMember{}
	viewer := &recordingMember{}
	b.Join(author, "channel:1")
	b.Join(viewer, "channel:1")

	msg := model.Message{ID: 42, RoomKey: "channel:1", Content: "hi"}
	b.Publish("channel:1", model.CreateEventName("channel:1"), msg)

	for name, m := range map[string]*recordingMember{"author": author, "viewer": viewer} {
		events := m.events(t)
		if len(events) != 1 {
			t.Fatalf("%s received %d events, want 1", name, len(events))
		}
		if events[0].Event != "chat:channel:1:messages" {
			t.Fatalf("%s event name = %q", name, events[0].Event)
		}
		var got model.Message
		if err := json.Unmarshal(events[0].Data, &got); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if got.ID != 42 || got.Content != "hi" {
			t.Fatalf("%s payload = %+v", name, got)
		}
	}
}

func TestPublishSkipsRefusingMember(t *testing.T) {
	b := New()
	closed := &recordingMember{refuse: true}
	healthy := &recordingMember{}
	b.Join(closed, "channel:1")
	b.Join(healthy, "channel:1")

	b.Publish("channel:1", model.CreateEventName("channel:1"), model.Message{ID: 1})

	if len(closed.frames) != 0 {
		t.Fatalf("refusing member received %d frames", len(closed.frames))
	}
	if len(healthy.frames) != 1 {
		t.Fatalf("healthy member received %d frames, want 1", len(healthy.frames))
	}
}

func TestPublishScopedToRoom(t *testing.T) {
	b := New()
	inRoom := &recordingMember{}
	elsewhere := &recordingMember{}
	b.Join(inRoom, "channel:1")
	b.Join(elsewhere, "channel:2")

	b.Publish("channel:1", model.CreateEventName("channel:1"), model.Message{ID: 1})

	if len(inRoom.frames) != 1 {
		t.Fatalf("room member received %d frames, want 1", len(inRoom.frames))
	}
	if len(elsewhere.frames) != 0 {
		t.Fatalf("member of another room received %d frames, want 0", len(elsewhere.frames))
	}
}

func TestPerRoomOrderPreserved(t *testing.T) {
	b := New()
	m := &recordingMember{}
	b.Join(m, "channel:1")

	for i := int64(1); i <= 5; i++ {
		b.Publish("channel:1", model.CreateEventName("channel:1"), model.Message{ID: i})
	}

	events := m.events(t)
	if len(events) != 5 {
		t.Fatalf("received %d events, want 5", len(events))
	}
	for i, env := range events {
		var got model.Message
		if err := json.Unmarshal(env.Data, &got); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if got.ID != int64(i+1) {
			t.Fatalf("event %d carries id %d, want %d", i, got.ID, i+1)
		}
	}
}

func TestDisconnectLeavesEveryRoom(t *testing.T) {
	b := New()
	m := &recordingMember{}
	b.Join(m, "channel:1")
	b.Join(m, "conversation:7")

	left := b.Disconnect(m)
	if len(left) != 2 {
		t.Fatalf("Disconnect left %v, want two rooms", left)
	}

	b.Publish("channel:1", model.CreateEventName("channel:1"), model.Message{ID: 1})
	b.Publish("conversation:7", model.CreateEventName("conversation:7"), model.Message{ID: 2})
	if len(m.frames) != 0 {
		t.Fatalf("disconnected member received %d frames", len(m.frames))
	}
	if got := b.RoomCount(); got != 0 {
		t.Fatalf("RoomCount after disconnect = %d, want 0", got)
	}
}

func TestEventNameContract(t *testing.T) {
	if got := model.CreateEventName("conversation:abc"); got != "chat:conversation:abc:messages" {
		t.Fatalf("create event name = %q", got)
	}
	if got := model.UpdateEventName("conversation:abc"); got != "chat:conversation:abc:messages:update" {
		t.Fatalf("update event name = %q", got)
	}
}
