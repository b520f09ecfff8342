package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/rdkhokhar/parley/pkg/auth"
	"github.com/rdkhokhar/parley/pkg/broker"
	"github.com/rdkhokhar/parley/pkg/db"
	"github.com/rdkhokhar/parley/pkg/model"
)

// messageAPI serves one message namespace (channel messages or direct
// messages): paginated history, create, edit and tombstone-delete. After
// a write is durably accepted it bridges the hydrated row into the broker
// as a fire-and-forget side effect.
type messageAPI struct {
	store    *db.MessageStore
	hub      *broker.Broker
	paramKey string
	roomFor  func(string) string
}

func newChannelAPI(store *db.MessageStore, hub *broker.Broker) *messageAPI {
	return &messageAPI{store: store, hub: hub, paramKey: "channelId", roomFor: model.ChannelRoom}
}

func newConversationAPI(store *db.MessageStore, hub *broker.Broker) *messageAPI {
	return &messageAPI{store: store, hub: hub, paramKey: "conversationId", roomFor: model.ConversationRoom}
}

// bridge publishes an accepted write to the room. It runs after the store
// confirmed the row and never affects the HTTP response: a lost event is
// recovered by the client's fallback poll, the row is already safe.
func (a *messageAPI) bridge(event string, m model.Message) {
	a.hub.Publish(m.RoomKey, event, m)
}

func (a *messageAPI) roomKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get(a.paramKey)
	if id == "" {
		http.Error(w, a.paramKey+" missing", http.StatusBadRequest)
		return "", false
	}
	return a.roomFor(id), true
}

// collection handles GET (history page) and POST (create) on the
// collection path.
func (a *messageAPI) collection(w http.ResponseWriter, r *http.Request) {
	roomKey, ok := a.roomKey(w, r)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.list(w, r, roomKey)
	case http.MethodPost:
		a.create(w, r, roomKey)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *messageAPI) list(w http.ResponseWriter, r *http.Request, roomKey string) {
	var cursor int64
	if raw := r.URL.Query().Get("cursor"); raw != "" {
		var err error
		cursor, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid cursor", http.StatusBadRequest)
			return
		}
	}

	page, err := a.store.Page(roomKey, cursor)
	if err != nil {
		log.Printf("Failed to fetch history for %s: %v", roomKey, err)
		http.Error(w, "Failed to retrieve history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(page)
}

type createRequest struct {
	Content string `json:"content"`
	FileURL string `json:"fileUrl"`
}

func (a *messageAPI) create(w http.ResponseWriter, r *http.Request, roomKey string) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" && req.FileURL == "" {
		http.Error(w, "Content missing", http.StatusBadRequest)
		return
	}

	msg, err := a.store.Create(roomKey, req.Content, req.FileURL, claims.Member())
	if err != nil {
		log.Printf("Failed to save message in %s: %v", roomKey, err)
		http.Error(w, "Failed to save message", http.StatusInternalServerError)
		return
	}

	a.bridge(model.CreateEventName(roomKey), msg)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

// item handles PATCH (edit) and DELETE (tombstone) on /<collection>/{id}.
func (a *messageAPI) item(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) != 3 || parts[2] == "" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		http.Error(w, "Invalid message id", http.StatusBadRequest)
		return
	}

	roomKey, ok := a.roomKey(w, r)
	if !ok {
		return
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	// Only the author may modify a message; this check lives here so the
	// broker never has to enforce anything.
	existing, err := a.store.Get(roomKey, id)
	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Failed to load message", http.StatusInternalServerError)
		return
	}
	if existing.Member.ID != claims.UserID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var msg model.Message
	switch r.Method {
	case http.MethodPatch:
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			http.Error(w, "Content missing", http.StatusBadRequest)
			return
		}
		msg, err = a.store.Edit(roomKey, id, req.Content)
	case http.MethodDelete:
		msg, err = a.store.Tombstone(roomKey, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if errors.Is(err, db.ErrNotFound) {
		http.Error(w, "Message not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("Failed to update message %d in %s: %v", id, roomKey, err)
		http.Error(w, "Failed to update message", http.StatusInternalServerError)
		return
	}

	// Deletions ride the update event as a tombstone, not a distinct
	// event type.
	a.bridge(model.UpdateEventName(roomKey), msg)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msg)
}
