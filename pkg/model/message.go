package model

import (
	"strconv"
	"time"
)

// BatchSize is the fixed page size for message history. A page with fewer
// items is by definition the last page.
const BatchSize = 15

// TombstoneContent replaces the content of a deleted message. The row keeps
// its slot in history; clients render the placeholder.
const TombstoneContent = "This message has been deleted."

// Member is the resolved author of a message: the identity-provider user
// joined with their display profile, denormalized so a message event can be
// rendered without another lookup.
type Member struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// Message is a fully hydrated chat message: the row shape returned by the
// HTTP API and the payload fanned out over the live channel.
type Message struct {
	ID        int64     `json:"id"`
	RoomKey   string    `json:"roomKey"`
	Content   string    `json:"content"`
	FileURL   string    `json:"fileUrl,omitempty"`
	Member    Member    `json:"member"`
	Deleted   bool      `json:"deleted,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Page is one fetch of message history, newest first. NextCursor is the id
// of the oldest item when a full batch was returned, nil when history is
// exhausted.
type Page struct {
	Items      []Message `json:"items"`
	NextCursor *string   `json:"nextCursor"`
}

// Cursor parses a page's continuation cursor. ok is false on the last page.
func (p Page) Cursor() (int64, bool) {
	if p.NextCursor == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(*p.NextCursor, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ChannelRoom returns the room key for a server channel.
func ChannelRoom(channelID string) string {
	return "channel:" + channelID
}

// ConversationRoom returns the room key for a direct-message conversation.
func ConversationRoom(conversationID string) string {
	return "conversation:" + conversationID
}

// CreateEventName is the fan-out event for newly created messages in a room.
// Server and clients must agree on these names byte for byte, so they are
// built here and nowhere else.
func CreateEventName(roomKey string) string {
	return "chat:" + roomKey + ":messages"
}

// UpdateEventName is the fan-out event for edited or tombstoned messages.
func UpdateEventName(roomKey string) string {
	return CreateEventName(roomKey) + ":update"
}
