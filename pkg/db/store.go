package db

import (
	"errors"
	"strconv"
	"time"

	"github.com/gocql/gocql"

	"github.com/rdkhokhar/parley/pkg/model"
	"github.com/rdkhokhar/parley/pkg/snowflake"
)

// ErrNotFound is returned when a message id does not exist in the room.
var ErrNotFound = errors.New("message not found")

// MessageStore persists hydrated messages and serves cursor-paginated
// history. It is the system's source of truth; the broker only carries
// volatile notifications derived from rows written here.
type MessageStore struct {
	session *Session
	ids     *snowflake.Node
}

func NewMessageStore(session *Session, ids *snowflake.Node) *MessageStore {
	return &MessageStore{session: session, ids: ids}
}

const messageColumns = `room_key, id, member_id, member_name, member_avatar, content, file_url, deleted, created_at, updated_at`

func scanMessage(scan func(...interface{}) error) (model.Message, error) {
	var m model.Message
	err := scan(&m.RoomKey, &m.ID, &m.Member.ID, &m.Member.Name, &m.Member.AvatarURL,
		&m.Content, &m.FileURL, &m.Deleted, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// Create inserts a new message and returns the hydrated row.
func (s *MessageStore) Create(roomKey, content, fileURL string, member model.Member) (model.Message, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	m := model.Message{
		ID:        s.ids.Generate(),
		RoomKey:   roomKey,
		Content:   content,
		FileURL:   fileURL,
		Member:    member,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.session.Query(`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.RoomKey, m.ID, m.Member.ID, m.Member.Name, m.Member.AvatarURL,
		m.Content, m.FileURL, m.Deleted, m.CreatedAt, m.UpdatedAt).Exec()
	if err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// Get fetches one message by room and id.
func (s *MessageStore) Get(roomKey string, id int64) (model.Message, error) {
	q := s.session.Query(`SELECT `+messageColumns+` FROM messages WHERE room_key = ? AND id = ?`, roomKey, id)
	m, err := scanMessage(q.Scan)
	if err == gocql.ErrNotFound {
		return model.Message{}, ErrNotFound
	}
	if err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// Edit replaces a message's content and returns the updated row.
func (s *MessageStore) Edit(roomKey string, id int64, content string) (model.Message, error) {
	m, err := s.Get(roomKey, id)
	if err != nil {
		return model.Message{}, err
	}
	if m.Deleted {
		return model.Message{}, ErrNotFound
	}

	m.Content = content
	m.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	err = s.session.Query(`UPDATE messages SET content = ?, updated_at = ? WHERE room_key = ? AND id = ?`,
		m.Content, m.UpdatedAt, roomKey, id).Exec()
	if err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// Tombstone soft-deletes a message: the row keeps its slot in history with
// placeholder content, no attachment, and the deleted flag set.
func (s *MessageStore) Tombstone(roomKey string, id int64) (model.Message, error) {
	m, err := s.Get(roomKey, id)
	if err != nil {
		return model.Message{}, err
	}

	m.Content = model.TombstoneContent
	m.FileURL = ""
	m.Deleted = true
	m.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	err = s.session.Query(`UPDATE messages SET content = ?, file_url = ?, deleted = ?, updated_at = ? WHERE room_key = ? AND id = ?`,
		m.Content, m.FileURL, m.Deleted, m.UpdatedAt, roomKey, id).Exec()
	if err != nil {
		return model.Message{}, err
	}
	return m, nil
}

// Page returns up to BatchSize messages newest first. cursor = 0 requests
// the newest page; otherwise only messages strictly older than the cursor
// id are returned (the cursor row itself is excluded).
func (s *MessageStore) Page(roomKey string, cursor int64) (model.Page, error) {
	var iter *gocql.Iter
	if cursor > 0 {
		iter = s.session.Query(`SELECT `+messageColumns+` FROM messages WHERE room_key = ? AND id < ? LIMIT ?`,
			roomKey, cursor, model.BatchSize).Iter()
	} else {
		iter = s.session.Query(`SELECT `+messageColumns+` FROM messages WHERE room_key = ? LIMIT ?`,
			roomKey, model.BatchSize).Iter()
	}

	var items []model.Message
	for {
		var m model.Message
		if !iter.Scan(&m.RoomKey, &m.ID, &m.Member.ID, &m.Member.Name, &m.Member.AvatarURL,
			&m.Content, &m.FileURL, &m.Deleted, &m.CreatedAt, &m.UpdatedAt) {
			break
		}
		items = append(items, m)
	}
	if err := iter.Close(); err != nil {
		return model.Page{}, err
	}
	return buildPage(items), nil
}

// buildPage derives the continuation cursor: a full batch points at its
// oldest item, a short batch is the last page.
func buildPage(items []model.Message) model.Page {
	page := model.Page{Items: items}
	if len(items) == model.BatchSize {
		cursor := strconv.FormatInt(items[len(items)-1].ID, 10)
		page.NextCursor = &cursor
	}
	return page
}
