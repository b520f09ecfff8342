package chatsync

import (
	"strconv"
	"testing"
	"time"

	"github.com/rdkhokhar/parley/pkg/model"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func msg(id int64) model.Message {
	return model.Message{
		ID:        id,
		RoomKey:   "channel:1",
		Content:   "m" + strconv.FormatInt(id, 10),
		CreatedAt: baseTime,
		UpdatedAt: baseTime,
	}
}

// page builds a newest-first page from ids, with a cursor pointing at the
// last id when full.
func page(ids ...int64) model.Page {
	items := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		items = append(items, msg(id))
	}
	p := model.Page{Items: items}
	if len(items) == model.BatchSize {
		cursor := strconv.FormatInt(items[len(items)-1].ID, 10)
		p.NextCursor = &cursor
	}
	return p
}

func ids(msgs []model.Message) []int64 {
	out := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func equalIDs(a []int64, b ...int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMergeCreateDroppedWhenEmpty(t *testing.T) {
	c := NewCache()
	if c.MergeCreate(msg(1)) {
		t.Fatal("create merged into an empty cache")
	}
	if c.HasPages() || c.Count() != 0 {
		t.Fatalf("cache not empty after dropped event: %d items", c.Count())
	}

	// The forthcoming initial load carries the message.
	c.SetInitial(page(1))
	if got := ids(c.Messages()); !equalIDs(got, 1) {
		t.Fatalf("messages after initial load = %v", got)
	}
}

func TestMergeCreatePrependsToNewestPage(t *testing.T) {
	c := NewCache()
	c.SetInitial(page(10, 9, 8))

	if !c.MergeCreate(msg(11)) {
		t.Fatal("create not merged")
	}
	if got := ids(c.Messages()); !equalIDs(got, 11, 10, 9, 8) {
		t.Fatalf("messages = %v", got)
	}
}

func TestMergeCreateDuplicateIsIdempotent(t *testing.T) {
	c := NewCache()
	c.SetInitial(page(10, 9))

	// Redundant echo of a message already applied optimistically.
	c.MergeCreate(msg(10))
	c.MergeCreate(msg(10))

	if got := ids(c.Messages()); !equalIDs(got, 10, 9) {
		t.Fatalf("messages after duplicate deliveries = %v", got)
	}

	// And the invalidation follow-up keeps it single too.
	c.ReconcileNewest(page(10, 9))
	if got := ids(c.Messages()); !equalIDs(got, 10, 9) {
		t.Fatalf("messages after reconcile = %v", got)
	}
}

func TestMergeUpdateTouchesSingleItemInDeepPage(t *testing.T) {
	c := NewCache()
	// Four loaded pages; target lives in the third.
	c.SetInitial(page(100, 99))
	c.AppendOlder(page(98, 97))
	c.AppendOlder(page(42, 41))
	c.AppendOlder(page(40, 39))

	edited := msg(42)
	edited.Content = "edited"
	edited.UpdatedAt = baseTime.Add(time.Minute)
	if !c.MergeUpdate(edited) {
		t.Fatal("update not merged")
	}

	if got := c.PageCount(); got != 4 {
		t.Fatalf("page count = %d, want 4", got)
	}
	if got := ids(c.Messages()); !equalIDs(got, 100, 99, 98, 97, 42, 41, 40, 39) {
		t.Fatalf("ordering or membership changed: %v", got)
	}
	for _, m := range c.Messages() {
		if m.ID == 42 && m.Content != "edited" {
			t.Fatalf("item 42 content = %q", m.Content)
		}
		if m.ID != 42 && m.Content != "m"+strconv.FormatInt(m.ID, 10) {
			t.Fatalf("item %d was touched: %q", m.ID, m.Content)
		}
	}
}

func TestMergeUpdateUnknownIDDropped(t *testing.T) {
	c := NewCache()
	c.SetInitial(page(10, 9))
	if c.MergeUpdate(msg(7)) {
		t.Fatal("update for uncached id reported merged")
	}
	if got := ids(c.Messages()); !equalIDs(got, 10, 9) {
		t.Fatalf("messages = %v", got)
	}
}

func TestMergeUpdateLastWriteWins(t *testing.T) {
	c := NewCache()
	newerCopy := msg(10)
	newerCopy.Content = "newer"
	newerCopy.UpdatedAt = baseTime.Add(time.Hour)
	c.SetInitial(model.Page{Items: []model.Message{newerCopy, msg(9)}})

	// A stale snapshot of the same id (older updatedAt) must not clobber.
	stale := msg(10)
	stale.Content = "stale"
	c.MergeUpdate(stale)

	for _, m := range c.Messages() {
		if m.ID == 10 && m.Content != "newer" {
			t.Fatalf("stale snapshot overwrote newer copy: %q", m.Content)
		}
	}
}

func TestAppendOlderGrowsPageList(t *testing.T) {
	c := NewCache()
	first := make([]int64, 0, model.BatchSize)
	for id := int64(100); id > 100-model.BatchSize; id-- {
		first = append(first, id)
	}
	c.SetInitial(page(first...))

	cursor, ok := c.NextCursor()
	if !ok || cursor != 86 {
		t.Fatalf("cursor after full first page = %d, %v; want 86", cursor, ok)
	}

	c.AppendOlder(page(85, 84, 83))
	if got := c.PageCount(); got != 2 {
		t.Fatalf("page count = %d, want 2", got)
	}
	if _, ok := c.NextCursor(); ok {
		t.Fatal("short second page must end pagination")
	}

	msgs := c.Messages()
	if msgs[len(msgs)-1].ID != 83 {
		t.Fatalf("oldest message = %d, want 83", msgs[len(msgs)-1].ID)
	}
}

func TestReconcileNewestPopulatesEmptyCache(t *testing.T) {
	c := NewCache()
	c.ReconcileNewest(page(5, 4))
	if got := ids(c.Messages()); !equalIDs(got, 5, 4) {
		t.Fatalf("messages = %v", got)
	}
}

func TestReconcileNewestKeepsNewerCachedCopy(t *testing.T) {
	c := NewCache()
	edited := msg(10)
	edited.Content = "edited locally"
	edited.UpdatedAt = baseTime.Add(time.Hour)
	c.SetInitial(model.Page{Items: []model.Message{edited, msg(9)}})

	// Poll raced the edit: the server snapshot is older.
	c.ReconcileNewest(page(10, 9))

	for _, m := range c.Messages() {
		if m.ID == 10 && m.Content != "edited locally" {
			t.Fatalf("reconcile clobbered newer copy: %q", m.Content)
		}
	}
}

func TestReconcileNewestKeepsChainToDeeperPages(t *testing.T) {
	c := NewCache()
	first := make([]int64, 0, model.BatchSize)
	for id := int64(100); id > 100-model.BatchSize; id-- {
		first = append(first, id)
	}
	c.SetInitial(page(first...))
	c.AppendOlder(page(85, 84))

	// Server's newest page now starts at 101 and its cursor moved to 87;
	// the oldest loaded page still ends pagination.
	server := page(first...)
	moved := "87"
	server.NextCursor = &moved
	c.ReconcileNewest(server)

	if got := c.PageCount(); got != 2 {
		t.Fatalf("page count = %d, want 2", got)
	}
	if _, ok := c.NextCursor(); ok {
		t.Fatal("pagination must still be ended by the oldest page")
	}
}

func TestSnapshotsAreImmutable(t *testing.T) {
	c := NewCache()
	c.SetInitial(page(10, 9))
	before := c.Messages()

	c.MergeCreate(msg(11))

	if got := ids(before); !equalIDs(got, 10, 9) {
		t.Fatalf("earlier snapshot mutated: %v", got)
	}
}
