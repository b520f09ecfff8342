// Package chatsync keeps a client's view of one room in step with the
// server: cursor-paginated history on demand, live events merged in as
// they arrive, and a polling fallback while no live channel is confirmed.
package chatsync

import (
	"sync"

	"github.com/rdkhokhar/parley/pkg/model"
)

// Cache is the per-room page list. It is copy-on-write: every mutation
// builds fresh page and item slices and swaps them under the mutex, so a
// reader's snapshot is never mutated underneath it and a live merge racing
// a load-more cannot lose the other's base. Pages are ordered newest
// first; within a page items are ordered newest first.
type Cache struct {
	mu    sync.Mutex
	pages []model.Page
}

func NewCache() *Cache {
	return &Cache{}
}

// Pages returns a snapshot of the page list.
func (c *Cache) Pages() []model.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	pages := make([]model.Page, len(c.pages))
	copy(pages, c.pages)
	return pages
}

// Messages flattens the cache newest first.
func (c *Cache) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Message
	for _, p := range c.pages {
		out = append(out, p.Items...)
	}
	return out
}

// Count reports the total number of cached items.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.pages {
		n += len(p.Items)
	}
	return n
}

// HasPages reports whether any fetch has populated the cache yet.
func (c *Cache) HasPages() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages) > 0
}

// PageCount reports how many pages are loaded.
func (c *Cache) PageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pages)
}

// NextCursor is the continuation cursor of the oldest loaded page; ok is
// false when history is exhausted or nothing is loaded.
func (c *Cache) NextCursor() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pages) == 0 {
		return 0, false
	}
	return c.pages[len(c.pages)-1].Cursor()
}

// SetInitial replaces the whole cache with the newest page.
func (c *Cache) SetInitial(p model.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = []model.Page{p}
}

// Reset drops everything; the next fetch starts over.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = nil
}

// AppendOlder adds a page of older history below the loaded pages.
func (c *Cache) AppendOlder(p model.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pages := make([]model.Page, 0, len(c.pages)+1)
	pages = append(pages, c.pages...)
	pages = append(pages, p)
	c.pages = pages
}

// newer keeps whichever snapshot of the same message carries the later
// update timestamp; ties go to the incoming copy.
func newer(existing, incoming model.Message) model.Message {
	if existing.UpdatedAt.After(incoming.UpdatedAt) {
		return existing
	}
	return incoming
}

// MergeCreate prepends a live-pushed message to the newest page. Returns
// false when no pages are loaded yet: the event is dropped because the
// forthcoming initial fetch will include the message anyway. A message
// already present (the broker echoes a write back to its author) is
// merged in place instead of duplicated.
func (c *Cache) MergeCreate(msg model.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pages) == 0 {
		return false
	}

	newest := c.pages[0]
	items := make([]model.Message, 0, len(newest.Items)+1)
	found := false
	for _, it := range newest.Items {
		if it.ID == msg.ID {
			it = newer(it, msg)
			found = true
		}
		items = append(items, it)
	}
	if !found {
		items = append([]model.Message{msg}, items...)
	}

	c.replacePage(0, model.Page{Items: items, NextCursor: newest.NextCursor})
	return true
}

// MergeUpdate replaces the matching item wherever it lives, leaving page
// membership and ordering untouched. Returns false when the id is not
// cached (stale event for history not loaded; dropped).
func (c *Cache) MergeUpdate(msg model.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for pi, p := range c.pages {
		for ii, it := range p.Items {
			if it.ID != msg.ID {
				continue
			}
			items := make([]model.Message, len(p.Items))
			copy(items, p.Items)
			items[ii] = newer(it, msg)
			c.replacePage(pi, model.Page{Items: items, NextCursor: p.NextCursor})
			return true
		}
	}
	return false
}

// ReconcileNewest folds a re-fetched newest page over the cached one: the
// server's item set wins, except that a cached copy with a later update
// timestamp is kept. This is the invalidation follow-up that squeezes any
// drift (duplicates, missed edits) out of the optimistic merges.
func (c *Cache) ReconcileNewest(server model.Page) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pages) == 0 {
		c.pages = []model.Page{server}
		return
	}

	old := c.pages[0]
	cached := make(map[int64]model.Message, len(old.Items))
	for _, it := range old.Items {
		cached[it.ID] = it
	}

	items := make([]model.Message, 0, len(server.Items))
	for _, it := range server.Items {
		if prev, ok := cached[it.ID]; ok {
			it = newer(prev, it)
		}
		items = append(items, it)
	}

	// With deeper pages loaded, keep the old continuation so the chain to
	// already-fetched history stays intact.
	next := server.NextCursor
	if len(c.pages) > 1 {
		next = old.NextCursor
	}
	c.replacePage(0, model.Page{Items: items, NextCursor: next})
}

func (c *Cache) replacePage(i int, p model.Page) {
	pages := make([]model.Page, len(c.pages))
	copy(pages, c.pages)
	pages[i] = p
	c.pages = pages
}
