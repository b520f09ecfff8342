package chatsync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rdkhokhar/parley/pkg/model"
)

// State of the controller's fetch machine.
type State int

const (
	StatePending State = iota
	StateReady
	StateFetchingMore
	StateError
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFetchingMore:
		return "fetching-more"
	case StateError:
		return "error"
	}
	return "unknown"
}

// ChangeReason tells observers why the cached view changed, which drives
// the scroll-anchoring decision.
type ChangeReason int

const (
	// ChangeInitial is the first successful load.
	ChangeInitial ChangeReason = iota
	// ChangeHistory is older history loaded upward.
	ChangeHistory
	// ChangeLive is a live-pushed create or update.
	ChangeLive
	// ChangeRefresh is a poll refetch or invalidation follow-up.
	ChangeRefresh
)

// Config wires a Controller to one room's history endpoint and fan-out
// event names.
type Config struct {
	// APIURL is the history collection endpoint, e.g. http://host/messages.
	APIURL string
	// ParamKey and ParamValue scope the fetch, e.g. channelId=42.
	ParamKey   string
	ParamValue string
	// RoomKey is the fan-out room this controller listens for.
	RoomKey string
	// Token authenticates fetches.
	Token string

	HTTPClient   *http.Client
	PollInterval time.Duration
	// OnChange, if set, is invoked after every visible data change.
	OnChange func(ChangeReason)
}

// Controller owns the paginated view of exactly one room. It is never
// shared across rooms; leaving the room closes it and any in-flight fetch
// result is discarded.
type Controller struct {
	cfg         Config
	client      *http.Client
	cache       *Cache
	createEvent string
	updateEvent string

	mu    sync.Mutex
	state State
	err   error
	live  bool
	gen   int
}

func New(cfg Config) *Controller {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &Controller{
		cfg:         cfg,
		client:      cfg.HTTPClient,
		cache:       NewCache(),
		createEvent: model.CreateEventName(cfg.RoomKey),
		updateEvent: model.UpdateEventName(cfg.RoomKey),
		state:       StatePending,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Live reports whether a live channel is currently confirmed. While false
// the poll loop refetches instead of waiting for pushes.
func (c *Controller) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

// SetLive flips the push/pull mode. The live transport calls this on
// connect and disconnect.
func (c *Controller) SetLive(live bool) {
	c.mu.Lock()
	c.live = live
	c.mu.Unlock()
}

// Messages returns the cached view, newest first.
func (c *Controller) Messages() []model.Message {
	return c.cache.Messages()
}

// Count reports the number of cached messages.
func (c *Controller) Count() int {
	return c.cache.Count()
}

// HasMore reports whether older history remains to be loaded.
func (c *Controller) HasMore() bool {
	_, ok := c.cache.NextCursor()
	return ok
}

// Close discards the controller: in-flight fetches resolving afterwards
// are ignored. Called when the user leaves the room.
func (c *Controller) Close() {
	c.mu.Lock()
	c.gen++
	c.mu.Unlock()
}

func (c *Controller) generation() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// statusError marks a fetch that failed with an HTTP status. A 4xx is
// unrecoverable (the request itself is wrong); 5xx and network failures
// are left to the fallback poll, which keeps retrying until the server
// answers again.
type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("fetch failed with status %d", e.status)
}

func (c *Controller) fetchPage(ctx context.Context, cursor int64) (model.Page, error) {
	u, err := url.Parse(c.cfg.APIURL)
	if err != nil {
		return model.Page{}, err
	}
	q := u.Query()
	q.Set(c.cfg.ParamKey, c.cfg.ParamValue)
	if cursor > 0 {
		q.Set("cursor", strconv.FormatInt(cursor, 10))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.Page{}, err
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// The room has no history resource yet; an empty last page, not
		// an error.
		return model.Page{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return model.Page{}, &statusError{status: resp.StatusCode}
	}

	var page model.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return model.Page{}, err
	}
	return page, nil
}

// LoadInitial issues the cursor-less fetch for the newest page. On success
// the controller is ready; a terminal failure parks it in the error state,
// a transient one leaves recovery to the fallback poll.
func (c *Controller) LoadInitial(ctx context.Context) error {
	gen := c.generation()
	page, err := c.fetchPage(ctx, 0)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		c.state = StateError
		c.err = err
		c.mu.Unlock()
		return err
	}
	c.state = StateReady
	c.err = nil
	c.mu.Unlock()

	c.cache.SetInitial(page)
	c.notify(ChangeInitial)
	return nil
}

// LoadMore fetches the page older than everything loaded, keyed by the
// oldest page's continuation cursor, and appends it below. Failures are
// silent: the user can scroll again.
func (c *Controller) LoadMore(ctx context.Context) error {
	cursor, ok := c.cache.NextCursor()
	if !ok {
		return nil
	}

	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return nil
	}
	c.state = StateFetchingMore
	gen := c.gen
	c.mu.Unlock()

	page, err := c.fetchPage(ctx, cursor)

	c.mu.Lock()
	if c.gen != gen {
		// Room was left while the fetch was in flight; drop the result.
		c.mu.Unlock()
		return nil
	}
	c.state = StateReady
	c.mu.Unlock()

	if err != nil {
		return err
	}
	c.cache.AppendOlder(page)
	c.notify(ChangeHistory)
	return nil
}

// HandleEvent merges a fan-out event for this controller's room into the
// cache and schedules the invalidation follow-up. Events for other rooms
// and undecodable payloads are ignored.
func (c *Controller) HandleEvent(event string, data []byte) {
	if event != c.createEvent && event != c.updateEvent {
		return
	}

	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("chatsync: bad %s payload: %v", event, err)
		return
	}

	var merged bool
	if event == c.createEvent {
		merged = c.cache.MergeCreate(msg)
	} else {
		merged = c.cache.MergeUpdate(msg)
	}
	if !merged {
		// No pages loaded (or id unknown): the next fetch includes the
		// message, nothing to patch now.
		return
	}

	c.notify(ChangeLive)
	go c.invalidate()
}

// invalidate re-fetches the newest page and reconciles it over the cache,
// squeezing out optimistic drift.
func (c *Controller) invalidate() {
	gen := c.generation()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	page, err := c.fetchPage(ctx, 0)
	if err != nil {
		log.Printf("chatsync: invalidation refetch: %v", err)
		return
	}
	if c.generation() != gen {
		return
	}
	c.cache.ReconcileNewest(page)
	c.notify(ChangeRefresh)
}

// Run drives the fallback poll until ctx is cancelled: while no live
// channel is confirmed, the newest page is re-fetched every interval and
// reconciled in. A live connection pauses polling entirely.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.Live() {
				continue
			}
			c.pollOnce(ctx)
		}
	}
}

func (c *Controller) pollOnce(ctx context.Context) {
	gen := c.generation()
	page, err := c.fetchPage(ctx, 0)
	if err != nil {
		// Background poll failures retry silently on the next tick.
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	recovered := c.state != StateReady && c.state != StateFetchingMore
	if recovered {
		c.state = StateReady
		c.err = nil
	}
	c.mu.Unlock()

	c.cache.ReconcileNewest(page)
	if recovered {
		c.notify(ChangeInitial)
	} else {
		c.notify(ChangeRefresh)
	}
}

func (c *Controller) notify(reason ChangeReason) {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange(reason)
	}
}
