// Package notify holds the ephemeral, bounded notification queue. Entries are
// kept newest first, capped at MaxVisible, and removed TTL after they were
// pushed.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/raysh454/cyra/internal/logging"
)

const (
	DefaultMaxVisible = 3
	DefaultTTL        = 5000 * time.Millisecond
)

type Config struct {
	MaxVisible int
	TTL        time.Duration
}

func DefaultConfig() Config {
	return Config{MaxVisible: DefaultMaxVisible, TTL: DefaultTTL}
}

// Entry is one visible notification.
type Entry struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type EventType string

const (
	EventPushed    EventType = "pushed"
	EventExpired   EventType = "expired"
	EventEvicted   EventType = "evicted"
	EventDismissed EventType = "dismissed"
)

// Event describes a change to the visible entries.
type Event struct {
	Type  EventType `json:"type"`
	Entry Entry     `json:"entry"`
}

// Center owns the notification queue. All mutation goes through its methods.
type Center struct {
	cfg    Config
	clock  clockwork.Clock
	logger logging.Logger

	mu      sync.Mutex
	entries []Entry
	expiry  *expiryQueue
	timer   clockwork.Timer
	timerAt time.Time
	closed  bool
	subs    map[int]chan Event
	nextSub int
}

// NewCenter creates an empty center. A nil clock means the real clock.
func NewCenter(cfg Config, clock clockwork.Clock, logger logging.Logger) *Center {
	if cfg.MaxVisible < 1 {
		cfg.MaxVisible = DefaultMaxVisible
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Center{
		cfg:    cfg,
		clock:  clock,
		logger: logger.With(logging.Field{Key: "component", Value: "notify"}),
		expiry: newExpiryQueue(),
		subs:   make(map[int]chan Event),
	}
}

// Push prepends a notification and returns its id. Entries beyond MaxVisible
// are evicted in the same critical section. Identical messages are not
// merged. Push on a closed center returns "".
func (c *Center) Push(message string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ""
	}

	now := c.clock.Now()
	c.pruneLocked(now)

	e := Entry{
		ID:        uuid.New().String(),
		Message:   message,
		CreatedAt: now,
		ExpiresAt: now.Add(c.cfg.TTL),
	}
	c.entries = append([]Entry{e}, c.entries...)
	c.expiry.schedule(e.ID, e.ExpiresAt)
	c.emitLocked(Event{Type: EventPushed, Entry: e})

	for len(c.entries) > c.cfg.MaxVisible {
		last := c.entries[len(c.entries)-1]
		c.entries = c.entries[:len(c.entries)-1]
		c.expiry.cancel(last.ID)
		c.emitLocked(Event{Type: EventEvicted, Entry: last})
	}

	c.rearmLocked(now)
	c.logger.Debug("notification pushed",
		logging.Field{Key: "id", Value: e.ID},
		logging.Field{Key: "visible", Value: len(c.entries)})
	return e.ID
}

// Dismiss removes the entry with id and cancels its expiry. Unknown or
// already-removed ids are ignored. It reports whether an entry was removed.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	e := c.entries[i]
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	c.expiry.cancel(id)
	c.emitLocked(Event{Type: EventDismissed, Entry: e})
	c.rearmLocked(c.clock.Now())
	return true
}

// List returns the visible entries, newest first. Expired entries are pruned
// before the snapshot is taken, so an entry is never listed at or after its
// ExpiresAt even if the expiry timer has not run yet.
func (c *Center) List() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock.Now()
	if c.pruneLocked(now) {
		c.rearmLocked(now)
	}
	return append([]Entry(nil), c.entries...)
}

// Len returns the number of visible entries.
func (c *Center) Len() int {
	return len(c.List())
}

func (c *Center) indexLocked(id string) int {
	for i, e := range c.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// pruneLocked drops every entry whose expiry is due and reports whether any
// was removed.
func (c *Center) pruneLocked(now time.Time) bool {
	due := c.expiry.popDue(now)
	for _, id := range due {
		i := c.indexLocked(id)
		if i < 0 {
			continue
		}
		e := c.entries[i]
		c.entries = append(c.entries[:i], c.entries[i+1:]...)
		c.emitLocked(Event{Type: EventExpired, Entry: e})
	}
	return len(due) > 0
}

// rearmLocked points the single timer at the earliest pending expiry.
func (c *Center) rearmLocked(now time.Time) {
	next, ok := c.expiry.next()
	if !ok || c.closed {
		if c.timer != nil {
			c.timer.Stop()
			c.timer = nil
		}
		return
	}
	if c.timer != nil && c.timerAt.Equal(next) {
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timerAt = next
	c.timer = c.clock.AfterFunc(next.Sub(now), c.expireDue)
}

func (c *Center) expireDue() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	now := c.clock.Now()
	c.pruneLocked(now)
	c.timerAt = time.Time{}
	c.rearmLocked(now)
}

// Subscribe returns a channel of queue events and a function that ends the
// subscription. Slow subscribers miss events rather than block producers.
func (c *Center) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if s, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(s)
			}
		})
	}
}

func (c *Center) emitLocked(ev Event) {
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close stops the expiry timer and ends every subscription. Entries are
// discarded.
func (c *Center) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.entries = nil
	c.expiry = newExpiryQueue()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}
