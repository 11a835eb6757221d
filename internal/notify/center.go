// Package notify keeps the short-lived, dismissible messages shown to the
// learner after an action succeeds or fails.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
)

const DefaultTTL = 3 * time.Second

type Notification struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"type"`
	Text      string    `json:"text"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Notifier is the sink the state machine reports to.
type Notifier interface {
	Notify(kind Kind, text string)
}

type Center struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	items []Notification
}

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{ttl: ttl, now: time.Now}
}

func (c *Center) Notify(kind Kind, text string) {
	c.Push(kind, text)
}

func (c *Center) Push(kind Kind, text string) Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := Notification{ID: uuid.NewString(), Kind: kind, Text: text, ExpiresAt: c.now().Add(c.ttl)}
	c.pruneLocked()
	c.items = append(c.items, n)
	return n
}

// Active returns unexpired notifications, oldest first.
func (c *Center) Active() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked()
	return append([]Notification(nil), c.items...)
}

func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Center) pruneLocked() {
	now := c.now()
	kept := c.items[:0]
	for _, n := range c.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	c.items = kept
}

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Kind, string) {}
