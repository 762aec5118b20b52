// Package notify keeps the short-lived, user-visible messages produced by
// payments and push events.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a notification stays visible unless dismissed.
const DefaultTTL = 5 * time.Second

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Notification is one toast. IDs are UUIDv7, so they sort by creation time.
type Notification struct {
	ID        uuid.UUID
	Title     string
	Message   string
	Kind      Kind
	CreatedAt time.Time
}

// Observer is told about every notification as it is pushed.
type Observer func(Notification)

// Queue holds notifications until their TTL elapses or they are dismissed.
type Queue struct {
	ttl      time.Duration
	observer Observer

	mu     sync.Mutex
	items  []Notification
	timers map[uuid.UUID]*time.Timer
	closed bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(q *Queue) { q.ttl = d }
}

// WithObserver registers fn to receive each pushed notification.
func WithObserver(fn Observer) Option {
	return func(q *Queue) { q.observer = fn }
}

// NewQueue creates an empty queue.
func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		ttl:    DefaultTTL,
		timers: make(map[uuid.UUID]*time.Timer),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push adds a notification and schedules its removal.
func (q *Queue) Push(title, message string, kind Kind) Notification {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	n := Notification{
		ID:        id,
		Title:     title,
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return n
	}
	q.items = append(q.items, n)
	q.timers[id] = time.AfterFunc(q.ttl, func() { q.Dismiss(id) })
	observer := q.observer
	q.mu.Unlock()

	if observer != nil {
		observer(n)
	}
	return n
}

// Success is shorthand for Push with the Success kind.
func (q *Queue) Success(title, message string) Notification {
	return q.Push(title, message, Success)
}

// Error is shorthand for Push with the Error kind.
func (q *Queue) Error(title, message string) Notification {
	return q.Push(title, message, Error)
}

// Dismiss removes id early. It reports whether the notification was present.
func (q *Queue) Dismiss(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// List returns the visible notifications, oldest first.
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Close stops every pending timer and drops all notifications.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.items = nil
	q.closed = true
}
