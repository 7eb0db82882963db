package realtime

import (
	"sync"
	"time"
)

// NotificationType drives how a notification is displayed.
type NotificationType string

const (
	TypeInfo    NotificationType = "info"
	TypeSuccess NotificationType = "success"
	TypeAlert   NotificationType = "alert"
)

// Notification is an ephemeral, displayable record of an inbound event.
type Notification struct {
	ID        uint64           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// Queue holds the most recent notifications, newest first, capped at a
// fixed capacity. IDs come from a strictly monotonic counter so rapid-fire
// events never collide.
type Queue struct {
	mu       sync.Mutex
	capacity int
	nextID   uint64
	items    []Notification
}

func NewQueue(capacity int) *Queue {
	return &Queue{capacity: capacity}
}

// Push inserts a notification at the front and evicts the oldest entries
// beyond capacity.
func (q *Queue) Push(ntype NotificationType, title, message string) Notification {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	n := Notification{
		ID:        q.nextID,
		Type:      ntype,
		Title:     title,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
	q.items = append([]Notification{n}, q.items...)
	if len(q.items) > q.capacity {
		q.items = q.items[:q.capacity]
	}
	return n
}

// Dismiss removes one notification by ID. Unknown IDs are ignored.
func (q *Queue) Dismiss(id uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, n := range q.items {
		if n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return
		}
	}
}

// Clear empties the queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}

// List returns a snapshot, newest first.
func (q *Queue) List() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notification, len(q.items))
	copy(out, q.items)
	return out
}

// Len reports the number of active notifications.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
