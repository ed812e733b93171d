// Package events publishes task lifecycle notifications.
package events

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Event types.
const (
	TaskCreated   = "task.created"
	TaskCompleted = "task.completed"
	TaskReopened  = "task.reopened"
	TaskRemoved   = "task.removed"
)

// Event is one lifecycle notification.
type Event struct {
	ID     string    `json:"id"`
	Type   string    `json:"type"`
	TaskID string    `json:"taskId"`
	At     time.Time `json:"at"`
}

// Publisher delivers events. Implementations must be safe to call after a failed Publish.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

var timeNow = func() time.Time { return time.Now().UTC() }

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

// New returns an event of type typ for taskID with a fresh ULID.
func New(typ, taskID string) Event {
	now := timeNow()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(randReader{}, 0))
	return Event{ID: id.String(), Type: typ, TaskID: taskID, At: now}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
