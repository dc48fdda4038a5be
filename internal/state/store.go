// Package state keeps the change log: a SQLite table of events saying
// that the data behind a hierarchy changed. Pollers read it to decide
// which member caches to flush.
package state

import "time"

// EventKind classifies change-log events.
type EventKind string

const (
	// EventInvalidate says the data behind a hierarchy changed.
	EventInvalidate EventKind = "invalidate"
	// EventRemove says one member of a hierarchy is gone.
	EventRemove EventKind = "remove"
)

// ChangeEvent is one row of the change log. An empty Hierarchy applies
// to every hierarchy.
type ChangeEvent struct {
	Seq       int64
	ID        string
	Kind      EventKind
	Hierarchy string
	// Member is the unique name of the removed member for EventRemove.
	Member    string
	Reason    string
	CreatedAt time.Time
}
