// Package eventlog implements the hub's bounded, append-only event log.
//
// Events get strictly increasing ids and become visible to Since in exactly
// the order Add was called, regardless of which goroutine produced them.
// Once capacity is exceeded the oldest entries are trimmed; a slow consumer
// whose cursor falls off the ring gets the "most recent" fallback instead of
// an error.
package eventlog

import (
	"fmt"
	"sync"
	"time"

	"swarmhub.gg/internal/protocol"
)

const (
	DefaultMaxEvents = 1000

	defaultSinceLimit  = 100
	defaultRecentLimit = 50
)

type Log struct {
	mu     sync.Mutex
	events []protocol.Event
	max    int
	nextID uint64

	// Closed and replaced on every Add; push sessions wait on it
	// instead of sleep-polling.
	notify chan struct{}
}

func New(maxEvents int) *Log {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return &Log{
		max:    maxEvents,
		notify: make(chan struct{}),
	}
}

// Add assigns the next id, appends, and trims to capacity. It never fails;
// losing trimmed events is the accepted cost of O(1) memory.
func (l *Log) Add(kind protocol.Kind, source string, payload map[string]any) protocol.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	ev := protocol.Event{
		ID:        fmt.Sprintf("evt_%d", l.nextID),
		Kind:      kind,
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Source:    source,
		Payload:   payload,
	}
	l.events = append(l.events, ev)
	if len(l.events) > l.max {
		l.events = append([]protocol.Event(nil), l.events[len(l.events)-l.max:]...)
	}

	close(l.notify)
	l.notify = make(chan struct{})
	return ev
}

// Since returns up to limit events strictly after the cursor, in creation
// order. An empty cursor, or one that was trimmed away or never existed,
// falls back to the most recent limit events; callers must tolerate a gap
// after a long disconnect.
func (l *Log) Since(cursor string, limit int) []protocol.Event {
	if limit <= 0 {
		limit = defaultSinceLimit
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if cursor == "" {
		return l.tail(limit)
	}
	// Cursors are usually near the tail; scan backwards.
	for i := len(l.events) - 1; i >= 0; i-- {
		if l.events[i].ID == cursor {
			end := i + 1 + limit
			if end > len(l.events) {
				end = len(l.events)
			}
			return append([]protocol.Event(nil), l.events[i+1:end]...)
		}
	}
	return l.tail(limit)
}

// Recent returns the newest limit events, oldest first.
func (l *Log) Recent(limit int) []protocol.Event {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tail(limit)
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// Notify returns a channel that is closed by the next Add. Grab a fresh
// channel after every wakeup.
func (l *Log) Notify() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.notify
}

// tail copies the newest limit events. Caller holds l.mu.
func (l *Log) tail(limit int) []protocol.Event {
	start := len(l.events) - limit
	if start < 0 {
		start = 0
	}
	return append([]protocol.Event(nil), l.events[start:]...)
}
