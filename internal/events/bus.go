// Package events keeps a sequenced history of persisted-setting changes.
package events

import (
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// EventType classifies a change.
type EventType string

const (
	EventTypeSet     EventType = "set"
	EventTypeRemoved EventType = "removed"
)

// Event is a sequenced payload consumed by UI subscribers.
type Event struct {
	Seq       int64           `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Type      EventType       `json:"type"`
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value,omitempty"`
}

// Change builds the event for a store notification. A nil value means removal.
func Change(key string, value json.RawMessage) Event {
	if value == nil {
		return Event{Type: EventTypeRemoved, Key: key}
	}
	return Event{Type: EventTypeSet, Key: key, Value: value}
}

// Bus stores recent events and provides incremental reads.
type Bus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event

	subMu sync.Mutex
	subID int
	subs  map[int]func(Event)
}

// NewBus creates a bounded in-memory event buffer.
func NewBus(maxEvents int) *Bus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &Bus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		subs:      make(map[int]func(Event)),
	}
}

// Publish appends one event, assigns sequence and timestamp and forwards it
// to subscribers.
func (b *Bus) Publish(event Event) Event {
	b.mu.Lock()
	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}
	b.mu.Unlock()

	b.subMu.Lock()
	ids := make([]int, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, b.subs[id])
	}
	b.subMu.Unlock()
	for _, fn := range fns {
		fn(event)
	}

	return event
}

// Subscribe registers fn for every published event. Subscribers run in
// registration order.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	id := b.subID
	b.subID++
	b.subs[id] = fn
	return func() {
		b.subMu.Lock()
		delete(b.subs, id)
		b.subMu.Unlock()
	}
}

// Since returns events with sequence strictly greater than seq.
func (b *Bus) Since(seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.events) == 0 {
		return nil
	}

	out := make([]Event, 0, len(b.events))
	for _, event := range b.events {
		if event.Seq > seq {
			out = append(out, event)
		}
	}
	return out
}
