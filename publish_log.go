package lob

import "sync"

// PublishLog is an interface for publishing book events (opens, matches,
// cancels, amends, rejects).
//
// IMPORTANT: Implementations must either:
//  1. Process events synchronously before returning, OR
//  2. Clone the BookEvent data before returning
//
// The caller recycles BookEvent objects to a sync.Pool after Publish
// returns, so any asynchronous processing must work with cloned data.
type PublishLog interface {
	Publish(...*BookEvent)
}

// MemoryPublishLog stores events in memory, useful for testing.
type MemoryPublishLog struct {
	mu     sync.RWMutex
	events []*BookEvent
}

// NewMemoryPublishLog creates a new MemoryPublishLog.
func NewMemoryPublishLog() *MemoryPublishLog {
	return &MemoryPublishLog{
		events: make([]*BookEvent, 0),
	}
}

// Publish clones and appends events to the in-memory slice.
func (m *MemoryPublishLog) Publish(events ...*BookEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range events {
		cpy := new(BookEvent)
		*cpy = *ev
		m.events = append(m.events, cpy)
	}
}

// Count returns the number of events stored.
func (m *MemoryPublishLog) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// Get returns the event at the specified index.
func (m *MemoryPublishLog) Get(index int) *BookEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.events[index]
}

// Events returns a copy of all events stored.
func (m *MemoryPublishLog) Events() []*BookEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]*BookEvent, len(m.events))
	copy(events, m.events)
	return events
}

// DiscardPublishLog discards all events, useful for benchmarking.
type DiscardPublishLog struct {
}

// NewDiscardPublishLog creates a new DiscardPublishLog.
func NewDiscardPublishLog() *DiscardPublishLog {
	return &DiscardPublishLog{}
}

// Publish does nothing.
func (p *DiscardPublishLog) Publish(events ...*BookEvent) {
}
