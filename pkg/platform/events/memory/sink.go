package memory

import (
	"context"
	"sync"

	"desci/pkg/platform/events"
)

// Sink keeps delivered events in memory in delivery order.
type Sink struct {
	mu     sync.RWMutex
	events []events.Event
}

func NewSink() *Sink {
	return &Sink{}
}

func (s *Sink) Publish(_ context.Context, evts []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evts...)
	return nil
}

// Events returns a copy of everything delivered so far.
func (s *Sink) Events() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]events.Event{}, s.events...)
}

// ByTag filters delivered events by their first topic.
func (s *Sink) ByTag(tag string) []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Event
	for _, e := range s.events {
		if e.Tag() == tag {
			out = append(out, e)
		}
	}
	return out
}

func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
