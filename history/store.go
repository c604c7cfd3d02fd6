// Package history keeps a bounded, queryable record of lifecycle events.
// A Store is an Observer: register it on the engine and query it later,
// for example from the status endpoint.
package history

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/GoCodeAlone/modlife"
)

// ErrEventNotFound is returned by Get for unknown or evicted ids.
var ErrEventNotFound = errors.New("event not found")

// DefaultCapacity is used when NewStore is given a non-positive capacity.
const DefaultCapacity = 512

// Criteria filters a query. Zero values match everything.
type Criteria struct {
	Types []string
	// Module matches module state events of that module only.
	Module string
	Since  time.Time
	// Limit keeps the most recent matches.
	Limit int
}

// Store implements modlife.Observer. Once capacity is reached the oldest
// event is evicted.
type Store struct {
	id       string
	capacity int

	mu     sync.RWMutex
	events []cloudevents.Event
	seq    uint64
	order  map[string]uint64
}

// NewStore creates a store holding at most capacity events.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		id:       "modlife.history",
		capacity: capacity,
		order:    make(map[string]uint64),
	}
}

// ObserverID implements modlife.Observer.
func (s *Store) ObserverID() string { return s.id }

// OnEvent implements modlife.Observer.
func (s *Store) OnEvent(_ context.Context, event cloudevents.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == s.capacity {
		delete(s.order, s.events[0].ID())
		s.events = slices.Delete(s.events, 0, 1)
	}
	s.seq++
	s.order[event.ID()] = s.seq
	s.events = append(s.events, event)
	return nil
}

// Len returns the number of retained events.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Get returns the event with the given id.
func (s *Store) Get(id string) (cloudevents.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.ID() == id {
			return e, nil
		}
	}
	return cloudevents.Event{}, ErrEventNotFound
}

// Query returns the matching events ordered by event time. Delivery to
// observers is asynchronous, so arrival order is not used.
func (s *Store) Query(c Criteria) []cloudevents.Event {
	s.mu.RLock()
	out := make([]cloudevents.Event, 0, len(s.events))
	for _, e := range s.events {
		if c.matches(e) {
			out = append(out, e)
		}
	}
	order := make(map[string]uint64, len(out))
	for _, e := range out {
		order[e.ID()] = s.order[e.ID()]
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b cloudevents.Event) int {
		if c := a.Time().Compare(b.Time()); c != 0 {
			return c
		}
		return compareUint(order[a.ID()], order[b.ID()])
	})
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[len(out)-c.Limit:]
	}
	return out
}

func (c Criteria) matches(e cloudevents.Event) bool {
	if len(c.Types) > 0 && !slices.Contains(c.Types, e.Type()) {
		return false
	}
	if !c.Since.IsZero() && e.Time().Before(c.Since) {
		return false
	}
	if c.Module != "" {
		if e.Type() != modlife.EventTypeModuleStateChanged {
			return false
		}
		var data modlife.ModuleStateChangedData
		if err := e.DataAs(&data); err != nil || data.Module != c.Module {
			return false
		}
	}
	return true
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
