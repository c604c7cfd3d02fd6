// Package testutil holds helpers shared by lifecycle tests.
package testutil

import (
	"fmt"
	"slices"
	"sync"
)

// EventLog is a goroutine safe, append only record of what happened in
// which order. Tests assert on it to check finalization ordering.
type EventLog struct {
	mu      sync.Mutex
	entries []string
}

// Add appends an entry.
func (l *EventLog) Add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Addf appends a formatted entry.
func (l *EventLog) Addf(format string, args ...any) {
	l.Add(fmt.Sprintf(format, args...))
}

// Entries returns a copy of the entries recorded so far.
func (l *EventLog) Entries() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Index returns the position of entry, or -1.
func (l *EventLog) Index(entry string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Index(l.entries, entry)
}

// Before reports whether a was recorded and precedes b (or b is absent).
func (l *EventLog) Before(a, b string) bool {
	ia, ib := l.Index(a), l.Index(b)
	if ia < 0 {
		return false
	}
	return ib < 0 || ia < ib
}
