// Package eventlist implements EventList<T>: an ordered, binary-searchable
// event container with batched mutation and a lock-free snapshot for
// concurrent UI reads (spec.md §4.2, §5, §9 "Dual-view event list").
package eventlist

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/cbegin/clipengine/internal/cursor"
)

// Timed is the minimal contract an EventList element must satisfy: it must
// be able to report its own position on the timeline.
type Timed interface {
	EventCursor() cursor.Cursor
}

// EventList is an ordered sequence of T, kept sorted under a cursor.Operator.
// The engine thread mutates the live slice directly (or within a batch); UI
// threads read a separately-published immutable snapshot via Snapshot(),
// never touching the engine-side slice or taking a lock.
type EventList[T Timed] struct {
	mu         sync.Mutex
	op         cursor.Operator
	events     []T
	snapshot   atomic.Pointer[[]T]
	batchDepth int
}

// New constructs an empty EventList ordered under op.
func New[T Timed](op cursor.Operator) *EventList[T] {
	l := &EventList[T]{op: op}
	empty := make([]T, 0)
	l.snapshot.Store(&empty)
	return l
}

// SetOperator swaps the comparison Operator (called when a clip's TimeBase
// changes). The caller is responsible for re-sorting via Resort if the new
// basis would reorder existing events.
func (l *EventList[T]) SetOperator(op cursor.Operator) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.op = op
}

// Operator returns the active comparison Operator.
func (l *EventList[T]) Operator() cursor.Operator {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.op
}

// Begin opens a batch. Mutations made between Begin and Commit do not publish
// a snapshot until Commit is called. Begin/Commit pairs may not nest logically
// (nested Begin calls simply increase a depth counter so callers composing
// smaller batched helpers into a larger one still only publish once).
func (l *EventList[T]) Begin() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.batchDepth++
}

// Commit publishes a new immutable snapshot of the current engine-side slice.
// It is the sole concurrency boundary: UI readers clone the snapshot pointer
// and never lock.
func (l *EventList[T]) Commit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.batchDepth > 0 {
		l.batchDepth--
	}
	if l.batchDepth == 0 {
		l.publishLocked()
	}
}

func (l *EventList[T]) publishLocked() {
	cp := make([]T, len(l.events))
	copy(cp, l.events)
	l.snapshot.Store(&cp)
}

// publishIfOutsideBatch publishes immediately unless a batch is open.
func (l *EventList[T]) publishIfOutsideBatch() {
	if l.batchDepth == 0 {
		l.publishLocked()
	}
}

// Snapshot returns the current immutable published view. Safe for concurrent
// use from any goroutine without locking.
func (l *EventList[T]) Snapshot() []T {
	p := l.snapshot.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Size returns the current engine-side length.
func (l *EventList[T]) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// At returns the event at index i (engine-side view).
func (l *EventList[T]) At(i int) T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[i]
}

// All returns a copy of the full engine-side slice, for callers that need a
// stable snapshot of the working set (e.g. set_events_cursors' originals map).
func (l *EventList[T]) All() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]T, len(l.events))
	copy(out, l.events)
	return out
}

// Insert places e at index i in the engine-side slice, shifting subsequent
// elements right. Publishes immediately unless inside a batch.
func (l *EventList[T]) Insert(i int, e T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.insertLocked(i, e)
	l.publishIfOutsideBatch()
}

func (l *EventList[T]) insertLocked(i int, e T) {
	if i < 0 {
		i = 0
	}
	if i > len(l.events) {
		i = len(l.events)
	}
	l.events = append(l.events, e)
	copy(l.events[i+1:], l.events[i:])
	l.events[i] = e
}

// Add appends e to the end of the engine-side slice (spec.md §4.2: "add(e)
// (append)"), trusting the caller to maintain sort order — used by loaders
// that already iterate events in cursor order. Callers inserting out of
// order should use InsertSorted or a ClipLane's insert_event instead.
func (l *EventList[T]) Add(e T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	l.publishIfOutsideBatch()
}

// InsertSorted computes the insert index via binary search and inserts e
// there, preserving sort order.
func (l *EventList[T]) InsertSorted(e T) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := l.insertIndexLocked(e.EventCursor())
	l.insertLocked(idx, e)
	l.publishIfOutsideBatch()
	return idx
}

// Remove removes the first element matching predicate, returning true if one
// was removed.
func (l *EventList[T]) Remove(match func(T) bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.events {
		if match(e) {
			l.events = append(l.events[:i], l.events[i+1:]...)
			l.publishIfOutsideBatch()
			return true
		}
	}
	return false
}

// RemoveRange removes all events with cursor in [lo, hi] (inclusive),
// returning the removed events in order.
func (l *EventList[T]) RemoveRange(lo, hi cursor.Cursor) []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	var removed []T
	kept := l.events[:0:0]
	for _, e := range l.events {
		c := e.EventCursor()
		if l.op.IsInRange(c, lo, hi) {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	l.events = kept
	l.publishIfOutsideBatch()
	return removed
}

// RemoveAll removes every element for which match returns true.
func (l *EventList[T]) RemoveAll(match func(T) bool) []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	var removed []T
	kept := l.events[:0:0]
	for _, e := range l.events {
		if match(e) {
			removed = append(removed, e)
		} else {
			kept = append(kept, e)
		}
	}
	l.events = kept
	l.publishIfOutsideBatch()
	return removed
}

// Set replaces the engine-side slice wholesale (used by loaders and by
// set_events_cursors' "restore all, then publish once" contract).
func (l *EventList[T]) Set(list []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append([]T(nil), list...)
	l.publishIfOutsideBatch()
}

// insertIndexLocked is the exclusive binary search: the lowest index whose
// event's cursor compares strictly greater than c.
func (l *EventList[T]) insertIndexLocked(c cursor.Cursor) int {
	return sort.Search(len(l.events), func(i int) bool {
		return l.op.IsAfter(l.events[i].EventCursor(), c)
	})
}

// playIndexLocked is the inclusive binary search: the lowest index whose
// event's cursor compares greater-than-or-equal to c.
func (l *EventList[T]) playIndexLocked(c cursor.Cursor) int {
	return sort.Search(len(l.events), func(i int) bool {
		return l.op.IsAfterOrEqual(l.events[i].EventCursor(), c)
	})
}

// CursorIndex is the general binary search described in spec.md §4.2: the
// lowest index whose event's cursor compares strictly greater than (or ≥
// when inclusive) c. Returned index is in [0, size].
func (l *EventList[T]) CursorIndex(c cursor.Cursor, inclusive bool) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if inclusive {
		return l.playIndexLocked(c)
	}
	return l.insertIndexLocked(c)
}

// InsertIndex is CursorIndex(c, false): where a new event at c should be
// inserted to keep the list sorted (ties land after existing equal-cursor
// events, preserving insertion order for same-cursor events).
func (l *EventList[T]) InsertIndex(c cursor.Cursor) int {
	return l.CursorIndex(c, false)
}

// PlayIndex is CursorIndex(c, true): the index of the first event at or after
// c.
func (l *EventList[T]) PlayIndex(c cursor.Cursor) int {
	return l.CursorIndex(c, true)
}

// Iterate calls fn for each event in engine-side order; fn returning false
// stops iteration early. This is the "linear iteration" form of §4.2.
func (l *EventList[T]) Iterate(fn func(int, T) bool) {
	l.mu.Lock()
	events := append([]T(nil), l.events...)
	l.mu.Unlock()
	for i, e := range events {
		if !fn(i, e) {
			return
		}
	}
}

// IterateFrom iterates starting at PlayIndex(from)+offset, the contract
// behind ClipLane.event_iterator (spec.md §4.3).
func (l *EventList[T]) IterateFrom(from cursor.Cursor, offset int, fn func(int, T) bool) {
	l.mu.Lock()
	start := l.playIndexLocked(from) + offset
	events := append([]T(nil), l.events...)
	l.mu.Unlock()
	if start < 0 {
		start = 0
	}
	for i := start; i < len(events); i++ {
		if !fn(i, events[i]) {
			return
		}
	}
}

// IsSorted reports whether the engine-side slice is currently sorted under
// the active Operator; used by tests asserting the universal sortedness
// invariant (spec.md §8).
func (l *EventList[T]) IsSorted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 1; i < len(l.events); i++ {
		if l.op.IsBefore(l.events[i].EventCursor(), l.events[i-1].EventCursor()) {
			return false
		}
	}
	return true
}
