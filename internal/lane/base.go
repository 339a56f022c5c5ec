package lane

import (
	"sync"
	"sync/atomic"

	"github.com/cbegin/clipengine/internal/cursor"
	"github.com/cbegin/clipengine/internal/eventlist"
)

// Operation tags a set_events_cursors edit (spec.md §4.3).
type Operation int

const (
	OpNone Operation = iota
	OpStretchLeft
	OpStretchRight
	OpMoveLeft
	OpMoveRight
	OpShortenLeft
	OpShortenRight
	OpClearLeft
	OpClearRight
	OpReverseLeftToRight
	OpReverseRightToLeft
)

// ClipLane is the abstract contract every lane variant satisfies (spec.md
// §4.3). Concrete lane types (ParameterLane variants, NoteLane, PatternLane)
// compose a *Base for shared plumbing and implement the playback/overdub/
// loop/jump hooks themselves rather than relying on virtual dispatch.
type ClipLane interface {
	Events() *eventlist.EventList[Event]
	RecordEvent(e Event)
	CommitRecordQueue(notify bool)
	InsertEvent(e Event)
	MoveEvent(e Event, newCursor cursor.Cursor) (Event, bool)
	RemoveEvent(match func(Event) bool) bool
	RemoveRangeEvents(lo, hi cursor.Cursor) []Event
	PlayCursor(from, to cursor.Cursor, inclusive bool)
	OverdubCursor(from, to cursor.Cursor, inclusive bool)
	LoopCursor(from, to cursor.Cursor)
	JumpCursor(from, to cursor.Cursor)
	InitializeCursorPlayback(at cursor.Cursor)
	SetEventsCursors(edit SetEventsCursorsArgs) bool
	OverdubActive() bool
	SetOverdubActive(active bool)
	SetOnChange(fn func())
	UIHeight() float64
	SetUIHeight(h float64)
}

// Base implements the shared plumbing of ClipLane: the event list, the
// record queue, the overdub-active flag, and onChange notification. Concrete
// lane types embed *Base and add their own playback/overdub/loop/jump
// semantics on top.
type Base struct {
	events        *eventlist.EventList[Event]
	recordMu      sync.Mutex
	recordQueue   []Event
	overdubActive atomic.Bool
	uiHeight      float64
	onChangeMu    sync.Mutex
	onChange      func()
	seqCounter    int64
}

// NewBase constructs lane plumbing ordered under op.
func NewBase(op cursor.Operator) *Base {
	return &Base{events: eventlist.New[Event](op)}
}

func (b *Base) Events() *eventlist.EventList[Event] { return b.events }

func (b *Base) nextSeq() int64 {
	b.seqCounter++
	return b.seqCounter
}

// bang invokes the onChange callback, if any. Named to match the source's
// "bangs onChange" vocabulary used throughout spec.md §4.3.
func (b *Base) bang() {
	b.onChangeMu.Lock()
	fn := b.onChange
	b.onChangeMu.Unlock()
	if fn != nil {
		fn()
	}
}

func (b *Base) SetOnChange(fn func()) {
	b.onChangeMu.Lock()
	b.onChange = fn
	b.onChangeMu.Unlock()
}

func (b *Base) OverdubActive() bool        { return b.overdubActive.Load() }
func (b *Base) SetOverdubActive(v bool)    { b.overdubActive.Store(v) }
func (b *Base) UIHeight() float64          { return b.uiHeight }
func (b *Base) SetUIHeight(h float64)      { b.uiHeight = h }

// recordEventQueued appends e to the record queue; it is NOT yet visible in
// Events() (spec.md §4.3 "record_event").
func (b *Base) recordEventQueued(e Event) {
	b.recordMu.Lock()
	defer b.recordMu.Unlock()
	b.recordQueue = append(b.recordQueue, e)
}

// drainRecordQueue drains the record queue into events using insert-index
// placement, tagging each with an insertion sequence for tie-breaking. It
// returns the drained events in arrival order.
func (b *Base) drainRecordQueue(notify bool) []Event {
	b.recordMu.Lock()
	queued := b.recordQueue
	b.recordQueue = nil
	b.recordMu.Unlock()
	if len(queued) == 0 {
		return nil
	}
	b.events.Begin()
	for _, e := range queued {
		e = e.WithSeq(b.nextSeq())
		idx := b.events.InsertIndex(e.Cursor)
		b.events.Insert(idx, e)
	}
	b.events.Commit()
	if notify {
		b.bang()
	}
	return queued
}

// insertEventSorted performs a direct sorted insert and bangs onChange.
func (b *Base) insertEventSorted(e Event) {
	e = e.WithSeq(b.nextSeq())
	b.events.InsertSorted(e)
	b.bang()
}

// moveEvent clamps newCursor to [prev.cursor, next.cursor] (the neighbors of
// e's CURRENT position) so order is preserved, per spec.md §4.3.
func (b *Base) moveEvent(e Event, newCursor cursor.Cursor, matchID func(Event) bool) (Event, bool) {
	all := b.events.All()
	op := b.events.Operator()
	idx := -1
	for i, ev := range all {
		if matchID(ev) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return e, false
	}
	lo := cursor.Zero
	hi := newCursor
	if idx > 0 {
		lo = all[idx-1].Cursor
	}
	if idx+1 < len(all) {
		hi = all[idx+1].Cursor
	} else {
		hi = op.Max(newCursor, lo)
	}
	clamped := op.Bound(newCursor, lo, hi)
	if clamped.Equal(all[idx].Cursor) {
		return all[idx], false
	}
	moved := all[idx].WithCursor(clamped)
	all[idx] = moved
	b.events.Set(all)
	b.bang()
	return moved, true
}

func (b *Base) removeEvent(match func(Event) bool) bool {
	ok := b.events.Remove(match)
	if ok {
		b.bang()
	}
	return ok
}

func (b *Base) removeRange(lo, hi cursor.Cursor) []Event {
	removed := b.events.RemoveRange(lo, hi)
	if len(removed) > 0 {
		b.bang()
	}
	return removed
}
