package lane

import (
	"sort"
	"sync/atomic"

	"github.com/cbegin/clipengine/internal/cursor"
)

// PatternLane drives a PatternSelector with held-until-next pattern
// references (spec.md §3 "PatternSelect"). Unlike ParameterLane's stepped
// variants it has no continuous value to interpolate or hold in place of a
// target; traversal only dispatches go_pattern when the held reference
// actually changes, mirroring NoteLane's avoid-redundant-dispatch posture.
type PatternLane struct {
	*Base
	selector  PatternSelector
	reentrant atomic.Bool
}

// NewPatternLane constructs a PatternLane ordered under op, dispatching
// selections to selector.
func NewPatternLane(op cursor.Operator, selector PatternSelector) *PatternLane {
	return &PatternLane{Base: NewBase(op), selector: selector}
}

// RecordEvent implements spec.md §4.3: pattern-select events are recorded
// verbatim, with no stitching (a pattern reference has no interpolated
// in-between to smooth).
func (pl *PatternLane) RecordEvent(e Event) {
	if e.Kind != KindPatternSelect {
		return
	}
	pl.recordEventQueued(e.WithSeq(pl.nextSeq()))
	pl.SetOverdubActive(true)
}

// CommitRecordQueue drains the record queue (spec.md §4.3).
func (pl *PatternLane) CommitRecordQueue(notify bool) {
	pl.drainRecordQueue(notify)
}

// InsertEvent is the direct sorted insert primitive of spec.md §4.3.
func (pl *PatternLane) InsertEvent(e Event) {
	pl.insertEventSorted(e)
}

func (pl *PatternLane) MoveEvent(e Event, newCursor cursor.Cursor) (Event, bool) {
	return pl.moveEvent(e, newCursor, func(ev Event) bool { return ev.seq == e.seq })
}

func (pl *PatternLane) RemoveEvent(match func(Event) bool) bool {
	return pl.removeEvent(match)
}

func (pl *PatternLane) RemoveRangeEvents(lo, hi cursor.Cursor) []Event {
	return pl.removeRange(lo, hi)
}

// resolveHeldAt resolves the pattern held at cursor c for a point-in-time
// seek (jump/loop/initialize): the last selection at or before c, or the
// first selection if c precedes every event.
func (pl *PatternLane) resolveHeldAt(c cursor.Cursor) (int, bool) {
	events := pl.Events()
	op := events.Operator()
	size := events.Size()
	if size == 0 {
		return 0, false
	}
	idx := events.PlayIndex(c)
	if idx >= size {
		idx = size - 1
	}
	next := events.At(idx)
	if op.IsAfter(c, next.Cursor) {
		return next.Pattern, true
	}
	if idx == 0 || op.IsEqual(c, next.Cursor) {
		return next.Pattern, true
	}
	return events.At(idx - 1).Pattern, true
}

// PlayCursor implements spec.md §4.3's traversal for a discrete reference
// lane, mirroring ParameterLane's stepped (non-interpolated) PlayCursor
// branch: dispatch go_pattern once for the selection held across (from, to],
// skipping the dispatch entirely if nothing new was crossed this window.
func (pl *PatternLane) PlayCursor(from, to cursor.Cursor, inclusive bool) {
	if pl.reentrant.Load() {
		return
	}
	pl.reentrant.Store(true)
	defer pl.reentrant.Store(false)

	events := pl.Events()
	op := events.Operator()
	size := events.Size()
	if size == 0 {
		return
	}
	nextIdx := events.PlayIndex(to)
	if nextIdx >= size {
		nextIdx = size - 1
	}
	next := events.At(nextIdx)
	if op.IsAfter(from, next.Cursor) {
		return
	}
	if nextIdx == 0 {
		pl.dispatch(next.Pattern)
		return
	}
	if op.IsAfter(to, next.Cursor) {
		pl.dispatch(next.Pattern)
		return
	}
	prior := events.At(nextIdx - 1)
	pl.dispatch(prior.Pattern)
}

func (pl *PatternLane) dispatch(p int) {
	if pl.selector == nil {
		return
	}
	if pl.selector.TargetPattern() == p {
		return
	}
	pl.selector.GoPattern(p)
}

// OverdubCursor implements spec.md §4.3's generic overdub contract: erase the
// window's existing selections, drain the record queue, then play.
func (pl *PatternLane) OverdubCursor(from, to cursor.Cursor, inclusive bool) {
	events := pl.Events()
	events.Begin()
	defer events.Commit()

	if pl.OverdubActive() {
		if inclusive {
			events.RemoveRange(from, to)
		} else {
			pl.removeRangeExclusiveHi(from, to)
		}
	}
	pl.drainRecordQueue(false)
	pl.PlayCursor(from, to, inclusive)
}

func (pl *PatternLane) removeRangeExclusiveHi(from, to cursor.Cursor) {
	events := pl.Events()
	op := events.Operator()
	removed := events.RemoveRange(from, to)
	for _, e := range removed {
		if op.IsEqual(e.Cursor, to) {
			events.InsertSorted(e)
		}
	}
}

// LoopCursor re-resolves and dispatches the held pattern at the new loop
// start, since jumping non-contiguously can skip over the event that would
// otherwise have set it (spec.md §4.3).
func (pl *PatternLane) LoopCursor(from, to cursor.Cursor) {
	pl.JumpCursor(from, to)
}

// JumpCursor re-resolves and dispatches the pattern held at to.
func (pl *PatternLane) JumpCursor(from, to cursor.Cursor) {
	if p, ok := pl.resolveHeldAt(to); ok {
		pl.dispatch(p)
	}
}

// InitializeCursorPlayback primes the selector to the pattern held at at
// without requiring a traversal to reach it first.
func (pl *PatternLane) InitializeCursorPlayback(at cursor.Cursor) {
	if p, ok := pl.resolveHeldAt(at); ok {
		pl.dispatch(p)
	}
}

// SetEventsCursors implements spec.md §4.3's edit primitive for a pattern
// lane: restore originals, reposition the edited events (reversing the
// referenced pattern order for the reverse operations), re-sort once, and
// publish. Pattern references have no interpolation, so unlike ParameterLane
// this performs no boundary stitching.
func (pl *PatternLane) SetEventsCursors(edit SetEventsCursorsArgs) bool {
	events := pl.Events()
	events.Begin()
	defer events.Commit()

	all := events.All()
	byID := make(map[int64]int, len(all))
	for i, e := range all {
		byID[e.seq] = i
	}
	for id, c := range edit.OriginalCursor {
		if i, ok := byID[id]; ok {
			all[i].Cursor = c
		}
	}

	if edit.Operation != OpNone {
		edited := make([]Event, 0, len(edit.EventIDs))
		for _, id := range edit.EventIDs {
			if i, ok := byID[id]; ok {
				edited = append(edited, all[i])
			}
		}
		op := events.Operator()
		sort.Slice(edited, func(i, j int) bool { return op.IsBefore(edited[i].Cursor, edited[j].Cursor) })

		patterns := make([]int, len(edited))
		for i, e := range edited {
			patterns[i] = e.Pattern
		}
		if edit.Operation == OpReverseLeftToRight || edit.Operation == OpReverseRightToLeft {
			n := len(patterns)
			mirrored := make([]int, n)
			for i := 0; i < n; i++ {
				mirrored[i] = patterns[n-1-i]
			}
			patterns = mirrored
		}

		for i, e := range edited {
			target := e.Cursor
			if tc, ok := edit.TargetCursor[e.seq]; ok {
				target = tc
			}
			idx := byID[e.seq]
			all[idx].Cursor = target
			all[idx].Pattern = patterns[i]
		}
		sortEventsStable(all, op)
	}
	events.Set(all)
	return true
}
