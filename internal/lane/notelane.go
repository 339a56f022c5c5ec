package lane

import (
	"sort"
	"sync/atomic"

	"github.com/cbegin/clipengine/internal/cursor"
)

// notePitchRange is the size of the per-pitch stacks NoteLane maintains
// (spec.md §4.5, §9 "Note-stack arrays").
const notePitchRange = 128

// NoteLane dispatches paired note on/off events through a MidiSink (spec.md
// §4.5). Unlike ParameterLane it carries no continuous value: recording and
// playback both revolve around three size-128 per-pitch stacks tracking
// which note is currently held in each context.
type NoteLane struct {
	*Base
	sink MidiSink

	// playbackStack holds the sounding note-on triggered by playback, per pitch.
	playbackStack [notePitchRange]*Event
	// recordStack holds the last note-on observed on the timeline prior to
	// the lane's cursor, whether or not it was played.
	recordStack [notePitchRange]*Event
	// recordInputStack holds the last input-originated note-on actively
	// being recorded, per pitch.
	recordInputStack [notePitchRange]*Event

	pairCounter atomic.Int64
}

// NewNoteLane constructs a NoteLane ordered under op, dispatching to sink.
func NewNoteLane(op cursor.Operator, sink MidiSink) *NoteLane {
	return &NoteLane{Base: NewBase(op), sink: sink}
}

func (n *NoteLane) nextPairID() int64 {
	return n.pairCounter.Add(1)
}

// SeedPairCounter advances the pair-id counter to at least max, so pairs
// created after a persistence load never collide with PairIDs already
// present in the loaded document (spec.md §6 "Persistence").
func (n *NoteLane) SeedPairCounter(max int64) {
	for {
		cur := n.pairCounter.Load()
		if cur >= max {
			return
		}
		if n.pairCounter.CompareAndSwap(cur, max) {
			return
		}
	}
}

func (n *NoteLane) sendNote(channel int, cmd MidiCommand, pitch, velocity int) {
	if n.sink != nil {
		n.sink.SendNote(channel, cmd, pitch, velocity)
	}
}

// RecordEvent implements record_note (spec.md §4.5). Non-note events and
// out-of-range pitches are ignored.
func (n *NoteLane) RecordEvent(e Event) {
	if e.Kind != KindNote || e.Pitch < 0 || e.Pitch >= notePitchRange {
		return
	}
	p := e.Pitch
	switch e.Command {
	case NoteOn:
		if held := n.recordStack[p]; held != nil {
			off := NewNoteEvent(e.Cursor, NoteOff, held.Channel, p, 0)
			off.PairID = held.PairID
			n.recordEventQueued(off.WithSeq(n.nextSeq()))
		}
		e.PairID = n.nextPairID()
		n.recordEventQueued(e.WithSeq(n.nextSeq()))
		held := e
		n.recordStack[p] = &held
		n.recordInputStack[p] = &held
	case NoteOff:
		held := n.recordStack[p]
		if held == nil {
			return
		}
		e.Channel = held.Channel
		e.PairID = held.PairID
		n.recordEventQueued(e.WithSeq(n.nextSeq()))
		n.recordStack[p] = nil
		n.recordInputStack[p] = nil
	}
	n.SetOverdubActive(true)
}

// CommitRecordQueue drains the record queue (spec.md §4.3).
func (n *NoteLane) CommitRecordQueue(notify bool) {
	n.drainRecordQueue(notify)
}

// InsertEvent is the direct sorted insert primitive. Prefer InsertNote when
// inserting a fresh pair; this is for loaders replaying already-paired
// events one at a time.
func (n *NoteLane) InsertEvent(e Event) {
	n.insertEventSorted(e)
}

// InsertNote inserts a fresh on/off pair atomically, assigning a new PairID.
func (n *NoteLane) InsertNote(onCursor, offCursor cursor.Cursor, channel, pitch, velocity int) (Event, Event) {
	pid := n.nextPairID()
	on := NewNoteEvent(onCursor, NoteOn, channel, pitch, velocity)
	on.PairID = pid
	off := NewNoteEvent(offCursor, NoteOff, channel, pitch, 0)
	off.PairID = pid

	events := n.Events()
	events.Begin()
	on = on.WithSeq(n.nextSeq())
	off = off.WithSeq(n.nextSeq())
	events.InsertSorted(on)
	events.InsertSorted(off)
	events.Commit()
	n.bang()
	return on, off
}

// RemoveNote removes both endpoints of the pair identified by pairID.
func (n *NoteLane) RemoveNote(pairID int64) bool {
	removed := n.Events().RemoveAll(func(e Event) bool {
		return e.Kind == KindNote && e.PairID == pairID
	})
	if len(removed) == 0 {
		return false
	}
	n.bang()
	return true
}

// pairIntersects reports whether the closed interval [onC, offC] intersects
// the window [lo, hi].
func pairIntersects(op cursor.Operator, onC, offC, lo, hi cursor.Cursor) bool {
	if op.IsBefore(offC, lo) {
		return false
	}
	if op.IsAfter(onC, hi) {
		return false
	}
	return true
}

// pairsOverlapping groups the lane's note events into on/off pairs by
// PairID and returns the set of pair IDs whose span intersects [lo, hi].
func (n *NoteLane) pairsOverlapping(lo, hi cursor.Cursor) map[int64]bool {
	op := n.Events().Operator()
	all := n.Events().All()
	onByPair := make(map[int64]Event, len(all))
	offByPair := make(map[int64]Event, len(all))
	for _, e := range all {
		if e.Kind != KindNote {
			continue
		}
		switch e.Command {
		case NoteOn:
			onByPair[e.PairID] = e
		case NoteOff:
			offByPair[e.PairID] = e
		}
	}
	drop := make(map[int64]bool)
	for pid, on := range onByPair {
		off, ok := offByPair[pid]
		if !ok {
			continue
		}
		if pairIntersects(op, on.Cursor, off.Cursor, lo, hi) {
			drop[pid] = true
		}
	}
	return drop
}

// RemoveRangeNotes removes every on/off pair whose span intersects [lo, hi],
// including pairs that straddle the window entirely (spec.md §8 scenario 4:
// a note that was already sounding before the window and still sounding
// after it is cut, not left with an orphaned endpoint).
func (n *NoteLane) RemoveRangeNotes(lo, hi cursor.Cursor) []Event {
	drop := n.pairsOverlapping(lo, hi)
	removed := n.Events().RemoveAll(func(e Event) bool {
		return e.Kind == KindNote && drop[e.PairID]
	})
	if len(removed) > 0 {
		n.bang()
	}
	return removed
}

// EditNote repositions both endpoints of pairID atomically, swapping them if
// the new on would land after the new off.
func (n *NoteLane) EditNote(pairID int64, newOnCursor, newOffCursor cursor.Cursor) bool {
	events := n.Events()
	op := events.Operator()
	if op.IsAfter(newOnCursor, newOffCursor) {
		newOnCursor, newOffCursor = newOffCursor, newOnCursor
	}
	all := events.All()
	changed := false
	for i, e := range all {
		if e.Kind != KindNote || e.PairID != pairID {
			continue
		}
		switch e.Command {
		case NoteOn:
			all[i].Cursor = newOnCursor
			changed = true
		case NoteOff:
			all[i].Cursor = newOffCursor
			changed = true
		}
	}
	if !changed {
		return false
	}
	sortEventsStable(all, op)
	events.Set(all)
	n.bang()
	return true
}

func sortEventsStable(all []Event, op cursor.Operator) {
	sort.SliceStable(all, func(i, j int) bool {
		if op.IsEqual(all[i].Cursor, all[j].Cursor) {
			return all[i].seq < all[j].seq
		}
		return op.IsBefore(all[i].Cursor, all[j].Cursor)
	})
}

// MoveEvent moves a single raw event; it does not preserve pairing. Prefer
// EditNote for pair-safe repositioning.
func (n *NoteLane) MoveEvent(e Event, newCursor cursor.Cursor) (Event, bool) {
	return n.moveEvent(e, newCursor, func(ev Event) bool { return ev.seq == e.seq })
}

// RemoveEvent removes a single raw event; it does not preserve pairing.
// Prefer RemoveNote.
func (n *NoteLane) RemoveEvent(match func(Event) bool) bool {
	return n.removeEvent(match)
}

// RemoveRangeEvents removes raw events by cursor range without pair
// awareness; prefer RemoveRangeNotes.
func (n *NoteLane) RemoveRangeEvents(lo, hi cursor.Cursor) []Event {
	return n.removeRange(lo, hi)
}

// PlayCursor dispatches note on/off events in (from, to] if inclusive, else
// (from, to) (spec.md §4.3, §4.4.2's range convention applied to notes).
func (n *NoteLane) PlayCursor(from, to cursor.Cursor, inclusive bool) {
	events := n.Events()
	op := events.Operator()
	events.Iterate(func(_ int, e Event) bool {
		if e.Kind != KindNote {
			return true
		}
		if !op.IsAfter(e.Cursor, from) {
			return true
		}
		if inclusive {
			if op.IsAfter(e.Cursor, to) {
				return true
			}
		} else if op.IsAfterOrEqual(e.Cursor, to) {
			return true
		}
		n.dispatchPlayback(e)
		return true
	})
}

// dispatchPlayback implements spec.md §4.5 "Playback": on note-on, force a
// note-off for any still-sounding playback note on the same pitch first; on
// note-off, ignore if no playback note is held.
func (n *NoteLane) dispatchPlayback(e Event) {
	p := e.Pitch
	if p < 0 || p >= notePitchRange {
		return
	}
	switch e.Command {
	case NoteOn:
		if held := n.playbackStack[p]; held != nil {
			n.sendNote(held.Channel, NoteOff, p, 0)
		}
		n.sendNote(e.Channel, NoteOn, p, e.Velocity)
		held := e
		n.playbackStack[p] = &held
	case NoteOff:
		if held := n.playbackStack[p]; held != nil {
			n.sendNote(held.Channel, NoteOff, p, 0)
			n.playbackStack[p] = nil
		}
	}
}

// OverdubCursor implements spec.md §4.5's overdub contract in terms of
// pair-aware erase: any pair intersecting [from, to] is dropped (straddling
// pairs included), the record queue is drained, and the window is played
// live.
func (n *NoteLane) OverdubCursor(from, to cursor.Cursor, inclusive bool) {
	events := n.Events()
	events.Begin()
	defer events.Commit()

	if n.OverdubActive() {
		drop := n.pairsOverlapping(from, to)
		events.RemoveAll(func(e Event) bool {
			return e.Kind == KindNote && drop[e.PairID]
		})
	}
	n.drainRecordQueue(false)
	n.PlayCursor(from, to, inclusive)
}

// terminatePlayback fires a note-off for every currently-sounding playback
// note and clears the stack (spec.md §4.5 "on_stop_playback").
func (n *NoteLane) terminatePlayback() {
	for p := 0; p < notePitchRange; p++ {
		if held := n.playbackStack[p]; held != nil {
			n.sendNote(held.Channel, NoteOff, p, 0)
			n.playbackStack[p] = nil
		}
	}
}

// scanHeldAt replays events strictly before at and returns, per pitch, the
// note-on still held (no matching note-off yet) at that point.
func (n *NoteLane) scanHeldAt(at cursor.Cursor) [notePitchRange]*Event {
	events := n.Events()
	op := events.Operator()
	var held [notePitchRange]*Event
	events.Iterate(func(_ int, e Event) bool {
		if e.Kind != KindNote || op.IsAfterOrEqual(e.Cursor, at) {
			return true
		}
		p := e.Pitch
		if p < 0 || p >= notePitchRange {
			return true
		}
		switch e.Command {
		case NoteOn:
			cp := e
			held[p] = &cp
		case NoteOff:
			held[p] = nil
		}
		return true
	})
	return held
}

// LoopCursor is jump_cursor(loop_end, to): terminate all playback notes and
// reprime record_stack by scanning events preceding to (spec.md §4.5).
func (n *NoteLane) LoopCursor(from, to cursor.Cursor) {
	n.JumpCursor(from, to)
}

// JumpCursor terminates held playback state and reprimes record_stack from
// the events preceding to (spec.md §4.3, §4.5).
func (n *NoteLane) JumpCursor(from, to cursor.Cursor) {
	n.terminatePlayback()
	n.recordStack = n.scanHeldAt(to)
}

// InitializeCursorPlayback primes both stacks from the events preceding at,
// without dispatching note-on for anything already sounding (spec.md §4.3).
func (n *NoteLane) InitializeCursorPlayback(at cursor.Cursor) {
	n.playbackStack = n.scanHeldAt(at)
	n.recordStack = n.scanHeldAt(at)
}

// OnStopPlayback fires a note-off for every still-sounding playback note
// (spec.md §4.5). Not part of the ClipLane interface: the clip layer invokes
// it through a type assertion, since only NoteLane has held playback state.
func (n *NoteLane) OnStopPlayback() {
	n.terminatePlayback()
}

// OnStopRecording synthesizes a note-off at the stop cursor for every
// actively-recorded held note (spec.md §4.5).
func (n *NoteLane) OnStopRecording(at cursor.Cursor) {
	for p := 0; p < notePitchRange; p++ {
		held := n.recordInputStack[p]
		if held == nil {
			continue
		}
		off := NewNoteEvent(at, NoteOff, held.Channel, p, 0)
		off.PairID = held.PairID
		n.insertEventSorted(off)
		n.recordStack[p] = nil
		n.recordInputStack[p] = nil
	}
}

// SetEventsCursors implements the generic restore/reposition edit primitive
// for note events (spec.md §4.3). NoteLane has no held-value concept, so
// unlike ParameterLane it performs no stitching; any Operation simply
// restores originals and repositions the named events to their target
// cursors, re-sorting once before a single publish.
func (n *NoteLane) SetEventsCursors(edit SetEventsCursorsArgs) bool {
	events := n.Events()
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
		for _, id := range edit.EventIDs {
			i, ok := byID[id]
			if !ok {
				continue
			}
			if tc, ok := edit.TargetCursor[id]; ok {
				all[i].Cursor = tc
			}
		}
		sortEventsStable(all, events.Operator())
	}
	events.Set(all)
	return true
}
