// Package lane implements the per-clip lane containers (spec.md §4.3-§4.5):
// the abstract ClipLane contract, the ParameterLane variants (continuous,
// stepped, trigger), and NoteLane.
package lane

import (
	"github.com/cbegin/clipengine/internal/cursor"
)

// Kind identifies the payload variant an Event carries (spec.md §3 "Event").
type Kind int

const (
	KindNormalized Kind = iota
	KindSteppedBool
	KindSteppedDiscrete
	KindTrigger
	KindPatternSelect
	KindNote
)

// MidiCommand identifies a MIDI note message's command byte.
type MidiCommand int

const (
	NoteOn MidiCommand = iota
	NoteOff
)

// Event is a point on a lane timeline. The zero value is not meaningful;
// construct with NewParameterEvent/NewNoteEvent/NewPatternEvent.
type Event struct {
	Cursor cursor.Cursor
	Kind   Kind

	// Normalized is used by KindNormalized, KindSteppedBool, KindSteppedDiscrete.
	Normalized float64

	// Pattern is used by KindPatternSelect: the referenced pattern index.
	Pattern int

	// Note fields, used by KindNote.
	Channel  int
	Command  MidiCommand
	Pitch    int
	Velocity int
	PairID   int64 // relational back-reference to the paired on/off event; 0 = unpaired.

	// seq is insertion sequence, used to break cursor ties in dispatch order
	// (spec.md §5: "ties broken by insertion order").
	seq int64
}

// EventCursor implements eventlist.Timed.
func (e Event) EventCursor() cursor.Cursor { return e.Cursor }

// Seq returns the insertion-order tiebreaker.
func (e Event) Seq() int64 { return e.seq }

// WithSeq returns a copy of e with its insertion sequence set; used by
// ClipLane when appending events so ties sort by arrival order.
func (e Event) WithSeq(seq int64) Event {
	e.seq = seq
	return e
}

// WithCursor returns a copy of e repositioned to c.
func (e Event) WithCursor(c cursor.Cursor) Event {
	e.Cursor = c
	return e
}

// WithNormalized returns a copy of e with Normalized set to v.
func (e Event) WithNormalized(v float64) Event {
	e.Normalized = v
	return e
}

// NewParameterEvent constructs a continuous/stepped-bool/stepped-discrete
// event at c with normalized value v.
func NewParameterEvent(kind Kind, c cursor.Cursor, v float64) Event {
	return Event{Cursor: c, Kind: kind, Normalized: v}
}

// NewTriggerEvent constructs a trigger event at c.
func NewTriggerEvent(c cursor.Cursor) Event {
	return Event{Cursor: c, Kind: KindTrigger}
}

// NewPatternEvent constructs a pattern-select event referencing pattern p.
func NewPatternEvent(c cursor.Cursor, p int) Event {
	return Event{Cursor: c, Kind: KindPatternSelect, Pattern: p}
}

// NewNoteEvent constructs a single note on/off event; PairID links it to its
// counterpart once paired by the caller.
func NewNoteEvent(c cursor.Cursor, command MidiCommand, channel, pitch, velocity int) Event {
	return Event{
		Cursor:   c,
		Kind:     KindNote,
		Command:  command,
		Channel:  channel,
		Pitch:    pitch,
		Velocity: velocity,
	}
}
