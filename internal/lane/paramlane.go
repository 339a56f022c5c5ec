package lane

import (
	"sync/atomic"

	"github.com/cbegin/clipengine/internal/cursor"
)

// smoothingThresholdMillis is the 250ms gap (spec.md §4.4.1 step 1c) beyond
// which a recorded change drops an interpolation stitch rather than smearing
// a held-constant knob into a long ramp.
const smoothingThresholdMillis = 250.0

// Variant distinguishes the three ParameterLane flavors spec.md §4.4
// describes: continuous (interpolated + stitched), stepped (held + stitched),
// and trigger (neither).
type Variant struct {
	Kind          Kind
	Interpolated  bool
	Stitches      bool
}

var (
	VariantContinuous      = Variant{Kind: KindNormalized, Interpolated: true, Stitches: true}
	VariantSteppedBool     = Variant{Kind: KindSteppedBool, Interpolated: false, Stitches: true}
	VariantSteppedDiscrete = Variant{Kind: KindSteppedDiscrete, Interpolated: false, Stitches: true}
	VariantTrigger         = Variant{Kind: KindTrigger, Interpolated: false, Stitches: false}
)

// ParameterLane drives a ParameterTarget with continuous, stepped, or
// trigger semantics, selected by Variant (spec.md §4.4).
type ParameterLane struct {
	*Base
	variant           Variant
	target            ParameterTarget
	initialNormalized float64
	reentrant         atomic.Bool
	hasTimeline       atomic.Bool
	listenerID        string
}

// NewParameterLane constructs a ParameterLane of the given variant, driving
// target, ordered under op.
func NewParameterLane(op cursor.Operator, variant Variant, target ParameterTarget, listenerID string) *ParameterLane {
	return &ParameterLane{
		Base:       NewBase(op),
		variant:    variant,
		target:     target,
		listenerID: listenerID,
	}
}

// VariantKind returns the lane's Variant, for persistence (spec.md §6
// "Lane").
func (p *ParameterLane) VariantKind() Variant {
	return p.variant
}

// Arm captures the current target value as the lane's initial normalized
// value, used as the stitch floor when recording starts with no events ahead
// (spec.md §4.4.1 step 1).
func (p *ParameterLane) Arm() {
	if p.target != nil {
		p.initialNormalized = p.target.GetBaseNormalized()
	}
}

// SetHasTimeline marks whether this lane already holds a completed first
// recording pass. The gap-fill smoothing stitch (spec.md §4.4.1 step 1 case
// 3) only applies once a timeline exists: during an uninterrupted first
// recording there is no prior ramp to avoid smearing into, so the stitch is
// suppressed there and only fires on subsequent overdub passes.
func (p *ParameterLane) SetHasTimeline(v bool) {
	p.hasTimeline.Store(v)
}

// HasTimeline reports whether this lane has completed its first recording
// pass, gating the smoothing stitch of spec.md §4.4.1 step 1 case 3.
func (p *ParameterLane) HasTimeline() bool {
	return p.hasTimeline.Load()
}

// OnStopRecording marks the lane's timeline complete once its owning Clip's
// first recording pass ends, matching the hook Clip.stopRecordingLocked
// looks for on every lane it owns (spec.md §4.4.1 step 1 case 3: the
// smoothing stitch only applies once a timeline exists).
func (p *ParameterLane) OnStopRecording(_ cursor.Cursor) {
	p.hasTimeline.Store(true)
}

// RecordEvent implements spec.md §4.4.1. For Trigger lanes, only the positive
// edge is recorded (v != 0), with no stitching.
func (p *ParameterLane) RecordEvent(e Event) {
	t := e.Cursor
	if p.variant.Kind == KindTrigger {
		if e.Normalized != 0 {
			p.recordEventQueued(e.WithSeq(p.nextSeq()))
		}
		p.SetOverdubActive(true)
		return
	}
	if p.variant.Stitches {
		p.maybeStitchBeforeRecord(t)
	}
	p.recordEventQueued(e.WithSeq(p.nextSeq()))
	p.SetOverdubActive(true)
}

// maybeStitchBeforeRecord implements the three stitch cases of spec.md
// §4.4.1 step 1, examining the event immediately before t's insert index.
func (p *ParameterLane) maybeStitchBeforeRecord(t cursor.Cursor) {
	all := p.Events().All()
	op := p.Events().Operator()
	insertIdx := p.Events().InsertIndex(t)
	var prev, next *Event
	if insertIdx > 0 {
		prevCopy := all[insertIdx-1]
		prev = &prevCopy
	}
	if insertIdx < len(all) {
		nextCopy := all[insertIdx]
		next = &nextCopy
	}

	switch {
	case prev == nil && next != nil:
		p.insertStitch(t, next.Normalized)
	case prev == nil && next == nil:
		p.insertStitch(t, p.initialNormalized)
	case prev != nil && p.hasTimeline.Load() && p.variant.Interpolated && op.Subtract(t, prev.Cursor).Millis > smoothingThresholdMillis:
		var v float64
		if next != nil {
			v = lerpValue(prev.Normalized, next.Normalized, op.LerpFactor(t, prev.Cursor, next.Cursor))
		} else {
			v = prev.Normalized
		}
		p.insertStitch(t, v)
	}
}

func lerpValue(a, b, t float64) float64 {
	return a + (b-a)*t
}

// insertStitch inserts a stitch event at t with value v directly into the
// committed event list (not the record queue — stitches are synthesized
// immediately, not recorded input).
func (p *ParameterLane) insertStitch(t cursor.Cursor, v float64) {
	e := NewParameterEvent(p.variant.Kind, t, v)
	p.insertEventSorted(e)
}

// CommitRecordQueue drains the record queue (spec.md §4.3).
func (p *ParameterLane) CommitRecordQueue(notify bool) {
	p.drainRecordQueue(notify)
}

// InsertEvent is the direct sorted insert primitive of spec.md §4.3.
func (p *ParameterLane) InsertEvent(e Event) {
	p.insertEventSorted(e)
}

func (p *ParameterLane) MoveEvent(e Event, newCursor cursor.Cursor) (Event, bool) {
	return p.moveEvent(e, newCursor, func(ev Event) bool { return ev.seq == e.seq })
}

func (p *ParameterLane) RemoveEvent(match func(Event) bool) bool {
	return p.removeEvent(match)
}

func (p *ParameterLane) RemoveRangeEvents(lo, hi cursor.Cursor) []Event {
	return p.removeRange(lo, hi)
}

// PlayCursor implements spec.md §4.4.2.
func (p *ParameterLane) PlayCursor(from, to cursor.Cursor, inclusive bool) {
	if p.reentrant.Load() {
		return
	}
	p.reentrant.Store(true)
	defer p.reentrant.Store(false)

	events := p.Events()
	op := events.Operator()
	size := events.Size()

	if p.variant.Kind == KindTrigger {
		lo, hi := from, to
		events.Iterate(func(_ int, e Event) bool {
			if op.IsInRange(e.Cursor, lo, hi) {
				p.fireTrigger()
			}
			return true
		})
		return
	}

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
		p.setTarget(next.Normalized)
		return
	}
	prior := events.At(nextIdx - 1)
	if op.IsAfter(to, next.Cursor) {
		p.setTarget(next.Normalized)
		return
	}
	if p.variant.Interpolated {
		factor := op.LerpFactor(to, prior.Cursor, next.Cursor)
		p.setTarget(lerpValue(prior.Normalized, next.Normalized, factor))
		return
	}
	p.setTarget(prior.Normalized)
}

func (p *ParameterLane) setTarget(v float64) {
	if p.target != nil {
		p.target.SetNormalized(v)
	}
}

func (p *ParameterLane) fireTrigger() {
	// Trigger dispatch has no value to set; target.SetNormalized(1) signals
	// the edge the same way RecordEvent observes it (the positive edge).
	if p.target != nil {
		p.target.SetNormalized(1)
	}
}

// OverdubCursor implements spec.md §4.4.3.
func (p *ParameterLane) OverdubCursor(from, to cursor.Cursor, inclusive bool) {
	events := p.Events()
	events.Begin()
	defer events.Commit()

	var outerStitch *Event
	// length is not known to the lane, so the outer stitch is computed for
	// every `to`, including `to == length` (the clip passes its end cursor).
	// The outer stitch is computed from the pre-edit array at `to`.
	if v, ok := p.heldValueAt(to); ok {
		e := NewParameterEvent(p.variant.Kind, to, v).WithSeq(p.nextSeq())
		outerStitch = &e
	}

	if p.OverdubActive() {
		if inclusive {
			events.RemoveRange(from, to)
		} else {
			p.removeRangeExclusiveHi(from, to)
		}
	}

	p.drainRecordQueue(false)

	var innerStitch *Event
	if v, ok := p.heldValueAt(to); ok {
		e := NewParameterEvent(p.variant.Kind, to, v).WithSeq(p.nextSeq())
		innerStitch = &e
	}

	p.PlayCursor(from, to, inclusive)

	if outerStitch != nil && !p.stitchRedundant(*outerStitch) {
		idx := events.InsertIndex(outerStitch.Cursor)
		events.Insert(idx, *outerStitch)
	}
	if innerStitch != nil && p.stitchRedundant(*innerStitch) {
		events.Remove(func(e Event) bool { return e.seq == innerStitch.seq })
	}
}

// removeRangeExclusiveHi removes events in [from, to) by removing [from,to]
// then re-inserting an event exactly at `to` if one existed and was removed.
func (p *ParameterLane) removeRangeExclusiveHi(from, to cursor.Cursor) {
	events := p.Events()
	op := events.Operator()
	removed := events.RemoveRange(from, to)
	for _, e := range removed {
		if op.IsEqual(e.Cursor, to) {
			events.InsertSorted(e)
		}
	}
}

// heldValueAt computes the value that would be held at cursor c given the
// current (post-insert, for inner stitch; pre-edit, for outer stitch)
// array, per PlayCursor's own semantics but without mutating re-entrancy
// state or the target.
func (p *ParameterLane) heldValueAt(c cursor.Cursor) (float64, bool) {
	events := p.Events()
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
		return 0, false
	}
	if idx == 0 {
		return next.Normalized, true
	}
	prior := events.At(idx - 1)
	if p.variant.Interpolated {
		factor := op.LerpFactor(c, prior.Cursor, next.Cursor)
		return lerpValue(prior.Normalized, next.Normalized, factor), true
	}
	return prior.Normalized, true
}

// stitchRedundant implements the three redundancy cases of spec.md §4.4.5.
func (p *ParameterLane) stitchRedundant(stitch Event) bool {
	events := p.Events()
	op := events.Operator()
	all := events.All()
	var prior, next *Event
	for i, e := range all {
		if e.seq == stitch.seq {
			continue
		}
		if op.IsBeforeOrEqual(e.Cursor, stitch.Cursor) {
			cp := all[i]
			if prior == nil || op.IsAfter(cp.Cursor, prior.Cursor) {
				prior = &cp
			}
		}
		if op.IsAfterOrEqual(e.Cursor, stitch.Cursor) {
			cp := all[i]
			if next == nil || op.IsBefore(cp.Cursor, next.Cursor) {
				next = &cp
			}
		}
	}
	if prior != nil && prior.Normalized == stitch.Normalized && (!p.variant.Interpolated || op.IsEqual(stitch.Cursor, prior.Cursor)) {
		return true
	}
	if next != nil && next.Normalized == stitch.Normalized && op.IsEqual(stitch.Cursor, next.Cursor) {
		return true
	}
	if prior != nil && next != nil && prior.Normalized == next.Normalized && prior.Normalized == stitch.Normalized {
		return true
	}
	return false
}

// LoopCursor is a no-op default for ParameterLane (spec.md §4.3: "default
// no-op; overridden to reset per-pitch state or stitch" — parameter lanes
// have no per-pitch state, and overdub's own stitch machinery already
// preserves continuity across the loop boundary).
func (p *ParameterLane) LoopCursor(from, to cursor.Cursor) {}

// JumpCursor is a non-contiguous seek; ParameterLane has no held state to
// terminate (only NoteLane does), so this simply does nothing.
func (p *ParameterLane) JumpCursor(from, to cursor.Cursor) {}

// InitializeCursorPlayback primes nothing extra for ParameterLane: PlayCursor
// always recomputes the held/interpolated value from the full event array.
func (p *ParameterLane) InitializeCursorPlayback(at cursor.Cursor) {}
