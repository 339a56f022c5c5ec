// Package cursor implements the dual-basis time value used throughout the
// clip engine: a (millis, beatCount, beatBasis) triple that can be compared,
// snapped, and interpolated under either an absolute (wall-clock) or
// tempo-synced (beat) time base.
package cursor

import (
	"fmt"
	"math"
)

// snapProximity is the tolerance used by snap_up/snap_down to treat a
// near-grid value as already on the grid.
const snapProximity = 0.01

// MinLoopMillis is the minimum allowable loop length in milliseconds at the
// reference tempo used to derive MinLoop (120 BPM, 1/32nd beat).
const MinLoopMillis = 125.0

// MinLoopBeats is MIN_LOOP expressed as a beat fraction (1/32nd beat).
const MinLoopBeats = 1.0 / 32.0

// referenceBPMForConstants is the reference tempo MIN_LOOP's millisecond
// projection is stated against: at 120 BPM a beat is 500ms, so MinLoopMillis
// (125ms) is a quarter of a beat there. MinLoopBeats (1/32 beat) is set on
// its own and is not the beat projection of MinLoopMillis at this tempo.
const referenceBPMForConstants = 120.0

// Cursor is a triple time value. The zero value is the ZERO cursor.
// A Cursor is mutable by default; Freeze returns an immutable copy that
// rejects further in-place mutation (see frozen field).
type Cursor struct {
	Millis     float64
	BeatCount  int32
	BeatBasis  float64
	frozen     bool
}

// Zero is the immutable public ZERO constant: (0, 0, 0).
var Zero = Cursor{}.Freeze()

// MinLoop is the immutable public MIN_LOOP constant: 125ms at reference tempo,
// 1/32nd beat.
var MinLoop = Cursor{Millis: MinLoopMillis, BeatCount: 0, BeatBasis: MinLoopBeats}.Freeze()

// New constructs a mutable Cursor. It rejects negative constructions.
func New(millis float64, beatCount int32, beatBasis float64) (Cursor, error) {
	if millis < 0 {
		return Cursor{}, fmt.Errorf("cursor: negative millis %v", millis)
	}
	if beatCount < 0 {
		return Cursor{}, fmt.Errorf("cursor: negative beatCount %d", beatCount)
	}
	c := Cursor{Millis: millis, BeatCount: beatCount}
	c.BeatBasis, c.BeatCount = normalizeBasis(beatBasis, beatCount)
	return c, nil
}

// MustNew is New but panics on a validation error; intended for constants and
// tests where the inputs are known-good at compile time.
func MustNew(millis float64, beatCount int32, beatBasis float64) Cursor {
	c, err := New(millis, beatCount, beatBasis)
	if err != nil {
		panic(err)
	}
	return c
}

// Freeze returns an immutable copy of c. Mutating methods on a frozen Cursor
// return the receiver unchanged (they are no-ops) rather than panicking,
// matching the "rejects mutation" invariant of spec.md §3 without making
// ordinary arithmetic paths fallible.
func (c Cursor) Freeze() Cursor {
	c.frozen = true
	return c
}

// Frozen reports whether c rejects mutation.
func (c Cursor) Frozen() bool { return c.frozen }

// Equal is componentwise exact equality.
func (c Cursor) Equal(o Cursor) bool {
	return c.Millis == o.Millis && c.BeatCount == o.BeatCount && c.BeatBasis == o.BeatBasis
}

// BeatSum returns the combined beat position BeatCount+BeatBasis.
func (c Cursor) BeatSum() float64 {
	return float64(c.BeatCount) + c.BeatBasis
}

// normalizeBasis carries/borrows beatBasis back into [0,1), adjusting
// beatCount accordingly. Negative results are clamped to zero (see
// clampNonNegative) with the caller responsible for logging.
func normalizeBasis(basis float64, count int32) (float64, int32) {
	whole := math.Floor(basis)
	basis -= whole
	count += int32(whole)
	if basis < 0 {
		basis += 1
		count--
	}
	if count < 0 {
		count = 0
		basis = 0
	}
	return basis, count
}

// fromBeatSum rebuilds (beatCount, beatBasis) from a combined beat value,
// clamping negative sums to zero.
func fromBeatSum(sum float64) (int32, float64) {
	if sum < 0 {
		sum = 0
	}
	whole := math.Floor(sum)
	return int32(whole), sum - whole
}

// msPerBeat returns milliseconds per beat at the given bpm (60000/bpm).
func msPerBeat(bpm float64) float64 {
	if bpm <= 0 {
		bpm = referenceBPMForConstants
	}
	return 60000.0 / bpm
}

// beatsFromMillis projects a millisecond value to a beat sum at the given bpm.
func beatsFromMillis(millis, bpm float64) float64 {
	return millis / msPerBeat(bpm)
}

// WithMillis returns a copy of c with Millis set to v and the inactive beat
// projection re-derived from bpm (the active basis is TimeBase-dependent and
// is the caller's responsibility via Operator; this is the raw setter the
// Operator methods build on).
func (c Cursor) WithMillis(v float64, bpm float64) Cursor {
	if c.frozen {
		return c
	}
	if v < 0 {
		v = 0
	}
	c.Millis = v
	beats := beatsFromMillis(v, bpm)
	c.BeatCount, c.BeatBasis = fromBeatSum(beats)
	return c
}

// WithBeatSum returns a copy of c with the beat projection set to sum and the
// inactive millis projection re-derived from bpm.
func (c Cursor) WithBeatSum(sum float64, bpm float64) Cursor {
	if c.frozen {
		return c
	}
	if sum < 0 {
		sum = 0
	}
	c.BeatCount, c.BeatBasis = fromBeatSum(sum)
	c.Millis = sum * msPerBeat(bpm)
	return c
}

func (c Cursor) String() string {
	return fmt.Sprintf("Cursor{millis=%.3f, beat=%d+%.4f}", c.Millis, c.BeatCount, c.BeatBasis)
}
