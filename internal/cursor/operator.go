package cursor

import (
	"fmt"
	"math"
)

// TimeBase selects which projection of a Cursor is authoritative for
// ordering, equality, snapping, and lerp.
type TimeBase int

const (
	// Absolute uses Millis as the authoritative projection.
	Absolute TimeBase = iota
	// Tempo uses BeatCount+BeatBasis as the authoritative projection.
	Tempo
)

func (b TimeBase) String() string {
	if b == Tempo {
		return "TEMPO"
	}
	return "ABSOLUTE"
}

// Warner receives invariant-violation warnings that the Operator recovers
// from rather than failing on (spec.md §7): clamped subtraction, etc. A nil
// Warner is valid; warnings are simply dropped.
type Warner interface {
	Warn(msg string, fields map[string]any)
}

// noopWarner discards all warnings.
type noopWarner struct{}

func (noopWarner) Warn(string, map[string]any) {}

// Operator is the time-base-specific arithmetic/comparison API over cursors.
// All cursor-comparing operations in the engine MUST route through an
// Operator obtained from a Clip's cursor_op() — never compare raw fields
// (spec.md §4.1).
type Operator struct {
	Basis         TimeBase
	ReferenceBPM  float64
	Warn          Warner
}

// NewOperator constructs an Operator for the given basis and reference tempo. A
// non-positive bpm falls back to 120, matching the 125ms/120bpm relationship
// MIN_LOOP is defined against.
func NewOperator(basis TimeBase, referenceBPM float64) Operator {
	if referenceBPM <= 0 {
		referenceBPM = referenceBPMForConstants
	}
	return Operator{Basis: basis, ReferenceBPM: referenceBPM, Warn: noopWarner{}}
}

func (op Operator) warner() Warner {
	if op.Warn == nil {
		return noopWarner{}
	}
	return op.Warn
}

// value returns the authoritative scalar projection of c under op's basis.
func (op Operator) value(c Cursor) float64 {
	if op.Basis == Tempo {
		return c.BeatSum()
	}
	return c.Millis
}

// Compare returns -1, 0, or 1 comparing a and b under the active basis.
func (op Operator) Compare(a, b Cursor) int {
	av, bv := op.value(a), op.value(b)
	switch {
	case av < bv:
		return -1
	case av > bv:
		return 1
	default:
		return 0
	}
}

func (op Operator) IsBefore(a, b Cursor) bool        { return op.Compare(a, b) < 0 }
func (op Operator) IsAfter(a, b Cursor) bool         { return op.Compare(a, b) > 0 }
func (op Operator) IsEqual(a, b Cursor) bool         { return op.Compare(a, b) == 0 }
func (op Operator) IsBeforeOrEqual(a, b Cursor) bool { return op.Compare(a, b) <= 0 }
func (op Operator) IsAfterOrEqual(a, b Cursor) bool  { return op.Compare(a, b) >= 0 }

// IsInRange reports whether c is within [lo, hi] (inclusive both ends) under
// the active basis.
func (op Operator) IsInRange(c, lo, hi Cursor) bool {
	return op.IsAfterOrEqual(c, lo) && op.IsBeforeOrEqual(c, hi)
}

// IsZero reports whether c equals Zero under the active basis.
func (op Operator) IsZero(c Cursor) bool {
	return op.IsEqual(c, Zero)
}

// Ratio returns (c-lo)/(hi-lo) under the active basis, 0 if hi==lo.
func (op Operator) Ratio(c, lo, hi Cursor) float64 {
	loV, hiV := op.value(lo), op.value(hi)
	if hiV == loV {
		return 0
	}
	return (op.value(c) - loV) / (hiV - loV)
}

// LerpFactor is an alias for Ratio, named to match spec.md's operation list.
func (op Operator) LerpFactor(c, lo, hi Cursor) float64 {
	return op.Ratio(c, lo, hi)
}

// LerpRatio returns the cursor at fraction t between a and b under the active
// basis (non-destructive; does not mutate a or b).
func (op Operator) LerpRatio(a, b Cursor, t float64) Cursor {
	return op.SetLerp(a, b, t)
}

// Min returns whichever of a, b compares lower under the active basis.
func (op Operator) Min(a, b Cursor) Cursor {
	if op.IsBeforeOrEqual(a, b) {
		return a
	}
	return b
}

// Max returns whichever of a, b compares higher under the active basis.
func (op Operator) Max(a, b Cursor) Cursor {
	if op.IsAfterOrEqual(a, b) {
		return a
	}
	return b
}

// Bound returns c clamped into [lo, hi] under the active basis without
// mutating c (non-destructive). Bound is idempotent: Bound(Bound(c,lo,hi))
// == Bound(c,lo,hi).
func (op Operator) Bound(c, lo, hi Cursor) Cursor {
	if op.IsBefore(c, lo) {
		return lo
	}
	if op.IsAfter(c, hi) {
		return hi
	}
	return c
}

// Constrain clamps c into [lo, hi] and returns the same Cursor value,
// "destructive" in the sense that (unlike Bound) it is the form callers use
// when they intend to replace their working cursor with the clamped result.
func (op Operator) Constrain(c, lo, hi Cursor) Cursor {
	return op.Bound(c, lo, hi)
}

// Add returns a+b, projecting the combined beat sum back into both
// projections via ReferenceBPM. Negative results are clamped to zero by
// fromProjections; Add itself logs no warning.
func (op Operator) Add(a, b Cursor) Cursor {
	millis := a.Millis + b.Millis
	beats := a.BeatSum() + b.BeatSum()
	return op.fromProjections(millis, beats)
}

// Subtract returns a-b. A result with negative millis or beatCount is
// clamped to zero with a logged warning, per spec.md §4.1.
func (op Operator) Subtract(a, b Cursor) Cursor {
	millis := a.Millis - b.Millis
	beats := a.BeatSum() - b.BeatSum()
	clamped := false
	if millis < 0 {
		millis = 0
		clamped = true
	}
	if beats < 0 {
		beats = 0
		clamped = true
	}
	if clamped {
		op.warner().Warn("cursor subtraction produced a negative field; clamped to zero", map[string]any{
			"a": a.String(), "b": b.String(),
		})
	}
	return op.fromProjections(millis, beats)
}

// Scale multiplies each field of c by f. Negative factors are rejected.
func (op Operator) Scale(c Cursor, f float64) (Cursor, error) {
	if f < 0 {
		return Cursor{}, fmt.Errorf("cursor: negative scale factor %v", f)
	}
	return op.fromProjections(c.Millis*f, c.BeatSum()*f), nil
}

// SetLerp lerps each field of a and b independently by t and recomputes
// BeatCount/BeatBasis from the combined beat sum (spec.md §4.1).
func (op Operator) SetLerp(a, b Cursor, t float64) Cursor {
	millis := a.Millis + (b.Millis-a.Millis)*t
	beats := a.BeatSum() + (b.BeatSum()-a.BeatSum())*t
	return op.fromProjections(millis, beats)
}

// fromProjections builds a Cursor from explicit millis/beats projections,
// keeping both fields consistent with ReferenceBPM and clamping negatives.
func (op Operator) fromProjections(millis, beats float64) Cursor {
	if millis < 0 {
		millis = 0
	}
	if beats < 0 {
		beats = 0
	}
	var c Cursor
	if op.Basis == Tempo {
		c = c.WithBeatSum(beats, op.ReferenceBPM)
	} else {
		c = c.WithMillis(millis, op.ReferenceBPM)
	}
	return c
}

// snapUnit computes u=c/s under the active basis.
func (op Operator) snapUnit(c Cursor, sizeMillis, sizeBeats float64) float64 {
	if op.Basis == Tempo {
		if sizeBeats == 0 {
			return 0
		}
		return c.BeatSum() / sizeBeats
	}
	if sizeMillis == 0 {
		return 0
	}
	return c.Millis / sizeMillis
}

func (op Operator) fromUnit(u, sizeMillis, sizeBeats float64) Cursor {
	var c Cursor
	if op.Basis == Tempo {
		c = c.WithBeatSum(u*sizeBeats, op.ReferenceBPM)
	} else {
		c = c.WithMillis(u*sizeMillis, op.ReferenceBPM)
	}
	return c
}

// Snap rounds c to the nearest multiple of the given grid size (expressed in
// both projections so the same call works regardless of active basis).
func (op Operator) Snap(c Cursor, sizeMillis, sizeBeats float64) Cursor {
	u := op.snapUnit(c, sizeMillis, sizeBeats)
	return op.fromUnit(math.Round(u), sizeMillis, sizeBeats)
}

// SnapFloor floors c to the grid.
func (op Operator) SnapFloor(c Cursor, sizeMillis, sizeBeats float64) Cursor {
	u := op.snapUnit(c, sizeMillis, sizeBeats)
	return op.fromUnit(math.Floor(u), sizeMillis, sizeBeats)
}

// SnapCeiling ceils c to the grid.
func (op Operator) SnapCeiling(c Cursor, sizeMillis, sizeBeats float64) Cursor {
	u := op.snapUnit(c, sizeMillis, sizeBeats)
	return op.fromUnit(math.Ceil(u), sizeMillis, sizeBeats)
}

// nearInt reports whether u is within snapProximity of an integer.
func nearInt(u float64) bool {
	return math.Abs(u-math.Round(u)) < snapProximity
}

// SnapUp rounds c up to the next grid line strictly ahead of it. If c is
// already within snapProximity of a grid line it is treated as on-grid and
// steps one further unit ahead (spec.md §9: this is intentional, preserved
// from the source's manual-nudge behavior — do not "fix" it).
func (op Operator) SnapUp(c Cursor, sizeMillis, sizeBeats float64) Cursor {
	u := op.snapUnit(c, sizeMillis, sizeBeats)
	var target float64
	if nearInt(u) {
		target = math.Round(u) + 1
	} else {
		target = math.Ceil(u)
	}
	return op.fromUnit(target, sizeMillis, sizeBeats)
}

// SnapDown rounds c down to the previous grid line. If c is already within
// snapProximity of a grid line, source behavior steps BACK one full unit
// (spec.md §9 Open Question: intentional for manual nudge operations;
// preserved verbatim, not "corrected" to stay in place).
func (op Operator) SnapDown(c Cursor, sizeMillis, sizeBeats float64) Cursor {
	u := op.snapUnit(c, sizeMillis, sizeBeats)
	var target float64
	if nearInt(u) {
		target = math.Round(u) - 1
	} else {
		target = math.Floor(u)
	}
	if target < 0 {
		target = 0
	}
	return op.fromUnit(target, sizeMillis, sizeBeats)
}

// FormatLabel renders c as a human-readable label under the active basis:
// "M:SS.mmm" in ABSOLUTE mode, "beat.basis" in TEMPO mode.
func (op Operator) FormatLabel(c Cursor) string {
	if op.Basis == Tempo {
		return fmt.Sprintf("%d.%03d", c.BeatCount, int(math.Round(c.BeatBasis*1000)))
	}
	totalMs := c.Millis
	minutes := int(totalMs) / 60000
	rem := totalMs - float64(minutes)*60000
	seconds := rem / 1000
	return fmt.Sprintf("%d:%06.3f", minutes, seconds)
}
