package cursor

import (
	"math"
	"testing"
)

func TestBoundIsIdempotent(t *testing.T) {
	op := NewOperator(Absolute, 120)
	lo := MustNew(0, 0, 0)
	hi := MustNew(1000, 0, 0)
	c := MustNew(5000, 0, 0)
	once := op.Bound(c, lo, hi)
	twice := op.Bound(once, lo, hi)
	if !once.Equal(twice) {
		t.Fatalf("Bound not idempotent: once=%v twice=%v", once, twice)
	}
}

func TestSnapIsIdempotent(t *testing.T) {
	op := NewOperator(Absolute, 120)
	c := MustNew(137, 0, 0)
	once := op.Snap(c, 100, 0.25)
	twice := op.Snap(once, 100, 0.25)
	if !once.Equal(twice) {
		t.Fatalf("Snap not idempotent: once=%v twice=%v", once, twice)
	}
}

func TestAddSubtractRoundTrip(t *testing.T) {
	op := NewOperator(Absolute, 120)
	a := MustNew(1000, 0, 0)
	b := MustNew(250, 0, 0)
	sum := op.Add(a, b)
	back := op.Subtract(sum, b)
	if math.Abs(back.Millis-a.Millis) > 1e-9 {
		t.Fatalf("add/subtract roundtrip failed: got %v want %v", back.Millis, a.Millis)
	}
}

func TestSubtractClampsNegativeToZero(t *testing.T) {
	op := NewOperator(Absolute, 120)
	a := MustNew(100, 0, 0)
	b := MustNew(500, 0, 0)
	result := op.Subtract(a, b)
	if result.Millis != 0 {
		t.Fatalf("expected clamped zero, got %v", result.Millis)
	}
}

func TestLerpFactorInvertsLerp(t *testing.T) {
	op := NewOperator(Absolute, 120)
	a := MustNew(0, 0, 0)
	b := MustNew(1000, 0, 0)
	for _, tf := range []float64{0, 0.25, 0.5, 0.75, 1} {
		mid := op.SetLerp(a, b, tf)
		got := op.LerpFactor(mid, a, b)
		if math.Abs(got-tf) > 1e-6 {
			t.Fatalf("lerp_factor(lerp(a,b,%v)) = %v, want %v", tf, got, tf)
		}
	}
}

func TestCompareRoutesThroughActiveBasis(t *testing.T) {
	// Millis disagree with beat ordering; TEMPO basis must order by beats.
	a := MustNew(1000, 0, 0.1)
	b := MustNew(10, 0, 0.9)
	absOp := NewOperator(Absolute, 120)
	tempoOp := NewOperator(Tempo, 120)
	if !absOp.IsAfter(a, b) {
		t.Fatalf("ABSOLUTE: expected a after b by millis")
	}
	if !tempoOp.IsBefore(a, b) {
		t.Fatalf("TEMPO: expected a before b by beat sum")
	}
}

func TestSnapUpNearGridStepsExtraUnit(t *testing.T) {
	op := NewOperator(Absolute, 120)
	// 100.0005 is within 0.01 of grid unit 1 at size 100 (u=1.000005).
	c := MustNew(100.0005, 0, 0)
	got := op.SnapUp(c, 100, 1)
	if math.Abs(got.Millis-200) > 1e-6 {
		t.Fatalf("SnapUp near grid should step an extra unit, got %v want 200", got.Millis)
	}
}

func TestSnapDownOnGridStepsBack(t *testing.T) {
	op := NewOperator(Absolute, 120)
	c := MustNew(200, 0, 0)
	got := op.SnapDown(c, 100, 1)
	if math.Abs(got.Millis-100) > 1e-6 {
		t.Fatalf("SnapDown on-grid should step back one unit (source behavior), got %v want 100", got.Millis)
	}
}

func TestMinMax(t *testing.T) {
	op := NewOperator(Absolute, 120)
	a := MustNew(100, 0, 0)
	b := MustNew(200, 0, 0)
	if !op.Min(a, b).Equal(a) {
		t.Fatalf("Min wrong")
	}
	if !op.Max(a, b).Equal(b) {
		t.Fatalf("Max wrong")
	}
}
