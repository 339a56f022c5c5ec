package engine

import (
	"testing"

	"github.com/cbegin/clipengine/internal/clip"
	"github.com/cbegin/clipengine/internal/cursor"
	"github.com/cbegin/clipengine/internal/lane"
)

type fakeTarget struct {
	value     float64
	listeners map[string]func(float64)
	component any
}

func newFakeTarget(base float64) *fakeTarget {
	return &fakeTarget{value: base, listeners: make(map[string]func(float64))}
}

func newFakeComponentTarget(base float64, component any) *fakeTarget {
	return &fakeTarget{value: base, listeners: make(map[string]func(float64)), component: component}
}

func (t *fakeTarget) GetBaseNormalized() float64 { return t.value }
func (t *fakeTarget) SetNormalized(v float64) {
	t.value = v
	for _, fn := range t.listeners {
		fn(v)
	}
}
func (t *fakeTarget) AddListener(id string, fn func(float64)) { t.listeners[id] = fn }
func (t *fakeTarget) RemoveListener(id string)                { delete(t.listeners, id) }
func (t *fakeTarget) IsDescendant(component any) bool {
	return t.component != nil && t.component == component
}

func TestLaneRegistryCreatesLaneOnFirstChange(t *testing.T) {
	c := clip.New()
	op := cursor.NewOperator(cursor.Absolute, 120)
	reg := NewLaneRegistry(c, op)
	target := newFakeTarget(0)

	now := cursor.Zero
	reg.Listen("synth/gain", target, lane.VariantContinuous, func() cursor.Cursor { return now })

	if _, ok := reg.Lane("synth/gain"); ok {
		t.Fatalf("lane should not exist before any value change")
	}
	if len(c.Lanes()) != 0 {
		t.Fatalf("clip should have no lanes yet")
	}

	now = cursor.MustNew(100, 0, 0)
	target.SetNormalized(0.5)

	l, ok := reg.Lane("synth/gain")
	if !ok {
		t.Fatalf("lane should exist after first change")
	}
	if len(c.Lanes()) != 1 {
		t.Fatalf("clip should have exactly one lane, got %d", len(c.Lanes()))
	}

	l.CommitRecordQueue(false)
	events := l.Events().All()
	if len(events) != 1 {
		t.Fatalf("expected 1 recorded event, got %d", len(events))
	}
	if events[0].Normalized != 0.5 {
		t.Fatalf("events[0].Normalized = %v, want 0.5", events[0].Normalized)
	}

	now = cursor.MustNew(200, 0, 0)
	target.SetNormalized(0.75)
	l.CommitRecordQueue(false)
	if got := l.Events().Size(); got != 2 {
		t.Fatalf("expected lane to reuse the same instance across changes, size=%d", got)
	}
}

func TestLaneRegistryUnregisterDetachesListenerAndLane(t *testing.T) {
	c := clip.New()
	op := cursor.NewOperator(cursor.Absolute, 120)
	reg := NewLaneRegistry(c, op)
	target := newFakeTarget(0)

	reg.Listen("synth/gain", target, lane.VariantContinuous, func() cursor.Cursor { return cursor.Zero })
	target.SetNormalized(0.5)
	if len(c.Lanes()) != 1 {
		t.Fatalf("expected 1 lane before unregister")
	}

	reg.Unregister("synth/gain")
	if len(c.Lanes()) != 0 {
		t.Fatalf("expected 0 lanes after unregister, got %d", len(c.Lanes()))
	}
	if len(target.listeners) != 0 {
		t.Fatalf("expected target listener removed, got %d remaining", len(target.listeners))
	}

	// A further change after unregister must not resurrect the lane.
	target.SetNormalized(0.9)
	if _, ok := reg.Lane("synth/gain"); ok {
		t.Fatalf("lane should not be recreated after unregister")
	}
}

func TestLaneRegistryDisposeAllClearsEverything(t *testing.T) {
	c := clip.New()
	op := cursor.NewOperator(cursor.Absolute, 120)
	reg := NewLaneRegistry(c, op)
	a := newFakeTarget(0)
	b := newFakeTarget(0)

	reg.Listen("a", a, lane.VariantContinuous, func() cursor.Cursor { return cursor.Zero })
	reg.Listen("b", b, lane.VariantContinuous, func() cursor.Cursor { return cursor.Zero })
	a.SetNormalized(1)
	b.SetNormalized(1)

	if len(c.Lanes()) != 2 {
		t.Fatalf("expected 2 lanes before dispose")
	}

	reg.DisposeAll()
	if len(c.Lanes()) != 0 {
		t.Fatalf("expected 0 lanes after DisposeAll, got %d", len(c.Lanes()))
	}
	if len(a.listeners) != 0 || len(b.listeners) != 0 {
		t.Fatalf("expected all listeners detached after DisposeAll")
	}
}

// TestLaneRegistryUnregisterComponentTearsDownOnlyItsOwnLanes confirms
// component-scoped teardown (spec.md §6 "Parameter graph": "is_descendant
// (component) lets the core locate all lanes for removal on component
// teardown") removes exactly the lanes belonging to the torn-down component,
// leaving unrelated and componentless lanes alone.
func TestLaneRegistryUnregisterComponentTearsDownOnlyItsOwnLanes(t *testing.T) {
	c := clip.New()
	op := cursor.NewOperator(cursor.Absolute, 120)
	reg := NewLaneRegistry(c, op)

	owner, other := "voice-1", "voice-2"
	a := newFakeComponentTarget(0, owner)
	b := newFakeComponentTarget(0, owner)
	rival := newFakeComponentTarget(0, other)
	loose := newFakeTarget(0)

	reg.Listen("voice-1/gain", a, lane.VariantContinuous, func() cursor.Cursor { return cursor.Zero })
	reg.Listen("voice-1/pan", b, lane.VariantContinuous, func() cursor.Cursor { return cursor.Zero })
	reg.Listen("voice-2/gain", rival, lane.VariantContinuous, func() cursor.Cursor { return cursor.Zero })
	reg.Listen("global/gain", loose, lane.VariantContinuous, func() cursor.Cursor { return cursor.Zero })
	a.SetNormalized(1)
	b.SetNormalized(1)
	rival.SetNormalized(1)
	loose.SetNormalized(1)

	if len(c.Lanes()) != 4 {
		t.Fatalf("expected 4 lanes before component teardown, got %d", len(c.Lanes()))
	}

	reg.UnregisterComponent(owner)

	if len(c.Lanes()) != 2 {
		t.Fatalf("expected 2 lanes after tearing down one component, got %d", len(c.Lanes()))
	}
	if _, ok := reg.Lane("voice-1/gain"); ok {
		t.Fatalf("voice-1/gain should be torn down")
	}
	if _, ok := reg.Lane("voice-1/pan"); ok {
		t.Fatalf("voice-1/pan should be torn down")
	}
	if _, ok := reg.Lane("voice-2/gain"); !ok {
		t.Fatalf("voice-2/gain belongs to a different component and should survive")
	}
	if _, ok := reg.Lane("global/gain"); !ok {
		t.Fatalf("global/gain has no component and should survive")
	}
	if len(a.listeners) != 0 || len(b.listeners) != 0 {
		t.Fatalf("expected owner's listeners detached")
	}
	if len(rival.listeners) == 0 || len(loose.listeners) == 0 {
		t.Fatalf("expected unrelated listeners to remain attached")
	}
}
