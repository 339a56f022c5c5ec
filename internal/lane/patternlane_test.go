package lane

import (
	"testing"

	"github.com/cbegin/clipengine/internal/cursor"
)

type fakeSelector struct {
	target  int
	history []int
}

func (f *fakeSelector) GoPattern(p int)   { f.target = p; f.history = append(f.history, p) }
func (f *fakeSelector) ActivePattern() int { return f.target }
func (f *fakeSelector) TargetPattern() int { return f.target }
func (f *fakeSelector) Patterns() []int    { return []int{0, 1, 2} }

func TestPatternLaneHeldSelectionDispatchesOnce(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	sel := &fakeSelector{target: -1}
	pl := NewPatternLane(op, sel)

	pl.InsertEvent(NewPatternEvent(ms(0), 1))
	pl.InsertEvent(NewPatternEvent(ms(500), 2))

	pl.PlayCursor(ms(0), ms(200), true)
	if sel.target != 1 {
		t.Fatalf("target = %d, want 1", sel.target)
	}

	pl.PlayCursor(ms(200), ms(400), true)
	if len(sel.history) != 1 {
		t.Fatalf("expected no redundant dispatch while held pattern unchanged, got %v", sel.history)
	}

	pl.PlayCursor(ms(400), ms(600), true)
	if sel.target != 2 {
		t.Fatalf("target = %d, want 2 after crossing the second event", sel.target)
	}
	if len(sel.history) != 2 {
		t.Fatalf("expected exactly 2 dispatches total, got %v", sel.history)
	}
}

func TestPatternLaneOverdubErasesWindow(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	sel := &fakeSelector{target: -1}
	pl := NewPatternLane(op, sel)

	pl.InsertEvent(NewPatternEvent(ms(0), 1))
	pl.InsertEvent(NewPatternEvent(ms(300), 2))
	pl.SetOverdubActive(true)

	pl.RecordEvent(NewPatternEvent(ms(150), 3))
	pl.OverdubCursor(ms(100), ms(400), true)

	got := pl.Events().All()
	if len(got) != 2 {
		t.Fatalf("expected the 0ms event plus the recorded 150ms event, got %d: %+v", len(got), got)
	}
	if got[0].Pattern != 1 || got[1].Pattern != 3 {
		t.Fatalf("got patterns %d/%d, want 1/3", got[0].Pattern, got[1].Pattern)
	}
}
