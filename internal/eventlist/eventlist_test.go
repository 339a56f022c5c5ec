package eventlist

import (
	"testing"

	"github.com/cbegin/clipengine/internal/cursor"
)

type fakeEvent struct {
	c cursor.Cursor
	v int
}

func (f fakeEvent) EventCursor() cursor.Cursor { return f.c }

func at(ms float64) cursor.Cursor { return cursor.MustNew(ms, 0, 0) }

func TestInsertSortedMaintainsOrder(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	l := New[fakeEvent](op)

	l.InsertSorted(fakeEvent{at(300), 3})
	l.InsertSorted(fakeEvent{at(100), 1})
	l.InsertSorted(fakeEvent{at(200), 2})

	if !l.IsSorted() {
		t.Fatalf("expected list sorted after InsertSorted calls")
	}
	all := l.All()
	if len(all) != 3 || all[0].v != 1 || all[1].v != 2 || all[2].v != 3 {
		t.Fatalf("unexpected order: %+v", all)
	}
}

func TestInsertIndexTiesLandAfterExisting(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	l := New[fakeEvent](op)
	l.InsertSorted(fakeEvent{at(100), 1})
	l.InsertSorted(fakeEvent{at(100), 2})

	idx := l.InsertIndex(at(100))
	if idx != 2 {
		t.Fatalf("InsertIndex at a doubly-occupied cursor = %d, want 2 (exclusive, after both)", idx)
	}

	all := l.All()
	if all[0].v != 1 || all[1].v != 2 {
		t.Fatalf("expected insertion order preserved among equal cursors, got %+v", all)
	}
}

func TestPlayIndexIsInclusive(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	l := New[fakeEvent](op)
	l.InsertSorted(fakeEvent{at(100), 1})
	l.InsertSorted(fakeEvent{at(300), 3})

	if idx := l.PlayIndex(at(100)); idx != 0 {
		t.Fatalf("PlayIndex(100) = %d, want 0 (inclusive of the event exactly at 100)", idx)
	}
	if idx := l.PlayIndex(at(150)); idx != 1 {
		t.Fatalf("PlayIndex(150) = %d, want 1", idx)
	}
	if idx := l.PlayIndex(at(400)); idx != 2 {
		t.Fatalf("PlayIndex(400) = %d, want 2 (size, nothing at or after)", idx)
	}
}

func TestRemoveRangeIsInclusiveBothEnds(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	l := New[fakeEvent](op)
	l.InsertSorted(fakeEvent{at(100), 1})
	l.InsertSorted(fakeEvent{at(200), 2})
	l.InsertSorted(fakeEvent{at(300), 3})

	removed := l.RemoveRange(at(100), at(200))
	if len(removed) != 2 {
		t.Fatalf("RemoveRange(100,200) removed %d events, want 2", len(removed))
	}
	if got := l.Size(); got != 1 {
		t.Fatalf("Size() after RemoveRange = %d, want 1", got)
	}
	if l.At(0).v != 3 {
		t.Fatalf("remaining event = %+v, want v=3", l.At(0))
	}
}

func TestBatchDefersSnapshotUntilCommit(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	l := New[fakeEvent](op)
	l.InsertSorted(fakeEvent{at(100), 1})

	l.Begin()
	l.InsertSorted(fakeEvent{at(200), 2})
	l.Remove(func(e fakeEvent) bool { return e.v == 1 })

	snap := l.Snapshot()
	if len(snap) != 1 || snap[0].v != 1 {
		t.Fatalf("snapshot should still reflect pre-batch state mid-batch, got %+v", snap)
	}

	l.Commit()
	snap = l.Snapshot()
	if len(snap) != 1 || snap[0].v != 2 {
		t.Fatalf("snapshot after Commit = %+v, want [{v:2}]", snap)
	}
}

func TestNestedBeginCommitPublishesOnlyOnOutermostCommit(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	l := New[fakeEvent](op)

	l.Begin()
	l.Begin()
	l.InsertSorted(fakeEvent{at(100), 1})
	l.Commit()
	if snap := l.Snapshot(); len(snap) != 0 {
		t.Fatalf("inner Commit must not publish, got snapshot %+v", snap)
	}
	l.Commit()
	if snap := l.Snapshot(); len(snap) != 1 {
		t.Fatalf("outer Commit should publish, got snapshot %+v", snap)
	}
}

func TestIsSortedDetectsOutOfOrderSet(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	l := New[fakeEvent](op)
	l.Set([]fakeEvent{{at(300), 3}, {at(100), 1}})

	if l.IsSorted() {
		t.Fatalf("expected IsSorted() false for a deliberately out-of-order Set")
	}
}
