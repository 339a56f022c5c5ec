package engine

import (
	"testing"

	"github.com/cbegin/clipengine/internal/clip"
)

func TestSetFocusedBangsOnlyOnChange(t *testing.T) {
	f := New()
	calls := 0
	f.SetOnChange(func() { calls++ })

	a := clip.New()
	f.SetFocused(a)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 after first focus", calls)
	}

	f.SetFocused(a)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 after re-focusing the same clip", calls)
	}

	b := clip.New()
	f.SetFocused(b)
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 after focusing a different clip", calls)
	}

	f.SetFocused(nil)
	if calls != 3 {
		t.Fatalf("calls = %d, want 3 after clearing focus", calls)
	}
	if f.Focused() != nil {
		t.Fatalf("Focused() = %v, want nil", f.Focused())
	}
}
