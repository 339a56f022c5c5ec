package adapters

import (
	"testing"

	"github.com/cbegin/clipengine/internal/clip"
	"github.com/cbegin/clipengine/internal/cursor"
)

func TestTransportAdvanceDerivesBeatPosition(t *testing.T) {
	tr := NewTransport(120)
	tr.Advance(1250)

	if tr.NowMillis() != 1250 {
		t.Fatalf("NowMillis() = %v, want 1250", tr.NowMillis())
	}
	if tr.BeatCount() != 2 {
		t.Fatalf("BeatCount() = %d, want 2 (120bpm = 500ms/beat)", tr.BeatCount())
	}
	if tr.Basis() != 0.5 {
		t.Fatalf("Basis() = %v, want 0.5", tr.Basis())
	}
}

func TestBusStopsSiblingsButNotLauncher(t *testing.T) {
	bus := NewBus()
	a := clip.New(clip.WithBus(bus))
	b := clip.New(clip.WithBus(bus))
	bus.Register(a)
	bus.Register(b)

	a.SetBounds(cursor.MustNew(1000, 0, 0), cursor.Zero, cursor.MustNew(1000, 0, 0))
	b.SetBounds(cursor.MustNew(1000, 0, 0), cursor.Zero, cursor.MustNew(1000, 0, 0))

	b.Launch()
	a.Launch()

	if b.State() != clip.Idle {
		t.Fatalf("b.State() = %v, want IDLE (a's launch stops its sibling b)", b.State())
	}
	if a.State() != clip.Playing {
		t.Fatalf("a.State() = %v, want PLAYING (a's launch must not stop itself)", a.State())
	}
}
