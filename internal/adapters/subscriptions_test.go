package adapters

import "testing"

func TestSubscriptionRegistryUnregisterIsPrecise(t *testing.T) {
	r := NewSubscriptionRegistry()
	target := NewParameterTarget(0)

	var aCalls, bCalls int
	idA := r.Register(target, func(float64) { aCalls++ })
	idB := r.Register(target, func(float64) { bCalls++ })

	target.SetNormalized(0.5)
	if aCalls != 1 || bCalls != 1 {
		t.Fatalf("aCalls=%d bCalls=%d, want 1/1", aCalls, bCalls)
	}

	if !r.Unregister(idA) {
		t.Fatalf("Unregister(idA) = false, want true")
	}
	if r.Unregister(idA) {
		t.Fatalf("Unregister(idA) twice = true, want false the second time")
	}

	target.SetNormalized(0.75)
	if aCalls != 1 {
		t.Fatalf("aCalls = %d after unregister, want unchanged at 1", aCalls)
	}
	if bCalls != 2 {
		t.Fatalf("bCalls = %d, want 2 (idB still registered)", bCalls)
	}

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	_ = idB
	r.DisposeAll()
	if r.Len() != 0 {
		t.Fatalf("Len() after DisposeAll = %d, want 0", r.Len())
	}
	target.SetNormalized(1)
	if bCalls != 2 {
		t.Fatalf("bCalls = %d after DisposeAll, want unchanged at 2", bCalls)
	}
}
