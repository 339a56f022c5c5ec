// Package clip implements the per-clip transport and state machine (spec.md
// §4.6): launch/stop quantization, the record/overdub/play tick, loop
// wraparound, and tempo-reference drift correction.
package clip

// Division is a launch-quantization grid (spec.md §6 "Transport / Tempo"):
// a multiplier of the transport's beat, expressed in both projections so a
// Clip can derive a boundary cursor regardless of its own TimeBase.
type Division struct {
	Multiplier float64
}

// Transport is the external collaborator supplying the global tempo and
// beat position (spec.md §6). A nil *Division from LaunchQuantization means
// NONE (unquantized launches/stops).
type Transport interface {
	NowMillis() float64
	BPM() float64
	BeatCount() int32
	Basis() float64
	LaunchQuantization() *Division
}

// SnapshotController is the external collaborator driving recall/transition
// playback alongside a clip's automation (spec.md §6 "Snapshot").
type SnapshotController interface {
	Recall()
	Loop(deltaMs float64)
	IsInTransition() bool
	StopTransition()
}

// Bus is the owning collection a Clip belongs to: it knows how to stop a
// clip's siblings on launch (spec.md §4.6 on_start step 1). The Transport and
// SnapshotController come from the clip's own options, not from the Bus. A
// clip with no Bus treats stop-siblings
// as a no-op (useful for standalone tests).
type Bus interface {
	StopSiblings(except *Clip)
}
