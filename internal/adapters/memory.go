// Package adapters provides concrete, in-memory implementations of the
// external collaborator interfaces spec.md §6 defines (Transport,
// ParameterTarget, MidiSink, PatternSelector, SnapshotController, clip.Bus),
// plus the listener-subscription bookkeeping and persistence codec the
// engine needs to actually run end to end. None of this is part of the
// core's own contract — a real host supplies its own tempo source, MIDI
// transport, and parameter graph — but cmd/clipctl and the test suite need
// something concrete to drive against.
package adapters

import (
	"sync"

	"github.com/cbegin/clipengine/internal/clip"
	"github.com/cbegin/clipengine/internal/lane"
)

// Transport is a free-running, settable implementation of clip.Transport.
// Advance(deltaMs) moves the wall clock and derives a beat position from bpm,
// mirroring how a real sequencer host would drive both projections from one
// underlying clock.
type Transport struct {
	mu        sync.Mutex
	nowMillis float64
	bpm       float64
	beatCount int32
	basis     float64
	quant     *clip.Division
}

// NewTransport constructs a Transport at time zero with the given bpm.
func NewTransport(bpm float64) *Transport {
	return &Transport{bpm: bpm}
}

// Advance moves the transport forward by deltaMs, re-deriving the beat
// position from the current bpm.
func (t *Transport) Advance(deltaMs float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nowMillis += deltaMs
	if t.bpm <= 0 {
		return
	}
	beats := t.nowMillis / (60000.0 / t.bpm)
	whole := int32(beats)
	t.beatCount = whole
	t.basis = beats - float64(whole)
}

// SetLaunchQuantization sets the launch/stop quantization grid. A nil
// division means unquantized.
func (t *Transport) SetLaunchQuantization(d *clip.Division) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.quant = d
}

// NowMillis implements clip.Transport.
func (t *Transport) NowMillis() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nowMillis
}

// BPM implements clip.Transport.
func (t *Transport) BPM() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bpm
}

// BeatCount implements clip.Transport.
func (t *Transport) BeatCount() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.beatCount
}

// Basis implements clip.Transport.
func (t *Transport) Basis() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.basis
}

// LaunchQuantization implements clip.Transport.
func (t *Transport) LaunchQuantization() *clip.Division {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quant
}

// MidiSink records every dispatched note message, for test assertions and
// for cmd/clipctl's printed trace.
type MidiSink struct {
	mu   sync.Mutex
	Sent []NoteMessage
	Tap  func(NoteMessage)
}

// NoteMessage is one dispatched note on/off event.
type NoteMessage struct {
	Channel, Pitch, Velocity int
	Command                  lane.MidiCommand
}

// NewMidiSink constructs an empty MidiSink.
func NewMidiSink() *MidiSink { return &MidiSink{} }

// SendNote implements lane.MidiSink.
func (s *MidiSink) SendNote(channel int, command lane.MidiCommand, pitch, velocity int) {
	msg := NoteMessage{Channel: channel, Command: command, Pitch: pitch, Velocity: velocity}
	s.mu.Lock()
	s.Sent = append(s.Sent, msg)
	tap := s.Tap
	s.mu.Unlock()
	if tap != nil {
		tap(msg)
	}
}

// ParameterTarget is a listenable normalized parameter (spec.md §6
// "Parameter graph"), optionally owned by a component so a whole subtree of
// parameters can be located for teardown in one shot.
type ParameterTarget struct {
	mu        sync.Mutex
	value     float64
	listeners map[string]func(float64)
	component any
}

// NewParameterTarget constructs a ParameterTarget starting at base, with no
// owning component.
func NewParameterTarget(base float64) *ParameterTarget {
	return &ParameterTarget{value: base, listeners: make(map[string]func(float64))}
}

// NewComponentParameterTarget constructs a ParameterTarget starting at base,
// belonging to component (spec.md §6 "A parameter may belong to a component
// tree").
func NewComponentParameterTarget(base float64, component any) *ParameterTarget {
	return &ParameterTarget{value: base, listeners: make(map[string]func(float64)), component: component}
}

// IsDescendant implements lane.ParameterTarget: reports whether this
// parameter belongs to component.
func (p *ParameterTarget) IsDescendant(component any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.component != nil && p.component == component
}

// GetBaseNormalized implements lane.ParameterTarget.
func (p *ParameterTarget) GetBaseNormalized() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

// SetNormalized implements lane.ParameterTarget, notifying listeners.
func (p *ParameterTarget) SetNormalized(v float64) {
	p.mu.Lock()
	p.value = v
	fns := make([]func(float64), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// AddListener implements lane.ParameterTarget.
func (p *ParameterTarget) AddListener(id string, fn func(v float64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners[id] = fn
}

// RemoveListener implements lane.ParameterTarget.
func (p *ParameterTarget) RemoveListener(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.listeners, id)
}

// PatternSelector is an in-memory pattern bank (spec.md §6 "Pattern
// selector").
type PatternSelector struct {
	mu       sync.Mutex
	patterns []int
	active   int
	target   int
}

// NewPatternSelector constructs a selector over the given ordered patterns,
// starting active/target at patterns[0] (or 0 if empty).
func NewPatternSelector(patterns []int) *PatternSelector {
	s := &PatternSelector{patterns: patterns}
	if len(patterns) > 0 {
		s.active = patterns[0]
		s.target = patterns[0]
	}
	return s
}

// GoPattern implements lane.PatternSelector: selecting p makes it both the
// active and target pattern immediately (no host-side transition modeled).
func (s *PatternSelector) GoPattern(p int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = p
	s.target = p
}

// ActivePattern implements lane.PatternSelector.
func (s *PatternSelector) ActivePattern() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// TargetPattern implements lane.PatternSelector.
func (s *PatternSelector) TargetPattern() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Patterns implements lane.PatternSelector.
func (s *PatternSelector) Patterns() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.patterns))
	copy(out, s.patterns)
	return out
}

// SnapshotController is a no-transition stub implementation of
// clip.SnapshotController: Recall/Loop are no-ops and IsInTransition is
// always false, suitable for hosts and tests that do not model snapshot
// interpolation.
type SnapshotController struct {
	mu           sync.Mutex
	inTransition bool
}

// NewSnapshotController constructs an idle SnapshotController.
func NewSnapshotController() *SnapshotController { return &SnapshotController{} }

// Recall implements clip.SnapshotController.
func (s *SnapshotController) Recall() {}

// Loop implements clip.SnapshotController.
func (s *SnapshotController) Loop(deltaMs float64) {}

// IsInTransition implements clip.SnapshotController.
func (s *SnapshotController) IsInTransition() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTransition
}

// StopTransition implements clip.SnapshotController.
func (s *SnapshotController) StopTransition() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inTransition = false
}

// Bus is a simple clip.Bus implementation tracking a flat set of sibling
// clips, stopping every other registered clip on launch (spec.md §4.6
// on_start step 1).
type Bus struct {
	mu    sync.Mutex
	clips []*clip.Clip
}

// NewBus constructs an empty Bus.
func NewBus() *Bus { return &Bus{} }

// Register adds c to the bus's sibling set.
func (b *Bus) Register(c *clip.Clip) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clips = append(b.clips, c)
}

// StopSiblings implements clip.Bus.
func (b *Bus) StopSiblings(except *clip.Clip) {
	b.mu.Lock()
	clips := make([]*clip.Clip, len(b.clips))
	copy(clips, b.clips)
	b.mu.Unlock()
	for _, c := range clips {
		if c != except {
			c.Stop()
		}
	}
}
