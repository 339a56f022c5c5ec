// Package clipengine is the host-facing entry point: a transport-driven
// collection of Clips sharing one Bus, one Transport, and one focused-clip
// reference, built with functional options the way the teacher's Player is
// (see mmlfm.PlayerOption/WithSynthMode). Internals live under internal/;
// this file re-exports the handful of types a host program actually needs.
package clipengine

import (
	"sync"

	"github.com/cbegin/clipengine/internal/adapters"
	"github.com/cbegin/clipengine/internal/clip"
	"github.com/cbegin/clipengine/internal/cursor"
	"github.com/cbegin/clipengine/internal/engine"
	"github.com/cbegin/clipengine/internal/lane"
)

// Re-exported core types, so a host need only import this one package.
type (
	Cursor   = cursor.Cursor
	TimeBase = cursor.TimeBase
	Clip     = clip.Clip
	Variant  = lane.Variant
	Division = clip.Division
)

const (
	// TimeBaseAbsolute and TimeBaseTempo are the two TimeBase values a Clip
	// can be constructed with.
	TimeBaseAbsolute = cursor.Absolute
	TimeBaseTempo    = cursor.Tempo
)

var (
	VariantContinuous      = lane.VariantContinuous
	VariantSteppedBool     = lane.VariantSteppedBool
	VariantSteppedDiscrete = lane.VariantSteppedDiscrete
	VariantTrigger         = lane.VariantTrigger
)

const (
	noteLaneID    = "__note__"
	patternLaneID = "__pattern__"
)

// EngineOption configures an Engine at construction.
type EngineOption func(*engineConfig)

type engineConfig struct {
	referenceBPM float64
	warner       cursor.Warner
}

func defaultEngineConfig() engineConfig {
	return engineConfig{referenceBPM: 120}
}

// WithReferenceBPM sets the default reference tempo new clips are created
// with.
func WithReferenceBPM(bpm float64) EngineOption {
	return func(cfg *engineConfig) { cfg.referenceBPM = bpm }
}

// WithWarner installs the invariant-warning sink (spec.md §7) forwarded to
// every clip this engine creates.
func WithWarner(w cursor.Warner) EngineOption {
	return func(cfg *engineConfig) { cfg.warner = w }
}

// Engine ties a Bus, a Transport, and a focused-clip reference together,
// and owns the lane registry each of its clips uses for lazy parameter-lane
// creation (spec.md §3 "Lifecycle", §4.7 "ClipEngine focus").
type Engine struct {
	mu sync.Mutex
	cfg engineConfig

	Bus       *adapters.Bus
	Transport *adapters.Transport
	Focus     *engine.Focus

	clips      []*clip.Clip
	registries map[*clip.Clip]*engine.LaneRegistry
}

// NewEngine constructs an Engine with an in-memory Bus and Transport.
func NewEngine(opts ...EngineOption) *Engine {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine{
		cfg:        cfg,
		Bus:        adapters.NewBus(),
		Transport:  adapters.NewTransport(cfg.referenceBPM),
		Focus:      engine.New(),
		registries: make(map[*clip.Clip]*engine.LaneRegistry),
	}
}

// NewClip constructs a Clip wired to this engine's Bus/Transport/Warner,
// registers it with the Bus, and returns it alongside a LaneRegistry for
// dynamic parameter-lane creation (spec.md §3 "Lifecycle").
func (e *Engine) NewClip(opts ...clip.Option) (*clip.Clip, *engine.LaneRegistry) {
	base := []clip.Option{
		clip.WithBus(e.Bus),
		clip.WithTransport(e.Transport),
		clip.WithReferenceBPM(e.cfg.referenceBPM),
	}
	if e.cfg.warner != nil {
		base = append(base, clip.WithWarner(e.cfg.warner))
	}
	c := clip.New(append(base, opts...)...)
	e.Bus.Register(c)

	reg := engine.NewLaneRegistry(c, c.Operator())

	e.mu.Lock()
	e.clips = append(e.clips, c)
	e.registries[c] = reg
	e.mu.Unlock()

	return c, reg
}

// Clips returns every clip this engine has created.
func (e *Engine) Clips() []*clip.Clip {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*clip.Clip, len(e.clips))
	copy(out, e.clips)
	return out
}

// LaneRegistry returns the lane registry for a clip created by this engine.
func (e *Engine) LaneRegistry(c *clip.Clip) (*engine.LaneRegistry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.registries[c]
	return r, ok
}

// AttachNoteLane creates and permanently registers c's single note lane,
// dispatching through sink (spec.md §3 "Lifecycle": the fixed note lane is
// permanent and rejected by removal).
func (e *Engine) AttachNoteLane(c *clip.Clip, sink lane.MidiSink) *lane.NoteLane {
	nl := lane.NewNoteLane(c.Operator(), sink)
	c.AddPermanentLane(noteLaneID, nl)
	return nl
}

// AttachPatternLane creates and permanently registers c's primary pattern
// lane, dispatching through selector (spec.md §3 "Lifecycle").
func (e *Engine) AttachPatternLane(c *clip.Clip, selector lane.PatternSelector) *lane.PatternLane {
	pl := lane.NewPatternLane(c.Operator(), selector)
	c.AddPermanentLane(patternLaneID, pl)
	return pl
}

// ListenParameter begins listening to target under path on c's lane
// registry, lazily creating the backing ParameterLane on target's first
// observed value change (spec.md §3 "Lifecycle").
func (e *Engine) ListenParameter(c *clip.Clip, path string, target lane.ParameterTarget, variant lane.Variant) {
	reg, ok := e.LaneRegistry(c)
	if !ok {
		return
	}
	reg.Listen(path, target, variant, c.Cursor)
}

// UnregisterComponent tears down every lane on c whose listened parameter
// belongs to component, per spec.md §6 "Parameter graph":
// "is_descendant(component) lets the core locate all lanes for removal on
// component teardown."
func (e *Engine) UnregisterComponent(c *clip.Clip, component any) {
	reg, ok := e.LaneRegistry(c)
	if !ok {
		return
	}
	reg.UnregisterComponent(component)
}

// Tick advances the engine's Transport and every clip it owns by deltaMs
// (spec.md §5 "Scheduling model": single-threaded cooperative tick).
func (e *Engine) Tick(deltaMs float64) {
	e.Transport.Advance(deltaMs)
	for _, c := range e.Clips() {
		c.Run(deltaMs)
	}
}
