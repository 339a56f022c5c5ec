package clip

import (
	"sync"

	"github.com/cbegin/clipengine/internal/cursor"
	"github.com/cbegin/clipengine/internal/lane"
)

// State is one of the four transport states of spec.md §4.6.
type State int

const (
	Idle State = iota
	Playing
	RecordingFirst
	Overdubbing
)

func (s State) String() string {
	switch s {
	case Playing:
		return "PLAYING"
	case RecordingFirst:
		return "RECORDING_FIRST"
	case Overdubbing:
		return "OVERDUBBING"
	default:
		return "IDLE"
	}
}

// Option configures a Clip at construction (mirrors the functional-options
// shape used throughout this module).
type Option func(*Clip)

// WithBus attaches the owning bus, used to stop sibling clips on launch.
func WithBus(b Bus) Option {
	return func(c *Clip) { c.bus = b }
}

// WithTransport attaches the global tempo source.
func WithTransport(t Transport) Option {
	return func(c *Clip) { c.transport = t }
}

// WithSnapshot attaches the snapshot controller driven alongside automation.
func WithSnapshot(s SnapshotController) Option {
	return func(c *Clip) { c.snapshot = s }
}

// WithWarner attaches the invariant-warning sink (spec.md §7), forwarded to
// every Operator this clip derives.
func WithWarner(w cursor.Warner) Option {
	return func(c *Clip) { c.warner = w }
}

// WithIndex sets the clip's bus-assigned index (spec.md §3 "Lifecycle").
func WithIndex(i int) Option {
	return func(c *Clip) { c.index = i }
}

// WithTimeBase sets the clip's initial TimeBase (default Absolute).
func WithTimeBase(b cursor.TimeBase) Option {
	return func(c *Clip) { c.timeBase = b }
}

// WithReferenceBPM sets the clip's reference tempo, captured at creation and
// used to project between ABSOLUTE and TEMPO bases (spec.md §3, GLOSSARY).
func WithReferenceBPM(bpm float64) Option {
	return func(c *Clip) { c.referenceBPM = bpm }
}

// Clip is a recordable/playable timeline bound to a bus (spec.md §3, §4.6).
// All cursor comparisons route through cursorOp(), never raw field access.
type Clip struct {
	mu sync.Mutex

	index     int
	bus       Bus
	transport Transport
	snapshot  SnapshotController
	warner    cursor.Warner

	state  State
	running bool
	armed   bool

	cursor            cursor.Cursor
	nextCursor        cursor.Cursor
	launchFrom        cursor.Cursor
	startTransportRef cursor.Cursor
	startCursorRef    cursor.Cursor

	length     cursor.Cursor
	loopStart  cursor.Cursor
	loopLength cursor.Cursor
	playStart  cursor.Cursor
	playEnd    cursor.Cursor

	loopOn               bool
	automationOn         bool
	snapshotOn           bool
	snapshotTransitionOn bool

	timeBase     cursor.TimeBase
	referenceBPM float64

	hasTimeline        bool
	isRecording        bool
	isOverdubExtension bool
	isQuantizedLaunch  bool
	isQuantizedStop    bool
	pendingStop        bool // a quantized stop has been requested, awaiting its boundary

	lanes        []lane.ClipLane
	laneIDs      map[lane.ClipLane]string
	permanentIDs map[string]bool
}

// New constructs an idle Clip with zero-length timeline, ready to be armed
// and started.
func New(opts ...Option) *Clip {
	c := &Clip{
		timeBase:     cursor.Absolute,
		referenceBPM: 120,
		automationOn: true,
		playEnd:      cursor.MinLoop,
		loopLength:   cursor.MinLoop,
		laneIDs:      make(map[lane.ClipLane]string),
		permanentIDs: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// cursorOp returns the active Operator for this clip's TimeBase (spec.md
// §4.1 "Operator dispatch"). All cursor comparisons in this package MUST go
// through this, never compare raw Cursor fields.
func (c *Clip) cursorOp() cursor.Operator {
	op := cursor.NewOperator(c.timeBase, c.referenceBPM)
	if c.warner != nil {
		op.Warn = c.warner
	}
	return op
}

// AddLane registers a lane under id, created lazily on first use by callers
// (spec.md §3 "Lifecycle"). The fixed note lane and primary pattern lane are
// expected to be registered once at clip creation and never removed.
func (c *Clip) AddLane(id string, l lane.ClipLane) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lanes = append(c.lanes, l)
	c.laneIDs[l] = id
}

// AddPermanentLane registers a lane under id the same way AddLane does, but
// marks it rejected-by-removal (spec.md §3 "Lifecycle": "the fixed note lane
// and ... primary pattern lane, which are permanent and rejected by
// removal").
func (c *Clip) AddPermanentLane(id string, l lane.ClipLane) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lanes = append(c.lanes, l)
	c.laneIDs[l] = id
	c.permanentIDs[id] = true
}

// RemoveLane detaches the lane registered under id, unless it was registered
// via AddPermanentLane.
func (c *Clip) RemoveLane(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.permanentIDs[id] {
		return false
	}
	for i, l := range c.lanes {
		if c.laneIDs[l] == id {
			delete(c.laneIDs, l)
			c.lanes = append(c.lanes[:i], c.lanes[i+1:]...)
			return true
		}
	}
	return false
}

// Lanes returns the clip's current lane set.
func (c *Clip) Lanes() []lane.ClipLane {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]lane.ClipLane, len(c.lanes))
	copy(out, c.lanes)
	return out
}

// State returns the clip's current transport state.
func (c *Clip) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cursor returns the clip's current playhead.
func (c *Clip) Cursor() cursor.Cursor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// HasTimeline reports whether this clip has completed a first recording.
func (c *Clip) HasTimeline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasTimeline
}

// SetArmed sets the clip's record-arm flag (spec.md §4.6). Arming
// while PLAYING hot-transitions into OVERDUBBING on the next tick; disarming
// while OVERDUBBING hot-transitions back to PLAYING, without stopping.
func (c *Clip) SetArmed(armed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.armed = armed
}

// SetLoop configures loop_start/loop_length, deriving loop_end.
func (c *Clip) SetLoop(on bool, start, length cursor.Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loopOn = on
	c.loopStart = start
	c.loopLength = length
}

// SetBounds configures play_start/play_end/length directly (used by loaders
// restoring a persisted clip; live recording derives these itself).
func (c *Clip) SetBounds(length, playStart, playEnd cursor.Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.length = length
	c.playStart = playStart
	c.playEnd = playEnd
}

// loopEnd derives loop_end = loop_start + loop_length under the active
// Operator (spec.md §3: stored as a convenience in the original, here always
// derived so it can never drift out of sync).
func (c *Clip) loopEnd() cursor.Cursor {
	return c.cursorOp().Add(c.loopStart, c.loopLength)
}

// Operator returns the clip's active cursor Operator, derived from its
// current TimeBase and ReferenceBPM. Exposed for external callers (e.g. a
// lane registry) that need to construct lanes ordered the same way this
// clip compares cursors.
func (c *Clip) Operator() cursor.Operator {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursorOp()
}

// bound clamps v into [0, length] under the active Operator (spec.md §3
// invariant: "cursor is always in [0, length] outside the wrap step").
func (c *Clip) bound(v cursor.Cursor) cursor.Cursor {
	return c.cursorOp().Bound(v, cursor.Zero, c.length)
}
