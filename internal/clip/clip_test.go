package clip

import (
	"testing"

	"github.com/cbegin/clipengine/internal/cursor"
	"github.com/cbegin/clipengine/internal/lane"
	"github.com/stretchr/testify/require"
)

type fakeParameterTarget struct {
	value     float64
	listeners map[string]func(float64)
}

func newFakeParameterTarget(initial float64) *fakeParameterTarget {
	return &fakeParameterTarget{value: initial, listeners: map[string]func(float64){}}
}

func (f *fakeParameterTarget) GetBaseNormalized() float64 { return f.value }
func (f *fakeParameterTarget) SetNormalized(v float64) {
	f.value = v
	for _, fn := range f.listeners {
		fn(v)
	}
}
func (f *fakeParameterTarget) AddListener(id string, fn func(float64)) { f.listeners[id] = fn }
func (f *fakeParameterTarget) RemoveListener(id string)                { delete(f.listeners, id) }
func (f *fakeParameterTarget) IsDescendant(any) bool                   { return false }

func ms(m float64) cursor.Cursor { return cursor.MustNew(m, 0, 0) }

// TestLoopWrapSmallLoop reproduces spec.md §8 scenario 3: a 1000ms clip
// looping every 100ms, ticked once by 350ms, ends at cursor=50 after three
// full wraps.
func TestLoopWrapSmallLoop(t *testing.T) {
	c := New(WithTimeBase(cursor.Absolute))
	c.length = ms(1000)
	c.loopStart = cursor.Zero
	c.loopLength = ms(100)
	c.loopOn = true
	c.playEnd = ms(1000)
	c.hasTimeline = true
	c.running = true
	c.state = Playing
	c.cursor = cursor.Zero

	c.Run(350)

	require.Equal(t, 50.0, c.cursor.Millis, "cursor after 350ms tick through a 100ms loop")
}

type fakeTransport struct {
	nowMillis float64
	bpm       float64
	beatCount int32
	basis     float64
	quant     *Division
}

func (f *fakeTransport) NowMillis() float64          { return f.nowMillis }
func (f *fakeTransport) BPM() float64                { return f.bpm }
func (f *fakeTransport) BeatCount() int32            { return f.beatCount }
func (f *fakeTransport) Basis() float64              { return f.basis }
func (f *fakeTransport) LaunchQuantization() *Division { return f.quant }

type recordingWarner struct {
	warnings []string
}

func (w *recordingWarner) Warn(msg string, _ map[string]any) {
	w.warnings = append(w.warnings, msg)
}

// TestTempoRewindRecovery reproduces spec.md §8 scenario 6: when the
// transport regresses, the clip re-anchors without negative arithmetic and
// logs exactly one warning.
func TestTempoRewindRecovery(t *testing.T) {
	warner := &recordingWarner{}
	transport := &fakeTransport{beatCount: 2, basis: 0}
	c := New(WithTimeBase(cursor.Tempo), WithTransport(transport), WithWarner(warner), WithReferenceBPM(120))
	c.hasTimeline = true
	c.running = true
	c.state = Playing
	c.cursor = ms(1000)
	c.length = ms(5000)
	c.playEnd = ms(5000)
	c.startTransportRef = cursor.Cursor{}.WithBeatSum(10, 120)
	c.startCursorRef = c.cursor

	before := c.cursor
	c.Run(0)

	require.Len(t, warner.warnings, 1, "rewind must log exactly one warning, got %v", warner.warnings)
	require.Equal(t, before.Millis, c.startCursorRef.Millis, "start_cursor_ref should re-anchor to the prior cursor")
	require.Equal(t, before.Millis, c.nextCursor.Millis, "next_cursor should be unchanged by the rewind")
	require.EqualValues(t, 2, c.startTransportRef.BeatCount, "start_transport_ref.beatCount should re-anchor to the new transport reading")
}

// TestCursorStaysWithinBoundsAcrossManyTicks reproduces spec.md §8's
// universal invariant "cursor ∈ [0, length] at the end of every tick" by
// driving a small-loop clip through many uneven ticks and checking the bound
// after each one, not just at the end.
func TestCursorStaysWithinBoundsAcrossManyTicks(t *testing.T) {
	c := New(WithTimeBase(cursor.Absolute))
	c.length = ms(1000)
	c.loopStart = cursor.Zero
	c.loopLength = ms(137)
	c.loopOn = true
	c.playEnd = ms(1000)
	c.hasTimeline = true
	c.running = true
	c.state = Playing
	c.cursor = cursor.Zero

	deltas := []float64{350, 1, 900, 137, 49, 1000, 0.5}
	for _, d := range deltas {
		c.Run(d)
		require.GreaterOrEqual(t, c.cursor.Millis, 0.0, "cursor must never go negative")
		require.LessOrEqual(t, c.cursor.Millis, c.length.Millis, "cursor must never exceed length")
	}
}

// TestStopRecordingPropagatesHasTimelineToOwnedLanes confirms a Clip's own
// hasTimeline flag reaches every ParameterLane it owns when first recording
// ends, via OnStopRecording, so the smoothing stitch of spec.md §4.4.1 step 1
// case 3 is actually reachable through real Clip usage (not only via a lane
// test calling SetHasTimeline by hand).
func TestStopRecordingPropagatesHasTimelineToOwnedLanes(t *testing.T) {
	c := New(WithTimeBase(cursor.Absolute))
	target := newFakeParameterTarget(0)
	pl := lane.NewParameterLane(c.Operator(), lane.VariantContinuous, target, "gain")
	pl.Arm()
	c.AddLane("gain", pl)

	c.SetArmed(true)
	c.Launch()
	require.Equal(t, RecordingFirst, c.State())
	require.False(t, pl.HasTimeline(), "lane should not have a timeline before first recording completes")

	pl.RecordEvent(lane.NewParameterEvent(lane.KindNormalized, ms(0), 0.5))
	c.Run(500)
	c.Stop()

	require.True(t, c.HasTimeline(), "clip should have a timeline after its first recording pass")
	require.True(t, pl.HasTimeline(), "owned ParameterLane should also have a timeline after stop")
}
