package clip

import "github.com/cbegin/clipengine/internal/cursor"

// Snapshot is the plain-data projection of a Clip's persisted fields (spec.md
// §6 "Persistence"), independent of any encoding. Lanes are serialized
// separately by their own owner (internal/adapters), since a Clip only knows
// its lanes by the generic lane.ClipLane interface.
type Snapshot struct {
	Index        int
	ReferenceBPM float64
	TimeBase     cursor.TimeBase

	Length     cursor.Cursor
	LoopStart  cursor.Cursor
	LoopLength cursor.Cursor
	PlayStart  cursor.Cursor
	PlayEnd    cursor.Cursor

	Loop                 bool
	SnapshotOn           bool
	SnapshotTransitionOn bool
	AutomationOn         bool

	HasTimeline bool
}

// Snapshot captures the clip's persisted fields.
func (c *Clip) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Index:                c.index,
		ReferenceBPM:         c.referenceBPM,
		TimeBase:             c.timeBase,
		Length:               c.length,
		LoopStart:            c.loopStart,
		LoopLength:           c.loopLength,
		PlayStart:            c.playStart,
		PlayEnd:              c.playEnd,
		Loop:                 c.loopOn,
		SnapshotOn:           c.snapshotOn,
		SnapshotTransitionOn: c.snapshotTransitionOn,
		AutomationOn:         c.automationOn,
		HasTimeline:          c.hasTimeline,
	}
}

// Restore applies a previously captured Snapshot (spec.md §6 "Persistence").
// It does not touch lanes; callers restore lane events separately and then
// call Restore once the lane set is in place.
func (c *Clip) Restore(s Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = s.Index
	c.referenceBPM = s.ReferenceBPM
	c.timeBase = s.TimeBase
	c.length = s.Length
	c.loopStart = s.LoopStart
	c.loopLength = s.LoopLength
	c.playStart = s.PlayStart
	c.playEnd = s.PlayEnd
	c.loopOn = s.Loop
	c.snapshotOn = s.SnapshotOn
	c.snapshotTransitionOn = s.SnapshotTransitionOn
	c.automationOn = s.AutomationOn
	c.hasTimeline = s.HasTimeline
}
