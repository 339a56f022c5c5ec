package clip

import "github.com/cbegin/clipengine/internal/cursor"

// Launch starts the clip immediately (spec.md §4.6). When the clip is in
// TEMPO mode and the transport has a quantization division set, the launch
// is flagged as quantized, but the start is not deferred to the next
// quantization boundary.
func (c *Clip) Launch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isQuantizedLaunch = c.timeBase == cursor.Tempo && c.quantizationDivision() != nil
	c.onStartLocked()
}

// LaunchAutomationFrom sets launch_from = bound(at) then schedules a launch
// the same way Launch does.
func (c *Clip) LaunchAutomationFrom(at cursor.Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.launchFrom = c.bound(at)
	c.isQuantizedLaunch = c.timeBase == cursor.Tempo && c.quantizationDivision() != nil
	c.onStartLocked()
}

// PlayFrom schedules an immediate, unquantized start at c. Disallowed if
// already running or if the clip has no completed timeline.
func (c *Clip) PlayFrom(at cursor.Cursor) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || !c.hasTimeline {
		return false
	}
	c.launchFrom = c.bound(at)
	c.isQuantizedLaunch = false
	c.onStartLocked()
	return true
}

// Stop halts immediately.
func (c *Clip) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isQuantizedStop = false
	c.onStopLocked()
}

// TriggerStop requests a stop. In TEMPO mode with launch-quantization active
// this defers to the next quantization boundary; otherwise it stops now.
func (c *Clip) TriggerStop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeBase == cursor.Tempo && c.quantizationDivision() != nil {
		c.isQuantizedStop = true
		c.pendingStop = true
		return
	}
	c.onStopLocked()
}

func (c *Clip) quantizationDivision() *Division {
	if c.transport == nil {
		return nil
	}
	return c.transport.LaunchQuantization()
}

// onStartLocked implements spec.md §4.6 "On start". Caller holds c.mu.
func (c *Clip) onStartLocked() {
	if c.bus != nil {
		c.bus.StopSiblings(c)
	}
	c.cursor = c.bound(c.launchFrom)
	c.startTransportRef = c.transportCursor()
	c.startCursorRef = c.cursor

	for _, l := range c.lanes {
		l.InitializeCursorPlayback(c.cursor)
	}

	c.running = true
	switch {
	case c.armed && !c.hasTimeline:
		c.state = RecordingFirst
		c.isRecording = true
	case c.armed:
		c.state = Overdubbing
		c.isRecording = true
	default:
		c.state = Playing
		c.isRecording = false
	}
}

// onStopLocked implements spec.md §4.6 "On stop". Caller holds c.mu.
func (c *Clip) onStopLocked() {
	if c.isRecording {
		c.armed = false
		c.stopRecordingLocked()
	} else {
		c.stopPlaybackLocked()
	}
	if c.snapshot != nil {
		c.snapshot.StopTransition()
	}
	c.running = false
	c.isRecording = false
	c.pendingStop = false
	c.state = Idle
}

// stopPlaybackLocked terminates any held per-lane playback state (note-offs
// for sounding notes).
func (c *Clip) stopPlaybackLocked() {
	for _, l := range c.lanes {
		if stopper, ok := l.(interface{ OnStopPlayback() }); ok {
			stopper.OnStopPlayback()
		}
	}
}

// stopRecordingLocked implements the recording-stop length quantization of
// spec.md §4.6.
func (c *Clip) stopRecordingLocked() {
	op := c.cursorOp()
	stopCursor := c.cursor

	for _, l := range c.lanes {
		l.CommitRecordQueue(true)
		if stopper, ok := l.(interface{ OnStopRecording(cursor.Cursor) }); ok {
			stopper.OnStopRecording(stopCursor)
		}
	}

	finalLength := stopCursor
	if c.timeBase == cursor.Tempo && c.quantizationDivision() != nil {
		div := c.quantizationDivision()
		snapped := op.Snap(stopCursor, div.Multiplier*msPerBeatHint(op), div.Multiplier)
		if c.truncatesAnyEvent(snapped) {
			snapped = op.SnapUp(stopCursor, div.Multiplier*msPerBeatHint(op), div.Multiplier)
		}
		finalLength = snapped
	}

	if !c.hasTimeline {
		c.length = finalLength
		c.loopLength = finalLength
		c.playEnd = finalLength
		c.playStart = cursor.Zero
		c.loopStart = cursor.Zero
		c.loopOn = true
		c.hasTimeline = true
	} else {
		// Hot-stopping during overdub: keep cursor within [0, length].
		if op.IsAfter(c.cursor, c.length) {
			c.cursor = op.Subtract(c.cursor, c.length)
		}
	}
}

// truncatesAnyEvent reports whether snapping the stop length to to would cut
// off any already-recorded lane event.
func (c *Clip) truncatesAnyEvent(to cursor.Cursor) bool {
	op := c.cursorOp()
	for _, l := range c.lanes {
		events := l.Events()
		all := events.All()
		for _, e := range all {
			if op.IsAfter(e.EventCursor(), to) {
				return true
			}
		}
	}
	return false
}

// transportCursor derives the transport's current position as a Cursor
// under this clip's reference tempo (used as start_transport_ref).
func (c *Clip) transportCursor() cursor.Cursor {
	if c.transport == nil {
		return cursor.Zero
	}
	if c.timeBase == cursor.Tempo {
		beatSum := float64(c.transport.BeatCount()) + c.transport.Basis()
		return cursor.Cursor{}.WithBeatSum(beatSum, c.referenceBPM)
	}
	return cursor.Cursor{}.WithMillis(c.transport.NowMillis(), c.referenceBPM)
}

// msPerBeatHint derives the millisecond size of one beat at this operator's
// reference tempo, used to express a Division's multiplier in both
// projections when calling Snap/SnapUp.
func msPerBeatHint(op cursor.Operator) float64 {
	if op.ReferenceBPM <= 0 {
		return 500
	}
	return 60000.0 / op.ReferenceBPM
}
