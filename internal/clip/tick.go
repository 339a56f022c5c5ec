package clip

import "github.com/cbegin/clipengine/internal/cursor"

// Run advances the clip by deltaMs, implementing the tick of spec.md §4.6.
// The tick never fails (spec.md §7): lane-level errors are isolated inside
// the lanes themselves.
func (c *Clip) Run(deltaMs float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}

	next, ok := c.computeNextCursorLocked(deltaMs)
	if !ok {
		return
	}
	c.nextCursor = next

	switch {
	case c.armed && !c.hasTimeline:
		c.runFirstRecordingLocked()
	case c.armed:
		c.state = Overdubbing
		c.isRecording = true
		c.runOverdubLocked()
	default:
		if c.state == Overdubbing {
			c.state = Playing
			c.isRecording = false
		}
		if c.automationOn {
			c.runAutomationLocked(false)
		}
		c.runSnapshotLocked(deltaMs)
		if c.automationOn && c.automationFinishedLocked() {
			if c.snapshot == nil || !c.snapshot.IsInTransition() {
				c.onStopLocked()
				return
			}
		}
	}

	if c.pendingStop && c.reachedStopBoundaryLocked() {
		c.onStopLocked()
	}
}

// computeNextCursorLocked derives next_cursor for this tick (spec.md §4.6
// "Tick"). A regressed TEMPO transport re-anchors references and the caller
// should skip the rest of the tick for this call.
func (c *Clip) computeNextCursorLocked(deltaMs float64) (cursor.Cursor, bool) {
	op := c.cursorOp()
	if c.timeBase != cursor.Tempo {
		return op.Add(c.cursor, cursor.Cursor{}.WithMillis(deltaMs, c.referenceBPM)), true
	}

	transportNow := c.transportCursor()
	if op.IsBefore(transportNow, c.startTransportRef) {
		// spec.md §8 scenario 6: tempo-rewind recovery. Re-anchor without
		// negative arithmetic and log a single warning.
		if c.warner != nil {
			c.warner.Warn("transport regressed; re-anchoring clip references", map[string]any{
				"clipIndex": c.index,
			})
		}
		c.startTransportRef = transportNow
		c.startCursorRef = c.cursor
		c.nextCursor = c.cursor
		return c.cursor, false
	}

	elapsed := op.Subtract(transportNow, c.startTransportRef)
	next := op.Add(c.startCursorRef, elapsed)

	if c.pendingStop {
		// Snap the transport reference DOWN to the stop boundary for this
		// frame (spec.md §4.6 "Tick").
		next = op.SnapDown(next, msPerBeatHint(op), 1)
	}
	return next, true
}

// runFirstRecordingLocked implements spec.md §4.6: drain record queues,
// extend the timeline to next_cursor, advance the cursor.
func (c *Clip) runFirstRecordingLocked() {
	for _, l := range c.lanes {
		l.CommitRecordQueue(true)
	}
	c.length = c.nextCursor
	c.loopLength = c.nextCursor
	c.playEnd = c.nextCursor
	c.cursor = c.nextCursor
}

// runOverdubLocked implements spec.md §4.6's armed-but-has-timeline branch.
func (c *Clip) runOverdubLocked() {
	c.runAutomationLocked(true)
}

// runSnapshotLocked drives the snapshot controller alongside automation
// (spec.md §4.6, §6 "Snapshot").
func (c *Clip) runSnapshotLocked(deltaMs float64) {
	if c.snapshot == nil || !c.snapshotOn {
		return
	}
	c.snapshot.Loop(deltaMs)
}

// automationFinishedLocked reports whether the cursor has reached the end
// of non-looping automation.
func (c *Clip) automationFinishedLocked() bool {
	op := c.cursorOp()
	end := c.playEnd
	if c.loopOn {
		end = c.loopEnd()
	}
	return op.IsAfterOrEqual(c.cursor, end)
}

// reachedStopBoundaryLocked reports whether a pending quantized stop's
// boundary has been reached this frame.
func (c *Clip) reachedStopBoundaryLocked() bool {
	if c.transport == nil {
		return true
	}
	div := c.quantizationDivision()
	if div == nil {
		return true
	}
	op := c.cursorOp()
	boundary := op.SnapCeiling(c.cursor, msPerBeatHint(op)*div.Multiplier, div.Multiplier)
	return op.IsAfterOrEqual(c.cursor, boundary)
}

// runAutomationLocked implements spec.md §4.6 "run_automation(isOverdub)".
func (c *Clip) runAutomationLocked(isOverdub bool) {
	op := c.cursorOp()

	endCursor := c.playEnd
	looping := c.loopOn
	if looping {
		endCursor = c.loopEnd()
	}
	if op.IsAfter(c.cursor, endCursor) {
		// spec.md §9: reproduce the source's "loop launched past the loop
		// end" branch verbatim: fall back to length, disable looping here.
		endCursor = c.length
		looping = false
	}

	if isOverdub && op.IsAfterOrEqual(c.nextCursor, endCursor) && !looping {
		endCursor = c.nextCursor
		c.isOverdubExtension = true
	}

	if op.IsBefore(c.nextCursor, endCursor) {
		c.dispatchLocked(isOverdub, c.cursor, c.nextCursor, false)
		c.cursor = c.nextCursor
		return
	}

	c.dispatchLocked(isOverdub, c.cursor, endCursor, true)
	if c.isOverdubExtension {
		c.length = endCursor
		c.playEnd = endCursor
		c.isOverdubExtension = false
	}

	if op.IsZero(c.length) || !looping {
		c.cursor = endCursor
		return
	}

	next := c.nextCursor
	for op.IsAfterOrEqual(next, c.loopEnd()) {
		loopEnd := c.loopEnd()
		if op.IsZero(c.loopLength) {
			if c.warner != nil {
				c.warner.Warn("automation reached a zero-length loop boundary; stopping", map[string]any{
					"clipIndex": c.index,
				})
			}
			c.cursor = loopEnd
			c.onStopLocked()
			return
		}
		next = op.Subtract(next, c.loopLength)
		for _, l := range c.lanes {
			l.LoopCursor(loopEnd, c.loopStart)
		}
		if op.IsBefore(next, loopEnd) {
			c.dispatchLocked(isOverdub, c.loopStart, next, false)
		} else {
			c.dispatchLocked(isOverdub, c.loopStart, loopEnd, true)
		}
	}
	c.cursor = next

	// Re-anchor the transport reference to the new loop-relative position.
	elapsedSinceLoopStart := op.Subtract(next, c.loopStart)
	transportNow := c.transportCursor()
	if op.IsBefore(transportNow, elapsedSinceLoopStart) {
		// Would underflow; hard re-anchor instead.
		c.startTransportRef = transportNow
	} else {
		c.startTransportRef = op.Subtract(transportNow, elapsedSinceLoopStart)
	}
	c.startCursorRef = c.loopStart
}

// dispatchLocked runs the overdub or plain playback traversal for [from,to].
func (c *Clip) dispatchLocked(isOverdub bool, from, to cursor.Cursor, inclusive bool) {
	for _, l := range c.lanes {
		if isOverdub {
			l.OverdubCursor(from, to, inclusive)
		} else {
			l.PlayCursor(from, to, inclusive)
		}
	}
}
