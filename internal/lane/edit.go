package lane

import (
	"sort"

	"github.com/cbegin/clipengine/internal/cursor"
)

// SetEventsCursorsArgs is the general edit primitive's argument bundle
// (spec.md §4.3 "set_events_cursors contract"): a describe-then-apply edit
// over a sub-range of a lane, used for stretch/move/reverse/clear.
type SetEventsCursorsArgs struct {
	// EventIDs identifies the events under edit by their lane-assigned
	// insertion sequence (Event.Seq()).
	EventIDs []int64
	FromMin, FromMax cursor.Cursor
	ToMin, ToMax     cursor.Cursor
	OriginalCursor   map[int64]cursor.Cursor
	OriginalValue    map[int64]float64
	TargetCursor     map[int64]cursor.Cursor
	Operation        Operation
}

// SetEventsCursors implements spec.md §4.3's edit primitive: restore
// originals, and for anything but OpNone, compute stitches at the edit
// boundary, reposition the edited events (optionally reversing stepped
// values per §4.4.4), reinsert, and drop any stitch that turns out
// semantically redundant (§4.4.5). Returns true if anything changed.
func (p *ParameterLane) SetEventsCursors(edit SetEventsCursorsArgs) bool {
	events := p.Events()
	events.Begin()
	defer events.Commit()

	all := events.All()
	byID := make(map[int64]int, len(all))
	for i, e := range all {
		byID[e.seq] = i
	}

	// Step 1: restore all cursors and values to originals.
	for id, c := range edit.OriginalCursor {
		if i, ok := byID[id]; ok {
			all[i].Cursor = c
			if v, ok := edit.OriginalValue[id]; ok {
				all[i].Normalized = v
			}
		}
	}
	events.Set(all)

	if edit.Operation == OpNone {
		return true
	}

	// Gather the edited events in original-cursor order.
	edited := make([]Event, 0, len(edit.EventIDs))
	for _, id := range edit.EventIDs {
		if i, ok := byID[id]; ok {
			edited = append(edited, all[i])
		}
	}
	sort.Slice(edited, func(i, j int) bool {
		return events.Operator().IsBefore(edited[i].Cursor, edited[j].Cursor)
	})

	reversed := edit.Operation == OpReverseLeftToRight || edit.Operation == OpReverseRightToLeft
	values := make([]float64, len(edited))
	for i, e := range edited {
		values[i] = e.Normalized
	}
	if reversed {
		n := len(values)
		mirrored := make([]float64, n)
		for i := 0; i < n; i++ {
			mirrored[i] = values[n-1-i]
		}
		if !p.variant.Interpolated {
			// spec.md §4.4.4: after reversing positions, shift values by one
			// within the reversed window to preserve the mirrored
			// held-value pattern.
			shifted := make([]float64, n)
			for i := 0; i < n-1; i++ {
				shifted[i] = mirrored[i+1]
			}
			if n > 0 {
				shifted[n-1] = mirrored[n-1]
			}
			values = shifted
		} else {
			values = mirrored
		}
	}

	// Outer stitches at the source bounds, computed before repositioning.
	var outerMin, outerMax *Event
	if v, ok := p.heldValueAt(edit.FromMin); ok {
		e := NewParameterEvent(p.variant.Kind, edit.FromMin, v).WithSeq(p.nextSeq())
		outerMin = &e
	}
	if v, ok := p.heldValueAt(edit.FromMax); ok {
		e := NewParameterEvent(p.variant.Kind, edit.FromMax, v).WithSeq(p.nextSeq())
		outerMax = &e
	}

	// Remove events in the target range (they will be replaced by the
	// repositioned edited set), then reinsert the edited events at their
	// target cursors with the (possibly reverse-shifted) values.
	events.RemoveRange(edit.ToMin, edit.ToMax)
	for i, e := range edited {
		target := e.Cursor
		if tc, ok := edit.TargetCursor[e.seq]; ok {
			target = tc
		}
		e.Cursor = target
		e.Normalized = values[i]
		events.InsertSorted(e)
	}

	// Inner stitches at the destination bounds, computed after repositioning.
	var innerMin, innerMax *Event
	if v, ok := p.heldValueAt(edit.ToMin); ok {
		e := NewParameterEvent(p.variant.Kind, edit.ToMin, v).WithSeq(p.nextSeq())
		innerMin = &e
	}
	if v, ok := p.heldValueAt(edit.ToMax); ok {
		e := NewParameterEvent(p.variant.Kind, edit.ToMax, v).WithSeq(p.nextSeq())
		innerMax = &e
	}

	for _, stitch := range []*Event{outerMin, outerMax, innerMin, innerMax} {
		if stitch == nil {
			continue
		}
		if !p.stitchRedundant(*stitch) {
			idx := events.InsertIndex(stitch.Cursor)
			events.Insert(idx, *stitch)
		}
	}
	return true
}
