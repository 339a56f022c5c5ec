package adapters

import (
	"encoding/json"
	"fmt"

	"github.com/cbegin/clipengine/internal/clip"
	"github.com/cbegin/clipengine/internal/cursor"
	"github.com/cbegin/clipengine/internal/lane"
	"github.com/cbegin/clipengine/internal/logx"
)

// cursorDoc is a Cursor's on-disk shape (spec.md §6 "Persistence"):
// {millis, beatCount, beatBasis}. UnmarshalJSON also accepts the legacy form
// of a bare JSON number, treated as an ABSOLUTE-basis millis value; its
// beatCount and beatBasis are set to zero, not recomputed from a tempo.
type cursorDoc struct {
	Millis    float64 `json:"millis"`
	BeatCount int32   `json:"beatCount"`
	BeatBasis float64 `json:"beatBasis"`
}

func toCursorDoc(c cursor.Cursor) cursorDoc {
	return cursorDoc{Millis: c.Millis, BeatCount: c.BeatCount, BeatBasis: c.BeatBasis}
}

func (d cursorDoc) toCursor() cursor.Cursor {
	return cursor.MustNew(d.Millis, d.BeatCount, d.BeatBasis)
}

func (d *cursorDoc) UnmarshalJSON(data []byte) error {
	var legacy float64
	if err := json.Unmarshal(data, &legacy); err == nil {
		d.Millis = legacy
		d.BeatCount = 0
		d.BeatBasis = 0
		return nil
	}
	type alias cursorDoc
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*d = cursorDoc(a)
	return nil
}

// eventDoc is the union shape of a persisted Event. Which fields are
// populated depends on the owning lane's laneType.
type eventDoc struct {
	Cursor cursorDoc `json:"cursor"`

	// parameter lanes
	Normalized *float64 `json:"normalized,omitempty"`

	// pattern lanes
	Pattern *int `json:"pattern,omitempty"`

	// note lanes: emitted as {cursor, channel, command, data1, data2} per
	// spec.md §6, plus PairID (this repo's own schema addition, needed to
	// round-trip note on/off pairing without re-deriving it by replay).
	Channel *int    `json:"channel,omitempty"`
	Command *string `json:"command,omitempty"`
	Data1   *int    `json:"data1,omitempty"`
	Data2   *int    `json:"data2,omitempty"`
	PairID  *int64  `json:"pairId,omitempty"`
}

// laneDoc is one lane's persisted form (spec.md §6 "Lane").
type laneDoc struct {
	LaneType string     `json:"laneType"`
	Path     string     `json:"path,omitempty"`
	Variant  string     `json:"variant,omitempty"`
	Events   []eventDoc `json:"events"`
}

// clipDoc is the full persisted clip document (spec.md §6 "Clip").
type clipDoc struct {
	Index        int       `json:"index"`
	ReferenceBPM float64   `json:"referenceBpm"`
	TimeBase     string    `json:"timeBase"`
	Length       cursorDoc `json:"length"`
	LoopStart    cursorDoc `json:"loopStart"`
	LoopLength   cursorDoc `json:"loopLength"`
	PlayStart    cursorDoc `json:"playStart"`
	PlayEnd      cursorDoc `json:"playEnd"`

	Loop                      bool `json:"loop"`
	SnapshotEnabled           bool `json:"snapshotEnabled"`
	SnapshotTransitionEnabled bool `json:"snapshotTransitionEnabled"`
	AutomationEnabled         bool `json:"automationEnabled"`

	Lanes []laneDoc `json:"lanes"`
}

// LaneRef bundles a lane with the identity persistence needs to reconstruct
// it: its clip-assigned id (spec.md §3 "Lifecycle", used by Clip.AddLane)
// and, for a ParameterLane, the path to the target it drives.
type LaneRef struct {
	ID   string
	Lane lane.ClipLane
	Path string
}

// EncodeClip serializes a Clip and its lanes into the persisted JSON object
// graph of spec.md §6.
func EncodeClip(c *clip.Clip, refs []LaneRef) ([]byte, error) {
	snap := c.Snapshot()
	doc := clipDoc{
		Index:                     snap.Index,
		ReferenceBPM:              snap.ReferenceBPM,
		TimeBase:                  snap.TimeBase.String(),
		Length:                    toCursorDoc(snap.Length),
		LoopStart:                 toCursorDoc(snap.LoopStart),
		LoopLength:                toCursorDoc(snap.LoopLength),
		PlayStart:                 toCursorDoc(snap.PlayStart),
		PlayEnd:                   toCursorDoc(snap.PlayEnd),
		Loop:                      snap.Loop,
		SnapshotEnabled:           snap.SnapshotOn,
		SnapshotTransitionEnabled: snap.SnapshotTransitionOn,
		AutomationEnabled:         snap.AutomationOn,
	}

	for _, ref := range refs {
		ld, err := encodeLane(ref)
		if err != nil {
			return nil, err
		}
		doc.Lanes = append(doc.Lanes, ld)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func encodeLane(ref LaneRef) (laneDoc, error) {
	switch l := ref.Lane.(type) {
	case *lane.ParameterLane:
		variant := l.VariantKind()
		ld := laneDoc{LaneType: "parameter", Path: ref.Path, Variant: variantName(variant)}
		for _, e := range l.Events().All() {
			ed := eventDoc{Cursor: toCursorDoc(e.Cursor)}
			if variant.Kind != lane.KindTrigger {
				v := e.Normalized
				ed.Normalized = &v
			}
			ld.Events = append(ld.Events, ed)
		}
		return ld, nil
	case *lane.PatternLane:
		ld := laneDoc{LaneType: "pattern", Path: ref.Path}
		for _, e := range l.Events().All() {
			p := e.Pattern
			ld.Events = append(ld.Events, eventDoc{Cursor: toCursorDoc(e.Cursor), Pattern: &p})
		}
		return ld, nil
	case *lane.NoteLane:
		ld := laneDoc{LaneType: "midiNote"}
		for _, e := range l.Events().All() {
			ch, data1, data2, pid := e.Channel, e.Pitch, e.Velocity, e.PairID
			cmd := commandName(e.Command)
			ld.Events = append(ld.Events, eventDoc{
				Cursor:  toCursorDoc(e.Cursor),
				Channel: &ch,
				Command: &cmd,
				Data1:   &data1,
				Data2:   &data2,
				PairID:  &pid,
			})
		}
		return ld, nil
	default:
		return laneDoc{}, fmt.Errorf("adapters: unsupported lane type %T", ref.Lane)
	}
}

func variantName(v lane.Variant) string {
	switch v.Kind {
	case lane.KindNormalized:
		return "continuous"
	case lane.KindSteppedBool:
		return "steppedBool"
	case lane.KindSteppedDiscrete:
		return "steppedDiscrete"
	case lane.KindTrigger:
		return "trigger"
	default:
		return "continuous"
	}
}

func variantFromName(name string) lane.Variant {
	switch name {
	case "steppedBool":
		return lane.VariantSteppedBool
	case "steppedDiscrete":
		return lane.VariantSteppedDiscrete
	case "trigger":
		return lane.VariantTrigger
	default:
		return lane.VariantContinuous
	}
}

func commandName(c lane.MidiCommand) string {
	if c == lane.NoteOff {
		return "NOTE_OFF"
	}
	return "NOTE_ON"
}

func commandFromName(name string) lane.MidiCommand {
	if name == "NOTE_OFF" {
		return lane.NoteOff
	}
	return lane.NoteOn
}

// Resolver supplies the external collaborators DecodeClip needs to
// reconstruct lanes: a parameter target by path, the clip's MIDI sink, and
// its pattern selector. A missing parameter/pattern reference is a
// persistence error (spec.md §7): DecodeClip logs and skips that lane rather
// than aborting the load.
type Resolver struct {
	ParameterTarget func(path string) (lane.ParameterTarget, bool)
	MidiSink        lane.MidiSink
	PatternSelector lane.PatternSelector
}

// DecodeClip parses a persisted clip document, constructing a *clip.Clip
// restored via Snapshot/Restore and the lanes resolver can supply targets
// for. Lanes referencing an unresolvable target are skipped and logged, per
// spec.md §7 ("never abort project load").
func DecodeClip(data []byte, resolver Resolver) (*clip.Clip, []LaneRef, error) {
	var doc clipDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("adapters: decode clip: %w", err)
	}

	timeBase := cursor.Absolute
	if doc.TimeBase == "TEMPO" {
		timeBase = cursor.Tempo
	}

	c := clip.New(clip.WithTimeBase(timeBase), clip.WithReferenceBPM(doc.ReferenceBPM), clip.WithIndex(doc.Index))
	c.Restore(clip.Snapshot{
		Index:                doc.Index,
		ReferenceBPM:         doc.ReferenceBPM,
		TimeBase:             timeBase,
		Length:               doc.Length.toCursor(),
		LoopStart:            doc.LoopStart.toCursor(),
		LoopLength:           doc.LoopLength.toCursor(),
		PlayStart:            doc.PlayStart.toCursor(),
		PlayEnd:              doc.PlayEnd.toCursor(),
		Loop:                 doc.Loop,
		SnapshotOn:           doc.SnapshotEnabled,
		SnapshotTransitionOn: doc.SnapshotTransitionEnabled,
		AutomationOn:         doc.AutomationEnabled,
		HasTimeline:          true,
	})

	op := cursor.NewOperator(timeBase, doc.ReferenceBPM)

	var refs []LaneRef
	for i, ld := range doc.Lanes {
		id := fmt.Sprintf("lane-%d", i)
		l, path, ok := decodeLane(op, ld, resolver)
		if !ok {
			logx.Warn("skipping lane with unresolved target on load", logx.Fields{
				"laneType": ld.LaneType, "path": ld.Path,
			})
			continue
		}
		c.AddLane(id, l)
		refs = append(refs, LaneRef{ID: id, Lane: l, Path: path})
	}
	return c, refs, nil
}

func decodeLane(op cursor.Operator, ld laneDoc, resolver Resolver) (lane.ClipLane, string, bool) {
	switch ld.LaneType {
	case "parameter":
		if resolver.ParameterTarget == nil {
			return nil, "", false
		}
		target, ok := resolver.ParameterTarget(ld.Path)
		if !ok {
			return nil, "", false
		}
		variant := variantFromName(ld.Variant)
		pl := lane.NewParameterLane(op, variant, target, ld.Path)
		// A decoded clip always already has a completed first-recording
		// pass (Snapshot.HasTimeline above), so its ParameterLanes start
		// past the no-stitch first-recording window too (spec.md §4.4.1
		// step 1 case 3).
		pl.SetHasTimeline(true)
		for _, e := range ld.Events {
			var v float64
			if e.Normalized != nil {
				v = *e.Normalized
			}
			pl.InsertEvent(lane.NewParameterEvent(variant.Kind, e.Cursor.toCursor(), v))
		}
		return pl, ld.Path, true
	case "pattern":
		if resolver.PatternSelector == nil {
			return nil, "", false
		}
		patl := lane.NewPatternLane(op, resolver.PatternSelector)
		for _, e := range ld.Events {
			p := 0
			if e.Pattern != nil {
				p = *e.Pattern
			}
			patl.InsertEvent(lane.NewPatternEvent(e.Cursor.toCursor(), p))
		}
		return patl, ld.Path, true
	case "midiNote":
		if resolver.MidiSink == nil {
			return nil, "", false
		}
		nl := lane.NewNoteLane(op, resolver.MidiSink)
		var maxPair int64
		for _, e := range ld.Events {
			channel, data1, data2 := 0, 0, 0
			if e.Channel != nil {
				channel = *e.Channel
			}
			if e.Data1 != nil {
				data1 = *e.Data1
			}
			if e.Data2 != nil {
				data2 = *e.Data2
			}
			cmd := lane.NoteOn
			if e.Command != nil {
				cmd = commandFromName(*e.Command)
			}
			ev := lane.NewNoteEvent(e.Cursor.toCursor(), cmd, channel, data1, data2)
			if e.PairID != nil {
				ev.PairID = *e.PairID
				if *e.PairID > maxPair {
					maxPair = *e.PairID
				}
			}
			nl.InsertEvent(ev)
		}
		nl.SeedPairCounter(maxPair)
		return nl, "", true
	default:
		return nil, "", false
	}
}
