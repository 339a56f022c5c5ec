package lane

import (
	"testing"

	"github.com/cbegin/clipengine/internal/cursor"
)

type fakeSink struct {
	sent []sentNote
}

type sentNote struct {
	channel, pitch, velocity int
	command                  MidiCommand
}

func (f *fakeSink) SendNote(channel int, command MidiCommand, pitch, velocity int) {
	f.sent = append(f.sent, sentNote{channel, pitch, velocity, command})
}

// TestOverdubErasesStraddlingPair reproduces spec.md §8 scenario 4: a pair
// that straddles the erase window entirely (on before it, off after it) is
// removed wholesale, and the newly recorded pair replaces it with no orphan.
func TestOverdubErasesStraddlingPair(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	sink := &fakeSink{}
	n := NewNoteLane(op, sink)

	n.InsertNote(ms(200), ms(800), 0, 60, 100)

	n.SetOverdubActive(true)
	n.RecordEvent(NewNoteEvent(ms(350), NoteOn, 0, 60, 100))
	n.RecordEvent(NewNoteEvent(ms(450), NoteOff, 0, 60, 0))

	n.OverdubCursor(ms(300), ms(500), true)

	got := n.Events().All()
	if len(got) != 2 {
		t.Fatalf("expected exactly [on@350, off@450], got %d events: %+v", len(got), got)
	}
	if got[0].Command != NoteOn || got[0].Cursor.Millis != 350 || got[0].Pitch != 60 {
		t.Fatalf("event 0 = %+v, want on@350 pitch 60", got[0])
	}
	if got[1].Command != NoteOff || got[1].Cursor.Millis != 450 || got[1].Pitch != 60 {
		t.Fatalf("event 1 = %+v, want off@450 pitch 60", got[1])
	}
	if got[0].PairID == 0 || got[0].PairID != got[1].PairID {
		t.Fatalf("expected on/off to share a nonzero PairID, got %+v / %+v", got[0], got[1])
	}
}

func TestRecordNoteSynthesizesOffOnRetrigger(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	sink := &fakeSink{}
	n := NewNoteLane(op, sink)

	n.RecordEvent(NewNoteEvent(ms(0), NoteOn, 1, 60, 100))
	n.RecordEvent(NewNoteEvent(ms(300), NoteOn, 1, 60, 80))
	n.CommitRecordQueue(true)

	got := n.Events().All()
	if len(got) != 3 {
		t.Fatalf("expected synthesized off + two ons (3 events), got %d: %+v", len(got), got)
	}
	if got[0].Command != NoteOn || got[0].Cursor.Millis != 0 {
		t.Fatalf("event 0 = %+v, want on@0", got[0])
	}
	if got[1].Command != NoteOff || got[1].Cursor.Millis != 300 || got[1].Channel != 1 {
		t.Fatalf("event 1 = %+v, want synthesized off@300 on channel 1", got[1])
	}
	if got[1].PairID != got[0].PairID {
		t.Fatalf("synthesized off should pair with the original on: %+v vs %+v", got[1], got[0])
	}
	if got[2].Command != NoteOn || got[2].Cursor.Millis != 300 {
		t.Fatalf("event 2 = %+v, want on@300", got[2])
	}
}

func TestPlaybackForcesNoteOffOnRetrigger(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	sink := &fakeSink{}
	n := NewNoteLane(op, sink)

	n.InsertNote(ms(100), ms(900), 2, 60, 100)
	n.InsertNote(ms(300), ms(500), 2, 60, 90)

	n.PlayCursor(ms(0), ms(1000), true)

	onCount, offCount := 0, 0
	for _, s := range sink.sent {
		if s.command == NoteOn {
			onCount++
		} else {
			offCount++
		}
	}
	if onCount != 2 {
		t.Fatalf("expected 2 note-ons dispatched, got %d", onCount)
	}
	// The off@900 belonging to the first (retriggered-over) note is never
	// played: it was already cut by the forced note-off at the retrigger,
	// and playback ignores a note-off with nothing held (spec.md §4.5).
	if offCount != 2 {
		t.Fatalf("expected 2 note-offs (forced retrigger cut + the real off@500), got %d: %+v", offCount, sink.sent)
	}
}

func TestOnStopPlaybackFlushesHeldNotes(t *testing.T) {
	op := cursor.NewOperator(cursor.Absolute, 120)
	sink := &fakeSink{}
	n := NewNoteLane(op, sink)
	n.InsertNote(ms(100), ms(1000), 3, 72, 100)

	n.PlayCursor(ms(0), ms(500), true)
	if len(sink.sent) != 1 {
		t.Fatalf("expected 1 note-on before stop, got %d", len(sink.sent))
	}

	n.OnStopPlayback()
	if len(sink.sent) != 2 {
		t.Fatalf("expected a synthesized note-off on stop, got %d sent: %+v", len(sink.sent), sink.sent)
	}
	if sink.sent[1].command != NoteOff || sink.sent[1].pitch != 72 {
		t.Fatalf("expected stop note-off for pitch 72, got %+v", sink.sent[1])
	}
}
