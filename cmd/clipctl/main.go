// Command clipctl is a terminal demonstration of the clip engine: it
// records a short built-in note pattern into a clip, then ticks the engine
// at a fixed rate and prints every dispatched MIDI note to stdout. It is the
// engine-side analog of cmd/play_mml's playback loop.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/cbegin/clipengine"
	"github.com/cbegin/clipengine/internal/adapters"
	"github.com/cbegin/clipengine/internal/clipconfig"
	"github.com/cbegin/clipengine/internal/cursor"
	"github.com/cbegin/clipengine/internal/lane"
	"github.com/cbegin/clipengine/internal/logx"
	"github.com/joho/godotenv"
)

// demoPattern is a small built-in C-major arpeggio, recorded into the demo
// clip's note lane before playback begins.
var demoPattern = []struct {
	onMs, offMs        float64
	channel, pitch, vel int
}{
	{50, 350, 0, 60, 100},
	{450, 750, 0, 64, 100},
	{850, 1150, 0, 67, 100},
	{1250, 1550, 0, 72, 100},
}

const demoLengthMs = 2000

func main() {
	var (
		tickMs      = flag.Float64("tick-ms", 1000.0/60.0, "engine tick size in milliseconds")
		durationMs  = flag.Float64("duration-ms", 8000, "total playback duration in milliseconds")
		bpmOverride = flag.Float64("bpm", 0, "override the configured reference BPM (0 = use config/env)")
		loops       = flag.Int("loops", 0, "stop after N loop wraps (0 = run for -duration-ms regardless of loop count)")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := clipconfig.Load()

	bpm := cfg.ReferenceBPM
	if *bpmOverride > 0 {
		bpm = *bpmOverride
	}

	eng := clipengine.NewEngine(
		clipengine.WithReferenceBPM(bpm),
		clipengine.WithWarner(logx.Warner{}),
	)

	sink := adapters.NewMidiSink()
	sink.Tap = func(msg adapters.NoteMessage) {
		cmd := "ON "
		if msg.Command == lane.NoteOff {
			cmd = "OFF"
		}
		fmt.Printf("note %s channel=%d pitch=%d velocity=%d\n", cmd, msg.Channel, msg.Pitch, msg.Velocity)
	}

	c, _ := eng.NewClip()
	nl := eng.AttachNoteLane(c, sink)

	recordDemoPattern(c, nl)

	if cfg.TickLogVerbose {
		logx.Info("demo clip recorded", logx.Fields{"lengthMs": demoLengthMs, "bpm": bpm})
	}

	c.SetArmed(false)
	c.Launch()

	loopCount := 0
	elapsed := 0.0
	for elapsed < *durationMs {
		before := c.Cursor()
		eng.Tick(*tickMs)
		elapsed += *tickMs
		after := c.Cursor()
		if after.Millis < before.Millis {
			loopCount++
			if cfg.TickLogVerbose {
				logx.Info("loop wrapped", logx.Fields{"loopCount": loopCount})
			}
			if *loops > 0 && loopCount >= *loops {
				break
			}
		}
	}
}

// recordDemoPattern drives a first-recording pass over the demo clip,
// inserting demoPattern's notes directly (as a loader would) and advancing
// the clip's timeline to demoLengthMs.
func recordDemoPattern(c *clipengine.Clip, nl *lane.NoteLane) {
	c.SetArmed(true)
	c.Launch()
	for _, n := range demoPattern {
		nl.InsertNote(cursor.MustNew(n.onMs, 0, 0), cursor.MustNew(n.offMs, 0, 0), n.channel, n.pitch, n.vel)
	}
	c.Run(demoLengthMs)
	c.Stop()
}
