// Package engine owns the single globally focused clip reference (spec.md
// §4.7 "ClipEngine focus"): whichever clip the UI/host is currently looking
// at for editing and monitoring, independent of which clips are playing.
package engine

import (
	"sync"
	"sync/atomic"

	"github.com/cbegin/clipengine/internal/clip"
)

// Focus holds a single globally focused clip reference and bangs an
// onChange signal exactly once whenever that reference actually changes.
// The pointer is held weakly in spirit: Focus never prevents a clip from
// being collected or disposed elsewhere, it only remembers which one was
// last selected.
type Focus struct {
	current atomic.Pointer[clip.Clip]

	onChangeMu sync.Mutex
	onChange   func()
}

// New constructs an unfocused engine.
func New() *Focus {
	return &Focus{}
}

// SetOnChange installs the callback banged on every focus change.
func (f *Focus) SetOnChange(fn func()) {
	f.onChangeMu.Lock()
	f.onChange = fn
	f.onChangeMu.Unlock()
}

// Focused returns the currently focused clip, or nil if none.
func (f *Focus) Focused() *clip.Clip {
	return f.current.Load()
}

// SetFocused changes the focused clip, banging onChange exactly once if the
// reference actually changed. Passing nil clears focus.
func (f *Focus) SetFocused(c *clip.Clip) {
	prev := f.current.Swap(c)
	if prev == c {
		return
	}
	f.bang()
}

func (f *Focus) bang() {
	f.onChangeMu.Lock()
	fn := f.onChange
	f.onChangeMu.Unlock()
	if fn != nil {
		fn()
	}
}
