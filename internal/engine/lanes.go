package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cbegin/clipengine/internal/adapters"
	"github.com/cbegin/clipengine/internal/clip"
	"github.com/cbegin/clipengine/internal/cursor"
	"github.com/cbegin/clipengine/internal/lane"
)

// LaneRegistry lazily creates and tears down the ParameterLanes a Clip needs
// for the parameters it is currently listening to (spec.md §3 "Lifecycle":
// "Lanes are created lazily on first parameter change of a listened target;
// destroyed when the target is unregistered"). Each registration's
// subscription is held in an adapters.SubscriptionRegistry keyed by a
// uuid.UUID handle, so teardown is precise even if the target's own
// bookkeeping has moved on since registration (spec.md §9 "Listener graph").
type LaneRegistry struct {
	mu    sync.Mutex
	clip  *clip.Clip
	op    cursor.Operator
	lanes map[string]*lane.ParameterLane
	subs  *adapters.SubscriptionRegistry
	// listen maps a path to the subscription handle and target the
	// SubscriptionRegistry registered for it, so Listen can stay idempotent
	// per path, Unregister can look the handle back up by the name callers
	// actually use, and UnregisterComponent can find every path belonging to
	// a torn-down component without needing the target's own bookkeeping.
	listen map[string]listenEntry
}

type listenEntry struct {
	id     uuid.UUID
	target lane.ParameterTarget
}

// NewLaneRegistry constructs a registry wiring dynamically-created lanes
// onto c, ordered under op.
func NewLaneRegistry(c *clip.Clip, op cursor.Operator) *LaneRegistry {
	return &LaneRegistry{
		clip:   c,
		op:     op,
		lanes:  make(map[string]*lane.ParameterLane),
		subs:   adapters.NewSubscriptionRegistry(),
		listen: make(map[string]listenEntry),
	}
}

// Listen begins listening to target under path. No lane exists yet: the
// first value change observed on target creates the lane (if this path
// hasn't already got one) and feeds that change into it as the lane's
// first recorded event, at cursor `at()`.
func (r *LaneRegistry) Listen(path string, target lane.ParameterTarget, variant lane.Variant, at func() cursor.Cursor) {
	r.mu.Lock()
	if _, already := r.listen[path]; already {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	id := r.subs.Register(target, func(v float64) {
		l := r.ensureLane(path, target, variant)
		l.RecordEvent(lane.NewParameterEvent(variant.Kind, at(), v))
	})

	r.mu.Lock()
	r.listen[path] = listenEntry{id: id, target: target}
	r.mu.Unlock()
}

// ensureLane returns the lane already wired to path, creating and
// registering it on the clip on first use.
func (r *LaneRegistry) ensureLane(path string, target lane.ParameterTarget, variant lane.Variant) *lane.ParameterLane {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.lanes[path]; ok {
		return l
	}
	l := lane.NewParameterLane(r.op, variant, target, path)
	l.Arm()
	r.clip.AddLane(path, l)
	r.lanes[path] = l
	return l
}

// Lane returns the lane registered under path, if one has been created yet.
func (r *LaneRegistry) Lane(path string) (*lane.ParameterLane, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lanes[path]
	return l, ok
}

// Unregister stops listening to path's target and detaches its lane from
// the clip (spec.md §3 "Lifecycle": "destroyed when the target is
// unregistered"). It is a no-op if path was never registered.
func (r *LaneRegistry) Unregister(path string) {
	r.mu.Lock()
	entry, listening := r.listen[path]
	delete(r.listen, path)
	_, hadLane := r.lanes[path]
	delete(r.lanes, path)
	r.mu.Unlock()

	if listening {
		r.subs.Unregister(entry.id)
	}
	if hadLane {
		r.clip.RemoveLane(path)
	}
}

// UnregisterComponent tears down every path whose target reports itself a
// descendant of component, letting the core locate and remove all of a
// component's lanes on that component's teardown in one call (spec.md §6
// "Parameter graph": "a parameter may belong to a component tree;
// is_descendant(component) lets the core locate all lanes for removal on
// component teardown").
func (r *LaneRegistry) UnregisterComponent(component any) {
	r.mu.Lock()
	var paths []string
	for p, entry := range r.listen {
		if entry.target.IsDescendant(component) {
			paths = append(paths, p)
		}
	}
	r.mu.Unlock()

	for _, p := range paths {
		r.Unregister(p)
	}
}

// DisposeAll tears down every dynamically-created lane and listener (spec.md
// §4.7/§5 "Resource acquisition": "on dispose every listener registered on
// an external target is removed, and every child lane is disposed").
func (r *LaneRegistry) DisposeAll() {
	r.mu.Lock()
	paths := make([]string, 0, len(r.listen))
	for p := range r.listen {
		paths = append(paths, p)
	}
	for p := range r.lanes {
		if _, ok := r.listen[p]; !ok {
			paths = append(paths, p)
		}
	}
	r.mu.Unlock()

	for _, p := range paths {
		r.Unregister(p)
	}
}
