package adapters

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cbegin/clipengine/internal/lane"
)

// parameterSubscription is one live AddListener registration on a
// ParameterTarget (spec.md §9 "Listener graph").
type parameterSubscription struct {
	target     lane.ParameterTarget
	listenerID string
}

// SubscriptionRegistry is the listener-graph teardown scheme of spec.md §9:
// rather than asking a target for "its" listeners at dispose time (which may
// have mutated since registration), the registry remembers exactly which
// subscriptions it created and releases only those, keyed by a uuid.UUID
// handle so a caller can hold one opaque token per registration regardless
// of how many targets or listener-id naming schemes are in play.
type SubscriptionRegistry struct {
	mu   sync.Mutex
	subs map[uuid.UUID]parameterSubscription
}

// NewSubscriptionRegistry constructs an empty registry.
func NewSubscriptionRegistry() *SubscriptionRegistry {
	return &SubscriptionRegistry{subs: make(map[uuid.UUID]parameterSubscription)}
}

// Register subscribes fn on target under a fresh listener id and returns the
// registry's own uuid handle for later precise removal.
func (r *SubscriptionRegistry) Register(target lane.ParameterTarget, fn func(float64)) uuid.UUID {
	id := uuid.New()
	listenerID := id.String()
	target.AddListener(listenerID, fn)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[id] = parameterSubscription{target: target, listenerID: listenerID}
	return id
}

// Unregister removes the subscription identified by id, if still present.
func (r *SubscriptionRegistry) Unregister(id uuid.UUID) bool {
	r.mu.Lock()
	sub, ok := r.subs[id]
	if ok {
		delete(r.subs, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	sub.target.RemoveListener(sub.listenerID)
	return true
}

// DisposeAll removes every subscription this registry created (spec.md §5
// "Resource acquisition": "on dispose every listener registered on an
// external target is removed").
func (r *SubscriptionRegistry) DisposeAll() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[uuid.UUID]parameterSubscription)
	r.mu.Unlock()
	for _, sub := range subs {
		sub.target.RemoveListener(sub.listenerID)
	}
}

// Len reports the number of live subscriptions, for tests.
func (r *SubscriptionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
