package vactor

import (
	"context"
	"sync"
)

// ActivationRegistry holds per-identity ReferenceEntrys and drives their
// creation, checkout/checkin, first-touch instantiation, and idle
// eviction.
type ActivationRegistry struct {
	clock        Clock
	orchestrator *LifecycleOrchestrator
	serializer   *ExecutionSerializer

	mu      sync.Mutex
	entries map[ActorIdentity]*ReferenceEntry
}

// NewActivationRegistry creates an empty ActivationRegistry.
func NewActivationRegistry(clock Clock, orchestrator *LifecycleOrchestrator,
	serializer *ExecutionSerializer) *ActivationRegistry {

	return &ActivationRegistry{
		clock:        clock,
		orchestrator: orchestrator,
		serializer:   serializer,
		entries:      make(map[ActorIdentity]*ReferenceEntry),
	}
}

// EnsureEntry returns the ReferenceEntry for identity, creating it (with
// flavor and pool state seeded from descriptor) if this is the first
// dispatch for identity on this node. This is only ever called from
// within the identity's serializer slot, so a plain map check-then-
// insert is race-free against other dispatch calls; the only contending
// writer is the eviction scan, which EnsureEntry's lock also excludes.
func (r *ActivationRegistry) EnsureEntry(identity ActorIdentity,
	descriptor *InterfaceDescriptor) *ReferenceEntry {

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[identity]; ok {
		return entry
	}

	entry := &ReferenceEntry{
		Identity:   identity,
		Descriptor: descriptor,
		Flavor:     descriptor.Flavor,
	}
	r.entries[identity] = entry

	return entry
}

// Lookup returns the entry currently registered for identity, if any,
// without creating one.
func (r *ActivationRegistry) Lookup(identity ActorIdentity) (*ReferenceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[identity]
	return entry, ok
}

// CheckOut obtains an Activation for use by the current call: for a
// Singleton, the existing activation (clearing the slot) or a fresh
// Vacant one; for a StatelessWorker, the tail of the pool deque or a fresh
// Vacant one.
//
// Precondition: the caller holds the per-identity serial slot (Singleton)
// or is operating under the worker's keyless re-offer (StatelessWorker).
func (r *ActivationRegistry) CheckOut(entry *ReferenceEntry) *Activation {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	switch entry.Flavor {
	case Singleton:
		if entry.singleton != nil {
			act := entry.singleton
			entry.singleton = nil
			return act
		}

		return &Activation{state: StateVacant, entry: entry}

	default: // StatelessWorker
		if n := len(entry.pool); n > 0 {
			act := entry.pool[n-1]
			entry.pool = entry.pool[:n-1]
			return act
		}

		return &Activation{state: StateVacant, entry: entry}
	}
}

// CheckIn is the inverse of CheckOut: for a Singleton it places act back
// in the (must-be-empty) slot; for a StatelessWorker it appends act to the
// tail of the pool, restoring LIFO hot-activation bias.
func (r *ActivationRegistry) CheckIn(entry *ReferenceEntry, act *Activation) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	switch entry.Flavor {
	case Singleton:
		if entry.singleton != nil {
			log.ErrorS(context.Background(), "singleton check-in "+
				"slot already occupied", nil,
				"identity", entry.Identity.String())
		}

		entry.singleton = act

	default: // StatelessWorker
		entry.pool = append(entry.pool, act)
	}
}

// Instantiate runs the orchestrator's first-touch sequence and, only on
// success, publishes the result onto act.instance and transitions it to
// Live.
func (r *ActivationRegistry) Instantiate(ctx context.Context, entry *ReferenceEntry,
	act *Activation) error {

	instance, err := r.orchestrator.Instantiate(ctx, entry)
	if err != nil {
		return err
	}

	act.instance = instance
	act.state = StateLive

	return nil
}

// Touch stamps act's lastAccess from the registry's clock. Called on every
// CheckOut by the dispatcher.
func (r *ActivationRegistry) Touch(act *Activation) {
	act.lastAccess.Store(clockNowMillis(r.clock))
}

// EvictIdle scans every removable entry and deactivates activations whose
// lastAccess predates cutoff (a millisecond timestamp on the registry's
// clock).
func (r *ActivationRegistry) EvictIdle(ctx context.Context, cutoff int64) {
	r.mu.Lock()
	candidates := make([]*ReferenceEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		if entry.Removable {
			candidates = append(candidates, entry)
		}
	}
	r.mu.Unlock()

	for _, entry := range candidates {
		r.evictEntry(ctx, entry, cutoff)
	}
}

// evictEntry applies the per-flavor eviction rule for one entry.
func (r *ActivationRegistry) evictEntry(ctx context.Context,
	entry *ReferenceEntry, cutoff int64) {

	switch entry.Flavor {
	case Singleton:
		r.evictSingleton(ctx, entry, cutoff)
	default:
		r.evictWorkerPool(ctx, entry, cutoff)
	}
}

// evictSingleton enqueues a cleanup job under the entry's identity in the
// serializer, so it cannot overlap in-flight messages for that identity.
func (r *ActivationRegistry) evictSingleton(ctx context.Context,
	entry *ReferenceEntry, cutoff int64) {

	entry.mu.Lock()
	act := entry.singleton
	entry.mu.Unlock()

	if act == nil || act.instance == nil || act.lastAccess.Load() >= cutoff {
		return
	}

	generation := entry.generationSnapshot()

	r.serializer.Offer(ctx, entry.Identity.String(), func(ctx context.Context) {
		r.mu.Lock()
		current, stillPresent := r.entries[entry.Identity]
		r.mu.Unlock()

		if !stillPresent || current != entry {
			log.WarnS(ctx, "eviction anomaly: entry replaced "+
				"before cleanup ran", nil,
				"identity", entry.Identity.String())
			return
		}

		entry.mu.Lock()
		act := entry.singleton
		if act == nil || act.instance == nil || act.lastAccess.Load() >= cutoff ||
			entry.generation != generation {

			entry.mu.Unlock()
			return
		}
		entry.singleton = nil
		entry.mu.Unlock()

		act.state = StateDeactivating
		r.orchestrator.Deactivate(ctx, act.instance)
		act.instance = nil
		act.state = StateRetired

		entry.mu.Lock()
		entry.generation++
		entry.mu.Unlock()

		r.mu.Lock()
		delete(r.entries, entry.Identity)
		r.mu.Unlock()
	}, defaultMaxQueueSize)
}

// evictWorkerPool walks the pool: activations younger than cutoff are
// rotated to the tail (refreshing hot-activation bias), older ones are
// deactivated and dropped. The entry itself is retained — the pool may
// re-fill.
func (r *ActivationRegistry) evictWorkerPool(ctx context.Context,
	entry *ReferenceEntry, cutoff int64) {

	entry.mu.Lock()
	pool := entry.pool
	entry.pool = nil
	entry.mu.Unlock()

	var kept []*Activation
	var stale []*Activation

	for _, act := range pool {
		if act.lastAccess.Load() < cutoff && act.instance != nil {
			stale = append(stale, act)
		} else {
			kept = append(kept, act)
		}
	}

	entry.mu.Lock()
	entry.pool = append(entry.pool, kept...)
	entry.mu.Unlock()

	for _, act := range stale {
		act.state = StateDeactivating
		r.orchestrator.Deactivate(ctx, act.instance)
		act.instance = nil
		act.state = StateRetired
	}
}

// MarkRemovable flags entry as eligible for the eviction scan, called by
// the dispatcher the first time an identity is newly created.
func MarkRemovable(entry *ReferenceEntry) {
	entry.Removable = true
}
