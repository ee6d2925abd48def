package vactor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// ActorIdentity keys the activation registry and the execution serializer.
// Equality is by both fields.
type ActorIdentity struct {
	InterfaceID uint32
	ActorID     string
}

// String renders the identity for logging and as a serializer key.
func (id ActorIdentity) String() string {
	return fmt.Sprintf("%d/%s", id.InterfaceID, id.ActorID)
}

// ActorFlavor distinguishes the two actor population models this runtime
// supports.
type ActorFlavor int

const (
	// Singleton identities have at most one live activation runtime-wide.
	Singleton ActorFlavor = iota

	// StatelessWorker identities allow a pool of interchangeable
	// activations, trading per-actor state for method-level parallelism.
	StatelessWorker
)

// InvokeFunc is the descriptor-level dispatch contract: given an instance, a
// numeric method id, and the call arguments, invoke the method and return a
// future of the result. This is the generated-dispatcher contract described
// in the design notes — the runtime assumes this function exists per
// interface and never uses reflection to locate methods.
type InvokeFunc func(ctx context.Context, instance any, methodID uint32,
	args []byte) FutureResult

// FutureResult is the result of an invoked method: either a reply payload
// or an error. It's intentionally a plain struct rather than a generic
// Future, since wire payloads are already serialized bytes by the time they
// reach this layer.
type FutureResult struct {
	Payload []byte
	Err     error
}

// InstanceFactory constructs a new, zero-value instance of the concrete
// class bound to an interface. It stands in for reflective construction of
// a named concrete class; in Go, the equivalent is a constructor function
// registered alongside the descriptor.
type InstanceFactory func() any

// InterfaceDescriptor is the dispatch vocabulary for one interface: a
// factory for proxy references, a dispatcher for method invocation, and the
// flags that determine how the interface's identities are activated.
type InterfaceDescriptor struct {
	// InterfaceID is a stable numeric id for this interface, unique
	// cluster-wide.
	InterfaceID uint32

	// Name is a human-readable interface name, used in logging and as
	// the default observer-lookup key.
	Name string

	// NewInstance constructs a fresh instance of the concrete class
	// backing this interface. Nil for observer interfaces, whose
	// instances are supplied directly to installObserver.
	NewInstance InstanceFactory

	// Invoke dispatches a method call to an instance.
	Invoke InvokeFunc

	// IsObserver distinguishes observer interfaces (client-side
	// callback targets) from actor interfaces.
	IsObserver bool

	// Flavor determines the activation pooling model for actor
	// interfaces. Ignored for observer interfaces.
	Flavor ActorFlavor

	// cannotActivate caches a prior "no implementation on this node"
	// finding so repeated lookups don't re-run the (expensive) external
	// finder. Guarded by mu.
	mu             sync.Mutex
	cannotActivate bool
}

// MarkCannotActivate records that this node has no implementation for the
// descriptor's interface: once set, no further finder lookups occur until
// the descriptor is rebuilt.
func (d *InterfaceDescriptor) MarkCannotActivate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cannotActivate = true
}

// CannotActivate reports whether this node has already determined it has
// no implementation for the descriptor's interface.
func (d *InterfaceDescriptor) CannotActivate() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cannotActivate
}

// ActivationState enumerates the lifecycle states an Activation moves
// through (Vacant -> Live -> Deactivating -> Retired).
type ActivationState int

const (
	// StateVacant means no instance is present yet.
	StateVacant ActivationState = iota
	// StateLive means the instance has completed activation and is
	// servicing calls.
	StateLive
	// StateDeactivating means teardown hooks are running.
	StateDeactivating
	// StateRetired is terminal: the activation is eligible for removal.
	StateRetired
)

// Activation is a single, possibly-pooled, in-memory instance of an actor
// on this node.
type Activation struct {
	// instance is the user object, or nil until first use. It is only
	// published (made visible to the handling goroutine) after the full
	// instantiate sequence completes, so a half-activated instance is
	// never observable.
	instance any

	// state tracks the activation's lifecycle position.
	state ActivationState

	// lastAccess is a monotonic millisecond timestamp from the runtime's
	// configured Clock, updated on every checkOut. Atomic because the
	// eviction scan reads it concurrently with the dispatcher's stamp.
	lastAccess atomic.Int64

	// entry is a non-owning back-pointer to the owning ReferenceEntry,
	// breaking the Activation<->ReferenceEntry ownership cycle the
	// design notes call out: the registry, not the Activation, owns the
	// entry's lifetime.
	entry *ReferenceEntry
}

// Instance returns the activation's current user object, or nil if the
// activation is Vacant.
func (a *Activation) Instance() any {
	return a.instance
}

// State returns the activation's current lifecycle state.
func (a *Activation) State() ActivationState {
	return a.state
}

// LastAccess returns the last-access timestamp, in clock milliseconds.
func (a *Activation) LastAccess() int64 {
	return a.lastAccess.Load()
}

// ReferenceEntry is the registry record for one ActorIdentity that has
// touched this node.
type ReferenceEntry struct {
	// Identity is the key this entry is registered under.
	Identity ActorIdentity

	// Descriptor is the interface-level dispatch vocabulary shared by
	// every activation under this entry.
	Descriptor *InterfaceDescriptor

	// Flavor is fixed at creation time and never changes: see invariant
	// "a ReferenceEntry's flavor never changes once created."
	Flavor ActorFlavor

	// Removable reports whether the eviction scan may drop this entry.
	// Set true once the entry has serviced at least one message.
	Removable bool

	// generation is bumped when a singleton cleanup job retires this
	// entry's activation; a cleanup job aborts if the entry's generation
	// moved since it was scheduled. CheckOut does not consult it.
	generation uint64

	mu sync.Mutex

	// singleton holds the entry's sole activation, or nil if unchecked
	// out / vacant. Only meaningful when Flavor == Singleton.
	singleton *Activation

	// pool is the LIFO deque of pooled activations for stateless
	// workers. Only meaningful when Flavor == StatelessWorker.
	pool []*Activation
}

// generationSnapshot returns the entry's current generation under lock, for
// callers that need to detect a concurrent evict-and-recreate race.
func (e *ReferenceEntry) generationSnapshot() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// clockNowMillis is a small helper for stamping lastAccess from the
// runtime's pluggable Clock; see clock.go.
func clockNowMillis(c Clock) int64 {
	return c.Now().UnixMilli()
}
