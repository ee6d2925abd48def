package vactor

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
	"weak"

	"github.com/google/uuid"
)

// weakObserver is the registry's bookkeeping record for one installed
// observer. value reports the live observer (as the original *T the caller
// holds, type-erased to any) or nil once it has been collected; it closes
// over a weak.Pointer[T] so the registry itself never retains a strong
// reference to the observer.
type weakObserver struct {
	identity ActorIdentity
	addr     uintptr
	value    func() any
}

// ObserverRegistry is a bidirectional map from observer object to
// ActorIdentity and back, held
// weakly so an observer with no other live references is free to be
// garbage collected, at which point lookups for its identity report "gone"
// rather than keeping it alive.
//
// The forward index (byAddr) is keyed by the observer pointer's numeric
// address rather than the pointer itself, specifically so the map does not
// hold a strong reference that would defeat the weak.Pointer stored
// alongside it.
type ObserverRegistry struct {
	interfaces *InterfaceRegistry

	mu         sync.Mutex
	byIdentity map[ActorIdentity]*weakObserver
	byAddr     map[uintptr]*weakObserver
}

// NewObserverRegistry creates an empty ObserverRegistry.
func NewObserverRegistry(interfaces *InterfaceRegistry) *ObserverRegistry {
	return &ObserverRegistry{
		interfaces: interfaces,
		byIdentity: make(map[ActorIdentity]*weakObserver),
		byAddr:     make(map[uintptr]*weakObserver),
	}
}

// InstallObserver registers observer under the interface named by
// interfaceHint (or, if empty, the interface its ObserverInterfaceName
// method names), assigning it id if non-empty or a freshly generated UUID
// otherwise. Rules:
//
//   - reinstalling the same object with the same id (or no id) is a no-op
//     that returns the existing identity;
//   - reinstalling the same object with a different, explicit id is a
//     config error;
//   - installing a distinct object at an id already claimed by a live
//     observer is ErrIDClash;
//   - an interfaceHint that doesn't resolve to a registered observer
//     interface, or no hint with no resolvable ObserverInterfaceName, is
//     ErrNoFactory.
//
// InstallObserver is a free function rather than a method because Go
// methods cannot introduce new type parameters: T anchors the weak.Pointer
// this call creates directly to the allocation observer points at, so its
// liveness tracks the caller's own reference rather than a registry-local
// copy.
func InstallObserver[T any](r *ObserverRegistry, observer *T, interfaceHint,
	id string) (ActorIdentity, error) {

	descriptor, err := r.resolveInterface(observer, interfaceHint)
	if err != nil {
		return ActorIdentity{}, err
	}

	addr := uintptr(unsafe.Pointer(observer))

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byAddr[addr]; ok && existing.value() != nil {
		if id != "" && id != existing.identity.ActorID {
			return ActorIdentity{}, fmt.Errorf(
				"%w: observer already installed as %q, cannot "+
					"reinstall as %q", ErrConfigError,
				existing.identity.ActorID, id)
		}

		return existing.identity, nil
	}

	if id == "" {
		id = uuid.NewString()
	}

	identity := ActorIdentity{InterfaceID: descriptor.InterfaceID, ActorID: id}

	if existing, ok := r.byIdentity[identity]; ok {
		if live := existing.value(); live != nil && live != any(observer) {
			return ActorIdentity{}, fmt.Errorf("%w: identity %s",
				ErrIDClash, identity.String())
		}
	}

	wp := weak.Make(observer)
	entry := &weakObserver{
		identity: identity,
		addr:     addr,
		value: func() any {
			p := wp.Value()
			if p == nil {
				return nil
			}

			return p
		},
	}

	r.byIdentity[identity] = entry
	r.byAddr[addr] = entry

	return identity, nil
}

// resolveInterface finds the observer InterfaceDescriptor to install
// observer under, either from the explicit hint or by asking observer for
// its own ObserverInterfaceName.
func (r *ObserverRegistry) resolveInterface(observer any,
	interfaceHint string) (*InterfaceDescriptor, error) {

	if interfaceHint != "" {
		d, ok := r.interfaces.LookupByName(interfaceHint)
		if !ok || !d.IsObserver {
			return nil, fmt.Errorf("%w: interface %q is not a "+
				"registered observer interface", ErrNoFactory,
				interfaceHint)
		}

		return d, nil
	}

	if matcher, ok := observer.(interface{ ObserverInterfaceName() string }); ok {
		if name := matcher.ObserverInterfaceName(); name != "" {
			return r.resolveInterface(observer, name)
		}
	}

	return nil, fmt.Errorf("%w: no interface hint given and observer "+
		"does not declare ObserverInterfaceName", ErrNoFactory)
}

// Lookup returns the live observer object installed under identity, or
// ok=false if none is installed or its weak reference has been collected.
func (r *ObserverRegistry) Lookup(identity ActorIdentity) (any, bool) {
	r.mu.Lock()
	entry, ok := r.byIdentity[identity]
	r.mu.Unlock()

	if !ok {
		return nil, false
	}

	v := entry.value()
	if v == nil {
		r.forget(identity)
		return nil, false
	}

	return v, true
}

// forget drops a collected observer's bookkeeping from both maps.
func (r *ObserverRegistry) forget(identity ActorIdentity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byIdentity[identity]
	if !ok {
		return
	}

	delete(r.byIdentity, identity)

	if cur, ok := r.byAddr[entry.addr]; ok && cur == entry {
		delete(r.byAddr, entry.addr)
	}
}

// Sweep walks every installed identity and drops entries whose weak
// reference has been collected, returning the number removed. Driven by
// the runtime's periodic idle-eviction scan alongside
// ActivationRegistry.EvictIdle, since Go provides no finalizer-driven
// callback that would shrink the maps on its own.
func (r *ObserverRegistry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	dead := make([]ActorIdentity, 0)
	for identity, entry := range r.byIdentity {
		if entry.value() == nil {
			dead = append(dead, identity)
		}
	}
	r.mu.Unlock()

	for _, identity := range dead {
		r.forget(identity)
	}

	if len(dead) > 0 {
		log.DebugS(ctx, "swept collected observers", "count", len(dead))
	}

	return len(dead)
}
