package vactor

import "context"

// Messenger is the out-of-scope wire transport collaborator: it serializes
// messages, ships them, and is the channel through which responses are
// sent back to callers. The runtime depends only on this narrow interface,
// never on a concrete transport.
type Messenger interface {
	// SendMessage ships an outbound call to the given address and
	// returns a future of the reply. oneway calls complete their future
	// immediately with a nil payload once the send itself succeeds.
	SendMessage(ctx context.Context, to Address, oneway bool,
		interfaceID uint32, methodID uint32, actorID string,
		args []byte) FutureResult

	// SendResponse delivers a response for a previously received
	// two-way inbound call.
	SendResponse(ctx context.Context, to Address, resp Response) error
}

// Address is an opaque, Messenger-defined node address. The runtime never
// interprets its contents; it only compares it for presence (empty means
// "unresolved").
type Address string

// ResponseKind enumerates the three response shapes the wire contract
// supports.
type ResponseKind int

const (
	// NormalResponse carries a successful method result.
	NormalResponse ResponseKind = iota
	// ExceptionResponse carries a user-method or transport-retry error.
	ExceptionResponse
	// ErrorResponse carries an infrastructure-level error as plain text.
	ErrorResponse
)

// Response is the payload of a reply sent through the Messenger.
type Response struct {
	MessageID uint64
	Kind      ResponseKind
	Payload   []byte
	Text      string
}

// Locator resolves an actor reference to a node address when the reference
// doesn't already carry one, e.g. because it was constructed locally via
// getReference and has never been dispatched.
type Locator interface {
	// Locate returns the node address hosting identity, performing
	// cluster placement lookup (and possibly lazy activation elsewhere)
	// as needed.
	Locate(ctx context.Context, identity ActorIdentity) (Address, error)
}

// StorageProvider is the out-of-scope durable-state collaborator. Actors
// that want persisted state call readState()/writeState() through it
// during activation; internal/storage.ActorStorageProvider is the demo
// SQLite-backed implementation.
type StorageProvider interface {
	// LoadState returns the most recently persisted state for the given
	// actor identity, or ok=false if nothing has been persisted.
	LoadState(ctx context.Context, interfaceID, actorID string) (data []byte, ok bool, err error)

	// SaveState persists a state blob for the given actor identity.
	SaveState(ctx context.Context, interfaceID, actorID string, data []byte, updatedAtUnixNano int64) error

	// DeleteState removes any persisted state for the given actor
	// identity.
	DeleteState(ctx context.Context, interfaceID, actorID string) error
}

// FactoryProvider produces per-interface reference factories and
// dispatchers, standing in for class discovery and proxy code generation.
// The runtime only needs it at start() to seed the InterfaceRegistry with
// descriptors that weren't registered manually.
type FactoryProvider interface {
	// Descriptors returns the set of InterfaceDescriptors this provider
	// knows how to build proxies and dispatchers for.
	Descriptors(ctx context.Context) ([]*InterfaceDescriptor, error)
}

// LifetimeProvider hooks into the activation/deactivation lifecycle,
// modeling the LifecycleOrchestrator's pre/post activation and
// deactivation provider chain.
type LifetimeProvider interface {
	// PreActivation runs before readState/activateAsync, in provider
	// registration order. A failure aborts the remaining chain.
	PreActivation(ctx context.Context, instance any) error

	// PostActivation runs after activateAsync, in provider registration
	// order.
	PostActivation(ctx context.Context, instance any) error

	// PreDeactivation runs before deactivateAsync, in provider
	// registration order.
	PreDeactivation(ctx context.Context, instance any) error

	// PostDeactivation runs after deactivateAsync, in provider
	// registration order.
	PostDeactivation(ctx context.Context, instance any) error
}

// Activatable is the optional lifecycle contract a user instance can
// implement. ReadState and ActivateAsync/DeactivateAsync are called in the
// sequence instantiate()/evictIdle() describe; instances that don't need
// durable state or activation-time setup can simply not implement
// (StateReadable/Deactivatable) or implement trivial no-ops.
type Activatable interface {
	ActivateAsync(ctx context.Context) error
}

// Deactivatable is the optional teardown contract run during eviction.
type Deactivatable interface {
	DeactivateAsync(ctx context.Context) error
}

// StateReadable is the optional contract for instances that load persisted
// state during activation, consulting the runtime's StorageProvider.
type StateReadable interface {
	ReadState(ctx context.Context, storage StorageProvider) error
}

// ReferenceBinder is implemented by user instances that want their own
// identity handed to them during instantiate.
type ReferenceBinder interface {
	BindReference(ref ActorIdentity)
}

// InvokeListenerProvider observes outbound calls for tracing purposes.
type InvokeListenerProvider interface {
	PreInvoke(ctx context.Context, traceID uint64, source *ActorIdentity,
		target ActorIdentity, methodID uint32, args []byte)
	PostInvoke(ctx context.Context, traceID uint64, target ActorIdentity,
		result FutureResult)
}

// InvokeHookProvider, if installed, takes over outbound invocation
// entirely instead of the default Locator+Messenger path.
type InvokeHookProvider interface {
	Invoke(ctx context.Context, target ActorIdentity, methodID uint32,
		oneway bool, args []byte) FutureResult
}

// ReminderController is the well-known reminder actor stub (id "0") that
// registerReminder/unregisterReminder delegate to. Reminders themselves
// (durable timers) are out of scope; only the client stub is modeled.
type ReminderController interface {
	RegisterReminder(ctx context.Context, target ActorIdentity, name string,
		dueTime, period int64) error
	UnregisterReminder(ctx context.Context, target ActorIdentity, name string) error
}
