package vactor

import "errors"

// Sentinel errors for the runtime's error kinds. Wire-facing kinds
// (ExecutionRefused, ObserverGone) are also rendered as response text via
// their Error() string, so the text a remote caller matches on is stable.
var (
	// ErrExecutionRefused is returned when a per-identity or keyless job
	// queue is at capacity. Rendered to callers as an ErrorResponse with
	// this exact text.
	ErrExecutionRefused = errors.New("Execution refused")

	// ErrObserverGone is returned when a message targets an observer
	// identity whose weakly-held object has been collected (or was
	// never registered). Rendered to callers as an ErrorResponse with
	// this exact text.
	ErrObserverGone = errors.New("Observer no longer present")

	// ErrNoImplementation indicates canActivateActor returned false for
	// this interface: no local implementation exists.
	ErrNoImplementation = errors.New("no implementation for interface")

	// ErrActivationFailure wraps a failure during construction,
	// preActivation, readState, or activateAsync.
	ErrActivationFailure = errors.New("activation failed")

	// ErrIDClash is returned by installObserver when another, distinct
	// observer is already registered at the requested (interfaceId, id).
	ErrIDClash = errors.New("observer id clash")

	// ErrNoFactory is returned by installObserver when no interface
	// hint was given and none of the observer's implemented interfaces
	// could be resolved to a factory.
	ErrNoFactory = errors.New("no factory for observer")

	// ErrConfigError covers synchronous argument-validation failures:
	// invalid installObserver arguments, binding a non-reference, etc.
	ErrConfigError = errors.New("invalid configuration")

	// ErrUserException wraps a panic or error returned from inside a
	// user actor method, as opposed to a runtime-level failure.
	ErrUserException = errors.New("user method raised an exception")

	// ErrTransportFailure wraps a Locator or Messenger failure
	// encountered while sending an outbound call.
	ErrTransportFailure = errors.New("transport failure")

	// ErrDeactivationError wraps a failure during a deactivation
	// teardown hook. The activation is discarded regardless.
	ErrDeactivationError = errors.New("deactivation failed")

	// ErrRuntimeStopped is returned by runtime control-surface calls
	// made while the runtime is not running (before Start or after Stop).
	ErrRuntimeStopped = errors.New("runtime not running")
)
