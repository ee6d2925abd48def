package vactor

// GetObserverReference installs observer (see InstallObserver) against
// r's ObserverRegistry and returns the resulting identity. It's a
// package-level generic function rather than a Runtime method for the same
// reason InstallObserver itself is: Go methods can't introduce a new type
// parameter, and the weak.Pointer[T] it builds must anchor to the caller's
// own allocation.
func GetObserverReference[T any](r *Runtime, observer *T, interfaceHint,
	id string) (ActorIdentity, error) {

	return InstallObserver(r.Observers(), observer, interfaceHint, id)
}
