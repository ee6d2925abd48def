package vactor

import "context"

// ambientRuntimeKey is the context.Value key under which Bind installs the
// ambient current runtime: user code inside a dispatched call that
// constructs a reference via GetReference should pick up this runtime by
// default, without threading a Runtime parameter through every call.
type ambientRuntimeKey struct{}

// Bind returns a context carrying r as the ambient current runtime. Every
// worker task the ExecutionSerializer drains establishes this before
// invoking user code (see InboundDispatcher.executeMessage, which derives
// its context from the one OnMessageReceived was offered), so CurrentRuntime
// inside a user method returns r.
func (r *Runtime) Bind(ctx context.Context) context.Context {
	return context.WithValue(ctx, ambientRuntimeKey{}, r)
}

// CurrentRuntime returns the ambient runtime bound to ctx via Bind, or
// ok=false outside of any bound context.
func CurrentRuntime(ctx context.Context) (*Runtime, bool) {
	r, ok := ctx.Value(ambientRuntimeKey{}).(*Runtime)
	return r, ok
}

// BindReference re-anchors ref to r: the Go port of "bind(object)"
// rebinding a reference constructed against a different runtime. Since a
// vactor ActorIdentity carries no runtime pointer of its own (outbound
// calls always go through an explicit Runtime.Invoke), this validates that
// ref's interface is actually known to r and returns it unchanged; it
// exists so callers that received a reference out-of-band (e.g.
// deserialized from wire bytes) have a single call that both validates and
// documents the rebind.
func (r *Runtime) BindReference(ref ActorIdentity) (ActorIdentity, error) {
	if _, ok := r.interfaces.Lookup(ref.InterfaceID); !ok {
		return ActorIdentity{}, ErrNoImplementation
	}

	return ref, nil
}
