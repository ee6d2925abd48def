package vactor

import (
	"context"
	"fmt"
)

// OutboundInvoker implements the outbound invocation path: capture a
// MessageContext-derived source identity, notify any
// registered InvokeListenerProviders, defer to an InvokeHookProvider if one
// is installed, and otherwise resolve the target's address via Locator and
// ship the call through Messenger.
type OutboundInvoker struct {
	locator   Locator
	messenger Messenger
	listeners []InvokeListenerProvider
	hook      InvokeHookProvider
	trace     bool
}

// NewOutboundInvoker creates an OutboundInvoker wired to the given
// collaborators. hook may be nil, meaning the default Locator+Messenger
// path is always used.
func NewOutboundInvoker(locator Locator, messenger Messenger,
	listeners []InvokeListenerProvider, hook InvokeHookProvider,
	trace bool) *OutboundInvoker {

	return &OutboundInvoker{
		locator:   locator,
		messenger: messenger,
		listeners: listeners,
		hook:      hook,
		trace:     trace,
	}
}

// Invoke dispatches a call to target, oneway or two-way, returning its
// result. The ambient MessageContext on ctx (if any) supplies the source
// identity reported to trace listeners; a call made outside any inbound
// dispatch (e.g. a client-originated call) reports no source.
func (o *OutboundInvoker) Invoke(ctx context.Context, target ActorIdentity,
	methodID uint32, oneway bool, args []byte) FutureResult {

	traceID := nextTraceID()

	var source *ActorIdentity
	if mc := CurrentMessageContext(ctx); mc != nil {
		source = &mc.Entry.Identity
	}

	if o.trace {
		for _, l := range o.listeners {
			l.PreInvoke(ctx, traceID, source, target, methodID, args)
		}
	}

	var result FutureResult

	if o.hook != nil {
		result = o.hook.Invoke(ctx, target, methodID, oneway, args)
	} else {
		result = o.sendMessage(ctx, target, methodID, oneway, args)
	}

	if o.trace {
		for _, l := range o.listeners {
			l.PostInvoke(ctx, traceID, target, result)
		}
	}

	return result
}

// sendMessage resolves target's address via the Locator and ships the call
// through the Messenger.
func (o *OutboundInvoker) sendMessage(ctx context.Context, target ActorIdentity,
	methodID uint32, oneway bool, args []byte) FutureResult {

	if o.locator == nil || o.messenger == nil {
		return FutureResult{Err: fmt.Errorf(
			"%w: no locator/messenger configured", ErrConfigError)}
	}

	addr, err := o.locator.Locate(ctx, target)
	if err != nil {
		return FutureResult{Err: fmt.Errorf("%w: locate %s: %v",
			ErrTransportFailure, target.String(), err)}
	}

	return o.messenger.SendMessage(ctx, addr, oneway, target.InterfaceID,
		methodID, target.ActorID, args)
}
