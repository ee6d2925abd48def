package vactor

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// messageContextKey is the context.Value key under which the ambient
// MessageContext is stored, modeling a task-local current message
// context: nested invocations within the same call inherit it and
// the dispatcher restores the previous value (via Go's normal context
// parent-chaining) once the call returns.
type messageContextKey struct{}

// MessageContext is the per-invocation ambient data visible to user code
// during method execution: the entry being serviced, the method being
// invoked, the caller's address, and a monotonically increasing trace id.
type MessageContext struct {
	Entry    *ReferenceEntry
	MethodID uint32
	From     Address
	TraceID  uint64
}

// WithMessageContext returns a context carrying mc, retrievable later via
// CurrentMessageContext.
func WithMessageContext(ctx context.Context, mc *MessageContext) context.Context {
	return context.WithValue(ctx, messageContextKey{}, mc)
}

// CurrentMessageContext returns the MessageContext installed by the
// dispatcher for the in-flight call, or nil if called outside one (e.g.
// from runtime-internal bookkeeping code).
func CurrentMessageContext(ctx context.Context) *MessageContext {
	mc, _ := ctx.Value(messageContextKey{}).(*MessageContext)
	return mc
}

// traceCounter is the monotonically increasing counter MessageContext.TraceID
// is drawn from.
var traceCounter atomic.Uint64

func nextTraceID() uint64 {
	return traceCounter.Add(1)
}

// InboundDispatcher is the entry point for wire messages: it routes them
// through the ExecutionSerializer, resolves/creates activations via the
// ActivationRegistry, invokes the user method, and sends the response.
type InboundDispatcher struct {
	interfaces  *InterfaceRegistry
	activations *ActivationRegistry
	observers   *ObserverRegistry
	serializer  *ExecutionSerializer
	messenger   Messenger
	counters    *counters

	maxQueueSize int
}

// NewInboundDispatcher creates an InboundDispatcher wired to the given
// collaborators.
func NewInboundDispatcher(interfaces *InterfaceRegistry,
	activations *ActivationRegistry, observers *ObserverRegistry,
	serializer *ExecutionSerializer, messenger Messenger, counters *counters,
	maxQueueSize int) *InboundDispatcher {

	return &InboundDispatcher{
		interfaces:   interfaces,
		activations:  activations,
		observers:    observers,
		serializer:   serializer,
		messenger:    messenger,
		counters:     counters,
		maxQueueSize: maxQueueSize,
	}
}

// OnMessageReceived is the Messenger-facing inbound callback: increments
// messagesReceived, forms the (interfaceId, key) identity, and offers the
// handling job to the serializer keyed by that identity.
func (d *InboundDispatcher) OnMessageReceived(ctx context.Context, from Address,
	oneway bool, messageID uint64, interfaceID uint32, methodID uint32,
	key string, args []byte) {

	d.counters.messagesReceived.Add(1)

	identity := ActorIdentity{InterfaceID: interfaceID, ActorID: key}

	accepted := d.serializer.Offer(ctx, identity.String(), func(ctx context.Context) {
		d.handle(ctx, from, oneway, messageID, identity, methodID, args)
	}, d.maxQueueSize)

	if !accepted {
		d.counters.refusedExecutions.Add(1)
		d.counters.refusedIdentityJobs.Add(1)

		if !oneway {
			d.sendError(ctx, from, messageID, ErrExecutionRefused.Error())
		}
	}
}

// handle runs under the identity's serializer slot.
func (d *InboundDispatcher) handle(ctx context.Context, from Address, oneway bool,
	messageID uint64, identity ActorIdentity, methodID uint32, args []byte) {

	d.counters.messagesHandled.Add(1)

	descriptor, ok := d.interfaces.Lookup(identity.InterfaceID)
	if !ok {
		if !oneway {
			d.sendError(ctx, from, messageID, ErrNoImplementation.Error())
		}

		return
	}

	if descriptor.IsObserver {
		d.handleObserverMessage(ctx, from, oneway, messageID, identity, descriptor, methodID, args)
		return
	}

	// A prior activation attempt already established that this node has
	// no implementation for the interface; short-circuit instead of
	// re-running the instantiate path just to fail again.
	if descriptor.CannotActivate() {
		if !oneway {
			d.sendError(ctx, from, messageID, ErrNoImplementation.Error())
		}

		return
	}

	entry := d.activations.EnsureEntry(identity, descriptor)
	if !entry.Removable {
		MarkRemovable(entry)
	}

	if entry.Flavor == Singleton {
		d.executeMessage(ctx, from, oneway, messageID, identity, entry, methodID, args)
		return
	}

	// StatelessWorker: identity-level serialization isn't needed; re-offer
	// a keyless job so worker activations can run in parallel.
	accepted := d.serializer.Offer(ctx, "", func(ctx context.Context) {
		d.executeMessage(ctx, from, oneway, messageID, identity, entry, methodID, args)
	}, d.maxQueueSize)

	if !accepted {
		d.counters.refusedExecutions.Add(1)
		d.counters.refusedKeylessJobs.Add(1)

		if !oneway {
			d.sendError(ctx, from, messageID, ErrExecutionRefused.Error())
		}
	}
}

// handleObserverMessage dispatches a call to a registered observer
// instance, or replies ErrObserverGone if none is present.
func (d *InboundDispatcher) handleObserverMessage(ctx context.Context, from Address,
	oneway bool, messageID uint64, identity ActorIdentity,
	descriptor *InterfaceDescriptor, methodID uint32, args []byte) {

	observer, ok := d.observers.Lookup(identity)
	if !ok {
		if !oneway {
			d.sendError(ctx, from, messageID, ErrObserverGone.Error())
		}

		return
	}

	result := safeInvoke(ctx, descriptor, observer, methodID, args)
	d.sendResult(ctx, from, oneway, messageID, result)
}

// safeInvoke runs the descriptor's dispatcher, converting a panic in the
// user method into an error result. Without this, a panicking method would
// unwind past the response path entirely and a two-way caller would never
// hear back.
func safeInvoke(ctx context.Context, d *InterfaceDescriptor, instance any,
	methodID uint32, args []byte) (result FutureResult) {

	defer func() {
		if r := recover(); r != nil {
			result = FutureResult{Err: fmt.Errorf("%w: %v",
				ErrUserException, r)}
		}
	}()

	return d.Invoke(ctx, instance, methodID, args)
}

// executeMessage is the per-call body run once an actor identity's entry
// exists: it installs the MessageContext, checks out an activation,
// instantiates on first touch, invokes the method, checks the activation
// back in, and sends the response.
func (d *InboundDispatcher) executeMessage(ctx context.Context, from Address,
	oneway bool, messageID uint64, identity ActorIdentity, entry *ReferenceEntry,
	methodID uint32, args []byte) {

	mc := &MessageContext{Entry: entry, MethodID: methodID, From: from, TraceID: nextTraceID()}
	ctx = WithMessageContext(ctx, mc)

	act := d.activations.CheckOut(entry)
	d.activations.Touch(act)

	if act.instance == nil {
		if err := d.activations.Instantiate(ctx, entry, act); err != nil {
			if errors.Is(err, ErrNoImplementation) {
				entry.Descriptor.MarkCannotActivate()
			}

			d.activations.CheckIn(entry, act)

			if !oneway {
				d.sendException(ctx, from, messageID, err)
			}

			return
		}
	}

	instance := act.instance

	if entry.Flavor == Singleton {
		// Deferred check-in: a singleton's activation goes back in the
		// slot only once the invoke has fully returned, not before. The
		// serializer guarantees only one message is ever in flight for
		// this identity at a time, so checking in earlier would buy
		// nothing — and it would let a message that ever bypassed the
		// serializer race the still-executing call for the same instance.
		result := safeInvoke(ctx, entry.Descriptor, instance, methodID, args)

		d.activations.CheckIn(entry, act)

		d.sendResult(ctx, from, oneway, messageID, result)
		return
	}

	// StatelessWorker: eager check-in — the activation goes back to the
	// tail of the pool before Invoke runs, not after. Workers bypass
	// identity-level serialization entirely (the keyless re-offer above),
	// so a concurrent call for the same identity can pop this exact
	// activation and invoke it again immediately; that is the pooled
	// concurrent-reuse contract for this flavor, not a bug — a stateless
	// worker carries no per-instance state that needs protecting from
	// overlap.
	d.activations.CheckIn(entry, act)

	result := safeInvoke(ctx, entry.Descriptor, instance, methodID, args)

	d.sendResult(ctx, from, oneway, messageID, result)
}

// sendResult renders a FutureResult as the appropriate response kind.
func (d *InboundDispatcher) sendResult(ctx context.Context, from Address,
	oneway bool, messageID uint64, result FutureResult) {

	if oneway {
		return
	}

	if result.Err != nil {
		d.sendException(ctx, from, messageID, result.Err)
		return
	}

	d.sendResponse(ctx, from, Response{
		MessageID: messageID,
		Kind:      NormalResponse,
		Payload:   result.Payload,
	})
}

// sendException sends a UserException-kind response, then degrades through
// TransportFailure's retry ladder on send failure: retry once as an
// ExceptionResponse of the send error; failing again, fall back to
// ErrorResponse("failed twice sending result"); a third failure is logged
// only.
func (d *InboundDispatcher) sendException(ctx context.Context, from Address,
	messageID uint64, err error) {

	d.sendResponse(ctx, from, Response{
		MessageID: messageID,
		Kind:      ExceptionResponse,
		Text:      err.Error(),
	})
}

// sendError sends an ErrorResponse with the given text.
func (d *InboundDispatcher) sendError(ctx context.Context, from Address, messageID uint64,
	text string) {

	d.sendResponse(ctx, from, Response{
		MessageID: messageID,
		Kind:      ErrorResponse,
		Text:      text,
	})
}

// sendResponse implements the send-failure retry ladder: retry once as an
// exception response carrying the send error, then fall back to a plain
// error response, then log only.
func (d *InboundDispatcher) sendResponse(ctx context.Context, from Address, resp Response) {
	if err := d.messenger.SendResponse(ctx, from, resp); err != nil {
		retryResp := Response{
			MessageID: resp.MessageID,
			Kind:      ExceptionResponse,
			Text:      err.Error(),
		}

		if err := d.messenger.SendResponse(ctx, from, retryResp); err != nil {
			fallback := Response{
				MessageID: resp.MessageID,
				Kind:      ErrorResponse,
				Text:      "failed twice sending result",
			}

			if err := d.messenger.SendResponse(ctx, from, fallback); err != nil {
				log.ErrorS(ctx, "failed to send response after two "+
					"retries, giving up", err,
					"message_id", resp.MessageID)
			}
		}
	}
}
