package vactor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"oss.nandlabs.io/golly/chrono"
)

// evictionJobID and sweepJobID name the chrono.Scheduler jobs the runtime
// registers for idle-activation eviction and observer-weak-reference
// sweeping, respectively.
const (
	evictionJobID     = "vactor-idle-eviction"
	sweepJobID        = "vactor-observer-sweep"
	timeoutSweepJobID = "vactor-messenger-timeout-sweep"
)

// TimeoutCleaner is an optional Messenger capability: a Messenger that
// maintains a pending-call table for invocation-level timeouts can
// implement this to receive the runtime's 5-second periodic sweep.
type TimeoutCleaner interface {
	TimeoutCleanup(ctx context.Context)
}

// Runtime is the node's external control surface: it owns every
// internal collaborator (interface registry, activation registry,
// execution serializer, inbound dispatcher, outbound invoker, observer
// registry) and exposes start/stop plus the handful of calls user code and
// the wire transport make against it.
type Runtime struct {
	cfg *RuntimeConfig

	identity string

	interfaces   *InterfaceRegistry
	serializer   *ExecutionSerializer
	activations  *ActivationRegistry
	observers    *ObserverRegistry
	dispatcher   *InboundDispatcher
	outbound     *OutboundInvoker
	orchestrator *LifecycleOrchestrator
	counters     *counters

	scheduler chrono.Scheduler

	mu      sync.Mutex
	running bool
	timers  []*runtimeTimer
}

// NewRuntime builds a Runtime from the given options, seeding every
// configuration default and wiring the collaborators supplied via options
// into the dispatch/invocation pipeline.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	cfg := defaultRuntimeConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	interfaces := NewInterfaceRegistry()
	serializer := NewExecutionSerializer(cfg.ExecutorWidth)
	orchestrator := NewLifecycleOrchestrator(cfg.Providers, cfg.Storage)
	activations := NewActivationRegistry(cfg.Clock, orchestrator, serializer)
	observers := NewObserverRegistry(interfaces)
	cs := &counters{}

	messenger := cfg.Messenger
	if messenger == nil {
		messenger = noopMessenger{}
	}

	dispatcher := NewInboundDispatcher(interfaces, activations, observers,
		serializer, messenger, cs, cfg.MaxQueueSize)

	outbound := NewOutboundInvoker(cfg.Locator, messenger, cfg.InvokeListeners,
		cfg.InvokeHook, cfg.TraceEnabled)

	return &Runtime{
		cfg:          cfg,
		identity:     newRuntimeIdentity(cfg.Name),
		interfaces:   interfaces,
		serializer:   serializer,
		activations:  activations,
		observers:    observers,
		dispatcher:   dispatcher,
		outbound:     outbound,
		orchestrator: orchestrator,
		counters:     cs,
		scheduler: chrono.New(
			chrono.WithCheckInterval(cfg.CleanupInterval),
			chrono.WithInstanceID(cfg.Name),
		),
	}
}

// Start registers every configured FactoryProvider's descriptors, then
// starts the background idle-eviction and observer-sweep jobs on the
// chrono scheduler.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	for _, fp := range r.cfg.FactoryProviders {
		descriptors, err := fp.Descriptors(ctx)
		if err != nil {
			return fmt.Errorf("%w: factory provider: %v", ErrConfigError, err)
		}

		for _, d := range descriptors {
			if err := r.interfaces.Register(d); err != nil {
				return err
			}
		}
	}

	if err := r.scheduler.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	err := r.scheduler.AddIntervalJob(evictionJobID, "idle activation eviction",
		func(ctx context.Context) error {
			cutoff := clockNowMillis(r.cfg.Clock) - r.cfg.IdleTTL.Milliseconds()
			r.activations.EvictIdle(r.Bind(ctx), cutoff)
			return nil
		}, r.cfg.CleanupInterval)
	if err != nil {
		return fmt.Errorf("scheduling eviction job: %w", err)
	}

	err = r.scheduler.AddIntervalJob(sweepJobID, "observer weak-ref sweep",
		func(ctx context.Context) error {
			r.observers.Sweep(ctx)
			return nil
		}, r.cfg.CleanupInterval)
	if err != nil {
		return fmt.Errorf("scheduling observer sweep job: %w", err)
	}

	if cleaner, ok := r.cfg.Messenger.(TimeoutCleaner); ok {
		err = r.scheduler.AddIntervalJob(timeoutSweepJobID,
			"messenger pending-call timeout sweep",
			func(ctx context.Context) error {
				cleaner.TimeoutCleanup(ctx)
				return nil
			}, messengerTimeoutSweepInterval)
		if err != nil {
			return fmt.Errorf("scheduling timeout sweep job: %w", err)
		}
	}

	r.running = true
	log.InfoS(ctx, "runtime started", "name", r.cfg.Name, "identity", r.identity)

	return nil
}

// Stop halts the background scheduler and waits for every in-flight
// serializer job to drain, giving up with ctx's error if ctx is done first.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return nil
	}

	if err := r.scheduler.Stop(); err != nil {
		log.WarnS(ctx, "scheduler stop returned an error", err)
	}

	for _, t := range r.timers {
		t.cancel()
	}
	r.timers = nil

	r.running = false

	drained := make(chan struct{})
	go func() {
		r.serializer.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		return fmt.Errorf("waiting for serializer to drain: %w", ctx.Err())
	}

	log.InfoS(ctx, "runtime stopped", "name", r.cfg.Name)

	return nil
}

// Identity returns the runtime's own identity token, in the
// "Name[<22-char base64 token>]" form.
func (r *Runtime) Identity() string {
	return r.identity
}

// Observers exposes the ObserverRegistry for the package-level
// GetObserverReference helper, which needs a type parameter Runtime's own
// methods cannot carry.
func (r *Runtime) Observers() *ObserverRegistry {
	return r.observers
}

// RegisterInterface adds an InterfaceDescriptor directly, bypassing the
// FactoryProvider path — used by tests and by code that builds its
// descriptors statically rather than discovering them at start().
func (r *Runtime) RegisterInterface(d *InterfaceDescriptor) error {
	return r.interfaces.Register(d)
}

// OnMessageReceived is the Messenger-facing inbound entry point; see
// InboundDispatcher.OnMessageReceived.
func (r *Runtime) OnMessageReceived(ctx context.Context, from Address, oneway bool,
	messageID uint64, interfaceID, methodID uint32, key string, args []byte) {

	r.dispatcher.OnMessageReceived(r.Bind(ctx), from, oneway, messageID, interfaceID,
		methodID, key, args)
}

// Invoke dispatches an outbound call; see OutboundInvoker.Invoke. It fails
// with ErrRuntimeStopped unless the runtime is between Start and Stop.
func (r *Runtime) Invoke(ctx context.Context, target ActorIdentity, methodID uint32,
	oneway bool, args []byte) FutureResult {

	r.mu.Lock()
	running := r.running
	r.mu.Unlock()

	if !running {
		return FutureResult{Err: ErrRuntimeStopped}
	}

	return r.outbound.Invoke(ctx, target, methodID, oneway, args)
}

// GetReference returns the ActorIdentity for the given interface name and
// actor id, validating that interfaceName resolves to a registered,
// non-observer interface. It does not activate anything — activation is
// lazy, triggered by the first dispatched message.
func (r *Runtime) GetReference(interfaceName, actorID string) (ActorIdentity, error) {
	d, ok := r.interfaces.LookupByName(interfaceName)
	if !ok {
		return ActorIdentity{}, fmt.Errorf("%w: unknown interface %q",
			ErrNoImplementation, interfaceName)
	}

	if d.IsObserver {
		return ActorIdentity{}, fmt.Errorf("%w: %q is an observer "+
			"interface, use InstallObserver", ErrConfigError, interfaceName)
	}

	return ActorIdentity{InterfaceID: d.InterfaceID, ActorID: actorID}, nil
}

// RegisterReminder delegates to the configured ReminderController (the
// well-known reminder actor, id "0"), returning ErrConfigError if none is
// configured.
func (r *Runtime) RegisterReminder(ctx context.Context, target ActorIdentity,
	name string, dueTime, period time.Duration) error {

	if r.cfg.ReminderController == nil {
		return fmt.Errorf("%w: no reminder controller configured", ErrConfigError)
	}

	return r.cfg.ReminderController.RegisterReminder(ctx, target, name,
		dueTime.Milliseconds(), period.Milliseconds())
}

// UnregisterReminder delegates to the configured ReminderController.
func (r *Runtime) UnregisterReminder(ctx context.Context, target ActorIdentity,
	name string) error {

	if r.cfg.ReminderController == nil {
		return fmt.Errorf("%w: no reminder controller configured", ErrConfigError)
	}

	return r.cfg.ReminderController.UnregisterReminder(ctx, target, name)
}

// EvictIdleNow runs one idle-eviction scan immediately, outside the
// scheduled interval. cmd/vactord's evict-now subcommand and tests that
// don't want to wait out CleanupInterval use this directly.
func (r *Runtime) EvictIdleNow(ctx context.Context) {
	cutoff := clockNowMillis(r.cfg.Clock) - r.cfg.IdleTTL.Milliseconds()
	r.activations.EvictIdle(r.Bind(ctx), cutoff)
	r.serializer.Wait()
}

// Stats returns a point-in-time snapshot of the runtime's counters and
// activation population.
func (r *Runtime) Stats() Stats {
	stats := r.counters.snapshot()

	r.activations.mu.Lock()
	stats.Entries = len(r.activations.entries)
	for _, entry := range r.activations.entries {
		entry.mu.Lock()
		if entry.Flavor == Singleton {
			if entry.singleton != nil && entry.singleton.state == StateLive {
				stats.LiveActivations++
			}
		} else {
			for _, act := range entry.pool {
				if act.state == StateLive {
					stats.PooledActivations++
				}
			}
		}
		entry.mu.Unlock()
	}
	r.activations.mu.Unlock()

	return stats
}

// noopMessenger is the zero-value Messenger used when a Runtime is built
// without one configured (e.g. pure in-process tests that only exercise
// identity-level serialization, never an actual send). Every call fails
// with ErrTransportFailure.
type noopMessenger struct{}

func (noopMessenger) SendMessage(ctx context.Context, to Address, oneway bool,
	interfaceID, methodID uint32, actorID string, args []byte) FutureResult {

	return FutureResult{Err: fmt.Errorf("%w: no messenger configured",
		ErrTransportFailure)}
}

func (noopMessenger) SendResponse(ctx context.Context, to Address, resp Response) error {
	return fmt.Errorf("%w: no messenger configured", ErrTransportFailure)
}
