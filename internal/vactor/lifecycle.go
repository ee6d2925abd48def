package vactor

import (
	"context"
	"fmt"
)

// LifecycleOrchestrator drives the pre/post activation and deactivation
// provider hook chain, plus the readState/activateAsync/deactivateAsync
// calls on the instance itself. It holds no state of its own beyond the
// registered providers — the Activation/ReferenceEntry it operates on is
// passed in by the ActivationRegistry, which owns their lifetime.
type LifecycleOrchestrator struct {
	providers []LifetimeProvider
	storage   []StorageProvider
}

// NewLifecycleOrchestrator creates an orchestrator with the given lifetime
// providers, run in registration order for every hook.
func NewLifecycleOrchestrator(providers []LifetimeProvider,
	storage []StorageProvider) *LifecycleOrchestrator {

	return &LifecycleOrchestrator{providers: providers, storage: storage}
}

// Instantiate runs the full first-touch activation sequence: construct,
// bind, preActivation*, readState, activateAsync, postActivation*. It returns the constructed instance only once every
// step has succeeded; the activation is not published on any failure.
func (o *LifecycleOrchestrator) Instantiate(ctx context.Context,
	entry *ReferenceEntry) (any, error) {

	if entry.Descriptor.NewInstance == nil {
		return nil, fmt.Errorf("%w: interface %q has no constructor",
			ErrNoImplementation, entry.Descriptor.Name)
	}

	instance := entry.Descriptor.NewInstance()

	if binder, ok := instance.(ReferenceBinder); ok {
		binder.BindReference(entry.Identity)
	}

	for _, p := range o.providers {
		if err := p.PreActivation(ctx, instance); err != nil {
			return nil, fmt.Errorf("%w: preActivation: %v",
				ErrActivationFailure, err)
		}
	}

	if readable, ok := instance.(StateReadable); ok && len(o.storage) > 0 {
		if err := readable.ReadState(ctx, o.storage[0]); err != nil {
			return nil, fmt.Errorf("%w: readState: %v",
				ErrActivationFailure, err)
		}
	}

	if activatable, ok := instance.(Activatable); ok {
		if err := activatable.ActivateAsync(ctx); err != nil {
			return nil, fmt.Errorf("%w: activateAsync: %v",
				ErrActivationFailure, err)
		}
	}

	for _, p := range o.providers {
		if err := p.PostActivation(ctx, instance); err != nil {
			return nil, fmt.Errorf("%w: postActivation: %v",
				ErrActivationFailure, err)
		}
	}

	return instance, nil
}

// Deactivate runs the teardown sequence: preDeactivation*, deactivateAsync,
// postDeactivation*. Deactivation errors are logged, not propagated — the
// activation is discarded regardless.
func (o *LifecycleOrchestrator) Deactivate(ctx context.Context, instance any) {
	for _, p := range o.providers {
		if err := p.PreDeactivation(ctx, instance); err != nil {
			log.WarnS(ctx, "preDeactivation hook failed", err)
		}
	}

	if deactivatable, ok := instance.(Deactivatable); ok {
		if err := deactivatable.DeactivateAsync(ctx); err != nil {
			log.WarnS(ctx, "deactivateAsync failed",
				fmt.Errorf("%w: %v", ErrDeactivationError, err))
		}
	}

	for _, p := range o.providers {
		if err := p.PostDeactivation(ctx, instance); err != nil {
			log.WarnS(ctx, "postDeactivation hook failed", err)
		}
	}
}
