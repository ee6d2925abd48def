package vactor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordingProvider is a LifetimeProvider that appends a tagged label to a
// shared, mutex-guarded slice on every hook call, letting tests assert
// exact cross-provider ordering.
type recordingProvider struct {
	name string
	log  *hookLog
}

type hookLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *hookLog) record(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls = append(l.calls, s)
}

func (l *hookLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

func (p *recordingProvider) PreActivation(ctx context.Context, instance any) error {
	p.log.record("pre:" + p.name)
	return nil
}

func (p *recordingProvider) PostActivation(ctx context.Context, instance any) error {
	p.log.record("post:" + p.name)
	return nil
}

func (p *recordingProvider) PreDeactivation(ctx context.Context, instance any) error {
	p.log.record("predeact:" + p.name)
	return nil
}

func (p *recordingProvider) PostDeactivation(ctx context.Context, instance any) error {
	p.log.record("postdeact:" + p.name)
	return nil
}

// recordingInstance implements every optional lifecycle contract, logging
// readState and activateAsync/deactivateAsync into the shared log too, so
// the full activation sequence can be asserted in one place.
type recordingInstance struct {
	log *hookLog
}

func (i *recordingInstance) ReadState(ctx context.Context, storage StorageProvider) error {
	i.log.record("readState")
	return nil
}

func (i *recordingInstance) ActivateAsync(ctx context.Context) error {
	i.log.record("activateAsync")
	return nil
}

func (i *recordingInstance) DeactivateAsync(ctx context.Context) error {
	i.log.record("deactivateAsync")
	return nil
}

type dummyStorage struct{}

func (dummyStorage) LoadState(ctx context.Context, interfaceID, actorID string) ([]byte, bool, error) {
	return nil, false, nil
}
func (dummyStorage) SaveState(ctx context.Context, interfaceID, actorID string, data []byte, updatedAtUnixNano int64) error {
	return nil
}
func (dummyStorage) DeleteState(ctx context.Context, interfaceID, actorID string) error {
	return nil
}

// TestLifecycleOrchestratorHookOrdering verifies the exact hook sequence:
// pre1, pre2, pre3, readState, activateAsync, post1, post2, post3 — with
// no hook running before the preceding one's call returns.
func TestLifecycleOrchestratorHookOrdering(t *testing.T) {
	t.Parallel()

	log := &hookLog{}

	providers := []LifetimeProvider{
		&recordingProvider{name: "1", log: log},
		&recordingProvider{name: "2", log: log},
		&recordingProvider{name: "3", log: log},
	}

	orch := NewLifecycleOrchestrator(providers, []StorageProvider{dummyStorage{}})

	entry := &ReferenceEntry{
		Identity: ActorIdentity{InterfaceID: 1, ActorID: "x"},
		Descriptor: &InterfaceDescriptor{
			NewInstance: func() any { return &recordingInstance{log: log} },
		},
	}

	instance, err := orch.Instantiate(context.Background(), entry)
	require.NoError(t, err)
	require.NotNil(t, instance)

	require.Equal(t, []string{
		"pre:1", "pre:2", "pre:3",
		"readState",
		"activateAsync",
		"post:1", "post:2", "post:3",
	}, log.snapshot())
}

// TestLifecycleOrchestratorAbortsOnPreActivationFailure verifies that a
// failing preActivation hook aborts the remaining chain and the instance
// is never published.
func TestLifecycleOrchestratorAbortsOnPreActivationFailure(t *testing.T) {
	t.Parallel()

	log := &hookLog{}

	failing := &failingProvider{}
	providers := []LifetimeProvider{failing, &recordingProvider{name: "2", log: log}}

	orch := NewLifecycleOrchestrator(providers, nil)

	entry := &ReferenceEntry{
		Identity: ActorIdentity{InterfaceID: 1, ActorID: "x"},
		Descriptor: &InterfaceDescriptor{
			NewInstance: func() any { return &recordingInstance{log: log} },
		},
	}

	_, err := orch.Instantiate(context.Background(), entry)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrActivationFailure)
	require.Empty(t, log.snapshot(), "no later hook should have run")
}

type failingProvider struct{}

func (failingProvider) PreActivation(ctx context.Context, instance any) error {
	return context.DeadlineExceeded
}
func (failingProvider) PostActivation(ctx context.Context, instance any) error  { return nil }
func (failingProvider) PreDeactivation(ctx context.Context, instance any) error { return nil }
func (failingProvider) PostDeactivation(ctx context.Context, instance any) error {
	return nil
}

// TestLifecycleOrchestratorDeactivateRunsDespiteHookError verifies that a
// failing deactivation hook doesn't prevent the remaining teardown chain
// from running (errors are logged, not propagated).
func TestLifecycleOrchestratorDeactivateRunsDespiteHookError(t *testing.T) {
	t.Parallel()

	log := &hookLog{}

	providers := []LifetimeProvider{
		&failingDeactivateProvider{}, &recordingProvider{name: "2", log: log},
	}
	orch := NewLifecycleOrchestrator(providers, nil)

	instance := &recordingInstance{log: log}
	orch.Deactivate(context.Background(), instance)

	calls := log.snapshot()
	require.Contains(t, calls, "predeact:2")
	require.Contains(t, calls, "postdeact:2")
	require.Contains(t, calls, "deactivateAsync")
}

type failingDeactivateProvider struct{}

func (failingDeactivateProvider) PreActivation(ctx context.Context, instance any) error {
	return nil
}
func (failingDeactivateProvider) PostActivation(ctx context.Context, instance any) error {
	return nil
}
func (failingDeactivateProvider) PreDeactivation(ctx context.Context, instance any) error {
	return context.DeadlineExceeded
}
func (failingDeactivateProvider) PostDeactivation(ctx context.Context, instance any) error {
	return nil
}
