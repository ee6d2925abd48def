package vactor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestDescriptor(flavor ActorFlavor) *InterfaceDescriptor {
	return &InterfaceDescriptor{
		InterfaceID: 1,
		Name:        "Test",
		Flavor:      flavor,
		NewInstance: func() any { return &struct{}{} },
	}
}

// TestActivationRegistrySingletonCheckOutCheckIn verifies that a singleton
// entry holds at most one activation: checking one out empties the slot,
// and checking it back in restores it.
func TestActivationRegistrySingletonCheckOutCheckIn(t *testing.T) {
	t.Parallel()

	orch := NewLifecycleOrchestrator(nil, nil)
	serializer := NewExecutionSerializer(4)
	reg := NewActivationRegistry(SystemClock, orch, serializer)

	identity := ActorIdentity{InterfaceID: 1, ActorID: "a"}
	entry := reg.EnsureEntry(identity, newTestDescriptor(Singleton))

	act1 := reg.CheckOut(entry)
	require.Equal(t, StateVacant, act1.State())

	// A second check-out before check-in must get a fresh activation,
	// not the same one — the slot is empty while act1 is checked out.
	act2 := reg.CheckOut(entry)
	require.NotSame(t, act1, act2)

	reg.CheckIn(entry, act1)

	act3 := reg.CheckOut(entry)
	require.Same(t, act1, act3, "check-in then check-out must return the same activation")
}

// TestActivationRegistryWorkerPoolLIFO verifies the stateless-worker pool's
// LIFO hot-activation bias: the most recently checked-in activation is the
// next one checked out.
func TestActivationRegistryWorkerPoolLIFO(t *testing.T) {
	t.Parallel()

	orch := NewLifecycleOrchestrator(nil, nil)
	serializer := NewExecutionSerializer(4)
	reg := NewActivationRegistry(SystemClock, orch, serializer)

	identity := ActorIdentity{InterfaceID: 1, ActorID: "w"}
	entry := reg.EnsureEntry(identity, newTestDescriptor(StatelessWorker))

	a := reg.CheckOut(entry)
	b := reg.CheckOut(entry)

	reg.CheckIn(entry, a)
	reg.CheckIn(entry, b)

	// b was checked in last, so it should come out first (LIFO).
	out := reg.CheckOut(entry)
	require.Same(t, b, out)
}

// TestActivationRegistryEvictIdleConservative verifies that eviction is
// conservative: an activation touched within the idle TTL survives the
// scan.
func TestActivationRegistryEvictIdleConservative(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: time.Unix(0, 0)}
	orch := NewLifecycleOrchestrator(nil, nil)
	serializer := NewExecutionSerializer(4)
	reg := NewActivationRegistry(clock, orch, serializer)

	identity := ActorIdentity{InterfaceID: 1, ActorID: "s"}
	descriptor := newTestDescriptor(Singleton)
	entry := reg.EnsureEntry(identity, descriptor)
	entry.Removable = true

	act := reg.CheckOut(entry)
	require.NoError(t, reg.Instantiate(context.Background(), entry, act))
	reg.Touch(act)
	reg.CheckIn(entry, act)

	// Cutoff is in the past relative to lastAccess: nothing should be
	// evicted.
	reg.EvictIdle(context.Background(), clockNowMillis(clock)-int64(time.Hour/time.Millisecond))
	serializer.Wait()

	got, ok := reg.Lookup(identity)
	require.True(t, ok)
	require.NotNil(t, got.singleton)
	require.NotNil(t, got.singleton.instance)
}

// TestActivationRegistryEvictIdleDeactivatesStale verifies that an
// activation whose lastAccess predates the cutoff is deactivated and its
// entry removed for singletons.
func TestActivationRegistryEvictIdleDeactivatesStale(t *testing.T) {
	t.Parallel()

	clock := &manualClock{now: time.Unix(0, 0)}
	orch := NewLifecycleOrchestrator(nil, nil)
	serializer := NewExecutionSerializer(4)
	reg := NewActivationRegistry(clock, orch, serializer)

	identity := ActorIdentity{InterfaceID: 1, ActorID: "s"}
	descriptor := newTestDescriptor(Singleton)
	entry := reg.EnsureEntry(identity, descriptor)
	entry.Removable = true

	act := reg.CheckOut(entry)
	require.NoError(t, reg.Instantiate(context.Background(), entry, act))
	reg.Touch(act)
	reg.CheckIn(entry, act)

	clock.advance(11 * time.Minute)

	cutoff := clockNowMillis(clock) - (10 * time.Minute).Milliseconds()
	reg.EvictIdle(context.Background(), cutoff)
	serializer.Wait()

	_, ok := reg.Lookup(identity)
	require.False(t, ok, "evicted singleton entries are removed from the registry")
}

// manualClock is a minimal Clock test double local to this file (a fuller
// FakeClock lives in vactest, but importing the vactest subpackage from
// internal/vactor's own tests would be an import cycle since vactest
// imports vactor).
type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time {
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}
