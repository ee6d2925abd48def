package vactest

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roasbeef/vactor/internal/vactor"
)

func newTestRuntime(t *testing.T, opts ...vactor.RuntimeOption) (*vactor.Runtime, *LoopbackMessenger) {
	t.Helper()

	messenger := NewLoopbackMessenger()

	allOpts := append([]vactor.RuntimeOption{
		vactor.WithMessenger(messenger),
		vactor.WithLocator(StaticLocator{Addr: "local"}),
		vactor.WithExecutorWidth(64),
	}, opts...)

	rt := vactor.NewRuntime(allOpts...)
	messenger.Attach(rt)

	require.NoError(t, rt.Start(context.Background()))
	t.Cleanup(func() { _ = rt.Stop(context.Background()) })

	return rt, messenger
}

// TestScenarioPerIdentitySerialization fires 100 concurrent inbound calls
// at the same identity, with a method that records entry/exit timestamps
// and sleeps; every pair of handling intervals must be disjoint.
func TestScenarioPerIdentitySerialization(t *testing.T) {
	t.Parallel()

	rt, messenger := newTestRuntime(t)

	type interval struct{ start, end time.Time }

	var mu sync.Mutex
	var intervals []interval

	descriptor := &vactor.InterfaceDescriptor{
		InterfaceID: CounterInterfaceID,
		Name:        "vactest.ProbeCounter",
		Flavor:      vactor.Singleton,
		NewInstance: func() any { return &CounterActor{} },
		Invoke: func(ctx context.Context, instance any, methodID uint32,
			args []byte) vactor.FutureResult {

			start := time.Now()
			time.Sleep(10 * time.Millisecond)
			end := time.Now()

			mu.Lock()
			intervals = append(intervals, interval{start, end})
			mu.Unlock()

			return vactor.FutureResult{}
		},
	}
	require.NoError(t, rt.RegisterInterface(descriptor))

	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			result := messenger.SendMessage(context.Background(), "local", false,
				CounterInterfaceID, CounterMethodIncrement, "a", nil)
			require.NoError(t, result.Err)
		}()
	}

	wg.Wait()

	require.Len(t, intervals, n)

	for i := 0; i < len(intervals); i++ {
		for j := i + 1; j < len(intervals); j++ {
			a, b := intervals[i], intervals[j]
			overlap := a.start.Before(b.end) && b.start.Before(a.end)
			require.False(t, overlap, "handling intervals must not overlap")
		}
	}
}

// TestScenarioBackPressure sends ten two-way calls against maxQueueSize=4
// with a slow method; one runs, four queue, five are refused.
func TestScenarioBackPressure(t *testing.T) {
	t.Parallel()

	rt, messenger := newTestRuntime(t, vactor.WithMaxQueueSize(4))

	descriptor := &vactor.InterfaceDescriptor{
		InterfaceID: CounterInterfaceID,
		Name:        "vactest.SlowCounter",
		Flavor:      vactor.Singleton,
		NewInstance: func() any { return &CounterActor{} },
		Invoke: func(ctx context.Context, instance any, methodID uint32,
			args []byte) vactor.FutureResult {

			time.Sleep(100 * time.Millisecond)
			return vactor.FutureResult{}
		},
	}
	require.NoError(t, rt.RegisterInterface(descriptor))

	const n = 10

	var wg sync.WaitGroup
	wg.Add(n)

	var refused atomic.Int32

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()

			result := messenger.SendMessage(context.Background(), "local", false,
				CounterInterfaceID, CounterMethodIncrement, "same", nil)
			if result.Err != nil && result.Err.Error() == "Execution refused" {
				refused.Add(1)
			}
		}()

		// Give the first call a head start so it's the one running when
		// the rest arrive, making the 1-running/4-queued/5-refused split
		// deterministic.
		if i == 0 {
			time.Sleep(20 * time.Millisecond)
		}
	}

	wg.Wait()

	require.Equal(t, int32(5), refused.Load())
	require.Equal(t, uint64(5), rt.Stats().RefusedExecutions)
}

// TestScenarioLazyActivation checks end to end through the runtime that
// the first message to a fresh identity activates an instance on demand and
// is serviced by it (the reply carries count 1). The exact hook order is
// asserted by TestLifecycleOrchestratorHookOrdering.
func TestScenarioLazyActivation(t *testing.T) {
	t.Parallel()

	rt, messenger := newTestRuntime(t)
	require.NoError(t, rt.RegisterInterface(NewCounterDescriptor(vactor.Singleton)))

	result := messenger.SendMessage(context.Background(), "local", false,
		CounterInterfaceID, CounterMethodIncrement, "fresh", nil)
	require.NoError(t, result.Err)
	require.Equal(t, 1, DecodeInt(result.Payload))
}

// TestScenarioIdleEviction verifies that advancing a fake clock past the
// idle TTL and running the eviction scan deactivates the activation; the
// next message observes a fresh instance.
func TestScenarioIdleEviction(t *testing.T) {
	t.Parallel()

	clock := NewFakeClock(time.Unix(0, 0))
	rt, messenger := newTestRuntime(t,
		vactor.WithClock(clock),
		vactor.WithIdleTTL(10*time.Minute),
		vactor.WithCleanupInterval(time.Hour), // drive the scan manually
	)

	var mu sync.Mutex
	var instances []*CounterActor

	descriptor := &vactor.InterfaceDescriptor{
		InterfaceID: CounterInterfaceID,
		Name:        "vactest.EvictableCounter",
		Flavor:      vactor.Singleton,
		NewInstance: func() any {
			c := &CounterActor{InstanceID: instanceSeq.Add(1)}
			mu.Lock()
			instances = append(instances, c)
			mu.Unlock()
			return c
		},
		Invoke: CounterDispatch,
	}
	require.NoError(t, rt.RegisterInterface(descriptor))

	result := messenger.SendMessage(context.Background(), "local", false,
		CounterInterfaceID, CounterMethodIncrement, "x", nil)
	require.NoError(t, result.Err)
	require.Equal(t, 1, DecodeInt(result.Payload))

	clock.Advance(11 * time.Minute)
	rt.EvictIdleNow(context.Background())

	result2 := messenger.SendMessage(context.Background(), "local", false,
		CounterInterfaceID, CounterMethodIncrement, "x", nil)
	require.NoError(t, result2.Err)
	require.Equal(t, 1, DecodeInt(result2.Payload),
		"the post-eviction message must observe a fresh instance")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, instances, 2)

	first := instances[0]
	first.mu.Lock()
	deactivated := first.Deactivated
	first.mu.Unlock()
	require.True(t, deactivated,
		"deactivation hooks must have run between the two messages")
}

// TestScenarioObserverGC verifies that once an installed observer's only
// strong reference is dropped and GC runs, a call to its reference gets
// ErrObserverGone.
func TestScenarioObserverGC(t *testing.T) {
	rt, messenger := newTestRuntime(t)
	require.NoError(t, rt.RegisterInterface(NewObserverDescriptor()))

	var identity vactor.ActorIdentity

	func() {
		obs := &RecordingObserver{}
		id, err := vactor.GetObserverReference(rt, obs, "", "")
		require.NoError(t, err)
		identity = id

		result := messenger.SendMessage(context.Background(), "local", false,
			ObserverInterfaceID, ObserverMethodNotify, identity.ActorID, encodeInt(7))
		require.NoError(t, result.Err)
		require.Equal(t, []int{7}, obs.Snapshot())
	}()

	for i := 0; i < 5; i++ {
		runtime.GC()
	}

	result := messenger.SendMessage(context.Background(), "local", false,
		ObserverInterfaceID, ObserverMethodNotify, identity.ActorID, encodeInt(8))
	require.Error(t, result.Err)
	require.Equal(t, "Observer no longer present", result.Err.Error())
}

// TestScenarioUserPanicProducesExceptionResponse verifies that a panic in a
// user method comes back to a two-way caller as an exception response
// instead of a reply that never arrives.
func TestScenarioUserPanicProducesExceptionResponse(t *testing.T) {
	t.Parallel()

	rt, messenger := newTestRuntime(t)

	descriptor := &vactor.InterfaceDescriptor{
		InterfaceID: CounterInterfaceID,
		Name:        "vactest.PanicCounter",
		Flavor:      vactor.Singleton,
		NewInstance: func() any { return &CounterActor{} },
		Invoke: func(ctx context.Context, instance any, methodID uint32,
			args []byte) vactor.FutureResult {

			panic("counter exploded")
		},
	}
	require.NoError(t, rt.RegisterInterface(descriptor))

	result := messenger.SendMessage(context.Background(), "local", false,
		CounterInterfaceID, CounterMethodIncrement, "p", nil)
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "counter exploded")
}

// TestScenarioStatelessWorkerParallelism verifies that concurrent calls to
// a stateless-worker identity run on more than one activation at once.
func TestScenarioStatelessWorkerParallelism(t *testing.T) {
	t.Parallel()

	rt, messenger := newTestRuntime(t)

	var mu sync.Mutex
	seen := make(map[uint64]struct{})

	descriptor := &vactor.InterfaceDescriptor{
		InterfaceID: CounterInterfaceID,
		Name:        "vactest.WorkerCounter",
		Flavor:      vactor.StatelessWorker,
		NewInstance: NewCounterFactory(),
		Invoke: func(ctx context.Context, instance any, methodID uint32,
			args []byte) vactor.FutureResult {

			c := instance.(*CounterActor)

			mu.Lock()
			seen[c.InstanceID] = struct{}{}
			mu.Unlock()

			time.Sleep(50 * time.Millisecond)
			return vactor.FutureResult{}
		},
	}
	require.NoError(t, rt.RegisterInterface(descriptor))

	const n = 20

	var wg sync.WaitGroup
	wg.Add(n)

	start := time.Now()
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			result := messenger.SendMessage(context.Background(), "local", false,
				CounterInterfaceID, CounterMethodIncrement, "s", nil)
			require.NoError(t, result.Err)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	require.Less(t, elapsed, 500*time.Millisecond,
		"worker calls should run with meaningful parallelism, not serially")

	mu.Lock()
	defer mu.Unlock()
	require.Greater(t, len(seen), 1,
		"more than one activation should have serviced the identity")
}
