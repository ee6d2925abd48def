package vactor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSerializerFIFOPerKey verifies that jobs offered under the same key
// run strictly one at a time, in enqueue order — the core per-identity
// serialization invariant.
func TestSerializerFIFOPerKey(t *testing.T) {
	t.Parallel()

	s := NewExecutionSerializer(8)

	const n = 100

	var mu sync.Mutex
	var order []int
	var inFlight atomic.Int32
	var maxInFlight atomic.Int32

	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		i := i
		accepted := s.Offer(context.Background(), "same-key", func(ctx context.Context) {
			defer wg.Done()

			cur := inFlight.Add(1)
			for {
				prev := maxInFlight.Load()
				if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
					break
				}
			}

			time.Sleep(time.Millisecond)

			mu.Lock()
			order = append(order, i)
			mu.Unlock()

			inFlight.Add(-1)
		}, 1000)
		require.True(t, accepted)
	}

	wg.Wait()

	require.Equal(t, int32(1), maxInFlight.Load(),
		"jobs for the same key must never overlap")

	for i := 0; i < n; i++ {
		require.Equal(t, i, order[i], "jobs must run in enqueue order")
	}
}

// TestSerializerDistinctKeysParallel verifies that distinct keys may run
// concurrently, bounded only by executor width.
func TestSerializerDistinctKeysParallel(t *testing.T) {
	t.Parallel()

	s := NewExecutionSerializer(0)

	const n = 20

	var wg sync.WaitGroup
	wg.Add(n)

	start := time.Now()

	for i := 0; i < n; i++ {
		key := string(rune('a' + i))
		accepted := s.Offer(context.Background(), key, func(ctx context.Context) {
			defer wg.Done()
			time.Sleep(50 * time.Millisecond)
		}, 10)
		require.True(t, accepted)
	}

	wg.Wait()

	elapsed := time.Since(start)
	require.Less(t, elapsed, 40*time.Millisecond*n/10,
		"distinct keys should run mostly in parallel, not serially")
}

// TestSerializerBackPressure verifies that with maxDepth=4, one job runs
// and four queue; the remaining offers are refused.
func TestSerializerBackPressure(t *testing.T) {
	t.Parallel()

	s := NewExecutionSerializer(1)

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)

	accepted := s.Offer(context.Background(), "k", func(ctx context.Context) {
		started.Done()
		<-release
	}, 4)
	require.True(t, accepted)

	started.Wait()

	acceptedCount := 0
	refusedCount := 0

	for i := 0; i < 9; i++ {
		ok := s.Offer(context.Background(), "k", func(ctx context.Context) {
			<-release
		}, 4)
		if ok {
			acceptedCount++
		} else {
			refusedCount++
		}
	}

	require.Equal(t, 4, acceptedCount, "exactly maxDepth jobs should queue")
	require.Equal(t, 5, refusedCount, "the rest should be refused")

	close(release)
	s.Wait()
}

// TestSerializerKeylessRunsImmediately verifies that a nil/empty key means
// "no ordering required": offered jobs run directly on the executor.
func TestSerializerKeylessRunsImmediately(t *testing.T) {
	t.Parallel()

	s := NewExecutionSerializer(4)

	var wg sync.WaitGroup
	wg.Add(3)

	for i := 0; i < 3; i++ {
		accepted := s.Offer(context.Background(), "", func(ctx context.Context) {
			defer wg.Done()
		}, 10)
		require.True(t, accepted)
	}

	wg.Wait()
}

// TestSerializerJobPanicDoesNotAbortQueue verifies that a panicking job
// doesn't prevent subsequent jobs for the same key from running.
func TestSerializerJobPanicDoesNotAbortQueue(t *testing.T) {
	t.Parallel()

	s := NewExecutionSerializer(2)

	var ran atomic.Bool

	s.Offer(context.Background(), "k", func(ctx context.Context) {
		panic("boom")
	}, 10)

	accepted := s.Offer(context.Background(), "k", func(ctx context.Context) {
		ran.Store(true)
	}, 10)
	require.True(t, accepted)

	s.Wait()

	require.True(t, ran.Load(), "a job after a panicking job must still run")
}

// TestSerializerQueueReinstatesAfterDrain verifies that once a key's queue
// empties and its drain goroutine exits, a later Offer reinstates the
// queue rather than reusing stale state.
func TestSerializerQueueReinstatesAfterDrain(t *testing.T) {
	t.Parallel()

	s := NewExecutionSerializer(4)

	done := make(chan struct{})
	s.Offer(context.Background(), "k", func(ctx context.Context) {
		close(done)
	}, 10)
	<-done
	s.Wait()

	done2 := make(chan struct{})
	accepted := s.Offer(context.Background(), "k", func(ctx context.Context) {
		close(done2)
	}, 10)
	require.True(t, accepted)

	<-done2
}
