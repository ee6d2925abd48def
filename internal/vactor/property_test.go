package vactor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestPropertySerializerNeverOverlapsPerKey checks the serializer's two
// core guarantees at once: no two jobs sharing a key are ever in flight
// together, and each key's jobs complete in offer order. rapid picks a
// random number of keys and a random number of jobs per key and fires
// them all concurrently.
func TestPropertySerializerNeverOverlapsPerKey(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numKeys := rapid.IntRange(1, 5).Draw(t, "numKeys")
		jobsPerKey := rapid.IntRange(1, 20).Draw(t, "jobsPerKey")

		s := NewExecutionSerializer(0)

		type keyState struct {
			mu         sync.Mutex
			inFlight   bool
			sawOverlap bool
			nextWant   int
			outOfOrder bool
		}

		states := make([]*keyState, numKeys)
		for i := range states {
			states[i] = &keyState{}
		}

		var wg sync.WaitGroup

		for k := 0; k < numKeys; k++ {
			st := states[k]
			key := rapid.IntRange(0, 1<<30).Draw(t, "keySalt")
			keyStr := itoaKey(k, key)

			for j := 0; j < jobsPerKey; j++ {
				j := j

				wg.Add(1)
				accepted := s.Offer(context.Background(), keyStr,
					func(ctx context.Context) {
						defer wg.Done()

						st.mu.Lock()
						if st.inFlight {
							st.sawOverlap = true
						}
						st.inFlight = true
						if j != st.nextWant {
							st.outOfOrder = true
						}
						st.nextWant++
						st.mu.Unlock()

						st.mu.Lock()
						st.inFlight = false
						st.mu.Unlock()
					}, jobsPerKey+1)

				if !accepted {
					wg.Done()
				}
			}
		}

		wg.Wait()
		s.Wait()

		for k, st := range states {
			st.mu.Lock()
			overlap, outOfOrder := st.sawOverlap, st.outOfOrder
			st.mu.Unlock()

			if overlap {
				t.Fatalf("key %d: jobs overlapped", k)
			}
			if outOfOrder {
				t.Fatalf("key %d: jobs ran out of FIFO order", k)
			}
		}
	})
}

func itoaKey(k, salt int) string {
	buf := make([]byte, 0, 16)
	buf = appendInt(buf, k)
	buf = append(buf, '/')
	buf = appendInt(buf, salt)
	return string(buf)
}

func appendInt(buf []byte, n int) []byte {
	if n == 0 {
		return append(buf, '0')
	}
	start := len(buf)
	for n > 0 {
		buf = append(buf, byte('0'+n%10))
		n /= 10
	}
	for i, j := start, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return buf
}

// TestPropertySingletonAtMostOneInstance checks that for every singleton
// identity, at any moment at most one live instance exists across the
// runtime. Random batches of concurrent inbound calls are fired at a
// handful of singleton identities, and the actor method itself records
// whether it ever observed a second concurrent caller on its own instance.
func TestPropertySingletonAtMostOneInstance(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		numIdentities := rapid.IntRange(1, 4).Draw(t, "numIdentities")
		callsPerIdentity := rapid.IntRange(1, 15).Draw(t, "callsPerIdentity")

		interfaces := NewInterfaceRegistry()
		serializer := NewExecutionSerializer(0)
		orchestrator := NewLifecycleOrchestrator(nil, nil)
		activations := NewActivationRegistry(SystemClock, orchestrator, serializer)
		observers := NewObserverRegistry(interfaces)
		cs := &counters{}

		var overlapDetected atomic.Bool

		descriptor := &InterfaceDescriptor{
			InterfaceID: 42,
			Name:        "property.Singleton",
			Flavor:      Singleton,
			NewInstance: func() any { return &rapidCounter{} },
			Invoke: func(ctx context.Context, instance any, methodID uint32,
				args []byte) FutureResult {

				c := instance.(*rapidCounter)
				if !c.enter.CompareAndSwap(false, true) {
					overlapDetected.Store(true)
				}
				c.enter.Store(false)

				return FutureResult{}
			},
		}
		require.NoError(t, interfaces.Register(descriptor))

		dispatcher := NewInboundDispatcher(interfaces, activations, observers,
			serializer, noopMessenger{}, cs, 10000)

		var wg sync.WaitGroup
		for i := 0; i < numIdentities; i++ {
			id := i
			for c := 0; c < callsPerIdentity; c++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					dispatcher.OnMessageReceived(context.Background(), "",
						true, 0, descriptor.InterfaceID,
						1, itoaKey(id, 0), nil)
				}()
			}
		}

		wg.Wait()
		serializer.Wait()

		if overlapDetected.Load() {
			t.Fatal("a singleton instance observed concurrent entry")
		}
	})
}

// rapidCounter is the toy singleton instance used by
// TestPropertySingletonAtMostOneInstance.
type rapidCounter struct {
	enter atomic.Bool
}
