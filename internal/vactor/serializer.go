package vactor

import (
	"context"
	"sync"
)

// Job is a unit of work submitted to the ExecutionSerializer. It receives
// the context the serializer was offered under and returns once the work
// (including any asynchronous continuation) has fully completed — the
// serializer's drain loop waits for Job to return before pulling the next
// job for the same key, so a long-running job naturally holds back every
// later job for its key.
type Job func(ctx context.Context)

// keyQueue is the per-key FIFO queue plus the "is a drain goroutine already
// running for this key" flag. Both fields are guarded by the owning
// ExecutionSerializer's mu, not a lock of their own — see the comment on
// ExecutionSerializer.mu for why a second, per-key mutex was removed.
type keyQueue struct {
	pending []Job
	active  bool
}

// ExecutionSerializer provides offer(key, job, maxDepth), guaranteeing
// at-most-one in-flight job per key while allowing distinct keys to run
// fully in parallel, bounded only by the configured executor width.
//
// A nil/empty key means "no ordering required" — offered jobs run
// immediately on the executor with no per-key queueing.
type ExecutionSerializer struct {
	sem chan struct{}

	// mu guards both the queues map and every keyQueue's pending/active
	// fields. An earlier version used a separate per-key mutex for
	// pending/active, guarded the map with mu, and decided "drain the
	// key no further, delete its entry" under mu while the write to
	// active happened under the per-key mutex — two different locks
	// with no happens-before edge between them, so a concurrent Offer
	// could observe a stale active=false, append a job, and spawn a
	// second drain goroutine racing the one about to exit. A single
	// mutex for the whole map-plus-queue-state removes that race: the
	// "is this key still active, should a new drain start, should the
	// entry be deleted" decisions are all made under the same lock, so
	// they can never interleave. The critical sections here are O(1)
	// slice operations, never held across a job's execution, so this
	// doesn't serialize actual job work across keys.
	mu     sync.Mutex
	queues map[string]*keyQueue

	wg sync.WaitGroup
}

// NewExecutionSerializer creates a serializer whose executor pool allows up
// to executorWidth jobs to run concurrently across all keys combined. A
// width of 0 or less means unbounded.
func NewExecutionSerializer(executorWidth int) *ExecutionSerializer {
	s := &ExecutionSerializer{
		queues: make(map[string]*keyQueue),
	}

	if executorWidth > 0 {
		s.sem = make(chan struct{}, executorWidth)
	}

	return s
}

// Offer submits job under key, bounded by maxDepth. It returns true if the
// job was accepted (either run immediately, or enqueued/running under the
// key's FIFO queue), or false if the queue for key was already at maxDepth
// — back-pressure.
func (s *ExecutionSerializer) Offer(ctx context.Context, key string, job Job,
	maxDepth int) bool {

	if key == "" {
		s.runAsync(ctx, job)
		return true
	}

	s.mu.Lock()
	q, ok := s.queues[key]
	if !ok {
		q = &keyQueue{}
		s.queues[key] = q
	}

	if len(q.pending) >= maxDepth {
		s.mu.Unlock()
		return false
	}

	// The drain goroutine runs every queued job, so bind each job to the
	// context of its own Offer rather than the drain's.
	q.pending = append(q.pending, func(context.Context) { job(ctx) })
	startDrain := !q.active
	if startDrain {
		q.active = true
	}
	s.mu.Unlock()

	if startDrain {
		s.wg.Add(1)
		go s.drain(ctx, key, q)
	}

	return true
}

// drain sequentially runs jobs for key until the queue empties, then
// removes the key's queue entry so a subsequent Offer reinstates it fresh.
// The "queue is empty, mark inactive, delete the map entry" decision happens
// in a single critical section under s.mu so a concurrent Offer can never
// observe a stale active flag and start a second drain goroutine for key.
func (s *ExecutionSerializer) drain(ctx context.Context, key string, q *keyQueue) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if len(q.pending) == 0 {
			q.active = false
			delete(s.queues, key)
			s.mu.Unlock()

			return
		}

		job := q.pending[0]
		q.pending = q.pending[1:]
		s.mu.Unlock()

		s.runSync(ctx, job)
	}
}

// runSync executes job on the (possibly bounded) executor and blocks the
// calling (drain) goroutine until it returns, preserving per-key ordering.
func (s *ExecutionSerializer) runSync(ctx context.Context, job Job) {
	if s.sem != nil {
		s.sem <- struct{}{}
		defer func() { <-s.sem }()
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.ErrorS(ctx, "serializer job panicked",
					nil, "recovered", r)
			}
		}()

		job(ctx)
	}()
}

// runAsync executes a keyless job on the executor without per-key
// ordering, still respecting the executor width bound.
func (s *ExecutionSerializer) runAsync(ctx context.Context, job Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runSync(ctx, job)
	}()
}

// Wait blocks until every job this serializer has accepted (including
// still-draining per-key queues) has completed. Intended for tests and for
// a clean Stop() sequence.
func (s *ExecutionSerializer) Wait() {
	s.wg.Wait()
}
