package vactor

import "sync/atomic"

// counters holds the runtime-scoped atomic counters: messagesReceived,
// messagesHandled, refusedExecutions. Refusals are additionally split by
// source (identity-level vs. the stateless-worker keyless re-offer), since
// the keyless re-offer bypasses per-identity queue limits and would
// otherwise be invisible in the aggregate.
type counters struct {
	messagesReceived    atomic.Uint64
	messagesHandled     atomic.Uint64
	refusedExecutions   atomic.Uint64
	refusedIdentityJobs atomic.Uint64
	refusedKeylessJobs  atomic.Uint64
}

// Stats is a point-in-time snapshot of the runtime's counters plus
// live/pooled activation counts for operational visibility.
type Stats struct {
	MessagesReceived    uint64
	MessagesHandled     uint64
	RefusedExecutions   uint64
	RefusedIdentityJobs uint64
	RefusedKeylessJobs  uint64

	// LiveActivations is the number of Live singleton activations
	// currently sitting in their entry's slot, summed over all entries.
	// Stateless-worker activations are not included here.
	LiveActivations int

	// PooledActivations is the number of Live stateless-worker
	// activations currently sitting in their entry's pool, summed over
	// all entries.
	PooledActivations int

	// Entries is the number of ReferenceEntry records currently held by
	// the ActivationRegistry.
	Entries int
}

func (c *counters) snapshot() Stats {
	return Stats{
		MessagesReceived:    c.messagesReceived.Load(),
		MessagesHandled:     c.messagesHandled.Load(),
		RefusedExecutions:   c.refusedExecutions.Load(),
		RefusedIdentityJobs: c.refusedIdentityJobs.Load(),
		RefusedKeylessJobs:  c.refusedKeylessJobs.Load(),
	}
}
