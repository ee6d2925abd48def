package vactor

import (
	"context"
	"time"
)

// TimerCancelFunc cancels a timer registered via Runtime.RegisterTimer.
// Cancellation is cooperative: a tick already scheduled may still
// run once and observe the cancellation flag before the ticker goroutine
// exits.
type TimerCancelFunc func()

// runtimeTimer is the bookkeeping record for one registered repeating
// timer: a goroutine driving a time.Ticker, offering a job to the
// serializer under the owning actor's identity on every tick.
type runtimeTimer struct {
	stop chan struct{}
}

func (t *runtimeTimer) cancel() {
	select {
	case <-t.stop:
		// already cancelled
	default:
		close(t.stop)
	}
}

// RegisterTimer schedules a repeating job that runs under actor's
// serializer slot. The first
// tick fires after dueTime; subsequent ticks fire every period. Each tick
// is offered to the serializer keyed by actor, so a timer callback never
// overlaps an in-flight inbound call (or another tick) for the same
// identity.
func (r *Runtime) RegisterTimer(actor ActorIdentity,
	callable func(ctx context.Context) error, dueTime, period time.Duration) TimerCancelFunc {

	timer := &runtimeTimer{stop: make(chan struct{})}

	r.mu.Lock()
	r.timers = append(r.timers, timer)
	r.mu.Unlock()

	go func() {
		select {
		case <-time.After(dueTime):
		case <-timer.stop:
			return
		}

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-timer.stop:
				return
			default:
			}

			r.serializer.Offer(r.Bind(context.Background()), actor.String(),
				func(ctx context.Context) {
					select {
					case <-timer.stop:
						return
					default:
					}

					if err := callable(ctx); err != nil {
						log.WarnS(ctx, "timer callback failed",
							err, "actor", actor.String())
					}
				}, r.cfg.MaxQueueSize)

			select {
			case <-timer.stop:
				return
			case <-ticker.C:
			}
		}
	}()

	return timer.cancel
}
