package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roasbeef/vactor/internal/vactor"
)

// stopTimeout bounds how long serve waits for the serializer to drain
// in-flight jobs before giving up on a graceful Stop.
const stopTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the vactor runtime until interrupted",
	Long: `serve opens the actor-state database, starts a Runtime with the
demo echo-counter actor registered, and blocks until SIGINT/SIGTERM,
stopping the runtime gracefully (waiting for in-flight per-identity jobs to
drain) before exiting.`,
	RunE: runServe,
}

var evictNowCmd = &cobra.Command{
	Use:   "evict-now",
	Short: "Send one message, force an idle-eviction scan, and print before/after activation counts",
	Long: `evict-now is a smoke test for the idle-eviction path: it starts a
Runtime, sends a single message to the demo echo actor, prints the
resulting Stats(), runs EvictIdleNow, and prints Stats() again so the
activation count visibly drops to zero.`,
	RunE: runEvictNow,
}

func runServe(cmd *cobra.Command, args []string) error {
	_, rotator, err := setupLogging(expandHome(logDir))
	if err != nil {
		return err
	}
	if rotator != nil {
		defer rotator.Close()
	}

	store, err := openStorage(dbPath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	rt, _, err := buildRuntime(name, store)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("starting runtime: %w", err)
	}

	log.InfoS(ctx, "vactord running", "identity", rt.Identity())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.InfoS(ctx, "shutting down")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()

	return rt.Stop(stopCtx)
}

func runEvictNow(cmd *cobra.Command, args []string) error {
	_, rotator, err := setupLogging(expandHome(logDir))
	if err != nil {
		return err
	}
	if rotator != nil {
		defer rotator.Close()
	}

	store, err := openStorage(dbPath, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// A negative idle TTL pushes the eviction cutoff into the future, so
	// EvictIdleNow below is guaranteed to reap the activation this
	// command just created rather than racing the clock's millisecond
	// resolution against a zero TTL.
	rt, lb, err := buildRuntime(name, store, vactor.WithIdleTTL(-time.Second))
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("starting runtime: %w", err)
	}
	defer rt.Stop(ctx)

	result := lb.SendMessage(ctx, localAddr, false, echoInterfaceID,
		echoMethodIncrement, "demo", nil)
	if result.Err != nil {
		return fmt.Errorf("sending demo message: %w", result.Err)
	}

	before := rt.Stats()
	fmt.Printf("before evict-now: live=%d pooled=%d entries=%d\n",
		before.LiveActivations, before.PooledActivations, before.Entries)

	rt.EvictIdleNow(ctx)

	after := rt.Stats()
	fmt.Printf("after evict-now:  live=%d pooled=%d entries=%d\n",
		after.LiveActivations, after.PooledActivations, after.Entries)

	return nil
}
