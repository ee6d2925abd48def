package commands

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/roasbeef/vactor/internal/vactor"
)

// Demo interface/method ids for the echo-counter actor vactord registers at
// startup: there is no real FactoryProvider/class-discovery collaborator
// wired up, so this daemon builds its single descriptor by hand, the same
// way internal/vactor/vactest's toy counter actor does for tests.
const (
	echoInterfaceID     uint32 = 100
	echoMethodIncrement uint32 = 1
)

// echoActor is a singleton actor with durable state: every Increment call
// bumps a persisted counter, demonstrating the full
// instantiate/readState/activateAsync/deactivateAsync lifecycle against the
// sqlite-backed StorageProvider wired in common.go's buildRuntime.
type echoActor struct {
	ref     vactor.ActorIdentity
	count   int
	storage vactor.StorageProvider
}

// BindReference implements vactor.ReferenceBinder.
func (e *echoActor) BindReference(ref vactor.ActorIdentity) {
	e.ref = ref
}

// ReadState implements vactor.StateReadable: loads the previously persisted
// count, if any, so a restart (or a re-activation after idle eviction)
// resumes rather than resets. The provider is also cached on the instance,
// since this is the only lifecycle hook the StorageProvider is threaded
// through — echoDispatch's Increment case needs it again to persist every
// subsequent bump.
func (e *echoActor) ReadState(ctx context.Context, storage vactor.StorageProvider) error {
	e.storage = storage

	data, ok, err := storage.LoadState(ctx, "vactord.echo", e.ref.ActorID)
	if err != nil {
		return err
	}
	if ok && len(data) == 8 {
		e.count = int(binary.BigEndian.Uint64(data))
	}

	return nil
}

// ActivateAsync implements vactor.Activatable.
func (e *echoActor) ActivateAsync(ctx context.Context) error {
	log.DebugS(ctx, "echo actor activated", "id", e.ref.ActorID, "count", e.count)
	return nil
}

// DeactivateAsync implements vactor.Deactivatable.
func (e *echoActor) DeactivateAsync(ctx context.Context) error {
	log.DebugS(ctx, "echo actor deactivated", "id", e.ref.ActorID, "count", e.count)
	return nil
}

// echoDispatch is the hand-written InvokeFunc standing in for a generated
// dispatcher (see the design notes' "reflection-driven dispatch" strategy).
func echoDispatch(ctx context.Context, instance any, methodID uint32,
	args []byte) vactor.FutureResult {

	e, ok := instance.(*echoActor)
	if !ok {
		return vactor.FutureResult{Err: vactor.ErrConfigError}
	}

	switch methodID {
	case echoMethodIncrement:
		e.count++

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(e.count))

		if e.storage != nil {
			err := e.storage.SaveState(ctx, "vactord.echo", e.ref.ActorID,
				buf, time.Now().UnixNano())
			if err != nil {
				return vactor.FutureResult{Err: err}
			}
		}

		return vactor.FutureResult{Payload: buf}

	default:
		return vactor.FutureResult{Err: vactor.ErrNoImplementation}
	}
}

// newEchoDescriptor builds the InterfaceDescriptor for the demo echo actor.
func newEchoDescriptor() *vactor.InterfaceDescriptor {
	return &vactor.InterfaceDescriptor{
		InterfaceID: echoInterfaceID,
		Name:        "vactord.EchoCounter",
		NewInstance: func() any { return &echoActor{} },
		Invoke:      echoDispatch,
		Flavor:      vactor.Singleton,
	}
}
