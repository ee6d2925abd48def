package vactest

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/roasbeef/vactor/internal/vactor"
)

// CounterInterfaceID / CounterMethodIncrement are the toy interface and
// method ids the example-based scenario tests across internal/vactor
// dispatch against.
const (
	CounterInterfaceID     uint32 = 1
	CounterMethodIncrement uint32 = 1
	ObserverInterfaceID    uint32 = 2
	ObserverMethodNotify   uint32 = 1
)

// instanceSeq hands out a unique, monotonically increasing id to every
// CounterActor instantiated across a test process, letting tests tell
// activations of the same identity apart without relying on pointer
// equality tricks.
var instanceSeq atomic.Uint64

// CounterActor is the toy actor interface used across the example-based
// tests: an Increment method bumps an internal count and returns it,
// optionally sleeping first (BeforeIncrement) to model a slow method body
// for the serialization and back-pressure scenarios. It implements every
// optional lifecycle contract internal/vactor knows about, setting a flag
// when each hook runs; the flags record that a hook ran, not in what order.
type CounterActor struct {
	mu sync.Mutex

	// InstanceID is unique per instantiation (see instanceSeq), letting
	// tests tell two activations of the same identity apart.
	InstanceID uint64

	Ref   vactor.ActorIdentity
	Count int

	Activated   bool
	Deactivated bool
	ReadStateOK bool

	// BeforeIncrement, if set, runs synchronously at the start of
	// Increment — tests use it to sleep, or to record entry/exit
	// timestamps for the serialization-overlap scenarios.
	BeforeIncrement func()
}

// NewCounterFactory returns a vactor.InstanceFactory constructing fresh
// CounterActors, each carrying a unique InstanceID.
func NewCounterFactory() vactor.InstanceFactory {
	return func() any {
		return &CounterActor{InstanceID: instanceSeq.Add(1)}
	}
}

// BindReference implements vactor.ReferenceBinder.
func (c *CounterActor) BindReference(ref vactor.ActorIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Ref = ref
}

// ActivateAsync implements vactor.Activatable.
func (c *CounterActor) ActivateAsync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Activated = true
	return nil
}

// DeactivateAsync implements vactor.Deactivatable.
func (c *CounterActor) DeactivateAsync(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Deactivated = true
	return nil
}

// ReadState implements vactor.StateReadable. The toy actor doesn't
// actually restore any prior count from storage — it only records that
// the hook ran, for lifecycle-ordering assertions.
func (c *CounterActor) ReadState(ctx context.Context, storage vactor.StorageProvider) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ReadStateOK = true
	return nil
}

// CounterDispatch is the InvokeFunc for CounterActor: the generated
// dispatcher contract described in the design notes, hand-written here
// since this toy interface has no real code-generation step behind it.
func CounterDispatch(ctx context.Context, instance any, methodID uint32,
	args []byte) vactor.FutureResult {

	c, ok := instance.(*CounterActor)
	if !ok {
		return vactor.FutureResult{Err: fmt.Errorf(
			"vactest: unexpected instance type %T", instance)}
	}

	switch methodID {
	case CounterMethodIncrement:
		if c.BeforeIncrement != nil {
			c.BeforeIncrement()
		}

		c.mu.Lock()
		c.Count++
		n := c.Count
		c.mu.Unlock()

		return vactor.FutureResult{Payload: encodeInt(n)}

	default:
		return vactor.FutureResult{Err: fmt.Errorf(
			"vactest: unknown method id %d", methodID)}
	}
}

// NewCounterDescriptor builds the InterfaceDescriptor for the toy counter
// actor interface with the given flavor.
func NewCounterDescriptor(flavor vactor.ActorFlavor) *vactor.InterfaceDescriptor {
	return &vactor.InterfaceDescriptor{
		InterfaceID: CounterInterfaceID,
		Name:        "vactest.Counter",
		NewInstance: NewCounterFactory(),
		Invoke:      CounterDispatch,
		Flavor:      flavor,
	}
}

// encodeInt / decodeInt are a minimal wire codec for the toy actor's
// integer payloads.
func encodeInt(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

// DecodeInt decodes a payload produced by CounterDispatch.
func DecodeInt(payload []byte) int {
	if len(payload) < 8 {
		return 0
	}

	return int(binary.BigEndian.Uint64(payload))
}

// NotifyObserver is the toy observer interface's method contract: a single
// Notify(value int) callback.
type NotifyObserver interface {
	Notify(value int)
}

// ObserverDispatch is the InvokeFunc for the toy observer interface.
func ObserverDispatch(ctx context.Context, instance any, methodID uint32,
	args []byte) vactor.FutureResult {

	o, ok := instance.(NotifyObserver)
	if !ok {
		return vactor.FutureResult{Err: fmt.Errorf(
			"vactest: unexpected observer type %T", instance)}
	}

	switch methodID {
	case ObserverMethodNotify:
		o.Notify(DecodeInt(args))
		return vactor.FutureResult{}

	default:
		return vactor.FutureResult{Err: fmt.Errorf(
			"vactest: unknown method id %d", methodID)}
	}
}

// NewObserverDescriptor builds the InterfaceDescriptor for the toy observer
// interface.
func NewObserverDescriptor() *vactor.InterfaceDescriptor {
	return &vactor.InterfaceDescriptor{
		InterfaceID: ObserverInterfaceID,
		Name:        "vactest.Observer",
		Invoke:      ObserverDispatch,
		IsObserver:  true,
	}
}

// RecordingObserver is a NotifyObserver that appends every received value
// to Values, for observer-GC assertions.
type RecordingObserver struct {
	mu     sync.Mutex
	Values []int
}

// Notify implements NotifyObserver.
func (o *RecordingObserver) Notify(value int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.Values = append(o.Values, value)
}

// Snapshot returns a copy of the values received so far.
func (o *RecordingObserver) Snapshot() []int {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]int, len(o.Values))
	copy(out, o.Values)
	return out
}

// ObserverInterfaceName implements the optional resolveInterface contract
// observer_registry.go looks for when no explicit interface hint is given.
func (o *RecordingObserver) ObserverInterfaceName() string {
	return "vactest.Observer"
}
