package vactest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/roasbeef/vactor/internal/vactor"
)

// LoopbackMessenger is a single-node Messenger test double: every outbound
// SendMessage is delivered directly to the attached Runtime's
// OnMessageReceived, and two-way calls block on the corresponding
// SendResponse callback, bridging the dispatcher's async response path back
// into FutureResult's synchronous return. Address is ignored — there's
// only ever one target runtime.
type LoopbackMessenger struct {
	mu      sync.Mutex
	target  *vactor.Runtime
	pending map[uint64]chan vactor.Response
	nextID  atomic.Uint64
}

// NewLoopbackMessenger creates an unattached LoopbackMessenger. Call Attach
// once the Runtime it should deliver to exists, breaking the
// Runtime-needs-Messenger/Messenger-needs-Runtime construction cycle.
func NewLoopbackMessenger() *LoopbackMessenger {
	return &LoopbackMessenger{pending: make(map[uint64]chan vactor.Response)}
}

// Attach sets the Runtime this messenger delivers inbound messages to.
func (m *LoopbackMessenger) Attach(rt *vactor.Runtime) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.target = rt
}

// SendMessage implements vactor.Messenger.
func (m *LoopbackMessenger) SendMessage(ctx context.Context, to vactor.Address,
	oneway bool, interfaceID, methodID uint32, actorID string,
	args []byte) vactor.FutureResult {

	m.mu.Lock()
	target := m.target
	m.mu.Unlock()

	if target == nil {
		return vactor.FutureResult{Err: errors.New("vactest: messenger not attached")}
	}

	if oneway {
		target.OnMessageReceived(ctx, to, true, 0, interfaceID, methodID,
			actorID, args)
		return vactor.FutureResult{}
	}

	id := m.nextID.Add(1)
	ch := make(chan vactor.Response, 1)

	m.mu.Lock()
	m.pending[id] = ch
	m.mu.Unlock()

	target.OnMessageReceived(ctx, to, false, id, interfaceID, methodID,
		actorID, args)

	select {
	case resp := <-ch:
		return resultFromResponse(resp)
	case <-ctx.Done():
		return vactor.FutureResult{Err: ctx.Err()}
	}
}

// SendResponse implements vactor.Messenger: it delivers resp to whichever
// SendMessage call is waiting on its MessageID.
func (m *LoopbackMessenger) SendResponse(ctx context.Context, to vactor.Address,
	resp vactor.Response) error {

	m.mu.Lock()
	ch, ok := m.pending[resp.MessageID]
	if ok {
		delete(m.pending, resp.MessageID)
	}
	m.mu.Unlock()

	if ok {
		ch <- resp
	}

	return nil
}

func resultFromResponse(resp vactor.Response) vactor.FutureResult {
	switch resp.Kind {
	case vactor.NormalResponse:
		return vactor.FutureResult{Payload: resp.Payload}
	default:
		return vactor.FutureResult{Err: errors.New(resp.Text)}
	}
}

// StaticLocator always resolves to the same configured address, standing
// in for the cluster placement Locator in single-node tests.
type StaticLocator struct {
	Addr vactor.Address
}

// Locate implements vactor.Locator.
func (l StaticLocator) Locate(ctx context.Context,
	identity vactor.ActorIdentity) (vactor.Address, error) {

	return l.Addr, nil
}
