package commands

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/roasbeef/vactor/internal/vactor"
)

// loopback is a single-node Messenger+Locator: vactord has no cluster
// transport of its own, so a daemon running standalone delivers every
// outbound call straight back to its own Runtime.OnMessageReceived and
// always resolves to the single local address.
type loopback struct {
	mu      sync.Mutex
	target  *vactor.Runtime
	pending map[uint64]chan vactor.Response
	nextID  atomic.Uint64
}

const localAddr vactor.Address = "local"

func newLoopback() *loopback {
	return &loopback{pending: make(map[uint64]chan vactor.Response)}
}

func (l *loopback) attach(rt *vactor.Runtime) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target = rt
}

// Locate implements vactor.Locator.
func (l *loopback) Locate(ctx context.Context, identity vactor.ActorIdentity) (vactor.Address, error) {
	return localAddr, nil
}

// SendMessage implements vactor.Messenger.
func (l *loopback) SendMessage(ctx context.Context, to vactor.Address, oneway bool,
	interfaceID, methodID uint32, actorID string, args []byte) vactor.FutureResult {

	l.mu.Lock()
	target := l.target
	l.mu.Unlock()

	if target == nil {
		return vactor.FutureResult{Err: errors.New("vactord: runtime not attached")}
	}

	if oneway {
		target.OnMessageReceived(ctx, to, true, 0, interfaceID, methodID, actorID, args)
		return vactor.FutureResult{}
	}

	id := l.nextID.Add(1)
	ch := make(chan vactor.Response, 1)

	l.mu.Lock()
	l.pending[id] = ch
	l.mu.Unlock()

	target.OnMessageReceived(ctx, to, false, id, interfaceID, methodID, actorID, args)

	select {
	case resp := <-ch:
		return resultFromResponse(resp)
	case <-ctx.Done():
		return vactor.FutureResult{Err: ctx.Err()}
	}
}

// SendResponse implements vactor.Messenger.
func (l *loopback) SendResponse(ctx context.Context, to vactor.Address, resp vactor.Response) error {
	l.mu.Lock()
	ch, ok := l.pending[resp.MessageID]
	if ok {
		delete(l.pending, resp.MessageID)
	}
	l.mu.Unlock()

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
