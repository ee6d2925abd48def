package storage

import (
	"context"
	"errors"
)

// ActorStorageProvider adapts the Store onto the narrow persistence contract
// internal/vactor needs for activations that opt into durable state
// (internal/vactor.StorageProvider). It is the demo/reference
// implementation; a production deployment could swap in any other
// implementation of the same interface without touching internal/vactor.
type ActorStorageProvider struct {
	store *Store
}

// NewActorStorageProvider wraps a Store as a vactor StorageProvider.
func NewActorStorageProvider(store *Store) *ActorStorageProvider {
	return &ActorStorageProvider{store: store}
}

// LoadState fetches the most recently persisted state blob for the given
// actor identity, or (nil, false, nil) if nothing has been persisted yet.
func (p *ActorStorageProvider) LoadState(ctx context.Context, interfaceID,
	actorID string) ([]byte, bool, error) {

	var out []byte
	err := p.store.WithReadTx(ctx, func(ctx context.Context, q *Queries) error {
		row, err := q.GetActorState(ctx, interfaceID, actorID)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		out = row.State
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	return out, out != nil, nil
}

// SaveState persists a state blob for the given actor identity, overwriting
// any previously persisted state.
func (p *ActorStorageProvider) SaveState(ctx context.Context, interfaceID,
	actorID string, state []byte, updatedAt int64) error {

	return p.store.WithTx(ctx, func(ctx context.Context, q *Queries) error {
		return q.UpsertActorState(ctx, ActorStateRow{
			InterfaceID: interfaceID,
			ActorID:     actorID,
			State:       state,
			UpdatedAt:   unixToTime(updatedAt),
		})
	})
}

// DeleteState removes any persisted state for the given actor identity.
// Deleting a key with no persisted state is not an error.
func (p *ActorStorageProvider) DeleteState(ctx context.Context, interfaceID,
	actorID string) error {

	return p.store.WithTx(ctx, func(ctx context.Context, q *Queries) error {
		return q.DeleteActorState(ctx, interfaceID, actorID)
	})
}
