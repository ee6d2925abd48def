package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("storage: not found")

// ActorStateRow is a single persisted activation state record, keyed by the
// fully-qualified actor identity. This backs the demo StorageProvider used
// by internal/vactor.
type ActorStateRow struct {
	InterfaceID string
	ActorID     string
	State       []byte
	UpdatedAt   time.Time
}

// Querier is the set of hand-written queries our storage layer needs. It
// plays the same role a sqlc-generated Querier interface would, but is
// authored directly since this module has no code generation step.
type Querier interface {
	UpsertActorState(ctx context.Context, row ActorStateRow) error
	GetActorState(ctx context.Context, interfaceID, actorID string) (ActorStateRow, error)
	DeleteActorState(ctx context.Context, interfaceID, actorID string) error
	ListActorStates(ctx context.Context, interfaceID string) ([]ActorStateRow, error)
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, allowing Queries to run
// against either a bare connection or an in-flight transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries implements Querier against a dbtx (*sql.DB or *sql.Tx).
type Queries struct {
	db dbtx
}

// New wraps a dbtx in a Queries, mirroring the sqlc-generated constructor
// signature so TransactionExecutor's QueryCreator can build one per
// transaction.
func New(db dbtx) *Queries {
	return &Queries{db: db}
}

const upsertActorStateQuery = `
INSERT INTO actor_state (interface_id, actor_id, state, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (interface_id, actor_id) DO UPDATE SET
	state = excluded.state,
	updated_at = excluded.updated_at;
`

func (q *Queries) UpsertActorState(ctx context.Context, row ActorStateRow) error {
	_, err := q.db.ExecContext(
		ctx, upsertActorStateQuery, row.InterfaceID, row.ActorID,
		row.State, row.UpdatedAt,
	)
	return err
}

const getActorStateQuery = `
SELECT state, updated_at FROM actor_state
WHERE interface_id = $1 AND actor_id = $2;
`

func (q *Queries) GetActorState(ctx context.Context, interfaceID,
	actorID string) (ActorStateRow, error) {

	row := q.db.QueryRowContext(ctx, getActorStateQuery, interfaceID, actorID)

	out := ActorStateRow{InterfaceID: interfaceID, ActorID: actorID}
	if err := row.Scan(&out.State, &out.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ActorStateRow{}, ErrNotFound
		}

		return ActorStateRow{}, err
	}

	return out, nil
}

const deleteActorStateQuery = `
DELETE FROM actor_state WHERE interface_id = $1 AND actor_id = $2;
`

func (q *Queries) DeleteActorState(ctx context.Context, interfaceID,
	actorID string) error {

	_, err := q.db.ExecContext(ctx, deleteActorStateQuery, interfaceID, actorID)
	return err
}

const listActorStatesQuery = `
SELECT actor_id, state, updated_at FROM actor_state
WHERE interface_id = $1
ORDER BY actor_id;
`

func (q *Queries) ListActorStates(ctx context.Context,
	interfaceID string) ([]ActorStateRow, error) {

	rows, err := q.db.QueryContext(ctx, listActorStatesQuery, interfaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActorStateRow
	for rows.Next() {
		row := ActorStateRow{InterfaceID: interfaceID}
		if err := rows.Scan(&row.ActorID, &row.State, &row.UpdatedAt); err != nil {
			return nil, err
		}

		out = append(out, row)
	}

	return out, rows.Err()
}
