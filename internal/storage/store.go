package storage

import (
	"context"
	"database/sql"

	btclog "github.com/btcsuite/btclog/v2"
)

// Store wraps the BaseDB with transaction support, providing automatic
// retry on serialization errors via the embedded TransactionExecutor.
type Store struct {
	*BaseDB

	txExecutor *TransactionExecutor[*Queries]

	log btclog.Logger
}

// NewStore creates a new Store wrapping the given database connection,
// logging through the package-disabled logger unless UseLogger is called.
func NewStore(db *sql.DB) *Store {
	return NewStoreWithLogger(db, log)
}

// NewStoreWithLogger creates a new Store instance with a custom logger.
func NewStoreWithLogger(db *sql.DB, logger btclog.Logger) *Store {
	baseDB := NewBaseDB(db)

	createQuery := func(tx *sql.Tx) *Queries {
		return New(tx)
	}

	return &Store{
		BaseDB:     baseDB,
		txExecutor: NewTransactionExecutor(baseDB, createQuery, logger),
		log:        logger,
	}
}

// Queries returns the underlying Queries for direct, non-transactional
// access.
func (s *Store) Queries() *Queries {
	return s.BaseDB.Queries
}

// TxFunc is the function signature for transaction callbacks.
type TxFunc func(ctx context.Context, q *Queries) error

// ExecTx executes txBody inside a database transaction with automatic
// retry on serialization errors.
func (s *Store) ExecTx(ctx context.Context, txOptions TxOptions,
	txBody func(*Queries) error) error {

	return s.txExecutor.ExecTx(ctx, txOptions, txBody)
}

// WithTx executes fn inside a read-write database transaction.
func (s *Store) WithTx(ctx context.Context, fn TxFunc) error {
	return s.ExecTx(ctx, WriteTxOption(), func(q *Queries) error {
		return fn(ctx, q)
	})
}

// WithReadTx executes fn inside a read-only database transaction.
func (s *Store) WithReadTx(ctx context.Context, fn TxFunc) error {
	return s.ExecTx(ctx, ReadTxOption(), func(q *Queries) error {
		return fn(ctx, q)
	})
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.BaseDB.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.BaseDB.DB
}
