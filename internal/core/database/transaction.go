package database

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

type txKey struct{}

// TxManager runs a function inside one database transaction. Repositories
// pick the transaction up from the context through Conn.
type TxManager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type TransactionManager struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

type Option func(*TransactionManager)

// WithTxOptions sets the isolation level used for every unit of work.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(tm *TransactionManager) {
		tm.opts = opts
	}
}

func NewTransactionManager(db *gorm.DB, opts ...Option) *TransactionManager {
	tm := &TransactionManager{db: db}
	for _, opt := range opts {
		opt(tm)
	}
	return tm
}

// RunInTransaction commits when fn returns nil and rolls back otherwise. A call
// made while a transaction is already open on ctx joins it.
func (tm *TransactionManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	var opts []*sql.TxOptions
	if tm.opts != nil {
		opts = append(opts, tm.opts)
	}

	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	}, opts...)
}

// Conn returns the transaction carried by ctx, or fallback bound to ctx.
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}

func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*gorm.DB)
	return ok
}
