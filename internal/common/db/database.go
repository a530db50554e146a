package db

import (
	"context"
	"database/sql"
)

// Database is the connection-pool level handle used by repositories.
type Database interface {
	Querier

	// Transaction runs fn inside a transaction, committing on nil and rolling back otherwise.
	Transaction(ctx context.Context, fn func(tx Transaction) error) error

	// BeginTx starts a transaction the caller must finish.
	BeginTx(ctx context.Context, opts *TxOptions) (Transaction, error)

	Ping(ctx context.Context) error
	Close() error
}

// Transaction is a Querier bound to one database transaction.
type Transaction interface {
	Querier
	Commit() error
	Rollback() error
}

// Rows iterates over a query result set.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
	Err() error
}

// Row is the result of QueryRow.
type Row interface {
	Scan(dest ...interface{}) error
}

// Result summarizes an executed statement.
type Result interface {
	LastInsertId() (int64, error)
	RowsAffected() (int64, error)
}

// TxOptions mirrors sql.TxOptions without leaking database/sql into callers.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// ConvertTxOptions maps TxOptions to sql.TxOptions.
func ConvertTxOptions(opts *TxOptions) *sql.TxOptions {
	if opts == nil {
		return nil
	}
	return &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly}
}
