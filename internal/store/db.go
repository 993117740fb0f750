package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// The narrow query interfaces let a store method run against the pool or an
// open transaction. Methods taking one of these are the ones a service calls
// inside db.TxRunner.WithTx.

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// DB is the pool-side view every store is constructed with.
type DB interface {
	Execer
	Getter
	Selecter
}

var (
	_ DB = (*sqlx.DB)(nil)
	_ DB = (*sqlx.Tx)(nil)
)
