package store

import (
	"context"
	"database/sql"
)

// stubDB satisfies DB and doubles as a transaction handle. Unset hooks
// succeed without touching dest.
type stubDB struct {
	getFn    func(ctx context.Context, dest any, query string, args ...any) error
	selectFn func(ctx context.Context, dest any, query string, args ...any) error
	execFn   func(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var _ DB = stubDB{}

func (s stubDB) GetContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.getFn != nil {
		return s.getFn(ctx, dest, query, args...)
	}
	return nil
}

func (s stubDB) SelectContext(ctx context.Context, dest any, query string, args ...any) error {
	if s.selectFn != nil {
		return s.selectFn(ctx, dest, query, args...)
	}
	return nil
}

func (s stubDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if s.execFn != nil {
		return s.execFn(ctx, query, args...)
	}
	return rowsAffected(0), nil
}

type rowsAffected int64

func (r rowsAffected) LastInsertId() (int64, error) { return 0, nil }

func (r rowsAffected) RowsAffected() (int64, error) { return int64(r), nil }
