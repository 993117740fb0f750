package store

import (
	"context"

	"github.com/shopspring/decimal"
)

type ReconcileStore struct {
	db DB
}

func NewReconcileStore(db DB) *ReconcileStore {
	return &ReconcileStore{db: db}
}

type TransferImbalance struct {
	TransferID string          `db:"transfer_id" json:"transferId"`
	EntryCount int             `db:"entry_count" json:"entryCount"`
	EntrySum   decimal.Decimal `db:"entry_sum" json:"entrySum"`
}

type NegativeBalance struct {
	AccountID string          `db:"account_id" json:"accountId"`
	Currency  string          `db:"currency" json:"currency"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
}

// UnbalancedTransfers lists transfers that do not have exactly two entries summing to zero.
func (s *ReconcileStore) UnbalancedTransfers(ctx context.Context) ([]TransferImbalance, error) {
	rows := []TransferImbalance{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT t.id AS transfer_id,
		       COUNT(l.id) AS entry_count,
		       COALESCE(SUM(l.amount), 0) AS entry_sum
		FROM transfers t
		LEFT JOIN ledger_entries l ON l.transfer_id = t.id
		GROUP BY t.id
		HAVING COUNT(l.id) <> 2 OR COALESCE(SUM(l.amount), 0) <> 0
		ORDER BY t.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *ReconcileStore) NegativeBalances(ctx context.Context) ([]NegativeBalance, error) {
	rows := []NegativeBalance{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id AS account_id,
		       a.currency,
		       COALESCE(SUM(l.amount), 0) AS balance
		FROM accounts a
		LEFT JOIN ledger_entries l ON l.account_id = a.id
		GROUP BY a.id, a.currency
		HAVING COALESCE(SUM(l.amount), 0) < 0
		ORDER BY a.id
	`)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
