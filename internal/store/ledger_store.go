package store

import (
	"context"

	"ledger/internal/models"

	"github.com/shopspring/decimal"
)

// LedgerStore has no pool of its own: every read and write runs on the
// transaction or pool handle the caller passes in.
type LedgerStore struct{}

func NewLedgerStore() *LedgerStore {
	return &LedgerStore{}
}

// InsertEntries appends entries and fills in CreatedAt from the database clock.
func (s *LedgerStore) InsertEntries(ctx context.Context, tx Getter, entries []models.LedgerEntry) ([]models.LedgerEntry, error) {
	query := `
		INSERT INTO ledger_entries (id, account_id, amount, entry_type, reference, transfer_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	out := make([]models.LedgerEntry, len(entries))
	copy(out, entries)
	for i := range out {
		entry := &out[i]
		if err := tx.GetContext(ctx, &entry.CreatedAt, query, entry.ID, entry.AccountID, entry.Amount, entry.EntryType, entry.Reference, entry.TransferID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SumByAccount is the balance of an account. No entries means zero.
func (s *LedgerStore) SumByAccount(ctx context.Context, q Getter, accountID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = $1
	`, accountID)
	return sum, err
}

// ListByAccount returns one page of an account's entries, newest first.
func (s *LedgerStore) ListByAccount(ctx context.Context, q Selecter, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	rows := []models.LedgerEntry{}
	err := q.SelectContext(ctx, &rows, `
		SELECT id, account_id, amount, entry_type, reference, transfer_id, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *LedgerStore) CountByAccount(ctx context.Context, q Getter, accountID string) (int, error) {
	var total int
	err := q.GetContext(ctx, &total, `
		SELECT COUNT(*)
		FROM ledger_entries
		WHERE account_id = $1
	`, accountID)
	return total, err
}

func (s *LedgerStore) ListByTransfer(ctx context.Context, q Selecter, transferID string) ([]models.LedgerEntry, error) {
	rows := []models.LedgerEntry{}
	err := q.SelectContext(ctx, &rows, `
		SELECT id, account_id, amount, entry_type, reference, transfer_id, created_at
		FROM ledger_entries
		WHERE transfer_id = $1
		ORDER BY amount
	`, transferID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
