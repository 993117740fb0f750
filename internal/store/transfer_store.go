package store

import (
	"context"

	"ledger/internal/models"
)

// TransferStore runs on the caller's handle; transfers are only read and written
// inside transactions.
type TransferStore struct{}

func NewTransferStore() *TransferStore {
	return &TransferStore{}
}

const transferColumns = `id, from_account_id, to_account_id, amount, idempotency_key, status, reference, created_at`

// Create inserts a transfer. A second insert with the same idempotency key fails with a
// unique violation on transfers_idempotency_key_key.
func (s *TransferStore) Create(ctx context.Context, tx Getter, transfer models.Transfer) (models.Transfer, error) {
	err := tx.GetContext(ctx, &transfer.CreatedAt, `
		INSERT INTO transfers (id, from_account_id, to_account_id, amount, idempotency_key, status, reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, transfer.ID, transfer.FromAccountID, transfer.ToAccountID, transfer.Amount, transfer.IdempotencyKey, transfer.Status, transfer.Reference)
	if err != nil {
		return models.Transfer{}, err
	}
	return transfer, nil
}

func (s *TransferStore) Find(ctx context.Context, q Getter, transferID string) (models.Transfer, error) {
	var row models.Transfer
	err := q.GetContext(ctx, &row, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, transferID)
	if err != nil {
		return models.Transfer{}, err
	}
	return row, nil
}

func (s *TransferStore) GetByIdempotencyKey(ctx context.Context, q Getter, key string) (models.Transfer, error) {
	var row models.Transfer
	err := q.GetContext(ctx, &row, `SELECT `+transferColumns+` FROM transfers WHERE idempotency_key = $1`, key)
	if err != nil {
		return models.Transfer{}, err
	}
	return row, nil
}
