package store

import (
	"context"

	"ledger/internal/models"
)

type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

func (s *AccountStore) Create(ctx context.Context, id, currency string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO accounts (id, currency)
		VALUES ($1, $2)
		RETURNING id, currency, created_at
	`, id, currency)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	return s.Find(ctx, s.db, accountID)
}

// Find reads an account through q, which may be the pool or an open transaction.
func (s *AccountStore) Find(ctx context.Context, q Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := q.GetContext(ctx, &row, `
		SELECT id, currency, created_at
		FROM accounts
		WHERE id = $1
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT id, currency, created_at
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

// LockPair locks both account rows in one statement, always in id order, and returns
// the accounts that exist. Missing ids are simply absent from the result.
func (s *AccountStore) LockPair(ctx context.Context, tx Selecter, firstID, secondID string) ([]models.Account, error) {
	rows := []models.Account{}
	err := tx.SelectContext(ctx, &rows, `
		SELECT id, currency, created_at
		FROM accounts
		WHERE id IN ($1, $2)
		ORDER BY id
		FOR UPDATE
	`, firstID, secondID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
