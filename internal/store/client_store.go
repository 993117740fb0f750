package store

import (
	"context"

	"ledger/internal/models"
)

type ClientStore struct {
	db DB
}

func NewClientStore(db DB) *ClientStore {
	return &ClientStore{db: db}
}

func (s *ClientStore) Create(ctx context.Context, id, name, secretHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_clients (id, name, secret_hash)
		VALUES ($1, $2, $3)
	`, id, name, secretHash)
	return err
}

func (s *ClientStore) GetByID(ctx context.Context, clientID string) (models.APIClient, error) {
	var row models.APIClient
	err := s.db.GetContext(ctx, &row, `SELECT id, name, secret_hash, created_at FROM api_clients WHERE id = $1`, clientID)
	if err != nil {
		return models.APIClient{}, err
	}
	return row, nil
}

func (s *ClientStore) GetByName(ctx context.Context, name string) (models.APIClient, error) {
	var row models.APIClient
	err := s.db.GetContext(ctx, &row, `SELECT id, name, secret_hash, created_at FROM api_clients WHERE name = $1`, name)
	if err != nil {
		return models.APIClient{}, err
	}
	return row, nil
}
