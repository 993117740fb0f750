package main

import (
	"context"
	"strings"
	"testing"

	"ledger/internal/auth"
	"ledger/internal/validator"

	"github.com/lib/pq"
)

type stubClients struct {
	createFn func(ctx context.Context, id, name, secretHash string) error
}

func (s stubClients) Create(ctx context.Context, id, name, secretHash string) error {
	return s.createFn(ctx, id, name, secretHash)
}

func TestRegisterStoresHashOnly(t *testing.T) {
	var storedHash, storedName string
	id, secret, err := register(context.Background(), stubClients{
		createFn: func(_ context.Context, _, name, secretHash string) error {
			storedName, storedHash = name, secretHash
			return nil
		},
	}, "billing-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" || secret == "" || storedName != "billing-service" {
		t.Fatalf("unexpected registration: id=%q name=%q", id, storedName)
	}
	if storedHash == secret || !auth.CheckSecret(storedHash, secret) {
		t.Fatal("expected the bcrypt hash of the returned secret to be stored")
	}
}

func TestRegisterRejectsBadName(t *testing.T) {
	_, _, err := register(context.Background(), stubClients{
		createFn: func(context.Context, string, string, string) error {
			t.Fatal("store should not be called")
			return nil
		},
	}, "x")
	if err != validator.ErrInvalidClientName {
		t.Fatalf("expected ErrInvalidClientName, got %v", err)
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	_, _, err := register(context.Background(), stubClients{
		createFn: func(context.Context, string, string, string) error {
			return &pq.Error{Code: "23505", Constraint: "api_clients_name_key"}
		},
	}, "billing-service")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}
