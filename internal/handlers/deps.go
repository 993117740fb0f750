package handlers

import (
	"context"

	"ledger/internal/models"
	"ledger/internal/services"
	"ledger/internal/store"
)

type AccountService interface {
	CreateAccount(ctx context.Context, currency string) (models.Account, error)
	GetAccount(ctx context.Context, accountID string) (models.Account, error)
	GetBalance(ctx context.Context, accountID string) (services.Balance, error)
	GetLedger(ctx context.Context, accountID string, page, limit int) (services.LedgerPage, error)
}

type PostingService interface {
	Deposit(ctx context.Context, req services.PostingRequest) (services.PostingResult, error)
	Withdraw(ctx context.Context, req services.PostingRequest) (services.PostingResult, error)
}

type TransferService interface {
	PerformTransfer(ctx context.Context, req services.TransferRequest) (services.TransferResult, error)
	GetTransfer(ctx context.Context, transferID string) (services.TransferDetails, error)
}

type ClientStore interface {
	GetByID(ctx context.Context, clientID string) (models.APIClient, error)
}

type AuditStore interface {
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

type ReconcileStore interface {
	UnbalancedTransfers(ctx context.Context) ([]store.TransferImbalance, error)
	NegativeBalances(ctx context.Context) ([]store.NegativeBalance, error)
}
