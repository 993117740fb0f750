package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryType string

const (
	EntryDeposit        EntryType = "deposit"
	EntryWithdrawal     EntryType = "withdrawal"
	EntryTransferDebit  EntryType = "transfer_debit"
	EntryTransferCredit EntryType = "transfer_credit"
)

const TransferStatusCompleted = "completed"

var SupportedCurrencies = []string{"USD", "INR"}

func IsSupportedCurrency(currency string) bool {
	for _, c := range SupportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

type Account struct {
	ID        string    `db:"id" json:"id"`
	Currency  string    `db:"currency" json:"currency"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type LedgerEntry struct {
	ID         string          `db:"id" json:"id"`
	AccountID  string          `db:"account_id" json:"accountId"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	EntryType  EntryType       `db:"entry_type" json:"entryType"`
	Reference  *string         `db:"reference" json:"reference"`
	TransferID *string         `db:"transfer_id" json:"transferId"`
	CreatedAt  time.Time       `db:"created_at" json:"createdAt"`
}

type Transfer struct {
	ID             string          `db:"id" json:"id"`
	FromAccountID  string          `db:"from_account_id" json:"fromAccountId"`
	ToAccountID    string          `db:"to_account_id" json:"toAccountId"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotencyKey"`
	Status         string          `db:"status" json:"status"`
	Reference      *string         `db:"reference" json:"reference"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

type APIClient struct {
	ID         string    `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	SecretHash string    `db:"secret_hash" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type AuditLog struct {
	ID         int64     `db:"id" json:"id"`
	ActorID    string    `db:"actor_id" json:"actorId"`
	Action     string    `db:"action" json:"action"`
	EntityType string    `db:"entity_type" json:"entityType"`
	EntityID   string    `db:"entity_id" json:"entityId"`
	Data       string    `db:"data" json:"data"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
