package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/auth"
	"ledger/internal/db"
	"ledger/internal/events"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const idempotencyConstraint = "transfers_idempotency_key_key"

// errDuplicateKey aborts the transaction that lost an idempotency-key race.
var errDuplicateKey = errors.New("idempotency key already used")

type TransferService struct {
	txRunner  db.TxRunner
	accounts  AccountStore
	ledger    LedgerStore
	transfers TransferStore
	audit     AuditStore
	observers Observers
	logger    *zap.Logger
	timeout   time.Duration
}

func NewTransferService(txRunner db.TxRunner, accounts AccountStore, ledger LedgerStore, transfers TransferStore, audit AuditStore, observers Observers, logger *zap.Logger, timeout time.Duration) *TransferService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TransferService{
		txRunner:  txRunner,
		accounts:  accounts,
		ledger:    ledger,
		transfers: transfers,
		audit:     audit,
		observers: observers,
		logger:    logger,
		timeout:   timeout,
	}
}

type TransferRequest struct {
	FromAccountID  string
	ToAccountID    string
	Amount         decimal.Decimal
	IdempotencyKey *string
	Reference      *string
}

type Balances struct {
	From decimal.Decimal `json:"from"`
	To   decimal.Decimal `json:"to"`
}

type TransferDetails struct {
	models.Transfer
	LedgerEntries []models.LedgerEntry `json:"ledgerEntries"`
	Balances      *Balances            `json:"balances,omitempty"`
}

type TransferResult struct {
	Transfer   TransferDetails
	Idempotent bool
	currency   string
}

// PerformTransfer moves amount between two accounts as one debit/credit pair. A request
// whose idempotency key was already used returns the stored transfer with Idempotent set.
func (s *TransferService) PerformTransfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	start := time.Now()
	result, err := s.performTransfer(ctx, req)
	s.observers.record("transfer", err, result.Idempotent, time.Since(start))
	if err != nil {
		return TransferResult{}, err
	}
	if !result.Idempotent {
		s.committed(ctx, result)
	}
	return result, nil
}

func (s *TransferService) performTransfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if req.FromAccountID == req.ToAccountID {
		return TransferResult{}, apperr.Validation("Source and destination accounts must differ", nil)
	}
	if err := money.Positive(req.Amount); err != nil {
		return TransferResult{}, amountError(err, req.Amount)
	}
	if !validID(req.FromAccountID) {
		return TransferResult{}, apperr.NotFound("Source account not found", map[string]any{"accountId": req.FromAccountID})
	}
	if !validID(req.ToAccountID) {
		return TransferResult{}, apperr.NotFound("Destination account not found", map[string]any{"accountId": req.ToAccountID})
	}
	key := normalizeKey(req.IdempotencyKey)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result TransferResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		result = TransferResult{}
		if key != nil {
			existing, found, err := s.findByKey(ctx, tx, *key)
			if err != nil {
				return err
			}
			if found {
				result = TransferResult{Transfer: existing, Idempotent: true}
				return nil
			}
		}

		locked, err := s.accounts.LockPair(ctx, tx, req.FromAccountID, req.ToAccountID)
		if err != nil {
			return fmt.Errorf("lock accounts: %w", err)
		}
		from, to, err := pickAccounts(locked, req.FromAccountID, req.ToAccountID)
		if err != nil {
			return err
		}
		if from.Currency != to.Currency {
			return apperr.Validation("Currency mismatch", map[string]any{
				"fromCurrency": from.Currency,
				"toCurrency":   to.Currency,
			})
		}

		balance, err := s.ledger.SumByAccount(ctx, tx, from.ID)
		if err != nil {
			return fmt.Errorf("sum source balance: %w", err)
		}
		if balance.LessThan(req.Amount) {
			return apperr.Validation("Insufficient balance", map[string]any{
				"balance":   balance.String(),
				"attempted": req.Amount.String(),
			})
		}

		transfer, err := s.transfers.Create(ctx, tx, models.Transfer{
			ID:             uuid.NewString(),
			FromAccountID:  from.ID,
			ToAccountID:    to.ID,
			Amount:         req.Amount,
			IdempotencyKey: key,
			Status:         models.TransferStatusCompleted,
			Reference:      req.Reference,
		})
		if err != nil {
			if key != nil && db.IsUniqueViolation(err, idempotencyConstraint) {
				return errDuplicateKey
			}
			return fmt.Errorf("insert transfer: %w", err)
		}

		entries := transferEntries(transfer)
		if err := ensureBalanced(entries); err != nil {
			return err
		}
		inserted, err := s.ledger.InsertEntries(ctx, tx, entries)
		if err != nil {
			return fmt.Errorf("insert transfer entries: %w", err)
		}

		fromBalance, err := s.ledger.SumByAccount(ctx, tx, from.ID)
		if err != nil {
			return fmt.Errorf("sum source balance: %w", err)
		}
		toBalance, err := s.ledger.SumByAccount(ctx, tx, to.ID)
		if err != nil {
			return fmt.Errorf("sum destination balance: %w", err)
		}

		data, _ := json.Marshal(map[string]string{
			"from_account_id": transfer.FromAccountID,
			"to_account_id":   transfer.ToAccountID,
			"amount":          transfer.Amount.String(),
		})
		if err := s.audit.Log(ctx, tx, auth.ActorFromContext(ctx), "transfer", "transfer", transfer.ID, string(data)); err != nil {
			return fmt.Errorf("audit transfer: %w", err)
		}

		result = TransferResult{
			Transfer: TransferDetails{
				Transfer:      transfer,
				LedgerEntries: inserted,
				Balances:      &Balances{From: fromBalance, To: toBalance},
			},
			currency: from.Currency,
		}
		return nil
	})
	if errors.Is(err, errDuplicateKey) {
		return s.replay(ctx, *key)
	}
	if err != nil {
		return TransferResult{}, internalError(s.logger, "Transfer failed", err,
			zap.String("from_account_id", req.FromAccountID),
			zap.String("to_account_id", req.ToAccountID),
		)
	}
	return result, nil
}

// replay reads the transfer committed by the request that won the key race. It runs in a
// fresh transaction because the aborted one cannot see rows committed after it started.
func (s *TransferService) replay(ctx context.Context, key string) (TransferResult, error) {
	var result TransferResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		existing, found, err := s.findByKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("transfer for idempotency key %q vanished after conflict", key)
		}
		result = TransferResult{Transfer: existing, Idempotent: true}
		return nil
	})
	if err != nil {
		return TransferResult{}, internalError(s.logger, "Transfer failed", err, zap.String("idempotency_key", key))
	}
	s.logger.Info("idempotency key race resolved", zap.String("transfer_id", result.Transfer.ID))
	return result, nil
}

func (s *TransferService) GetTransfer(ctx context.Context, transferID string) (TransferDetails, error) {
	notFound := apperr.NotFound("Transfer not found", map[string]any{"id": transferID})
	if !validID(transferID) {
		return TransferDetails{}, notFound
	}
	var details TransferDetails
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		transfer, err := s.transfers.Find(ctx, tx, transferID)
		if isNoRows(err) {
			return notFound
		}
		if err != nil {
			return err
		}
		entries, err := s.ledger.ListByTransfer(ctx, tx, transferID)
		if err != nil {
			return err
		}
		details = TransferDetails{Transfer: transfer, LedgerEntries: entries}
		return nil
	})
	if err != nil {
		return TransferDetails{}, internalError(s.logger, "Failed to load transfer", err, zap.String("transfer_id", transferID))
	}
	return details, nil
}

func (s *TransferService) findByKey(ctx context.Context, tx *sqlx.Tx, key string) (TransferDetails, bool, error) {
	transfer, err := s.transfers.GetByIdempotencyKey(ctx, tx, key)
	if isNoRows(err) {
		return TransferDetails{}, false, nil
	}
	if err != nil {
		return TransferDetails{}, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	entries, err := s.ledger.ListByTransfer(ctx, tx, transfer.ID)
	if err != nil {
		return TransferDetails{}, false, fmt.Errorf("load transfer entries: %w", err)
	}
	return TransferDetails{Transfer: transfer, LedgerEntries: entries}, true, nil
}

func (s *TransferService) committed(ctx context.Context, result TransferResult) {
	transfer := result.Transfer
	if transfer.Balances != nil {
		s.observers.balanceChanged(websocket.BalanceUpdate{
			AccountID: transfer.FromAccountID,
			Balance:   money.Format(transfer.Balances.From),
			Currency:  result.currency,
			Cause:     string(models.EntryTransferDebit),
			CauseID:   transfer.ID,
		})
		s.observers.balanceChanged(websocket.BalanceUpdate{
			AccountID: transfer.ToAccountID,
			Balance:   money.Format(transfer.Balances.To),
			Currency:  result.currency,
			Cause:     string(models.EntryTransferCredit),
			CauseID:   transfer.ID,
		})
	}
	s.observers.publish(ctx, s.logger, events.Event{
		Type:          events.TypeTransfer,
		ID:            transfer.ID,
		FromAccountID: transfer.FromAccountID,
		ToAccountID:   transfer.ToAccountID,
		Amount:        transfer.Amount,
		Currency:      result.currency,
		Reference:     optionalString(transfer.Reference),
		OccurredAt:    transfer.CreatedAt,
	})
}

func pickAccounts(locked []models.Account, fromID, toID string) (models.Account, models.Account, error) {
	var from, to *models.Account
	for i := range locked {
		switch locked[i].ID {
		case fromID:
			from = &locked[i]
		case toID:
			to = &locked[i]
		}
	}
	if from == nil {
		return models.Account{}, models.Account{}, apperr.NotFound("Source account not found", map[string]any{"accountId": fromID})
	}
	if to == nil {
		return models.Account{}, models.Account{}, apperr.NotFound("Destination account not found", map[string]any{"accountId": toID})
	}
	return *from, *to, nil
}

func transferEntries(transfer models.Transfer) []models.LedgerEntry {
	transferID := transfer.ID
	return []models.LedgerEntry{
		{
			ID:         uuid.NewString(),
			AccountID:  transfer.FromAccountID,
			Amount:     transfer.Amount.Neg(),
			EntryType:  models.EntryTransferDebit,
			Reference:  transfer.Reference,
			TransferID: &transferID,
		},
		{
			ID:         uuid.NewString(),
			AccountID:  transfer.ToAccountID,
			Amount:     transfer.Amount,
			EntryType:  models.EntryTransferCredit,
			Reference:  transfer.Reference,
			TransferID: &transferID,
		},
	}
}

func ensureBalanced(entries []models.LedgerEntry) error {
	sum := decimal.Zero
	for _, entry := range entries {
		sum = sum.Add(entry.Amount)
	}
	if !sum.IsZero() {
		return errors.New("ledger entries are not balanced")
	}
	return nil
}

func normalizeKey(key *string) *string {
	if key == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*key)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
