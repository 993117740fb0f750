package services

import (
	"context"
	"encoding/json"
	"fmt"
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

// PostingService posts single-sided deposit and withdrawal entries.
type PostingService struct {
	txRunner  db.TxRunner
	accounts  AccountStore
	ledger    LedgerStore
	audit     AuditStore
	observers Observers
	logger    *zap.Logger
	timeout   time.Duration
}

func NewPostingService(txRunner db.TxRunner, accounts AccountStore, ledger LedgerStore, audit AuditStore, observers Observers, logger *zap.Logger, timeout time.Duration) *PostingService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &PostingService{
		txRunner:  txRunner,
		accounts:  accounts,
		ledger:    ledger,
		audit:     audit,
		observers: observers,
		logger:    logger,
		timeout:   timeout,
	}
}

type PostingRequest struct {
	AccountID string
	Amount    decimal.Decimal
	Reference *string
}

type PostingResult struct {
	Entry    models.LedgerEntry `json:"entry"`
	Balance  decimal.Decimal    `json:"balance"`
	Currency string             `json:"-"`
}

func (s *PostingService) Deposit(ctx context.Context, req PostingRequest) (PostingResult, error) {
	start := time.Now()
	result, err := s.deposit(ctx, req)
	s.observers.record("deposit", err, false, time.Since(start))
	if err != nil {
		return PostingResult{}, err
	}
	s.committed(ctx, events.TypeDeposit, result)
	return result, nil
}

func (s *PostingService) deposit(ctx context.Context, req PostingRequest) (PostingResult, error) {
	if err := money.Positive(req.Amount); err != nil {
		return PostingResult{}, amountError(err, req.Amount)
	}
	if !validID(req.AccountID) {
		return PostingResult{}, accountNotFound(req.AccountID)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result PostingResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.Find(ctx, tx, req.AccountID)
		if isNoRows(err) {
			return accountNotFound(req.AccountID)
		}
		if err != nil {
			return fmt.Errorf("load account: %w", err)
		}
		inserted, err := s.ledger.InsertEntries(ctx, tx, []models.LedgerEntry{{
			ID:        uuid.NewString(),
			AccountID: req.AccountID,
			Amount:    req.Amount,
			EntryType: models.EntryDeposit,
			Reference: req.Reference,
		}})
		if err != nil {
			return fmt.Errorf("insert deposit entry: %w", err)
		}
		balance, err := s.ledger.SumByAccount(ctx, tx, req.AccountID)
		if err != nil {
			return fmt.Errorf("sum balance: %w", err)
		}
		if err := s.logAudit(ctx, tx, "deposit", inserted[0]); err != nil {
			return err
		}
		result = PostingResult{Entry: inserted[0], Balance: balance, Currency: account.Currency}
		return nil
	})
	if err != nil {
		return PostingResult{}, internalError(s.logger, "Deposit failed", err, zap.String("account_id", req.AccountID))
	}
	return result, nil
}

func (s *PostingService) Withdraw(ctx context.Context, req PostingRequest) (PostingResult, error) {
	start := time.Now()
	result, err := s.withdraw(ctx, req)
	s.observers.record("withdrawal", err, false, time.Since(start))
	if err != nil {
		return PostingResult{}, err
	}
	s.committed(ctx, events.TypeWithdrawal, result)
	return result, nil
}

// withdraw holds the account row lock from the balance read through the entry insert,
// so two concurrent withdrawals cannot both spend the same funds.
func (s *PostingService) withdraw(ctx context.Context, req PostingRequest) (PostingResult, error) {
	if err := money.Positive(req.Amount); err != nil {
		return PostingResult{}, amountError(err, req.Amount)
	}
	if !validID(req.AccountID) {
		return PostingResult{}, accountNotFound(req.AccountID)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result PostingResult
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.GetForUpdate(ctx, tx, req.AccountID)
		if isNoRows(err) {
			return accountNotFound(req.AccountID)
		}
		if err != nil {
			return fmt.Errorf("lock account: %w", err)
		}
		balance, err := s.ledger.SumByAccount(ctx, tx, req.AccountID)
		if err != nil {
			return fmt.Errorf("sum balance: %w", err)
		}
		if balance.LessThan(req.Amount) {
			return apperr.Validation("Insufficient balance", map[string]any{
				"balance":           balance.String(),
				"attemptedWithdraw": req.Amount.String(),
			})
		}
		inserted, err := s.ledger.InsertEntries(ctx, tx, []models.LedgerEntry{{
			ID:        uuid.NewString(),
			AccountID: req.AccountID,
			Amount:    req.Amount.Neg(),
			EntryType: models.EntryWithdrawal,
			Reference: req.Reference,
		}})
		if err != nil {
			return fmt.Errorf("insert withdrawal entry: %w", err)
		}
		if err := s.logAudit(ctx, tx, "withdrawal", inserted[0]); err != nil {
			return err
		}
		result = PostingResult{Entry: inserted[0], Balance: balance.Sub(req.Amount), Currency: account.Currency}
		return nil
	})
	if err != nil {
		return PostingResult{}, internalError(s.logger, "Withdrawal failed", err, zap.String("account_id", req.AccountID))
	}
	return result, nil
}

func (s *PostingService) logAudit(ctx context.Context, tx *sqlx.Tx, action string, entry models.LedgerEntry) error {
	data, _ := json.Marshal(map[string]string{
		"account_id": entry.AccountID,
		"amount":     entry.Amount.String(),
		"reference":  optionalString(entry.Reference),
	})
	if err := s.audit.Log(ctx, tx, auth.ActorFromContext(ctx), action, "ledger_entry", entry.ID, string(data)); err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

func (s *PostingService) committed(ctx context.Context, eventType string, result PostingResult) {
	s.observers.balanceChanged(websocket.BalanceUpdate{
		AccountID: result.Entry.AccountID,
		Balance:   money.Format(result.Balance),
		Currency:  result.Currency,
		Cause:     string(result.Entry.EntryType),
		CauseID:   result.Entry.ID,
	})
	s.observers.publish(ctx, s.logger, events.Event{
		Type:       eventType,
		ID:         result.Entry.ID,
		AccountID:  result.Entry.AccountID,
		Amount:     result.Entry.Amount,
		Currency:   result.Currency,
		Reference:  optionalString(result.Entry.Reference),
		OccurredAt: result.Entry.CreatedAt,
	})
}
