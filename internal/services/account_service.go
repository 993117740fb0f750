package services

import (
	"context"
	"fmt"

	"ledger/internal/apperr"
	"ledger/internal/db"
	"ledger/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

type AccountService struct {
	txRunner db.TxRunner
	accounts AccountStore
	ledger   LedgerStore
	logger   *zap.Logger
}

func NewAccountService(txRunner db.TxRunner, accounts AccountStore, ledger LedgerStore, logger *zap.Logger) *AccountService {
	return &AccountService{txRunner: txRunner, accounts: accounts, ledger: ledger, logger: logger}
}

type Balance struct {
	AccountID string          `json:"accountId"`
	Currency  string          `json:"currency"`
	Balance   decimal.Decimal `json:"balance"`
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

type LedgerPage struct {
	Entries    []models.LedgerEntry `json:"entries"`
	Pagination Pagination           `json:"pagination"`
}

func (s *AccountService) CreateAccount(ctx context.Context, currency string) (models.Account, error) {
	if !models.IsSupportedCurrency(currency) {
		return models.Account{}, apperr.Validation("Unsupported currency", map[string]any{
			"currency": currency,
			"allowed":  models.SupportedCurrencies,
		})
	}
	account, err := s.accounts.Create(ctx, uuid.NewString(), currency)
	if err != nil {
		return models.Account{}, internalError(s.logger, "Failed to create account", err, zap.String("currency", currency))
	}
	s.logger.Info("account created", zap.String("account_id", account.ID), zap.String("currency", account.Currency))
	return account, nil
}

func (s *AccountService) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	if !validID(accountID) {
		return models.Account{}, accountNotFound(accountID)
	}
	account, err := s.accounts.GetByID(ctx, accountID)
	if isNoRows(err) {
		return models.Account{}, accountNotFound(accountID)
	}
	if err != nil {
		return models.Account{}, internalError(s.logger, "Failed to load account", err, zap.String("account_id", accountID))
	}
	return account, nil
}

// GetBalance reads the account and its entry sum in one transaction so an unknown id is
// reported as not found instead of a zero balance.
func (s *AccountService) GetBalance(ctx context.Context, accountID string) (Balance, error) {
	if !validID(accountID) {
		return Balance{}, accountNotFound(accountID)
	}
	var result Balance
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		account, err := s.accounts.Find(ctx, tx, accountID)
		if isNoRows(err) {
			return accountNotFound(accountID)
		}
		if err != nil {
			return err
		}
		sum, err := s.ledger.SumByAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		result = Balance{AccountID: account.ID, Currency: account.Currency, Balance: sum}
		return nil
	})
	if err != nil {
		return Balance{}, internalError(s.logger, "Failed to compute balance", err, zap.String("account_id", accountID))
	}
	return result, nil
}

// GetLedger reads one page and the total in the same transaction so the pagination
// always describes the entries returned. Pages past the end come back empty.
func (s *AccountService) GetLedger(ctx context.Context, accountID string, page, limit int) (LedgerPage, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if !validID(accountID) {
		return LedgerPage{}, accountNotFound(accountID)
	}
	result := LedgerPage{Pagination: Pagination{Page: page, Limit: limit}}
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := s.accounts.Find(ctx, tx, accountID); err != nil {
			if isNoRows(err) {
				return accountNotFound(accountID)
			}
			return err
		}
		total, err := s.ledger.CountByAccount(ctx, tx, accountID)
		if err != nil {
			return fmt.Errorf("count entries: %w", err)
		}
		result.Pagination.Total = total
		result.Pagination.Pages = pageCount(total, limit)
		result.Entries = []models.LedgerEntry{}
		// page-1 < pages keeps (page-1)*limit below total, so it cannot overflow.
		if page-1 >= result.Pagination.Pages {
			return nil
		}
		entries, err := s.ledger.ListByAccount(ctx, tx, accountID, limit, (page-1)*limit)
		if err != nil {
			return fmt.Errorf("list entries: %w", err)
		}
		result.Entries = entries
		return nil
	})
	if err != nil {
		return LedgerPage{}, internalError(s.logger, "Failed to load ledger", err, zap.String("account_id", accountID))
	}
	return result, nil
}

func pageCount(total, limit int) int {
	return (total + limit - 1) / limit
}

func accountNotFound(accountID string) error {
	return apperr.NotFound("Account not found", map[string]any{"accountId": accountID})
}
