package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/events"
	"ledger/internal/models"
	"ledger/internal/money"
	"ledger/internal/store"
	"ledger/internal/websocket"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one ledger transaction including retries.
const DefaultTimeout = 10 * time.Second

type AccountStore interface {
	Create(ctx context.Context, id, currency string) (models.Account, error)
	GetByID(ctx context.Context, accountID string) (models.Account, error)
	Find(ctx context.Context, q store.Getter, accountID string) (models.Account, error)
	GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error)
	LockPair(ctx context.Context, tx store.Selecter, firstID, secondID string) ([]models.Account, error)
}

type LedgerStore interface {
	InsertEntries(ctx context.Context, tx store.Getter, entries []models.LedgerEntry) ([]models.LedgerEntry, error)
	SumByAccount(ctx context.Context, q store.Getter, accountID string) (decimal.Decimal, error)
	ListByAccount(ctx context.Context, q store.Selecter, accountID string, limit, offset int) ([]models.LedgerEntry, error)
	CountByAccount(ctx context.Context, q store.Getter, accountID string) (int, error)
	ListByTransfer(ctx context.Context, q store.Selecter, transferID string) ([]models.LedgerEntry, error)
}

type TransferStore interface {
	Create(ctx context.Context, tx store.Getter, transfer models.Transfer) (models.Transfer, error)
	Find(ctx context.Context, q store.Getter, transferID string) (models.Transfer, error)
	GetByIdempotencyKey(ctx context.Context, q store.Getter, key string) (models.Transfer, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(update websocket.BalanceUpdate)
}

type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

type OperationRecorder interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
}

// Observers receive committed ledger changes. Any field may be nil.
type Observers struct {
	Hub       BalanceHub
	Publisher EventPublisher
	Recorder  OperationRecorder
}

const publishTimeout = 5 * time.Second

func (o Observers) record(operation string, err error, idempotent bool, elapsed time.Duration) {
	if o.Recorder == nil {
		return
	}
	o.Recorder.ObserveOperation(operation, outcomeOf(err, idempotent), elapsed)
}

func (o Observers) balanceChanged(update websocket.BalanceUpdate) {
	if o.Hub != nil {
		o.Hub.BroadcastBalance(update)
	}
}

// publish runs after commit; a failure is logged and never undoes the ledger write.
func (o Observers) publish(ctx context.Context, logger *zap.Logger, event events.Event) {
	if o.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.Publisher.Publish(ctx, event); err != nil {
		logger.Warn("publish ledger event failed",
			zap.String("type", event.Type),
			zap.String("id", event.ID),
			zap.Error(err),
		)
	}
}

func outcomeOf(err error, idempotent bool) string {
	switch {
	case err == nil && idempotent:
		return "idempotent"
	case err == nil:
		return "success"
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "validation"
	case apperr.KindNotFound:
		return "not_found"
	}
	return "internal"
}

// internalError keeps business errors intact and turns everything else into an
// InternalError carrying the reason. Deadline expiry is reported as a timeout.
func internalError(logger *zap.Logger, message string, err error, fields ...zap.Field) error {
	if err == nil || apperr.IsBusiness(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		message += ": timed out"
	}
	logger.Error(message, append(fields, zap.Error(err))...)
	return apperr.Internal(message, err)
}

func amountError(err error, amount decimal.Decimal) error {
	if errors.Is(err, money.ErrTooLarge) {
		return apperr.Validation("Amount is too large", map[string]any{
			"amount": amount.String(),
			"max":    money.MaxAmount.String(),
		})
	}
	if errors.Is(err, money.ErrTooManyDecimals) {
		return apperr.Validation("Amount has too many decimal places", map[string]any{
			"amount":   amount.String(),
			"maxScale": money.MaxScale,
		})
	}
	return apperr.Validation("Amount must be greater than zero", nil)
}

// validID reports whether id can name a row. Anything else cannot exist in the uuid columns.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func optionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
