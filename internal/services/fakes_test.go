package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"ledger/internal/events"
	"ledger/internal/models"
	"ledger/internal/store"
	"ledger/internal/websocket"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

// memDB keeps accounts, entries and transfers in memory. A failed callback does not
// roll anything back, so tests only inspect it after successful operations or after
// failures detected before any write.
//
// Row locks are real: GetForUpdate and LockPair block on a per-account mutex held
// until rowLockTxRunner ends the transaction that took it. calls records lock and
// balance reads in order.
type memDB struct {
	mu        sync.Mutex
	accounts  map[string]models.Account
	entries   []models.LedgerEntry
	transfers map[string]models.Transfer
	now       time.Time

	rows     map[string]*sync.Mutex
	held     map[*sqlx.Tx]map[string]*sync.Mutex
	calls    []string
	sumPause time.Duration
}

func newMemDB() *memDB {
	return &memDB{
		accounts:  make(map[string]models.Account),
		transfers: make(map[string]models.Transfer),
		now:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		rows:      make(map[string]*sync.Mutex),
		held:      make(map[*sqlx.Tx]map[string]*sync.Mutex),
	}
}

func (m *memDB) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *memDB) callLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *memDB) resetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// lockRow takes the row lock for the transaction behind q. Callers without a
// transaction (fakeTxRunner passes nil) lock nothing.
func (m *memDB) lockRow(q any, accountID string) {
	tx, ok := q.(*sqlx.Tx)
	if !ok || tx == nil {
		return
	}
	m.mu.Lock()
	if _, mine := m.held[tx][accountID]; mine {
		m.mu.Unlock()
		return
	}
	row := m.rows[accountID]
	if row == nil {
		row = &sync.Mutex{}
		m.rows[accountID] = row
	}
	m.mu.Unlock()

	row.Lock()

	m.mu.Lock()
	if m.held[tx] == nil {
		m.held[tx] = make(map[string]*sync.Mutex)
	}
	m.held[tx][accountID] = row
	m.mu.Unlock()
}

func (m *memDB) releaseRows(tx *sqlx.Tx) {
	m.mu.Lock()
	rows := m.held[tx]
	delete(m.held, tx)
	m.mu.Unlock()
	for _, row := range rows {
		row.Unlock()
	}
}

// rowLockTxRunner gives every transaction its own handle so memDB can tell
// lock holders apart, and releases the rows the callback locked when it ends.
type rowLockTxRunner struct {
	db *memDB
}

func (r rowLockTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	tx := &sqlx.Tx{}
	defer r.db.releaseRows(tx)
	return fn(tx)
}

func (m *memDB) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *memDB) addAccount(currency string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.accounts[id] = models.Account{ID: id, Currency: currency, CreatedAt: m.tick()}
	return id
}

func (m *memDB) balance(accountID string) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumLocked(accountID)
}

func (m *memDB) sumLocked(accountID string) decimal.Decimal {
	sum := decimal.Zero
	for _, entry := range m.entries {
		if entry.AccountID == accountID {
			sum = sum.Add(entry.Amount)
		}
	}
	return sum
}

func (m *memDB) entriesFor(accountID string) []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LedgerEntry
	for _, entry := range m.entries {
		if entry.AccountID == accountID {
			out = append(out, entry)
		}
	}
	return out
}

func (m *memDB) transferCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transfers)
}

type memAccounts struct{ db *memDB }

func (s memAccounts) Create(_ context.Context, id, currency string) (models.Account, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	account := models.Account{ID: id, Currency: currency, CreatedAt: s.db.tick()}
	s.db.accounts[id] = account
	return account, nil
}

func (s memAccounts) GetByID(ctx context.Context, accountID string) (models.Account, error) {
	return s.Find(ctx, nil, accountID)
}

func (s memAccounts) Find(_ context.Context, _ store.Getter, accountID string) (models.Account, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	account, ok := s.db.accounts[accountID]
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return account, nil
}

func (s memAccounts) GetForUpdate(ctx context.Context, tx store.Getter, accountID string) (models.Account, error) {
	s.db.record("lock " + accountID)
	s.db.lockRow(tx, accountID)
	return s.Find(ctx, tx, accountID)
}

// LockPair locks in id order like ORDER BY id FOR UPDATE.
func (s memAccounts) LockPair(_ context.Context, tx store.Selecter, firstID, secondID string) ([]models.Account, error) {
	ids := []string{firstID, secondID}
	sort.Strings(ids)
	s.db.record("lock " + ids[0] + " " + ids[1])
	for _, id := range ids {
		s.db.lockRow(tx, id)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.Account
	for _, id := range ids {
		if account, ok := s.db.accounts[id]; ok {
			out = append(out, account)
		}
	}
	return out, nil
}

type memLedger struct{ db *memDB }

func (s memLedger) InsertEntries(_ context.Context, _ store.Getter, entries []models.LedgerEntry) ([]models.LedgerEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]models.LedgerEntry, len(entries))
	for i, entry := range entries {
		entry.CreatedAt = s.db.tick()
		out[i] = entry
		s.db.entries = append(s.db.entries, entry)
	}
	return out, nil
}

func (s memLedger) SumByAccount(_ context.Context, _ store.Getter, accountID string) (decimal.Decimal, error) {
	s.db.mu.Lock()
	s.db.calls = append(s.db.calls, "sum "+accountID)
	sum := s.db.sumLocked(accountID)
	pause := s.db.sumPause
	s.db.mu.Unlock()
	if pause > 0 {
		time.Sleep(pause)
	}
	return sum, nil
}

func (s memLedger) ListByAccount(_ context.Context, _ store.Selecter, accountID string, limit, offset int) ([]models.LedgerEntry, error) {
	if offset < 0 || limit < 1 {
		return nil, fmt.Errorf("bad page: limit %d offset %d", limit, offset)
	}
	entries := s.db.entriesFor(accountID)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	if offset >= len(entries) {
		return []models.LedgerEntry{}, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end], nil
}

func (s memLedger) CountByAccount(_ context.Context, _ store.Getter, accountID string) (int, error) {
	return len(s.db.entriesFor(accountID)), nil
}

func (s memLedger) ListByTransfer(_ context.Context, _ store.Selecter, transferID string) ([]models.LedgerEntry, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.LedgerEntry
	for _, entry := range s.db.entries {
		if entry.TransferID != nil && *entry.TransferID == transferID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type memTransfers struct{ db *memDB }

func (s memTransfers) Create(_ context.Context, _ store.Getter, transfer models.Transfer) (models.Transfer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	transfer.CreatedAt = s.db.tick()
	s.db.transfers[transfer.ID] = transfer
	return transfer, nil
}

func (s memTransfers) Find(_ context.Context, _ store.Getter, transferID string) (models.Transfer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	transfer, ok := s.db.transfers[transferID]
	if !ok {
		return models.Transfer{}, sql.ErrNoRows
	}
	return transfer, nil
}

func (s memTransfers) GetByIdempotencyKey(_ context.Context, _ store.Getter, key string) (models.Transfer, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, transfer := range s.db.transfers {
		if transfer.IdempotencyKey != nil && *transfer.IdempotencyKey == key {
			return transfer, nil
		}
	}
	return models.Transfer{}, sql.ErrNoRows
}

type stubAuditStore struct {
	logFn func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

type stubHub struct {
	calls []websocket.BalanceUpdate
}

func (s *stubHub) BroadcastBalance(update websocket.BalanceUpdate) {
	s.calls = append(s.calls, update)
}

type stubPublisher struct {
	events []events.Event
	err    error
}

func (s *stubPublisher) Publish(_ context.Context, event events.Event) error {
	s.events = append(s.events, event)
	return s.err
}

type stubRecorder struct {
	outcomes map[string][]string
}

func (s *stubRecorder) ObserveOperation(operation, outcome string, _ time.Duration) {
	if s.outcomes == nil {
		s.outcomes = make(map[string][]string)
	}
	s.outcomes[operation] = append(s.outcomes[operation], outcome)
}

func stringPtr(value string) *string {
	return &value
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
