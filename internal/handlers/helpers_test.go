package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ledger/internal/config"
	"ledger/internal/models"
	"ledger/internal/services"
	"ledger/internal/store"
	"ledger/internal/websocket"

	"go.uber.org/zap"
)

type stubAccountService struct {
	createFn     func(ctx context.Context, currency string) (models.Account, error)
	getFn        func(ctx context.Context, accountID string) (models.Account, error)
	getBalanceFn func(ctx context.Context, accountID string) (services.Balance, error)
	getLedgerFn  func(ctx context.Context, accountID string, page, limit int) (services.LedgerPage, error)
}

func (s stubAccountService) CreateAccount(ctx context.Context, currency string) (models.Account, error) {
	if s.createFn == nil {
		return models.Account{}, nil
	}
	return s.createFn(ctx, currency)
}

func (s stubAccountService) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	if s.getFn == nil {
		return models.Account{ID: accountID, Currency: "USD"}, nil
	}
	return s.getFn(ctx, accountID)
}

func (s stubAccountService) GetBalance(ctx context.Context, accountID string) (services.Balance, error) {
	if s.getBalanceFn == nil {
		return services.Balance{}, nil
	}
	return s.getBalanceFn(ctx, accountID)
}

func (s stubAccountService) GetLedger(ctx context.Context, accountID string, page, limit int) (services.LedgerPage, error) {
	if s.getLedgerFn == nil {
		return services.LedgerPage{}, nil
	}
	return s.getLedgerFn(ctx, accountID, page, limit)
}

type stubPostingService struct {
	depositFn  func(ctx context.Context, req services.PostingRequest) (services.PostingResult, error)
	withdrawFn func(ctx context.Context, req services.PostingRequest) (services.PostingResult, error)
}

func (s stubPostingService) Deposit(ctx context.Context, req services.PostingRequest) (services.PostingResult, error) {
	if s.depositFn == nil {
		return services.PostingResult{}, nil
	}
	return s.depositFn(ctx, req)
}

func (s stubPostingService) Withdraw(ctx context.Context, req services.PostingRequest) (services.PostingResult, error) {
	if s.withdrawFn == nil {
		return services.PostingResult{}, nil
	}
	return s.withdrawFn(ctx, req)
}

type stubTransferService struct {
	performFn func(ctx context.Context, req services.TransferRequest) (services.TransferResult, error)
	getFn     func(ctx context.Context, transferID string) (services.TransferDetails, error)
}

func (s stubTransferService) PerformTransfer(ctx context.Context, req services.TransferRequest) (services.TransferResult, error) {
	if s.performFn == nil {
		return services.TransferResult{}, nil
	}
	return s.performFn(ctx, req)
}

func (s stubTransferService) GetTransfer(ctx context.Context, transferID string) (services.TransferDetails, error) {
	if s.getFn == nil {
		return services.TransferDetails{}, nil
	}
	return s.getFn(ctx, transferID)
}

type stubClientStore struct {
	getByIDFn func(ctx context.Context, clientID string) (models.APIClient, error)
}

func (s stubClientStore) GetByID(ctx context.Context, clientID string) (models.APIClient, error) {
	return s.getByIDFn(ctx, clientID)
}

type stubAuditStore struct {
	listFn func(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}

func (s stubAuditStore) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, limit, offset)
}

type stubReconcileStore struct {
	transfersFn func(ctx context.Context) ([]store.TransferImbalance, error)
	negativesFn func(ctx context.Context) ([]store.NegativeBalance, error)
}

func (s stubReconcileStore) UnbalancedTransfers(ctx context.Context) ([]store.TransferImbalance, error) {
	if s.transfersFn == nil {
		return nil, nil
	}
	return s.transfersFn(ctx)
}

func (s stubReconcileStore) NegativeBalances(ctx context.Context) ([]store.NegativeBalance, error) {
	if s.negativesFn == nil {
		return nil, nil
	}
	return s.negativesFn(ctx)
}

type testDeps struct {
	cfg       *config.Config
	accounts  AccountService
	postings  PostingService
	transfers TransferService
	clients   ClientStore
	audit     AuditStore
	reconcile ReconcileStore
}

const (
	testAccessSecret  = "access-secret"
	testRefreshSecret = "refresh-secret"
)

func testConfig() config.Config {
	return config.Config{
		AppEnv:             "development",
		Port:               "0",
		AccessTokenSecret:  testAccessSecret,
		AccessTokenTTL:     time.Minute,
		RefreshTokenSecret: testRefreshSecret,
		RefreshTokenTTL:    time.Hour,
		CORSOrigin:         "*",
		RateLimit:          1000,
		RateWindow:         time.Minute,
		Version:            "test",
	}
}

func newTestHandler(deps testDeps) *Handler {
	cfg := testConfig()
	if deps.cfg != nil {
		cfg = *deps.cfg
	}
	if deps.accounts == nil {
		deps.accounts = stubAccountService{}
	}
	if deps.postings == nil {
		deps.postings = stubPostingService{}
	}
	if deps.transfers == nil {
		deps.transfers = stubTransferService{}
	}
	if deps.audit == nil {
		deps.audit = stubAuditStore{}
	}
	if deps.reconcile == nil {
		deps.reconcile = stubReconcileStore{}
	}
	return New(cfg, zap.NewNop(), deps.accounts, deps.postings, deps.transfers, deps.clients, deps.audit, deps.reconcile, websocket.NewHub(), nil)
}

func serve(t *testing.T, h *Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

type response struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	ErrorCode string         `json:"errorCode"`
	Details   map[string]any `json:"details"`
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) response {
	t.Helper()
	var payload response
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return payload
}

func stringPtr(value string) *string {
	return &value
}

func serveHandler(handler http.Handler, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func containsAll(body string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(body, part) {
			return false
		}
	}
	return true
}
