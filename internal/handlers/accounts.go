package handlers

import (
	"net/http"
	"strings"

	"ledger/internal/apperr"
	"ledger/internal/money"
	"ledger/internal/services"
	"ledger/internal/validator"
	"ledger/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type createAccountRequest struct {
	Currency string `json:"currency"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	account, err := h.accounts.CreateAccount(r.Context(), strings.TrimSpace(req.Currency))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, "Account created successfully", account)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, "OK", account)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.accounts.GetBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, "OK", balance)
}

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := parseInt(query.Get("page"), services.DefaultPage)
	limit := parseInt(query.Get("limit"), services.DefaultLimit)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	ledger, err := h.accounts.GetLedger(r.Context(), chi.URLParam(r, "id"), page, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, "OK", ledger)
}

const maxPageSize = services.MaxLimit

type postingRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference *string         `json:"reference"`
}

func (h *Handler) decodePosting(r *http.Request) (services.PostingRequest, error) {
	var req postingRequest
	if err := decodeJSON(r, &req); err != nil {
		return services.PostingRequest{}, err
	}
	if err := validator.ValidateReference(req.Reference); err != nil {
		return services.PostingRequest{}, apperr.Validation(err.Error(), nil)
	}
	return services.PostingRequest{
		AccountID: chi.URLParam(r, "id"),
		Amount:    req.Amount,
		Reference: req.Reference,
	}, nil
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodePosting(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	result, err := h.postings.Deposit(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, "Deposit successful", result)
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodePosting(r)
	if err != nil {
		h.respondError(w, err)
		return
	}
	result, err := h.postings.Withdraw(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, "Withdrawal successful", result)
}

// StreamBalance upgrades to a websocket that starts with the current balance and then
// receives the balance after every committed movement.
func (h *Handler) StreamBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.accounts.GetBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	websocket.ServeWS(w, r, h.hub, websocket.BalanceUpdate{
		AccountID: balance.AccountID,
		Balance:   money.Format(balance.Balance),
		Currency:  balance.Currency,
	})
}
