package handlers

import (
	"net/http"
	"strings"

	"ledger/internal/apperr"
	"ledger/internal/services"
	"ledger/internal/validator"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const idempotencyHeader = "Idempotency-Key"

type transferRequest struct {
	FromAccountID  string          `json:"fromAccountId"`
	ToAccountID    string          `json:"toAccountId"`
	Amount         decimal.Decimal `json:"amount"`
	Reference      *string         `json:"reference"`
	IdempotencyKey *string         `json:"idempotencyKey"`
}

func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	invalid := map[string]any{}
	if _, err := uuid.Parse(req.FromAccountID); err != nil {
		invalid["fromAccountId"] = "must be a UUID"
	}
	if _, err := uuid.Parse(req.ToAccountID); err != nil {
		invalid["toAccountId"] = "must be a UUID"
	}
	if err := validator.ValidateReference(req.Reference); err != nil {
		invalid["reference"] = err.Error()
	}
	key := idempotencyKey(r, req.IdempotencyKey)
	if key != nil {
		if err := validator.ValidateIdempotencyKey(*key); err != nil {
			invalid["idempotencyKey"] = err.Error()
		}
	}
	if len(invalid) > 0 {
		h.respondError(w, apperr.Validation("Invalid payload", invalid))
		return
	}

	result, err := h.transfers.PerformTransfer(r.Context(), services.TransferRequest{
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         req.Amount,
		IdempotencyKey: key,
		Reference:      req.Reference,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	if result.Idempotent {
		respondData(w, http.StatusOK, "Transfer already processed", result.Transfer)
		return
	}
	respondData(w, http.StatusCreated, "Transfer completed", result.Transfer)
}

func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	transfer, err := h.transfers.GetTransfer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, "OK", transfer)
}

// idempotencyKey prefers the header over the body field. Blank values count as absent.
func idempotencyKey(r *http.Request, body *string) *string {
	if header := strings.TrimSpace(r.Header.Get(idempotencyHeader)); header != "" {
		return &header
	}
	if body != nil {
		if trimmed := strings.TrimSpace(*body); trimmed != "" {
			return &trimmed
		}
	}
	return nil
}
