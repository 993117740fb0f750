package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"ledger/internal/apperr"

	"go.uber.org/zap"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type errorEnvelope struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	ErrorCode apperr.Kind    `json:"errorCode"`
	Details   map[string]any `json:"details"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondData(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// respondError renders any error in the error envelope. Errors outside the taxonomy are
// logged and reported as internal failures; the reason detail is dropped in production.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		h.logger.Error("unhandled error", zap.Error(err))
		appErr = apperr.Internal("Internal server error", err)
	}
	details := appErr.Details
	if appErr.Kind == apperr.KindInternal && h.cfg.IsProduction() {
		details = nil
	}
	respondJSON(w, statusFor(appErr.Kind), errorEnvelope{
		Message:   appErr.Message,
		ErrorCode: appErr.Kind,
		Details:   details,
	})
}

// decodeJSON reads a single JSON object and rejects unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperr.Validation("Invalid payload", map[string]any{"reason": err.Error()})
	}
	return nil
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}
