package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"ledger/internal/apperr"
	"ledger/internal/auth"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var errInvalidCredentials = apperr.Unauthorized("Invalid client credentials")

type tokenRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

// IssueToken exchanges API client credentials for an access/refresh token pair.
func (h *Handler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if _, err := uuid.Parse(req.ClientID); err != nil || req.ClientSecret == "" {
		h.respondError(w, errInvalidCredentials)
		return
	}
	client, err := h.clients.GetByID(r.Context(), req.ClientID)
	if errors.Is(err, sql.ErrNoRows) {
		h.respondError(w, errInvalidCredentials)
		return
	}
	if err != nil {
		h.logger.Error("load api client failed", zap.String("client_id", req.ClientID), zap.Error(err))
		h.respondError(w, apperr.Internal("Unable to issue token", err))
		return
	}
	if !auth.CheckSecret(client.SecretHash, req.ClientSecret) {
		h.logger.Warn("api client secret mismatch", zap.String("client_id", client.ID))
		h.respondError(w, errInvalidCredentials)
		return
	}
	h.issuePair(w, client.ID, "Token issued")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	claims, err := auth.ParseToken(h.cfg.RefreshTokenSecret, req.RefreshToken, auth.RefreshToken)
	if err != nil {
		h.respondError(w, apperr.Unauthorized("Invalid or expired refresh token"))
		return
	}
	client, err := h.clients.GetByID(r.Context(), claims.Subject)
	if errors.Is(err, sql.ErrNoRows) {
		h.respondError(w, apperr.Unauthorized("Invalid or expired refresh token"))
		return
	}
	if err != nil {
		h.logger.Error("load api client failed", zap.String("client_id", claims.Subject), zap.Error(err))
		h.respondError(w, apperr.Internal("Unable to refresh token", err))
		return
	}
	h.issuePair(w, client.ID, "Token refreshed")
}

func (h *Handler) issuePair(w http.ResponseWriter, clientID, message string) {
	pair, err := auth.IssuePair(h.cfg.AccessTokenSecret, h.cfg.RefreshTokenSecret, clientID, h.cfg.AccessTokenTTL, h.cfg.RefreshTokenTTL)
	if err != nil {
		h.logger.Error("issue token pair failed", zap.String("client_id", clientID), zap.Error(err))
		h.respondError(w, apperr.Internal("Unable to issue token", err))
		return
	}
	respondData(w, http.StatusOK, message, pair)
}
