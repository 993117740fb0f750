package handlers

import (
	"fmt"
	"net/http"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/store"

	"go.uber.org/zap"
)

const serviceName = "ledger"

type healthResponse struct {
	UptimeSeconds   float64 `json:"uptimeSeconds"`
	UptimeFormatted string  `json:"uptimeFormatted"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(h.started)
	respondData(w, http.StatusOK, "Service is healthy", healthResponse{
		UptimeSeconds:   uptime.Seconds(),
		UptimeFormatted: formatUptime(uptime),
	})
}

func formatUptime(uptime time.Duration) string {
	seconds := int64(uptime / time.Second)
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}

func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, "OK", map[string]string{
		"name":    serviceName,
		"version": h.cfg.Version,
		"env":     h.cfg.AppEnv,
	})
}

type reconcileReport struct {
	Balanced            bool                      `json:"balanced"`
	UnbalancedTransfers []store.TransferImbalance `json:"unbalancedTransfers"`
	NegativeBalances    []store.NegativeBalance   `json:"negativeBalances"`
}

// Reconcile checks that every transfer nets to zero and no account is overdrawn.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.reconcile.UnbalancedTransfers(r.Context())
	if err != nil {
		h.logger.Error("reconcile transfers failed", zap.Error(err))
		h.respondError(w, apperr.Internal("Unable to reconcile ledger", err))
		return
	}
	negatives, err := h.reconcile.NegativeBalances(r.Context())
	if err != nil {
		h.logger.Error("reconcile balances failed", zap.Error(err))
		h.respondError(w, apperr.Internal("Unable to reconcile ledger", err))
		return
	}
	if transfers == nil {
		transfers = []store.TransferImbalance{}
	}
	if negatives == nil {
		negatives = []store.NegativeBalance{}
	}
	report := reconcileReport{
		Balanced:            len(transfers) == 0 && len(negatives) == 0,
		UnbalancedTransfers: transfers,
		NegativeBalances:    negatives,
	}
	if !report.Balanced {
		h.logger.Warn("ledger reconciliation found discrepancies",
			zap.Int("unbalanced_transfers", len(transfers)),
			zap.Int("negative_balances", len(negatives)),
		)
	}
	respondData(w, http.StatusOK, "OK", report)
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit := parseInt(query.Get("limit"), 50)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	page := parseInt(query.Get("page"), 1)
	rows, err := h.audit.List(r.Context(), limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("list audit logs failed", zap.Error(err))
		h.respondError(w, apperr.Internal("Unable to load audit logs", err))
		return
	}
	respondData(w, http.StatusOK, "OK", rows)
}
