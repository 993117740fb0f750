package handlers

import (
	"net/http"
	"time"

	"ledger/internal/apperr"
	"ledger/internal/config"
	"ledger/internal/metrics"
	"ledger/internal/middleware"
	"ledger/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
)

type Handler struct {
	cfg       config.Config
	logger    *zap.Logger
	accounts  AccountService
	postings  PostingService
	transfers TransferService
	clients   ClientStore
	audit     AuditStore
	reconcile ReconcileStore
	hub       *websocket.Hub
	metrics   *metrics.Metrics
	started   time.Time
}

func New(cfg config.Config, logger *zap.Logger, accounts AccountService, postings PostingService, transfers TransferService, clients ClientStore, audit AuditStore, reconcile ReconcileStore, hub *websocket.Hub, m *metrics.Metrics) *Handler {
	return &Handler{
		cfg:       cfg,
		logger:    logger,
		accounts:  accounts,
		postings:  postings,
		transfers: transfers,
		clients:   clients,
		audit:     audit,
		reconcile: reconcile,
		hub:       hub,
		metrics:   m,
		started:   time.Now(),
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestLogger(h.logger))
	router.Use(chimiddleware.Recoverer)
	if h.metrics != nil {
		router.Use(h.metrics.Middleware)
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		AllowCredentials: h.cfg.CORSOrigin != "*",
		MaxAge:           300,
	}))
	router.Use(httprate.Limit(h.cfg.RateLimit, h.cfg.RateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusTooManyRequests, errorEnvelope{
				Message:   "Too many requests, please try again later",
				ErrorCode: "RATE_LIMITED",
			})
		}),
	))
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		h.respondError(w, apperr.NotFound("Route not found", map[string]any{"path": r.URL.Path}))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.respondError(w, apperr.NotFound("Route not found", map[string]any{"path": r.URL.Path, "method": r.Method}))
	})

	if h.metrics != nil {
		router.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/health", h.Health)
			r.Get("/info", h.Info)
			r.With(h.protected).Get("/reconcile", h.Reconcile)
			r.With(h.protected).Get("/audit", h.ListAuditLogs)
		})
		r.Route("/auth", func(r chi.Router) {
			r.Post("/token", h.IssueToken)
			r.Post("/refresh", h.RefreshToken)
		})
		r.Route("/accounts", func(r chi.Router) {
			r.Use(h.protected)
			r.Post("/", h.CreateAccount)
			r.Get("/{id}", h.GetAccount)
			r.Get("/{id}/balance", h.GetBalance)
			r.Get("/{id}/ledger", h.GetLedger)
			r.Post("/{id}/deposit", h.Deposit)
			r.Post("/{id}/withdraw", h.Withdraw)
			r.Get("/{id}/stream", h.StreamBalance)
		})
		r.Route("/transfers", func(r chi.Router) {
			r.Use(h.protected)
			r.Post("/", h.CreateTransfer)
			r.Get("/{id}", h.GetTransfer)
		})
	})
	return router
}

// protected enforces bearer tokens only when AUTH_REQUIRED is set.
func (h *Handler) protected(next http.Handler) http.Handler {
	if !h.cfg.AuthRequired {
		return next
	}
	return middleware.Auth(h.cfg.AccessTokenSecret)(next)
}
