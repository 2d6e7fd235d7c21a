package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/logging"
	"github.com/dmitrijs2005/leadkeeper/internal/server/auth"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Purchaser interface {
	Purchase(ctx context.Context, userID, leadID, fieldGroup string) (*models.PurchaseResult, error)
}

type LeadReader interface {
	Get(ctx context.Context, userID, leadID string) (*models.ProjectedLead, error)
}

type Ledger interface {
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)
}

type StatementExporter interface {
	Export(ctx context.Context, userID string) (*models.Statement, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds the services behind the routes.
type Handlers struct {
	Purchases  Purchaser
	Leads      LeadReader
	Ledger     Ledger
	Statements StatementExporter
	Health     Pinger

	logger   logging.Logger
	validate *validator.Validate
}

// NewRouter builds the chi router. secret verifies HS256 bearer tokens.
func NewRouter(h *Handlers, secret []byte, l logging.Logger) http.Handler {
	h.logger = l.With("module", "rest")
	h.validate = validator.New(validator.WithRequiredStructEnabled())

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(secret))

		r.Post("/purchase/{entity_id}/{field_group}", h.purchase)
		r.Get("/entity/{entity_id}", h.getEntity)
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/balance", h.balance)
			r.Get("/transactions", h.transactions)
			r.Post("/statement", h.statement)
		})
	})

	return r
}

func bearerAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, common.ErrorUnauthorized, "missing bearer token")
				return
			}
			userID, err := auth.GetUserIDFromToken(token, secret)
			if err != nil {
				writeError(w, err, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}

func requestLogger(l logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				l.Info(r.Context(), "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
