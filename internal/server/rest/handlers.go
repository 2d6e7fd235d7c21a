package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/server/auth"
	"github.com/dmitrijs2005/leadkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
)

const maxTransactionsLimit = 1000

type purchaseParams struct {
	EntityID   string `validate:"required,uuid"`
	FieldGroup string `validate:"required,max=64"`
}

type entityParams struct {
	EntityID string `validate:"required,uuid"`
}

type transactionsParams struct {
	Limit int `validate:"min=0,max=1000"`
}

type purchaseResponse struct {
	Status        string         `json:"status"`
	EntityID      string         `json:"entity_id"`
	FieldGroup    string         `json:"field_group"`
	Fields        map[string]any `json:"fields"`
	BalanceAfter  string         `json:"balance_after"`
	TransactionID string         `json:"transaction_id,omitempty"`
}

type entityResponse struct {
	EntityID string         `json:"entity_id"`
	Fields   map[string]any `json:"fields"`
	Unlocked []string       `json:"unlocked"`
}

type balanceResponse struct {
	Balance string `json:"balance"`
}

type transactionResponse struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	EntityID     string    `json:"entity_id,omitempty"`
	FieldGroup   string    `json:"field_group,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

type statementResponse struct {
	Key              string `json:"key"`
	URL              string `json:"url"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

func (h *Handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.Health.Ping(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) purchase(w http.ResponseWriter, r *http.Request) {
	p := purchaseParams{EntityID: chi.URLParam(r, "entity_id"), FieldGroup: chi.URLParam(r, "field_group")}
	if err := h.validate.Struct(p); err != nil {
		writeError(w, invalidRequest(err), "")
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	res, err := h.Purchases.Purchase(r.Context(), userID, p.EntityID, p.FieldGroup)
	if err != nil {
		writeError(w, err, "")
		return
	}

	writeJSON(w, http.StatusOK, purchaseResponse{
		Status:        res.Status,
		EntityID:      res.LeadID,
		FieldGroup:    res.FieldGroup,
		Fields:        res.Fields,
		BalanceAfter:  res.BalanceAfter.StringFixed(2),
		TransactionID: res.TransactionID,
	})
}

func (h *Handlers) getEntity(w http.ResponseWriter, r *http.Request) {
	p := entityParams{EntityID: chi.URLParam(r, "entity_id")}
	if err := h.validate.Struct(p); err != nil {
		writeError(w, invalidRequest(err), "")
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	lead, err := h.Leads.Get(r.Context(), userID, p.EntityID)
	if err != nil {
		writeError(w, err, "")
		return
	}

	writeJSON(w, http.StatusOK, entityResponse{EntityID: lead.LeadID, Fields: lead.Fields, Unlocked: lead.Unlocked})
}

func (h *Handlers) balance(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	b, err := h.Ledger.GetBalance(r.Context(), userID)
	if err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{Balance: b.StringFixed(2)})
}

func (h *Handlers) transactions(w http.ResponseWriter, r *http.Request) {
	p := transactionsParams{Limit: 100}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, invalidRequest(err), "limit must be an integer")
			return
		}
		p.Limit = n
	}
	if err := h.validate.Struct(p); err != nil {
		writeError(w, invalidRequest(err), "")
		return
	}

	userID, _ := auth.UserIDFromContext(r.Context())
	list, err := h.Ledger.ListTransactions(r.Context(), userID, p.Limit)
	if err != nil {
		writeError(w, err, "")
		return
	}

	out := make([]transactionResponse, 0, len(list))
	for _, t := range list {
		out = append(out, transactionResponse{
			ID:           t.ID,
			Kind:         t.Kind,
			EntityID:     t.LeadID,
			FieldGroup:   t.FieldGroup,
			Reason:       t.Reason,
			Amount:       t.Amount.StringFixed(2),
			BalanceAfter: t.BalanceAfter.StringFixed(2),
			CreatedAt:    t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) statement(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	st, err := h.Statements.Export(r.Context(), userID)
	if err != nil {
		h.logger.Error(r.Context(), "statement export failed", "user_id", userID, "error", err)
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, statementResponse{
		Key:              st.Key,
		URL:              st.URL,
		ExpiresInSeconds: int(services.StatementURLValidity.Seconds()),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
