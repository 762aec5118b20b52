package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hongminglow/aratiri-client/internal/http/respond"
	"github.com/hongminglow/aratiri-client/internal/ledger"
	"github.com/hongminglow/aratiri-client/internal/middleware"
	"github.com/hongminglow/aratiri-client/internal/models"
)

const dayLayout = "2006-01-02"

type createInvoiceRequest struct {
	SatsAmount int64  `json:"sats_amount"`
	Memo       string `json:"memo"`
}

// AccountHandler serves the signed-in user's account, history and invoices.
type AccountHandler struct {
	ledger *ledger.Ledger
	now    func() time.Time
}

func NewAccountHandler(l *ledger.Ledger) *AccountHandler {
	return &AccountHandler{ledger: l, now: time.Now}
}

// Register attaches routes that require an authenticated user.
func (h *AccountHandler) Register(r *mux.Router) {
	r.HandleFunc("/accounts/account", h.handleAccount).Methods(http.MethodGet)
	r.HandleFunc("/accounts/account/transactions", h.handleTransactions).Methods(http.MethodGet)
	r.HandleFunc("/invoices", h.handleCreateInvoice).Methods(http.MethodPost)
	r.HandleFunc("/general-data/currencies", h.handleCurrencies).Methods(http.MethodGet)
}

func (h *AccountHandler) handleAccount(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	acc, err := h.ledger.Account(userID)
	if err != nil {
		respond.Error(w, http.StatusNotFound, "account not found")
		return
	}
	respond.JSON(w, http.StatusOK, acc)
}

func (h *AccountHandler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	today := h.now().UTC().Truncate(24 * time.Hour)

	from, err := parseDay(r.URL.Query().Get("from"), today.AddDate(0, 0, -30))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := parseDay(r.URL.Query().Get("to"), today)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		respond.Error(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	txs, err := h.ledger.Transactions(userID, from, to.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		respond.Error(w, http.StatusNotFound, "account not found")
		return
	}
	respond.JSON(w, http.StatusOK, models.TransactionList{Transactions: txs})
}

func (h *AccountHandler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var req createInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	inv, err := h.ledger.CreateInvoice(userID, req.SatsAmount, req.Memo)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidAmount) {
			respond.Error(w, http.StatusBadRequest, "sats_amount must be a positive integer")
			return
		}
		respond.Error(w, http.StatusNotFound, "account not found")
		return
	}
	respond.JSON(w, http.StatusOK, inv)
}

func (h *AccountHandler) handleCurrencies(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, ledger.Currencies())
}

func parseDay(s string, def time.Time) (time.Time, error) {
	if s == "" {
		return def, nil
	}
	return time.Parse(dayLayout, s)
}
