package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/hongminglow/aratiri-client/internal/http/respond"
	"github.com/hongminglow/aratiri-client/internal/ledger"
	"github.com/hongminglow/aratiri-client/internal/middleware"
)

const callbackPath = "/lnurl/callback/"

type decodeResponse struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

type decodedInvoice struct {
	Destination string `json:"destination"`
	PaymentHash string `json:"payment_hash"`
	NumSatoshis int64  `json:"num_satoshis"`
	Description string `json:"description"`
	Expiry      int64  `json:"expiry"`
}

type lnurlParams struct {
	Callback       string `json:"callback"`
	MinSendable    int64  `json:"minSendable"`
	MaxSendable    int64  `json:"maxSendable"`
	Metadata       string `json:"metadata"`
	CommentAllowed int    `json:"commentAllowed"`
	Tag            string `json:"tag"`
}

type payInvoiceRequest struct {
	Invoice string `json:"invoice"`
}

type lnurlPayRequest struct {
	Callback   string `json:"callback"`
	AmountMsat int64  `json:"amount_msat"`
	Comment    string `json:"comment"`
}

type onchainRequest struct {
	Address    string `json:"address"`
	SatsAmount int64  `json:"sats_amount"`
}

// PaymentHandler decodes payment input and executes payments.
type PaymentHandler struct {
	ledger *ledger.Ledger
	now    func() time.Time
}

func NewPaymentHandler(l *ledger.Ledger) *PaymentHandler {
	return &PaymentHandler{ledger: l, now: time.Now}
}

// Register attaches routes that require an authenticated user.
func (h *PaymentHandler) Register(r *mux.Router) {
	r.HandleFunc("/decoder", h.handleDecode).Methods(http.MethodGet)
	r.HandleFunc("/payments/invoice", h.handlePayInvoice).Methods(http.MethodPost)
	r.HandleFunc("/lnurl/pay", h.handleLnurlPay).Methods(http.MethodPost)
	r.HandleFunc("/payments/onchain/estimate-fee", h.handleEstimateFee).Methods(http.MethodPost)
	r.HandleFunc("/payments/onchain", h.handleSendOnchain).Methods(http.MethodPost)
}

func (h *PaymentHandler) handleDecode(w http.ResponseWriter, r *http.Request) {
	input := strings.TrimSpace(r.URL.Query().Get("input"))
	if input == "" {
		respond.Error(w, http.StatusBadRequest, "input is required")
		return
	}
	respond.JSON(w, http.StatusOK, h.decode(r, input))
}

func (h *PaymentHandler) decode(r *http.Request, input string) decodeResponse {
	lower := strings.ToLower(input)
	for _, scheme := range []string{"lightning:", "bitcoin:"} {
		if strings.HasPrefix(lower, scheme) {
			input, lower = input[len(scheme):], lower[len(scheme):]
		}
	}

	switch {
	case strings.HasPrefix(lower, "ln") && !strings.HasPrefix(lower, "lnurl"):
		inv, err := h.ledger.LookupInvoice(input)
		if err != nil {
			return decodeResponse{Type: "error", Error: "Invoice not found"}
		}
		remaining := inv.ExpiresAt().Sub(h.now())
		if remaining <= 0 {
			return decodeResponse{Type: "error", Error: "Invoice expired"}
		}
		if inv.Paid {
			return decodeResponse{Type: "error", Error: "Invoice already paid"}
		}
		return decodeResponse{Type: "lightning_invoice", Data: decodedInvoice{
			Destination: inv.Owner,
			PaymentHash: inv.PaymentHash,
			NumSatoshis: inv.SatsAmount,
			Description: inv.Memo,
			Expiry:      int64(remaining.Seconds()),
		}}

	case strings.HasPrefix(lower, "lnurl"):
		alias, ok := ledger.DecodeLnurl(lower)
		if !ok {
			return decodeResponse{Type: "error", Error: "Malformed LNURL"}
		}
		return h.lnurl(r, "lnurl_params", alias)

	case strings.Contains(lower, "@"):
		local, _, _ := strings.Cut(lower, "@")
		return h.lnurl(r, "alias", local)

	case ledger.IsAddress(input):
		return decodeResponse{Type: "bitcoin_address", Data: input}

	default:
		return decodeResponse{Type: "error", Error: "Unsupported or invalid format"}
	}
}

func (h *PaymentHandler) lnurl(r *http.Request, tag, alias string) decodeResponse {
	p, err := h.ledger.Lnurl(alias)
	if err != nil {
		return decodeResponse{Type: "error", Error: "Unknown alias " + alias}
	}
	return decodeResponse{Type: tag, Data: lnurlParams{
		Callback:       callbackURL(r, p.Alias),
		MinSendable:    p.MinSendable,
		MaxSendable:    p.MaxSendable,
		Metadata:       p.Metadata,
		CommentAllowed: p.CommentAllowed,
		Tag:            "payRequest",
	}}
}

func callbackURL(r *http.Request, alias string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return (&url.URL{Scheme: scheme, Host: r.Host, Path: callbackPath + alias}).String()
}

func (h *PaymentHandler) handlePayInvoice(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var req payInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Invoice) == "" {
		respond.Error(w, http.StatusBadRequest, "invoice is required")
		return
	}
	res, err := h.ledger.PayInvoice(userID, req.Invoice)
	if err != nil {
		paymentError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func (h *PaymentHandler) handleLnurlPay(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var req lnurlPayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	u, err := url.Parse(req.Callback)
	if err != nil || !strings.HasPrefix(u.Path, callbackPath) {
		respond.Error(w, http.StatusBadRequest, "unknown callback")
		return
	}
	res, err := h.ledger.PayAlias(userID, path.Base(u.Path), req.AmountMsat, req.Comment)
	if err != nil {
		paymentError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func (h *PaymentHandler) handleEstimateFee(w http.ResponseWriter, r *http.Request) {
	var req onchainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	fee, err := h.ledger.EstimateFee(req.Address, req.SatsAmount)
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	respond.JSON(w, http.StatusOK, map[string]int64{"fee_sat": fee})
}

func (h *PaymentHandler) handleSendOnchain(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserID(r.Context())
	var req onchainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	res, err := h.ledger.SendOnchain(userID, req.Address, req.SatsAmount)
	if err != nil {
		paymentError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

func paymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "Payment destination not found")
	case errors.Is(err, ledger.ErrInsufficientBalance):
		respond.Error(w, http.StatusBadRequest, "Insufficient balance")
	case errors.Is(err, ledger.ErrInvoicePaid), errors.Is(err, ledger.ErrOwnInvoice):
		respond.Error(w, http.StatusConflict, err.Error())
	default:
		respond.Error(w, http.StatusBadRequest, err.Error())
	}
}
