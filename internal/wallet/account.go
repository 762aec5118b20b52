package wallet

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/hongminglow/aratiri-client/internal/apiclient"
	"github.com/hongminglow/aratiri-client/internal/models"
)

// ErrInvalidAmount rejects non-positive invoice amounts before any call.
var ErrInvalidAmount = errors.New("amount must be a positive number of sats")

// FallbackCurrencies is used when the currency list cannot be fetched.
var FallbackCurrencies = []string{"usd", "pyg", "ars", "eur"}

const dayLayout = "2006-01-02"

type createInvoiceRequest struct {
	SatsAmount int64  `json:"sats_amount"`
	Memo       string `json:"memo,omitempty"`
}

func (s *Service) Account(ctx context.Context) (models.Account, error) {
	var acc models.Account
	err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/accounts/account"}, &acc)
	return acc, err
}

// Transactions lists ledger entries dated between from and to, inclusive, by
// UTC calendar day.
func (s *Service) Transactions(ctx context.Context, from, to time.Time) ([]models.Transaction, error) {
	var list models.TransactionList
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/accounts/account/transactions",
		Query: url.Values{
			"from": {from.UTC().Format(dayLayout)},
			"to":   {to.UTC().Format(dayLayout)},
		},
	}, &list)
	if err != nil {
		return nil, err
	}
	if list.Transactions == nil {
		list.Transactions = []models.Transaction{}
	}
	return list.Transactions, nil
}

// CreateInvoice asks the service for a BOLT11 request for sats.
func (s *Service) CreateInvoice(ctx context.Context, sats int64, memo string) (models.Invoice, error) {
	if sats <= 0 {
		return models.Invoice{}, ErrInvalidAmount
	}
	var inv models.Invoice
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/invoices",
		JSON:   createInvoiceRequest{SatsAmount: sats, Memo: memo},
	}, &inv)
	return inv, err
}

// Currencies returns the fiat codes the service prices balances in, or
// FallbackCurrencies if the list is unavailable.
func (s *Service) Currencies(ctx context.Context) []string {
	var list []string
	err := s.api.Do(ctx, apiclient.Request{Method: http.MethodGet, Path: "/general-data/currencies"}, &list)
	if err != nil || len(list) == 0 {
		if err != nil {
			log.Printf("[wallet] failed to fetch currencies: %v", err)
		}
		return append([]string(nil), FallbackCurrencies...)
	}
	return list
}
