package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	LightningDebit         TransactionType = "LIGHTNING_DEBIT"
	LightningCredit        TransactionType = "LIGHTNING_CREDIT"
	OnchainDebit           TransactionType = "ONCHAIN_DEBIT"
	OnchainCredit          TransactionType = "ONCHAIN_CREDIT"
	InvoiceCredit          TransactionType = "INVOICE_CREDIT"
	InvoiceDebit           TransactionType = "INVOICE_DEBIT"
	InternalTransferCredit TransactionType = "INTERNAL_TRANSFER_CREDIT"
	InternalTransferDebit  TransactionType = "INTERNAL_TRANSFER_DEBIT"
	GenericCredit          TransactionType = "CREDIT"
	GenericDebit           TransactionType = "DEBIT"
)

// Rail is the payment network a transaction moved over.
type Rail string

const (
	RailLightning Rail = "lightning"
	RailOnchain   Rail = "onchain"
	RailInvoice   Rail = "invoice"
	RailInternal  Rail = "internal"
	RailUnknown   Rail = "unknown"
)

// IsCredit reports whether funds came into the wallet.
func (t TransactionType) IsCredit() bool {
	s := string(t)
	return strings.Contains(s, "CREDIT") || strings.Contains(s, "DEPOSIT")
}

// Rail derives the payment rail from the type prefix.
func (t TransactionType) Rail() Rail {
	s := string(t)
	switch {
	case strings.HasPrefix(s, "LIGHTNING_"):
		return RailLightning
	case strings.HasPrefix(s, "ONCHAIN_"):
		return RailOnchain
	case strings.HasPrefix(s, "INVOICE_"):
		return RailInvoice
	case strings.HasPrefix(s, "INTERNAL_TRANSFER_"):
		return RailInternal
	default:
		return RailUnknown
	}
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusFailed    TransactionStatus = "FAILED"
)

// Transaction is one ledger entry. Produced by the service only.
type Transaction struct {
	ID              string                     `json:"id"`
	Type            TransactionType            `json:"type"`
	Amount          int64                      `json:"amount"`
	Date            string                     `json:"date"`
	Status          TransactionStatus          `json:"status"`
	FiatEquivalents map[string]decimal.Decimal `json:"fiat_equivalents"`
}

// TransactionList is the body of the transactions endpoint.
type TransactionList struct {
	Transactions []Transaction `json:"transactions"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time parses Date. Timestamps without a zone are read as UTC.
func (t Transaction) Time() (time.Time, error) {
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, t.Date); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised transaction date %q", t.Date)
}
