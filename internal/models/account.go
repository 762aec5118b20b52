package models

import "github.com/shopspring/decimal"

// Account is the wallet owner's balance and receive endpoints as reported by
// the service. The client never mutates it; it is refetched wholesale.
type Account struct {
	ID                   string                     `json:"id"`
	Balance              int64                      `json:"balance"`
	Alias                string                     `json:"alias"`
	Lnurl                string                     `json:"lnurl"`
	LnurlQRCode          string                     `json:"lnurl_qr_code"`
	BitcoinAddress       string                     `json:"bitcoin_address"`
	BitcoinAddressQRCode string                     `json:"bitcoin_address_qr_code"`
	FiatEquivalents      map[string]decimal.Decimal `json:"fiat_equivalents"`
}

// Fiat returns the balance in currency, if the service priced it.
func (a Account) Fiat(currency string) (decimal.Decimal, bool) {
	v, ok := a.FiatEquivalents[currency]
	return v, ok
}

// Invoice is the response to an invoice creation request.
type Invoice struct {
	PaymentRequest string `json:"payment_request"`
	PaymentHash    string `json:"payment_hash,omitempty"`
	SatsAmount     int64  `json:"sats_amount,omitempty"`
	Memo           string `json:"memo,omitempty"`
}
