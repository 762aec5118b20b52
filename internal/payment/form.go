package payment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrFeeQuoteRequired means an on-chain payment was submitted without a fee estimate.
	ErrFeeQuoteRequired = errors.New("estimate the network fee before sending")
	// ErrStaleFeeQuote means the estimate was computed for different form values.
	ErrStaleFeeQuote = errors.New("amount or address changed since the fee was estimated")
)

// ValidationError is a local input problem caught before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// FeeEstimate is the service's fee quote for an on-chain send.
type FeeEstimate struct {
	FeeSats int64 `json:"fee_sat"`
}

// FeeQuote binds a FeeEstimate to the exact address and amount text it was
// computed for. It can only be produced by Dispatcher.Quote.
type FeeQuote struct {
	address  string
	amount   string
	estimate FeeEstimate
}

func (q FeeQuote) Address() string { return q.address }
func (q FeeQuote) Amount() string  { return q.amount }
func (q FeeQuote) FeeSats() int64  { return q.estimate.FeeSats }

// Form is the per-attempt state behind one resolved input: the amount and
// comment the user typed and the fee quote, if any. Editing the amount drops
// the quote, so a fee can never be submitted against other parameters.
type Form struct {
	raw    string
	intent Intent

	mu      sync.Mutex
	amount  string
	comment string
	quote   *FeeQuote
}

// NewForm starts an empty form for intent.
func NewForm(raw string, intent Intent) *Form {
	return &Form{raw: raw, intent: intent}
}

func (f *Form) Raw() string    { return f.raw }
func (f *Form) Intent() Intent { return f.intent }

func (f *Form) Amount() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.amount
}

func (f *Form) Comment() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.comment
}

// SetAmount records the amount text. Any change invalidates the fee quote.
func (f *Form) SetAmount(amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if amount != f.amount {
		f.amount = amount
		f.quote = nil
	}
}

func (f *Form) SetComment(comment string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comment = comment
}

// Quote returns the fee quote if one is valid for the current amount.
func (f *Form) Quote() (FeeQuote, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.quote == nil {
		return FeeQuote{}, false
	}
	return *f.quote, true
}

// attachQuote stores q only if the amount has not changed while it was computed.
func (f *Form) attachQuote(q FeeQuote) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q.amount != f.amount {
		return false
	}
	f.quote = &q
	return true
}

// values returns amount, comment and quote under one lock.
func (f *Form) values() (string, string, *FeeQuote) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var q *FeeQuote
	if f.quote != nil {
		cp := *f.quote
		q = &cp
	}
	return f.amount, f.comment, q
}

func parseSats(field, amount string) (int64, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return 0, &ValidationError{Field: field, Message: "Enter an amount in sats."}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: field, Message: fmt.Sprintf("%q is not a whole number of sats.", s)}
	}
	return n, nil
}
