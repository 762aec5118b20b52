// Package realtime keeps a long-lived subscription to the wallet's push events
// and turns payment events into notifications and read-model refreshes.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

const (
	EventPaymentReceived = "payment_received"
	EventPaymentSent     = "payment_sent"

	// defaultEventName applies to frames without an event line.
	defaultEventName = "message"
	defaultMemo      = "No description"
)

var (
	// ErrUnauthorized is returned by a transport when the server rejects the token.
	ErrUnauthorized = errors.New("realtime subscription unauthorized")
	// ErrNoSession means there is no access token to subscribe with.
	ErrNoSession = errors.New("realtime subscription requires a session")
)

// Event is one pushed frame.
type Event struct {
	Name string
	Data []byte
}

// Stream yields events until the connection ends. Next returns io.EOF when the
// server closes the stream cleanly.
type Stream interface {
	Next() (Event, error)
	Close() error
}

// Transport opens a subscription authenticated with token.
type Transport interface {
	Connect(ctx context.Context, token string) (Stream, error)
}

// Payment is the actionable content of a payment event.
type Payment struct {
	AmountSats int64
	Memo       string
}

type paymentPayload struct {
	AmountSats  json.RawMessage `json:"amountSats"`
	Amount      json.RawMessage `json:"amount"`
	Memo        string          `json:"memo"`
	Description string          `json:"description"`
}

// ParsePayment reads amountSats (or amount) and memo (or description) from a
// payment event. Missing fields fall back to zero and "No description".
func ParsePayment(data []byte) (Payment, error) {
	var p paymentPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payment{}, err
	}
	amount := number(p.AmountSats)
	if amount == 0 {
		amount = number(p.Amount)
	}
	memo := strings.TrimSpace(p.Memo)
	if memo == "" {
		memo = strings.TrimSpace(p.Description)
	}
	if memo == "" {
		memo = defaultMemo
	}
	return Payment{AmountSats: amount, Memo: memo}, nil
}

// number accepts a JSON number or a numeric string.
func number(raw json.RawMessage) int64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return int64(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return n
		}
	}
	return 0
}
