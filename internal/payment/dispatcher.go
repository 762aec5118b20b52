package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"unicode/utf8"

	"github.com/hongminglow/aratiri-client/internal/apiclient"
	"github.com/hongminglow/aratiri-client/internal/notify"
)

// Notifier receives user-visible outcomes.
type Notifier interface {
	Push(title, message string, kind notify.Kind) notify.Notification
}

// Refresher refetches the account and transaction read model.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Outcome is the submission response, passed through for display.
type Outcome struct {
	Status string
	Fields map[string]any
}

func (o *Outcome) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, &o.Fields); err != nil {
		return err
	}
	if s, ok := o.Fields["status"].(string); ok {
		o.Status = s
	}
	return nil
}

type invoicePayment struct {
	Invoice string `json:"invoice"`
}

type lnurlPayment struct {
	Callback   string `json:"callback"`
	AmountMsat int64  `json:"amount_msat"`
	Comment    string `json:"comment,omitempty"`
}

type onchainPayment struct {
	Address    string `json:"address"`
	SatsAmount int64  `json:"sats_amount"`
}

// Dispatcher submits payments for resolved intents.
type Dispatcher struct {
	api       Doer
	notifier  Notifier
	refresher Refresher
}

// NewDispatcher wires the dispatcher to the API and to the success side effects.
func NewDispatcher(api Doer, notifier Notifier, refresher Refresher) *Dispatcher {
	return &Dispatcher{api: api, notifier: notifier, refresher: refresher}
}

// EstimateFee asks the service what sending amountSats to address would cost.
func (d *Dispatcher) EstimateFee(ctx context.Context, address string, amountSats int64) (FeeEstimate, error) {
	var est FeeEstimate
	err := d.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   "/payments/onchain/estimate-fee",
		JSON:   onchainPayment{Address: address, SatsAmount: amountSats},
	}, &est)
	if err != nil {
		return FeeEstimate{}, err
	}
	return est, nil
}

// Quote estimates the fee for the form's current address and amount and binds
// the result to that amount text.
func (d *Dispatcher) Quote(ctx context.Context, f *Form) (FeeQuote, error) {
	addr, ok := f.Intent().(OnchainAddress)
	if !ok {
		return FeeQuote{}, fmt.Errorf("fee estimates apply to on-chain addresses, not %s", f.Intent().Kind())
	}
	amount, _, _ := f.values()
	sats, err := parseSats("amount", amount)
	if err != nil {
		return FeeQuote{}, err
	}
	if sats <= 0 {
		return FeeQuote{}, &ValidationError{Field: "amount", Message: "Amount must be greater than zero."}
	}

	est, err := d.EstimateFee(ctx, addr.Address, sats)
	if err != nil {
		return FeeQuote{}, err
	}
	q := FeeQuote{address: addr.Address, amount: amount, estimate: est}
	if !f.attachQuote(q) {
		return FeeQuote{}, ErrStaleFeeQuote
	}
	return q, nil
}

// Pay submits the form. Local validation failures never reach the network.
// On success a notification is pushed and the read model refreshed, together.
func (d *Dispatcher) Pay(ctx context.Context, f *Form) (Outcome, error) {
	req, err := d.submission(f)
	if err != nil {
		return Outcome{}, err
	}

	var out Outcome
	if err := d.api.Do(ctx, req, &out); err != nil {
		return Outcome{}, err
	}
	d.succeeded(ctx, out)
	return out, nil
}

func (d *Dispatcher) submission(f *Form) (apiclient.Request, error) {
	amount, comment, quote := f.values()

	switch intent := f.Intent().(type) {
	case LightningInvoice:
		return apiclient.Request{
			Method: http.MethodPost,
			Path:   "/payments/invoice",
			JSON:   invoicePayment{Invoice: intent.Raw},
		}, nil

	case LnurlPayable:
		sats, err := parseSats("amount", amount)
		if err != nil {
			return apiclient.Request{}, err
		}
		if sats <= 0 || sats > math.MaxInt64/1000 || sats*1000 < intent.MinSendableMsat || sats*1000 > intent.MaxSendableMsat {
			return apiclient.Request{}, &ValidationError{
				Field: "amount",
				Message: fmt.Sprintf("Amount must be between %d and %d sats.",
					intent.MinSendableMsat/1000, intent.MaxSendableMsat/1000),
			}
		}
		body := lnurlPayment{Callback: intent.CallbackURL, AmountMsat: sats * 1000}
		if intent.CommentAllowedChars > 0 {
			if utf8.RuneCountInString(comment) > intent.CommentAllowedChars {
				return apiclient.Request{}, &ValidationError{
					Field:   "comment",
					Message: fmt.Sprintf("Comment must be at most %d characters.", intent.CommentAllowedChars),
				}
			}
			body.Comment = comment
		}
		return apiclient.Request{Method: http.MethodPost, Path: "/lnurl/pay", JSON: body}, nil

	case OnchainAddress:
		if quote == nil {
			return apiclient.Request{}, ErrFeeQuoteRequired
		}
		if quote.address != intent.Address || quote.amount != amount {
			return apiclient.Request{}, ErrStaleFeeQuote
		}
		sats, err := parseSats("amount", amount)
		if err != nil {
			return apiclient.Request{}, err
		}
		return apiclient.Request{
			Method: http.MethodPost,
			Path:   "/payments/onchain",
			JSON:   onchainPayment{Address: intent.Address, SatsAmount: sats},
		}, nil

	case ResolutionError:
		return apiclient.Request{}, intent

	default:
		return apiclient.Request{}, fmt.Errorf("payment type %T not supported", intent)
	}
}

func (d *Dispatcher) succeeded(ctx context.Context, out Outcome) {
	status := out.Status
	if status == "" {
		status = "submitted"
	}
	if d.notifier != nil {
		d.notifier.Push("Payment Sent", fmt.Sprintf("Payment initiated! Status: %s.", status), notify.Success)
	}
	if d.refresher != nil {
		if err := d.refresher.Refresh(ctx); err != nil {
			log.Printf("[payment] refresh after payment: %v", err)
		}
	}
}
