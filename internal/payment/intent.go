// Package payment turns arbitrary user input into a payment intent and
// executes the matching submission against the wallet API.
package payment

import (
	"encoding/json"
	"strings"
)

// Kind names an intent variant.
type Kind string

const (
	KindLightningInvoice Kind = "lightning_invoice"
	KindLnurlPayable     Kind = "lnurl_payable"
	KindOnchainAddress   Kind = "onchain_address"
	KindResolutionError  Kind = "resolution_error"
)

// Intent is the closed set of resolution results. Only this package can add
// variants; every switch over Intent lists all of them.
type Intent interface {
	Kind() Kind
	sealed()
}

// LightningInvoice is a BOLT11 request with the amount already encoded.
type LightningInvoice struct {
	// Raw is the exact string that was resolved; it is what gets paid.
	Raw           string
	Destination   string
	PaymentHash   string
	AmountSats    int64
	Description   string
	ExpirySeconds int64
}

// LnurlSource records which decoder tag produced an LnurlPayable.
type LnurlSource string

const (
	SourceLnurl LnurlSource = "lnurl_params"
	SourceAlias LnurlSource = "alias"
)

// LnurlPayable needs a user amount within [MinSendableMsat, MaxSendableMsat].
// Lightning addresses resolve to the same shape.
type LnurlPayable struct {
	Source          LnurlSource
	CallbackURL     string
	MinSendableMsat int64
	MaxSendableMsat int64
	MetadataJSON    string
	// CommentAllowedChars is 0 when the service accepts no comment.
	CommentAllowedChars int
}

// OnchainAddress needs a user amount and a fee estimate before submission.
type OnchainAddress struct {
	Address string
}

// ResolutionError means the input could not be classified.
type ResolutionError struct {
	Message string
}

func (LightningInvoice) Kind() Kind { return KindLightningInvoice }
func (LnurlPayable) Kind() Kind     { return KindLnurlPayable }
func (OnchainAddress) Kind() Kind   { return KindOnchainAddress }
func (ResolutionError) Kind() Kind  { return KindResolutionError }

func (LightningInvoice) sealed() {}
func (LnurlPayable) sealed()     {}
func (OnchainAddress) sealed()   {}
func (ResolutionError) sealed()  {}

func (e ResolutionError) Error() string { return e.Message }

// MinSendableSats is the lower bound rounded up to whole sats.
func (p LnurlPayable) MinSendableSats() int64 { return (p.MinSendableMsat + 999) / 1000 }

// MaxSendableSats is the upper bound rounded down to whole sats.
func (p LnurlPayable) MaxSendableSats() int64 { return p.MaxSendableMsat / 1000 }

// Description extracts the text/plain entry of the LNURL metadata.
func (p LnurlPayable) Description() string {
	var entries [][]json.RawMessage
	if err := json.Unmarshal([]byte(p.MetadataJSON), &entries); err == nil {
		for _, e := range entries {
			if len(e) < 2 {
				continue
			}
			var mime, value string
			if json.Unmarshal(e[0], &mime) != nil || json.Unmarshal(e[1], &value) != nil {
				continue
			}
			if mime == "text/plain" && strings.TrimSpace(value) != "" {
				return value
			}
		}
	}
	return "LNURL Payment"
}

// NeedsAmount reports whether the user must supply an amount for intent.
func NeedsAmount(intent Intent) bool {
	switch intent.(type) {
	case LnurlPayable, OnchainAddress:
		return true
	default:
		return false
	}
}
