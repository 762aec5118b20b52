package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hongminglow/aratiri-client/internal/apiclient"
)

const unsupportedFormat = "Unsupported or invalid format"

// Doer is the slice of the API client the payment package depends on.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
}

// decodeResponse is the decoder's tagged union on the wire.
type decodeResponse struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

type decodedInvoice struct {
	Destination string `json:"destination"`
	PaymentHash string `json:"payment_hash"`
	NumSatoshis int64  `json:"num_satoshis"`
	Description string `json:"description"`
	Expiry      int64  `json:"expiry"`
}

type lnurlParams struct {
	Callback       string          `json:"callback"`
	MinSendable    int64           `json:"minSendable"`
	MaxSendable    int64           `json:"maxSendable"`
	Metadata       json.RawMessage `json:"metadata"`
	CommentAllowed int             `json:"commentAllowed"`
}

// Resolver classifies raw input by asking the service's decoder. It performs
// no format detection of its own.
type Resolver struct {
	api Doer
}

// NewResolver creates a resolver that calls api.
func NewResolver(api Doer) *Resolver {
	return &Resolver{api: api}
}

// Resolve maps raw to an Intent. Classification failures, including the
// decoder rejecting the request, come back as a ResolutionError intent; err is
// reserved for transport and session failures.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Intent, error) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return ResolutionError{Message: "Nothing to decode"}, nil
	}

	var resp decodeResponse
	err := r.api.Do(ctx, apiclient.Request{
		Method: http.MethodGet,
		Path:   "/decoder",
		Query:  url.Values{"input": {input}},
	}, &resp)
	if err != nil {
		var reqErr *apiclient.RequestError
		if errors.As(err, &reqErr) {
			return ResolutionError{Message: reqErr.Message}, nil
		}
		return nil, err
	}
	return mapDecoded(input, resp), nil
}

func mapDecoded(input string, resp decodeResponse) Intent {
	switch resp.Type {
	case "lightning_invoice":
		var inv decodedInvoice
		if err := json.Unmarshal(resp.Data, &inv); err != nil {
			return malformed(resp.Type, err)
		}
		return LightningInvoice{
			Raw:           input,
			Destination:   inv.Destination,
			PaymentHash:   inv.PaymentHash,
			AmountSats:    inv.NumSatoshis,
			Description:   inv.Description,
			ExpirySeconds: inv.Expiry,
		}
	case "lnurl_params", "alias":
		var p lnurlParams
		if err := json.Unmarshal(resp.Data, &p); err != nil {
			return malformed(resp.Type, err)
		}
		if p.Callback == "" || p.MaxSendable < p.MinSendable {
			return ResolutionError{Message: unsupportedFormat}
		}
		return LnurlPayable{
			Source:              LnurlSource(resp.Type),
			CallbackURL:         p.Callback,
			MinSendableMsat:     p.MinSendable,
			MaxSendableMsat:     p.MaxSendable,
			MetadataJSON:        metadataString(p.Metadata),
			CommentAllowedChars: max(p.CommentAllowed, 0),
		}
	case "bitcoin_address":
		var addr string
		if err := json.Unmarshal(resp.Data, &addr); err != nil || strings.TrimSpace(addr) == "" {
			return ResolutionError{Message: unsupportedFormat}
		}
		return OnchainAddress{Address: addr}
	case "error":
		if msg := strings.TrimSpace(resp.Error); msg != "" {
			return ResolutionError{Message: msg}
		}
		return ResolutionError{Message: unsupportedFormat}
	default:
		return ResolutionError{Message: unsupportedFormat}
	}
}

func malformed(tag string, err error) Intent {
	return ResolutionError{Message: fmt.Sprintf("%s: malformed %s payload (%v)", unsupportedFormat, tag, err)}
}

// metadataString accepts metadata either as a JSON-encoded string or inline.
func metadataString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
