package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/aratiri-client/internal/apiclient"
	"github.com/hongminglow/aratiri-client/internal/notify"
)

// fakeAPI answers by path with canned JSON and records every request.
type fakeAPI struct {
	mu        sync.Mutex
	calls     []apiclient.Request
	responses map[string]string
	errs      map[string]error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{responses: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeAPI) Do(_ context.Context, req apiclient.Request, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	body, ok := f.responses[req.Path]
	err := f.errs[req.Path]
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if ok && out != nil {
		return json.Unmarshal([]byte(body), out)
	}
	return nil
}

func (f *fakeAPI) requests() []apiclient.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]apiclient.Request(nil), f.calls...)
}

type countingRefresher struct {
	mu    sync.Mutex
	count int
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
	return nil
}

func (r *countingRefresher) n() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func jsonBody(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestResolveMapsDecoderTags(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Intent
	}{
		{
			name: "invoice",
			body: `{"type":"lightning_invoice","data":{"destination":"02ab","payment_hash":"ff","num_satoshis":2100,"description":"coffee","expiry":3600}}`,
			want: LightningInvoice{Raw: "lnbc21u1", Destination: "02ab", PaymentHash: "ff", AmountSats: 2100, Description: "coffee", ExpirySeconds: 3600},
		},
		{
			name: "lnurl",
			body: `{"type":"lnurl_params","data":{"callback":"https://x/cb","minSendable":1000,"maxSendable":5000000,"metadata":"[[\"text/plain\",\"tip jar\"]]","commentAllowed":32}}`,
			want: LnurlPayable{Source: SourceLnurl, CallbackURL: "https://x/cb", MinSendableMsat: 1000, MaxSendableMsat: 5000000, MetadataJSON: `[["text/plain","tip jar"]]`, CommentAllowedChars: 32},
		},
		{
			name: "alias",
			body: `{"type":"alias","data":{"callback":"https://x/cb","minSendable":1000,"maxSendable":2000}}`,
			want: LnurlPayable{Source: SourceAlias, CallbackURL: "https://x/cb", MinSendableMsat: 1000, MaxSendableMsat: 2000},
		},
		{
			name: "address",
			body: `{"type":"bitcoin_address","data":"bc1qxyz"}`,
			want: OnchainAddress{Address: "bc1qxyz"},
		},
		{
			name: "decoder error",
			body: `{"type":"error","error":"Invoice expired"}`,
			want: ResolutionError{Message: "Invoice expired"},
		},
		{
			name: "unknown tag",
			body: `{"type":"bolt12_offer","data":{}}`,
			want: ResolutionError{Message: unsupportedFormat},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI()
			api.responses["/decoder"] = tc.body

			got, err := NewResolver(api).Resolve(context.Background(), "  lnbc21u1 ")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			calls := api.requests()
			require.Len(t, calls, 1)
			assert.Equal(t, http.MethodGet, calls[0].Method)
			assert.Equal(t, "lnbc21u1", calls[0].Query.Get("input"))
		})
	}
}

func TestResolveEmptyInputSkipsNetwork(t *testing.T) {
	api := newFakeAPI()
	got, err := NewResolver(api).Resolve(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, KindResolutionError, got.Kind())
	assert.Empty(t, api.requests())
}

func TestResolveRequestErrorBecomesIntent(t *testing.T) {
	api := newFakeAPI()
	api.errs["/decoder"] = &apiclient.RequestError{Status: 400, Message: "Could not decode input"}

	got, err := NewResolver(api).Resolve(context.Background(), "garbage")
	require.NoError(t, err)
	assert.Equal(t, ResolutionError{Message: "Could not decode input"}, got)

	api.errs["/decoder"] = apiclient.ErrSessionExpired
	_, err = NewResolver(api).Resolve(context.Background(), "garbage")
	assert.ErrorIs(t, err, apiclient.ErrSessionExpired)
}

func TestLnurlDescription(t *testing.T) {
	p := LnurlPayable{MetadataJSON: `[["text/identifier","a@b.c"],["text/plain","Pay Alice"]]`}
	assert.Equal(t, "Pay Alice", p.Description())
	assert.Equal(t, "LNURL Payment", LnurlPayable{MetadataJSON: "nope"}.Description())
}

func TestPayLnurlBoundsCheckedLocally(t *testing.T) {
	intent := LnurlPayable{CallbackURL: "https://x/cb", MinSendableMsat: 1000, MaxSendableMsat: 5_000_000}

	tests := []struct {
		amount string
		ok     bool
	}{
		{"0", false},
		{"1", true},
		{"5000", true},
		{"5001", false},
		{"-3", false},
		{"-2305843009213692952", false},
		{"-9223372036854775808", false},
		{"", false},
		{"12.5", false},
	}
	for _, tc := range tests {
		t.Run(tc.amount, func(t *testing.T) {
			api := newFakeAPI()
			api.responses["/lnurl/pay"] = `{"status":"SUCCEEDED"}`
			d := NewDispatcher(api, nil, nil)

			form := NewForm("lnurl1", intent)
			form.SetAmount(tc.amount)
			_, err := d.Pay(context.Background(), form)

			if !tc.ok {
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Empty(t, api.requests(), "rejected amounts must not reach the network")
				return
			}
			require.NoError(t, err)
			calls := api.requests()
			require.Len(t, calls, 1)
			body := calls[0].JSON.(lnurlPayment)
			assert.Equal(t, "https://x/cb", body.Callback)
		})
	}
}

func TestPayLnurlBoundsMessage(t *testing.T) {
	d := NewDispatcher(newFakeAPI(), nil, nil)
	form := NewForm("lnurl1", LnurlPayable{CallbackURL: "cb", MinSendableMsat: 1000, MaxSendableMsat: 5_000_000})
	form.SetAmount("5001")

	_, err := d.Pay(context.Background(), form)
	require.Error(t, err)
	assert.Equal(t, "Amount must be between 1 and 5000 sats.", err.Error())
}

func TestPayLnurlComment(t *testing.T) {
	tests := []struct {
		name        string
		allowed     int
		comment     string
		wantComment string
		wantErr     bool
	}{
		{name: "no comments accepted", allowed: 0, comment: "hello", wantComment: ""},
		{name: "within bound", allowed: 10, comment: "hello", wantComment: "hello"},
		{name: "empty", allowed: 10, comment: "", wantComment: ""},
		{name: "too long", allowed: 3, comment: "hello", wantErr: true},
		{name: "counts runes", allowed: 2, comment: "₿₿", wantComment: "₿₿"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI()
			d := NewDispatcher(api, nil, nil)
			form := NewForm("lnurl1", LnurlPayable{CallbackURL: "cb", MinSendableMsat: 1000, MaxSendableMsat: 1_000_000, CommentAllowedChars: tc.allowed})
			form.SetAmount("21")
			form.SetComment(tc.comment)

			_, err := d.Pay(context.Background(), form)
			if tc.wantErr {
				require.Error(t, err)
				assert.Empty(t, api.requests())
				return
			}
			require.NoError(t, err)
			body := api.requests()[0].JSON.(lnurlPayment)
			assert.Equal(t, int64(21_000), body.AmountMsat)
			assert.Equal(t, tc.wantComment, body.Comment)

			encoded := jsonBody(t, body)
			if tc.wantComment == "" {
				assert.NotContains(t, encoded, "comment")
			}
		})
	}
}

func TestPayInvoiceSendsRawString(t *testing.T) {
	api := newFakeAPI()
	api.responses["/payments/invoice"] = `{"status":"IN_FLIGHT","payment_hash":"ff"}`
	d := NewDispatcher(api, nil, nil)

	out, err := d.Pay(context.Background(), NewForm("lnbc1", LightningInvoice{Raw: "lnbc1", AmountSats: 10}))
	require.NoError(t, err)
	assert.Equal(t, "IN_FLIGHT", out.Status)
	assert.Equal(t, "ff", out.Fields["payment_hash"])
	assert.Equal(t, invoicePayment{Invoice: "lnbc1"}, api.requests()[0].JSON)
}

func TestOnchainQuoteInvalidatedByAmountEdit(t *testing.T) {
	api := newFakeAPI()
	api.responses["/payments/onchain/estimate-fee"] = `{"fee_sat":141}`
	api.responses["/payments/onchain"] = `{"status":"PENDING"}`
	d := NewDispatcher(api, nil, nil)

	form := NewForm("bc1qxyz", OnchainAddress{Address: "bc1qxyz"})
	form.SetAmount("1000")

	_, err := d.Pay(context.Background(), form)
	require.ErrorIs(t, err, ErrFeeQuoteRequired)

	q, err := d.Quote(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, int64(141), q.FeeSats())
	assert.Equal(t, "1000", q.Amount())

	form.SetAmount("1001")
	_, ok := form.Quote()
	assert.False(t, ok, "editing the amount drops the quote")

	before := len(api.requests())
	_, err = d.Pay(context.Background(), form)
	require.ErrorIs(t, err, ErrFeeQuoteRequired)
	assert.Len(t, api.requests(), before, "no submission without a fresh quote")

	_, err = d.Quote(context.Background(), form)
	require.NoError(t, err)
	out, err := d.Pay(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, "PENDING", out.Status)

	calls := api.requests()
	assert.Equal(t, onchainPayment{Address: "bc1qxyz", SatsAmount: 1001}, calls[len(calls)-1].JSON)
}

func TestSetSameAmountKeepsQuote(t *testing.T) {
	api := newFakeAPI()
	api.responses["/payments/onchain/estimate-fee"] = `{"fee_sat":5}`
	d := NewDispatcher(api, nil, nil)

	form := NewForm("bc1q", OnchainAddress{Address: "bc1q"})
	form.SetAmount("500")
	_, err := d.Quote(context.Background(), form)
	require.NoError(t, err)

	form.SetAmount("500")
	_, ok := form.Quote()
	assert.True(t, ok)
}

func TestQuoteRejectsNonOnchain(t *testing.T) {
	d := NewDispatcher(newFakeAPI(), nil, nil)
	_, err := d.Quote(context.Background(), NewForm("lnbc1", LightningInvoice{Raw: "lnbc1"}))
	assert.Error(t, err)
}

func TestPaySuccessNotifiesAndRefreshes(t *testing.T) {
	api := newFakeAPI()
	api.responses["/payments/invoice"] = `{"status":"SUCCEEDED"}`
	queue := notify.NewQueue()
	defer queue.Close()
	refresher := &countingRefresher{}
	d := NewDispatcher(api, queue, refresher)

	_, err := d.Pay(context.Background(), NewForm("lnbc1", LightningInvoice{Raw: "lnbc1"}))
	require.NoError(t, err)

	items := queue.List()
	require.Len(t, items, 1)
	assert.Equal(t, "Payment Sent", items[0].Title)
	assert.Equal(t, notify.Success, items[0].Kind)
	assert.Contains(t, items[0].Message, "SUCCEEDED")
	assert.Equal(t, 1, refresher.n())
}

func TestPayFailureHasNoSideEffects(t *testing.T) {
	api := newFakeAPI()
	api.errs["/payments/invoice"] = &apiclient.RequestError{Status: 400, Message: "insufficient balance"}
	queue := notify.NewQueue()
	defer queue.Close()
	refresher := &countingRefresher{}
	d := NewDispatcher(api, queue, refresher)

	_, err := d.Pay(context.Background(), NewForm("lnbc1", LightningInvoice{Raw: "lnbc1"}))
	var reqErr *apiclient.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "insufficient balance", reqErr.Message)
	assert.Empty(t, queue.List())
	assert.Zero(t, refresher.n())
}

func TestPayResolutionErrorIsRefused(t *testing.T) {
	api := newFakeAPI()
	d := NewDispatcher(api, nil, nil)
	_, err := d.Pay(context.Background(), NewForm("x", ResolutionError{Message: "bad"}))
	var rerr ResolutionError
	require.True(t, errors.As(err, &rerr))
	assert.Empty(t, api.requests())
}

func TestFlowStartsFreshFormPerResolution(t *testing.T) {
	api := newFakeAPI()
	api.responses["/decoder"] = `{"type":"bitcoin_address","data":"bc1qxyz"}`
	api.responses["/payments/onchain/estimate-fee"] = `{"fee_sat":100}`
	api.responses["/payments/onchain"] = `{"status":"PENDING"}`
	flow := NewFlow(NewResolver(api), NewDispatcher(api, nil, nil))

	_, err := flow.Submit(context.Background())
	require.ErrorIs(t, err, ErrNoForm)

	form, err := flow.Resolve(context.Background(), "bc1qxyz")
	require.NoError(t, err)
	form.SetAmount("2500")
	_, err = flow.Quote(context.Background())
	require.NoError(t, err)

	again, err := flow.Resolve(context.Background(), "bc1qxyz")
	require.NoError(t, err)
	assert.NotSame(t, form, again)
	assert.Empty(t, again.Amount())
	_, ok := again.Quote()
	assert.False(t, ok)

	again.SetAmount("2500")
	_, err = flow.Quote(context.Background())
	require.NoError(t, err)
	_, err = flow.Submit(context.Background())
	require.NoError(t, err)
	assert.Nil(t, flow.Form())
}

func TestFlowKeepsFormOnFailure(t *testing.T) {
	api := newFakeAPI()
	api.responses["/decoder"] = `{"type":"lightning_invoice","data":{"num_satoshis":1}}`
	api.errs["/payments/invoice"] = &apiclient.RequestError{Status: 500, Message: "boom"}
	flow := NewFlow(NewResolver(api), NewDispatcher(api, nil, nil))

	form, err := flow.Resolve(context.Background(), "lnbc1")
	require.NoError(t, err)
	_, err = flow.Submit(context.Background())
	require.Error(t, err)
	assert.Same(t, form, flow.Form())
}
