package wallet

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/aratiri-client/internal/apiclient"
	"github.com/hongminglow/aratiri-client/internal/models"
	"github.com/hongminglow/aratiri-client/internal/models/dto"
	"github.com/hongminglow/aratiri-client/internal/session"
	"github.com/hongminglow/aratiri-client/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newService(t *testing.T, h http.Handler) (*Service, *session.Store) {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	sessions := session.NewStore(storage.NewMemory())
	return NewService(apiclient.New(ts.URL, sessions), sessions), sessions
}

func TestLoginStoresTokenPair(t *testing.T) {
	var gotAuth string
	var got dto.LoginRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.Password != "hunter2" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, dto.TokenPair{AccessToken: "a1", RefreshToken: "r1"})
	})
	svc, sessions := newService(t, mux)

	err := svc.Login(context.Background(), "alice", "wrong")
	var reqErr *apiclient.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "Invalid credentials", reqErr.Message)
	assert.False(t, sessions.Authenticated())

	require.NoError(t, svc.Login(context.Background(), " alice ", "hunter2"))
	assert.Empty(t, gotAuth)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "a1", sessions.AccessToken())
	assert.Equal(t, "r1", sessions.RefreshToken())
}

func TestLoginWithGoogleForwardsTokenAsText(t *testing.T) {
	var body, ctype string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/sso/google", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		body, ctype = string(b), r.Header.Get("Content-Type")
		writeJSON(w, http.StatusOK, dto.TokenPair{AccessToken: "a", RefreshToken: "r"})
	})
	svc, sessions := newService(t, mux)

	require.NoError(t, svc.LoginWithGoogle(context.Background(), "google.id.token"))
	assert.Equal(t, "google.id.token", body)
	assert.Equal(t, "text/plain", ctype)
	assert.True(t, sessions.Authenticated())
}

func TestExchangeRejectsMissingTokens(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/verify", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "only"})
	})
	svc, sessions := newService(t, mux)

	err := svc.Verify(context.Background(), "a@b.c", "123456")
	assert.ErrorIs(t, err, ErrMissingTokens)
	assert.False(t, sessions.Authenticated())
}

func TestLogoutClearsSessionEvenWhenServerFails(t *testing.T) {
	var sent dto.LogoutRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&sent)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "down"})
	})
	svc, sessions := newService(t, mux)
	require.NoError(t, sessions.SetSession(context.Background(), "a", "r"))
	ended, cancel := sessions.Subscribe()
	defer cancel()

	require.NoError(t, svc.Logout(context.Background()))
	assert.Equal(t, "r", sent.RefreshToken)
	assert.False(t, sessions.Authenticated())
	assert.Empty(t, sessions.RefreshToken())

	select {
	case ev := <-ended:
		assert.Equal(t, session.ReasonLogout, ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("logout not broadcast")
	}
}

func TestTransactionsWindow(t *testing.T) {
	var from, to string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts/account/transactions", func(w http.ResponseWriter, r *http.Request) {
		from, to = r.URL.Query().Get("from"), r.URL.Query().Get("to")
		writeJSON(w, http.StatusOK, map[string]any{"transactions": nil})
	})
	mux.HandleFunc("GET /accounts/account", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Account{ID: "acc", Balance: 10})
	})
	svc, _ := newService(t, mux)

	fixed := time.Date(2026, 3, 31, 23, 30, 0, 0, time.FixedZone("PYT", -3*3600))
	m := NewReadModel(svc, WithClock(func() time.Time { return fixed }))
	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, "2026-03-02", from)
	assert.Equal(t, "2026-04-01", to)
	snap, ok := m.Snapshot()
	require.True(t, ok)
	assert.NotNil(t, snap.Transactions)
	assert.Empty(t, snap.Transactions)
}

func TestRefreshIsIdempotent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts/account", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Account{
			ID:              "acc",
			Balance:         125_000,
			FiatEquivalents: map[string]decimal.Decimal{"usd": decimal.RequireFromString("81.25")},
		})
	})
	mux.HandleFunc("GET /accounts/account/transactions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.TransactionList{Transactions: []models.Transaction{
			{ID: "t1", Type: models.LightningCredit, Amount: 100_000, Date: "2026-03-30T10:00:00Z", Status: models.StatusCompleted},
			{ID: "t2", Type: models.OnchainDebit, Amount: 25_000, Date: "2026-03-29T10:00:00Z", Status: models.StatusPending},
		}})
	})
	svc, _ := newService(t, mux)

	var changes atomic.Int32
	m := NewReadModel(svc, OnChange(func(Snapshot) { changes.Add(1) }))

	require.NoError(t, m.Refresh(context.Background()))
	first, _ := m.Snapshot()
	a, err := json.Marshal(first)
	require.NoError(t, err)

	require.NoError(t, m.Refresh(context.Background()))
	second, _ := m.Snapshot()
	b, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
	assert.Len(t, second.Transactions, 2)
	assert.EqualValues(t, 2, changes.Load())
}

func TestConcurrentRefreshesNeverMerge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts/account", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.Account{ID: "acc"})
	})
	mux.HandleFunc("GET /accounts/account/transactions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.TransactionList{Transactions: []models.Transaction{{ID: "t1"}}})
	})
	svc, _ := newService(t, mux)
	m := NewReadModel(svc)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Refresh(context.Background()))
		}()
	}
	wg.Wait()

	snap, _ := m.Snapshot()
	assert.Len(t, snap.Transactions, 1)
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	var fail atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts/account", func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream"})
			return
		}
		writeJSON(w, http.StatusOK, models.Account{ID: "acc", Balance: 7})
	})
	mux.HandleFunc("GET /accounts/account/transactions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.TransactionList{})
	})
	svc, _ := newService(t, mux)
	m := NewReadModel(svc)

	require.NoError(t, m.Refresh(context.Background()))
	fail.Store(true)
	require.Error(t, m.Refresh(context.Background()))

	snap, ok := m.Snapshot()
	require.True(t, ok)
	assert.EqualValues(t, 7, snap.Account.Balance)
}

func TestCreateInvoice(t *testing.T) {
	var got createInvoiceRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /invoices", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, models.Invoice{PaymentRequest: "lnbcrt21u1", SatsAmount: got.SatsAmount, Memo: got.Memo})
	})
	svc, sessions := newService(t, mux)
	require.NoError(t, sessions.SetSession(context.Background(), "a", "r"))

	_, err := svc.CreateInvoice(context.Background(), 0, "")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	inv, err := svc.CreateInvoice(context.Background(), 2100, "coffee")
	require.NoError(t, err)
	assert.Equal(t, "lnbcrt21u1", inv.PaymentRequest)
	assert.Equal(t, createInvoiceRequest{SatsAmount: 2100, Memo: "coffee"}, got)
}

func TestCurrenciesFallback(t *testing.T) {
	var down atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /general-data/currencies", func(w http.ResponseWriter, r *http.Request) {
		if down.Load() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{})
			return
		}
		writeJSON(w, http.StatusOK, []string{"usd", "eur", "jpy"})
	})
	svc, _ := newService(t, mux)

	assert.Equal(t, []string{"usd", "eur", "jpy"}, svc.Currencies(context.Background()))
	down.Store(true)
	assert.Equal(t, FallbackCurrencies, svc.Currencies(context.Background()))
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	p := NewPreferences(kv)

	cur, err := p.Currency(ctx, []string{"usd", "eur"})
	require.NoError(t, err)
	assert.Equal(t, "usd", cur)

	require.NoError(t, p.SetCurrency(ctx, "EUR"))
	cur, _ = p.Currency(ctx, []string{"usd", "eur"})
	assert.Equal(t, "eur", cur)
	cur, _ = p.Currency(ctx, []string{"usd"})
	assert.Equal(t, "usd", cur, "stored currency ignored when not offered")

	visible, err := p.BalanceVisible(ctx)
	require.NoError(t, err)
	assert.True(t, visible)
	require.NoError(t, p.SetBalanceVisible(ctx, false))
	raw, _ := kv.Get(ctx, storage.KeyBalanceVisible)
	assert.Equal(t, "false", raw)
	visible, _ = p.BalanceVisible(ctx)
	assert.False(t, visible)

	theme, _ := p.Theme(ctx)
	assert.Equal(t, ThemeDefault, theme)
	require.NoError(t, p.SetTheme(ctx, ThemeBitcoin))
	theme, _ = p.Theme(ctx)
	assert.Equal(t, ThemeBitcoin, theme)
	assert.ErrorIs(t, p.SetTheme(ctx, "Neon"), ErrUnknownTheme)
}

func TestFormatBalance(t *testing.T) {
	acc := models.Account{
		Balance:         123_456_789,
		FiatEquivalents: map[string]decimal.Decimal{"usd": decimal.RequireFromString("80245.5")},
	}
	tests := []struct {
		unit     Unit
		currency string
		visible  bool
		want     string
	}{
		{UnitSats, "usd", true, "123,456,789"},
		{UnitBTC, "usd", true, "1.23456789"},
		{UnitFiat, "usd", true, "80,245.50"},
		{UnitFiat, "eur", true, "N/A"},
		{UnitSats, "usd", false, HiddenBalance},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, FormatBalance(acc, tc.unit, tc.currency, tc.visible))
	}
	assert.Equal(t, UnitBTC, UnitSats.Next())
	assert.Equal(t, UnitSats, UnitFiat.Next())
	assert.Equal(t, "USD", UnitFiat.Label("usd"))
}
