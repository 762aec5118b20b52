package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionTypeClassification(t *testing.T) {
	tests := []struct {
		typ    TransactionType
		credit bool
		rail   Rail
	}{
		{LightningCredit, true, RailLightning},
		{LightningDebit, false, RailLightning},
		{OnchainCredit, true, RailOnchain},
		{InvoiceDebit, false, RailInvoice},
		{InternalTransferCredit, true, RailInternal},
		{GenericDebit, false, RailUnknown},
		{"ONCHAIN_DEPOSIT", true, RailOnchain},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			assert.Equal(t, tt.credit, tt.typ.IsCredit())
			assert.Equal(t, tt.rail, tt.typ.Rail())
		})
	}
}

func TestTransactionDecodesFiat(t *testing.T) {
	raw := `{"id":"t1","type":"LIGHTNING_CREDIT","amount":2100,"date":"2025-03-01T10:00:00","status":"COMPLETED","fiat_equivalents":{"usd":1.95,"eur":1.8}}`
	var tx Transaction
	require.NoError(t, json.Unmarshal([]byte(raw), &tx))
	assert.True(t, decimal.RequireFromString("1.95").Equal(tx.FiatEquivalents["usd"]))

	ts, err := tx.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), ts)

	_, err = Transaction{Date: "yesterday"}.Time()
	assert.Error(t, err)
}

func TestRelativeDate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{time.Second, "1 second ago"},
		{30 * time.Second, "30 seconds ago"},
		{time.Minute, "1 minute ago"},
		{45 * time.Minute, "45 minutes ago"},
		{3 * time.Hour, "3 hours ago"},
		{48 * time.Hour, "June 13"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RelativeDate(now.Add(-tt.ago), now))
	}
}

func TestFormatSats(t *testing.T) {
	assert.Equal(t, "1,250,000", FormatSats(1250000))
	assert.Equal(t, "999", FormatSats(999))
}
