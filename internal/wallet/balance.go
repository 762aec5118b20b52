package wallet

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/hongminglow/aratiri-client/internal/models"
)

// Unit is a balance display unit.
type Unit string

const (
	UnitSats Unit = "sats"
	UnitBTC  Unit = "btc"
	UnitFiat Unit = "fiat"
)

// HiddenBalance replaces the amount when the user has hidden it.
const HiddenBalance = "•••••••"

var satsPerBTC = decimal.NewFromInt(100_000_000)

// Units lists display units in toggle order.
var Units = []Unit{UnitSats, UnitBTC, UnitFiat}

// Next cycles sats -> btc -> fiat -> sats.
func (u Unit) Next() Unit {
	for i, v := range Units {
		if v == u {
			return Units[(i+1)%len(Units)]
		}
	}
	return UnitSats
}

// Label is the suffix shown after a balance.
func (u Unit) Label(currency string) string {
	if u == UnitFiat {
		return strings.ToUpper(currency)
	}
	return string(u)
}

// FormatBalance renders the account balance in unit. Fiat values use the
// account's fiat_equivalents for currency and read "N/A" when missing.
func FormatBalance(acc models.Account, unit Unit, currency string, visible bool) string {
	if !visible {
		return HiddenBalance
	}
	switch unit {
	case UnitBTC:
		return decimal.NewFromInt(acc.Balance).Div(satsPerBTC).StringFixed(8)
	case UnitFiat:
		v, ok := acc.Fiat(currency)
		if !ok {
			return "N/A"
		}
		return groupThousands(v.StringFixed(2))
	default:
		return models.FormatSats(acc.Balance)
	}
}

// groupThousands inserts commas into the integer part of a fixed-point string.
func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		return fmt.Sprintf("%s%s.%s", sign, b.String(), frac)
	}
	return sign + b.String()
}
