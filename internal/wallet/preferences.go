package wallet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/hongminglow/aratiri-client/internal/storage"
)

const DefaultCurrency = "usd"

type Theme string

const (
	ThemeDefault Theme = "Default"
	ThemeAratiri Theme = "Aratiri"
	ThemeBitcoin Theme = "Bitcoin"
)

// ErrUnknownTheme rejects theme names the client does not ship.
var ErrUnknownTheme = errors.New("unknown theme")

func ParseTheme(s string) (Theme, error) {
	for _, t := range []Theme{ThemeDefault, ThemeAratiri, ThemeBitcoin} {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTheme, s)
}

// Preferences reads and writes the user's display choices.
type Preferences struct {
	kv storage.KV
}

func NewPreferences(kv storage.KV) *Preferences {
	return &Preferences{kv: kv}
}

func (p *Preferences) get(ctx context.Context, key string) (string, bool, error) {
	v, err := p.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Currency returns the stored currency if available lists it, otherwise
// DefaultCurrency.
func (p *Preferences) Currency(ctx context.Context, available []string) (string, error) {
	v, ok, err := p.get(ctx, storage.KeyPreferredCurrency)
	if err != nil {
		return DefaultCurrency, err
	}
	if ok && slices.Contains(available, v) {
		return v, nil
	}
	return DefaultCurrency, nil
}

func (p *Preferences) SetCurrency(ctx context.Context, currency string) error {
	return p.kv.SetMany(ctx, map[string]string{storage.KeyPreferredCurrency: strings.ToLower(currency)})
}

// BalanceVisible defaults to true until the user hides the balance.
func (p *Preferences) BalanceVisible(ctx context.Context) (bool, error) {
	v, ok, err := p.get(ctx, storage.KeyBalanceVisible)
	if err != nil || !ok {
		return true, err
	}
	visible, err := strconv.ParseBool(v)
	if err != nil {
		return true, nil
	}
	return visible, nil
}

func (p *Preferences) SetBalanceVisible(ctx context.Context, visible bool) error {
	return p.kv.SetMany(ctx, map[string]string{storage.KeyBalanceVisible: strconv.FormatBool(visible)})
}

func (p *Preferences) Theme(ctx context.Context) (Theme, error) {
	v, ok, err := p.get(ctx, storage.KeyTheme)
	if err != nil || !ok {
		return ThemeDefault, err
	}
	t, err := ParseTheme(v)
	if err != nil {
		return ThemeDefault, nil
	}
	return t, nil
}

func (p *Preferences) SetTheme(ctx context.Context, t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}
	return p.kv.SetMany(ctx, map[string]string{storage.KeyTheme: string(t)})
}
