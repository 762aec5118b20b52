// Package ledger is the in-memory state behind the sandbox wallet API: users,
// balances, invoices and the transaction history of every account.
package ledger

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/aratiri-client/internal/models"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrInvalidCode         = errors.New("invalid or expired code")
	ErrNotVerified         = errors.New("email not verified")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvoicePaid         = errors.New("invoice already paid")
	ErrOwnInvoice          = errors.New("cannot pay your own invoice")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

const (
	// LnurlMinSendable and LnurlMaxSendable bound alias payments, in msat.
	LnurlMinSendable = 1_000
	LnurlMaxSendable = 1_000_000_000
	// LnurlCommentAllowed is the longest comment an alias payment may carry.
	LnurlCommentAllowed = 140

	feeRateSatPerVByte = 2
	txVBytes           = 141
)

// btcPrices values one bitcoin in each supported fiat currency.
var btcPrices = map[string]decimal.Decimal{
	"usd": decimal.RequireFromString("65000"),
	"eur": decimal.RequireFromString("60000"),
	"pyg": decimal.RequireFromString("480000000"),
	"ars": decimal.RequireFromString("60000000"),
}

var satsPerBTC = decimal.NewFromInt(100_000_000)

// Currencies lists the fiat codes balances are priced in.
func Currencies() []string {
	out := make([]string, 0, len(btcPrices))
	for c := range btcPrices {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Invoice is a payable request held by the ledger.
type Invoice struct {
	models.Invoice
	Owner     string
	CreatedAt time.Time
	Expiry    time.Duration
	Paid      bool
}

// Result is returned by every payment operation.
type Result struct {
	Status      string `json:"status"`
	PaymentHash string `json:"payment_hash,omitempty"`
	TxID        string `json:"tx_id,omitempty"`
	SatsAmount  int64  `json:"sats_amount"`
	FeeSat      int64  `json:"fee_sat,omitempty"`
}

type account struct {
	user    models.User
	balance int64
	address string
	txs     []models.Transaction
}

// Ledger is safe for concurrent use.
type Ledger struct {
	initialBalance int64
	invoiceExpiry  time.Duration
	now            func() time.Time

	mu        sync.Mutex
	accounts  map[string]*account
	byEmail   map[string]string
	byAlias   map[string]string
	byAddress map[string]string
	invoices  map[string]*Invoice
	refresh   map[string]string
	verify    map[string]string
	reset     map[string]string

	hub *Hub
}

type Option func(*Ledger)

// WithInitialBalance credits every new account with sats.
func WithInitialBalance(sats int64) Option {
	return func(l *Ledger) { l.initialBalance = sats }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func New(opts ...Option) *Ledger {
	l := &Ledger{
		invoiceExpiry: time.Hour,
		now:           time.Now,
		accounts:      make(map[string]*account),
		byEmail:       make(map[string]string),
		byAlias:       make(map[string]string),
		byAddress:     make(map[string]string),
		invoices:      make(map[string]*Invoice),
		refresh:       make(map[string]string),
		verify:        make(map[string]string),
		reset:         make(map[string]string),
		hub:           NewHub(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Hub exposes the per-user event fan-out.
func (l *Ledger) Hub() *Hub { return l.hub }

// Register creates an unverified user and returns the emailed code.
func (l *Ledger) Register(name, email, alias, passwordHash string) (models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	alias = strings.ToLower(strings.TrimSpace(alias))

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byEmail[email]; ok {
		return models.User{}, "", fmt.Errorf("email %w", ErrAlreadyExists)
	}
	if _, ok := l.byAlias[alias]; ok {
		return models.User{}, "", fmt.Errorf("alias %w", ErrAlreadyExists)
	}
	acc := l.openLocked(models.User{Name: strings.TrimSpace(name), Email: email, Alias: alias, PasswordHash: passwordHash})
	code := newCode()
	l.verify[email] = code
	return acc.user, code, nil
}

// SSOUser returns the verified user for email, creating one on first sight.
func (l *Ledger) SSOUser(email, name string) models.User {
	email = strings.ToLower(strings.TrimSpace(email))

	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.byEmail[email]; ok {
		return l.accounts[id].user
	}
	local, _, _ := strings.Cut(email, "@")
	alias := local
	for i := 1; ; i++ {
		if _, taken := l.byAlias[alias]; !taken {
			break
		}
		alias = fmt.Sprintf("%s%d", local, i)
	}
	acc := l.openLocked(models.User{Name: name, Email: email, Alias: alias, Verified: true})
	return acc.user
}

func (l *Ledger) openLocked(u models.User) *account {
	u.ID = uuid.NewString()
	u.CreatedAt = l.now().UTC()
	acc := &account{user: u, address: newAddress()}
	l.accounts[u.ID] = acc
	l.byEmail[u.Email] = u.ID
	l.byAlias[u.Alias] = u.ID
	l.byAddress[acc.address] = u.ID
	if l.initialBalance > 0 {
		acc.balance = l.initialBalance
		acc.txs = append(acc.txs, l.txLocked(models.GenericCredit, l.initialBalance, models.StatusCompleted))
	}
	return acc
}

// PendingCode returns the outstanding verification code for email.
func (l *Ledger) PendingCode(email string) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	if c, ok := l.verify[email]; ok {
		return c, true
	}
	c, ok := l.reset[email]
	return c, ok
}

// Verify confirms a registration code.
func (l *Ledger) Verify(email, code string) (models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	l.mu.Lock()
	defer l.mu.Unlock()
	want, ok := l.verify[email]
	if !ok || want != code {
		return models.User{}, ErrInvalidCode
	}
	delete(l.verify, email)
	acc := l.accounts[l.byEmail[email]]
	acc.user.Verified = true
	return acc.user, nil
}

// FindByIdentifier looks a user up by email or alias.
func (l *Ledger) FindByIdentifier(identifier string) (models.User, error) {
	key := strings.ToLower(strings.TrimSpace(identifier))

	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.byEmail[key]
	if !ok {
		id, ok = l.byAlias[key]
	}
	if !ok {
		return models.User{}, ErrNotFound
	}
	return l.accounts[id].user, nil
}

func (l *Ledger) User(id string) (models.User, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return acc.user, nil
}

// StartReset issues a password reset code. Unknown emails get ErrNotFound.
func (l *Ledger) StartReset(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byEmail[email]; !ok {
		return "", ErrNotFound
	}
	code := newCode()
	l.reset[email] = code
	return code, nil
}

// Reset replaces the password hash and revokes every refresh token of the user.
func (l *Ledger) Reset(email, code, passwordHash string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	l.mu.Lock()
	defer l.mu.Unlock()
	want, ok := l.reset[email]
	if !ok || want != code {
		return ErrInvalidCode
	}
	delete(l.reset, email)
	id := l.byEmail[email]
	l.accounts[id].user.PasswordHash = passwordHash
	for tok, owner := range l.refresh {
		if owner == id {
			delete(l.refresh, tok)
		}
	}
	return nil
}

// IssueRefresh creates a refresh token for userID.
func (l *Ledger) IssueRefresh(userID string) string {
	tok := uuid.NewString()
	l.mu.Lock()
	l.refresh[tok] = userID
	l.mu.Unlock()
	return tok
}

// RotateRefresh consumes token and returns its owner with a replacement.
func (l *Ledger) RotateRefresh(token string) (string, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	id, ok := l.refresh[token]
	if !ok {
		return "", "", ErrNotFound
	}
	delete(l.refresh, token)
	next := uuid.NewString()
	l.refresh[next] = id
	return id, next, nil
}

func (l *Ledger) RevokeRefresh(token string) {
	l.mu.Lock()
	delete(l.refresh, token)
	l.mu.Unlock()
}

// Account reports the user's balance and receive endpoints.
func (l *Ledger) Account(userID string) (models.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[userID]
	if !ok {
		return models.Account{}, ErrNotFound
	}
	return models.Account{
		ID:                   acc.user.ID,
		Balance:              acc.balance,
		Alias:                acc.user.Alias,
		Lnurl:                EncodeLnurl(acc.user.Alias),
		LnurlQRCode:          qrPayload("lightning:" + EncodeLnurl(acc.user.Alias)),
		BitcoinAddress:       acc.address,
		BitcoinAddressQRCode: qrPayload("bitcoin:" + acc.address),
		FiatEquivalents:      fiat(acc.balance),
	}, nil
}

// Transactions lists the user's entries dated within [from, to], newest first.
func (l *Ledger) Transactions(userID string, from, to time.Time) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	out := []models.Transaction{}
	for i := len(acc.txs) - 1; i >= 0; i-- {
		tx := acc.txs[i]
		ts, err := tx.Time()
		if err != nil || ts.Before(from) || ts.After(to) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (l *Ledger) txLocked(typ models.TransactionType, amount int64, status models.TransactionStatus) models.Transaction {
	return models.Transaction{
		ID:              uuid.NewString(),
		Type:            typ,
		Amount:          amount,
		Date:            l.now().UTC().Format(time.RFC3339Nano),
		Status:          status,
		FiatEquivalents: fiat(amount),
	}
}

func fiat(sats int64) map[string]decimal.Decimal {
	btc := decimal.NewFromInt(sats).Div(satsPerBTC)
	out := make(map[string]decimal.Decimal, len(btcPrices))
	for c, price := range btcPrices {
		out[c] = btc.Mul(price).Round(2)
	}
	return out
}

func newCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64())
}

func newHash() string {
	preimage := make([]byte, 32)
	if _, err := rand.Read(preimage); err != nil {
		panic(err)
	}
	sum := sha256.Sum256(preimage)
	return hex.EncodeToString(sum[:])
}

func newAddress() string {
	id := uuid.New()
	return "bcrt1q" + hex.EncodeToString(id[:]) + hex.EncodeToString(id[:3])
}

// qrPayload stands in for a rendered QR image; it is the data URI a QR
// renderer would be fed.
func qrPayload(content string) string {
	return "data:text/plain;charset=utf-8," + strings.ReplaceAll(content, " ", "%20")
}
