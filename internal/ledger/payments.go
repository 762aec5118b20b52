package ledger

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/hongminglow/aratiri-client/internal/models"
)

const (
	invoicePrefix = "lnbcrt"
	lnurlPrefix   = "lnurl1"
)

// LnurlParams is what an alias or LNURL resolves to.
type LnurlParams struct {
	Alias          string
	MinSendable    int64
	MaxSendable    int64
	Metadata       string
	CommentAllowed int
}

// EncodeLnurl renders the sandbox's LNURL for alias. It is not bech32; the
// sandbox only needs a string it can map back to the alias.
func EncodeLnurl(alias string) string {
	return lnurlPrefix + hex.EncodeToString([]byte(alias))
}

// DecodeLnurl reverses EncodeLnurl.
func DecodeLnurl(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, lnurlPrefix) {
		return "", false
	}
	b, err := hex.DecodeString(strings.TrimPrefix(s, lnurlPrefix))
	if err != nil || len(b) == 0 {
		return "", false
	}
	return string(b), true
}

// CreateInvoice issues a payable request owned by userID.
func (l *Ledger) CreateInvoice(userID string, sats int64, memo string) (models.Invoice, error) {
	if sats <= 0 {
		return models.Invoice{}, ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.accounts[userID]; !ok {
		return models.Invoice{}, ErrNotFound
	}
	hash := newHash()
	inv := &Invoice{
		Invoice: models.Invoice{
			PaymentRequest: fmt.Sprintf("%s%dn1p%s", invoicePrefix, sats, hash),
			PaymentHash:    hash,
			SatsAmount:     sats,
			Memo:           memo,
		},
		Owner:     userID,
		CreatedAt: l.now(),
		Expiry:    l.invoiceExpiry,
	}
	l.invoices[strings.ToLower(inv.PaymentRequest)] = inv
	return inv.Invoice, nil
}

// LookupInvoice finds an invoice by its payment request.
func (l *Ledger) LookupInvoice(paymentRequest string) (Invoice, error) {
	pr := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(paymentRequest), "lightning:"))
	l.mu.Lock()
	defer l.mu.Unlock()
	inv, ok := l.invoices[pr]
	if !ok {
		return Invoice{}, ErrNotFound
	}
	return *inv, nil
}

// Lnurl resolves an alias to pay parameters.
func (l *Ledger) Lnurl(alias string) (LnurlParams, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.byAlias[alias]; !ok {
		return LnurlParams{}, ErrNotFound
	}
	return LnurlParams{
		Alias:          alias,
		MinSendable:    LnurlMinSendable,
		MaxSendable:    LnurlMaxSendable,
		Metadata:       fmt.Sprintf(`[["text/plain","Pay to %s"],["text/identifier","%s@aratiri"]]`, alias, alias),
		CommentAllowed: LnurlCommentAllowed,
	}, nil
}

// IsAddress applies the sandbox's address shape check.
func IsAddress(s string) bool {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	for _, p := range []string{"bc1", "tb1", "bcrt1"} {
		if strings.HasPrefix(lower, p) {
			return len(s) >= 14 && len(s) <= 90 && isBech32Body(lower[len(p):])
		}
	}
	if len(s) < 26 || len(s) > 35 || !strings.ContainsRune("13mn2", rune(s[0])) {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz", r) {
			return false
		}
	}
	return true
}

func isBech32Body(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return s != ""
}

// EstimateFee prices an on-chain send at a flat rate.
func (l *Ledger) EstimateFee(address string, sats int64) (int64, error) {
	if sats <= 0 {
		return 0, ErrInvalidAmount
	}
	if !IsAddress(address) {
		return 0, fmt.Errorf("invalid bitcoin address %q", address)
	}
	return feeRateSatPerVByte * txVBytes, nil
}

// PayInvoice moves the invoice amount from payer to the invoice owner.
func (l *Ledger) PayInvoice(payerID, paymentRequest string) (Result, error) {
	pr := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(paymentRequest), "lightning:"))

	l.mu.Lock()
	inv, ok := l.invoices[pr]
	if !ok {
		l.mu.Unlock()
		return Result{}, ErrNotFound
	}
	switch {
	case inv.Paid:
		l.mu.Unlock()
		return Result{}, ErrInvoicePaid
	case inv.Owner == payerID:
		l.mu.Unlock()
		return Result{}, ErrOwnInvoice
	case l.now().After(inv.CreatedAt.Add(inv.Expiry)):
		l.mu.Unlock()
		return Result{}, fmt.Errorf("invoice expired")
	}
	if err := l.transferLocked(payerID, inv.Owner, inv.SatsAmount, models.LightningDebit, models.InvoiceCredit); err != nil {
		l.mu.Unlock()
		return Result{}, err
	}
	inv.Paid = true
	owner, sats, memo, hash := inv.Owner, inv.SatsAmount, inv.Memo, inv.PaymentHash
	l.mu.Unlock()

	l.notifyTransfer(payerID, owner, sats, memo)
	return Result{Status: "SUCCEEDED", PaymentHash: hash, SatsAmount: sats}, nil
}

// PayAlias pays amountMsat to the owner of alias.
func (l *Ledger) PayAlias(payerID, alias string, amountMsat int64, comment string) (Result, error) {
	if amountMsat < LnurlMinSendable || amountMsat > LnurlMaxSendable || amountMsat%1000 != 0 {
		return Result{}, fmt.Errorf("amount_msat must be a whole number of sats between %d and %d msat", LnurlMinSendable, LnurlMaxSendable)
	}
	if len([]rune(comment)) > LnurlCommentAllowed {
		return Result{}, fmt.Errorf("comment longer than %d characters", LnurlCommentAllowed)
	}
	sats := amountMsat / 1000

	l.mu.Lock()
	payee, ok := l.byAlias[strings.ToLower(alias)]
	if !ok {
		l.mu.Unlock()
		return Result{}, ErrNotFound
	}
	if payee == payerID {
		l.mu.Unlock()
		return Result{}, ErrOwnInvoice
	}
	if err := l.transferLocked(payerID, payee, sats, models.InternalTransferDebit, models.InternalTransferCredit); err != nil {
		l.mu.Unlock()
		return Result{}, err
	}
	l.mu.Unlock()

	l.notifyTransfer(payerID, payee, sats, comment)
	return Result{Status: "SUCCEEDED", PaymentHash: newHash(), SatsAmount: sats}, nil
}

// SendOnchain debits amount plus fee. Sends to a sandbox address are credited
// to that account straight away.
func (l *Ledger) SendOnchain(payerID, address string, sats int64) (Result, error) {
	fee, err := l.EstimateFee(address, sats)
	if err != nil {
		return Result{}, err
	}

	l.mu.Lock()
	payer, ok := l.accounts[payerID]
	if !ok {
		l.mu.Unlock()
		return Result{}, ErrNotFound
	}
	if payer.balance < sats+fee {
		l.mu.Unlock()
		return Result{}, ErrInsufficientBalance
	}
	payer.balance -= sats + fee
	payer.txs = append(payer.txs, l.txLocked(models.OnchainDebit, sats+fee, models.StatusPending))

	payeeID, internal := l.byAddress[strings.TrimSpace(address)]
	if internal {
		payee := l.accounts[payeeID]
		payee.balance += sats
		payee.txs = append(payee.txs, l.txLocked(models.OnchainCredit, sats, models.StatusPending))
	}
	l.mu.Unlock()

	l.hub.Publish(payerID, Event{Name: "payment_sent", Data: map[string]any{"amountSats": sats, "memo": "On-chain send"}})
	if internal {
		l.hub.Publish(payeeID, Event{Name: "payment_received", Data: map[string]any{"amountSats": sats, "memo": "On-chain deposit"}})
	}
	return Result{Status: "PENDING", TxID: newHash(), SatsAmount: sats, FeeSat: fee}, nil
}

func (l *Ledger) transferLocked(fromID, toID string, sats int64, debit, credit models.TransactionType) error {
	from, ok := l.accounts[fromID]
	if !ok {
		return ErrNotFound
	}
	to, ok := l.accounts[toID]
	if !ok {
		return ErrNotFound
	}
	if from.balance < sats {
		return ErrInsufficientBalance
	}
	from.balance -= sats
	to.balance += sats
	from.txs = append(from.txs, l.txLocked(debit, sats, models.StatusCompleted))
	to.txs = append(to.txs, l.txLocked(credit, sats, models.StatusCompleted))
	return nil
}

func (l *Ledger) notifyTransfer(fromID, toID string, sats int64, memo string) {
	data := map[string]any{"amountSats": sats}
	if memo != "" {
		data["memo"] = memo
	}
	l.hub.Publish(toID, Event{Name: "payment_received", Data: data})
	l.hub.Publish(fromID, Event{Name: "payment_sent", Data: data})
}

// ExpiresAt is when inv stops being payable.
func (inv Invoice) ExpiresAt() time.Time { return inv.CreatedAt.Add(inv.Expiry) }
