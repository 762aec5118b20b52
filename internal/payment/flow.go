package payment

import (
	"context"
	"errors"
	"sync"
)

// ErrNoForm is returned when a fee or submission is requested before any input
// has been resolved.
var ErrNoForm = errors.New("nothing to pay: resolve an input first")

// Flow is one send screen: it owns the current form and throws it away on
// every new resolution so amounts never leak into the next intent.
type Flow struct {
	resolver   *Resolver
	dispatcher *Dispatcher

	mu   sync.Mutex
	form *Form
}

// NewFlow creates a flow with no active form.
func NewFlow(resolver *Resolver, dispatcher *Dispatcher) *Flow {
	return &Flow{resolver: resolver, dispatcher: dispatcher}
}

// Resolve discards the current form and starts a new one for raw.
func (fl *Flow) Resolve(ctx context.Context, raw string) (*Form, error) {
	fl.mu.Lock()
	fl.form = nil
	fl.mu.Unlock()

	intent, err := fl.resolver.Resolve(ctx, raw)
	if err != nil {
		return nil, err
	}
	form := NewForm(raw, intent)

	fl.mu.Lock()
	fl.form = form
	fl.mu.Unlock()
	return form, nil
}

// Form returns the active form, or nil.
func (fl *Flow) Form() *Form {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.form
}

// Quote estimates the on-chain fee for the active form.
func (fl *Flow) Quote(ctx context.Context) (FeeQuote, error) {
	form := fl.Form()
	if form == nil {
		return FeeQuote{}, ErrNoForm
	}
	return fl.dispatcher.Quote(ctx, form)
}

// Submit pays the active form. The form is dropped on success and kept, with
// everything the user typed, on failure.
func (fl *Flow) Submit(ctx context.Context) (Outcome, error) {
	form := fl.Form()
	if form == nil {
		return Outcome{}, ErrNoForm
	}
	out, err := fl.dispatcher.Pay(ctx, form)
	if err != nil {
		return Outcome{}, err
	}
	fl.mu.Lock()
	if fl.form == form {
		fl.form = nil
	}
	fl.mu.Unlock()
	return out, nil
}
