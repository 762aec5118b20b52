package realtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/hongminglow/aratiri-client/internal/models"
	"github.com/hongminglow/aratiri-client/internal/notify"
	"github.com/hongminglow/aratiri-client/internal/session"
)

// DefaultBackoff is the fixed wait between a closed stream and the next attempt.
const DefaultBackoff = 5 * time.Second

type State int

const (
	Disconnected State = iota
	Connecting
	Streaming
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// TokenSource supplies the current access token.
type TokenSource interface {
	AccessToken() string
}

// Renewer refreshes a rejected access token.
type Renewer interface {
	Renew(ctx context.Context, stale string) (string, error)
}

type Notifier interface {
	Push(title, message string, kind notify.Kind) notify.Notification
}

type Refresher interface {
	Refresh(ctx context.Context) error
}

// Reconciler owns one subscription and reconnects it until its context ends.
type Reconciler struct {
	transport Transport
	tokens    TokenSource
	renewer   Renewer
	notifier  Notifier
	refresher Refresher

	backoff time.Duration
	after   func(time.Duration) <-chan time.Time
	onState func(State)

	mu    sync.Mutex
	state State
}

type Option func(*Reconciler)

// WithBackoff overrides DefaultBackoff.
func WithBackoff(d time.Duration) Option {
	return func(r *Reconciler) { r.backoff = d }
}

// WithAfter replaces time.After for the reconnect timer.
func WithAfter(fn func(time.Duration) <-chan time.Time) Option {
	return func(r *Reconciler) { r.after = fn }
}

// WithRenewer lets a rejected subscription refresh the session before retrying.
func WithRenewer(rn Renewer) Option {
	return func(r *Reconciler) { r.renewer = rn }
}

// WithStateObserver is called on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(r *Reconciler) { r.onState = fn }
}

func NewReconciler(t Transport, tokens TokenSource, n Notifier, rf Refresher, opts ...Option) *Reconciler {
	r := &Reconciler{
		transport: t,
		tokens:    tokens,
		notifier:  n,
		refresher: rf,
		backoff:   DefaultBackoff,
		after:     time.After,
		state:     Disconnected,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	changed := r.state != s
	r.state = s
	fn := r.onState
	r.mu.Unlock()
	if changed && fn != nil {
		fn(s)
	}
}

// Run connects and keeps reconnecting until ctx is cancelled, which is the only
// clean way out; it then returns nil. Run returns ErrNoSession without
// connecting when there is no access token, and a session error if the
// subscription was rejected and the session could not be renewed.
func (r *Reconciler) Run(ctx context.Context) error {
	defer r.setState(Closed)

	for {
		if ctx.Err() != nil {
			return nil
		}
		token := r.tokens.AccessToken()
		if token == "" {
			return ErrNoSession
		}

		err := r.connectOnce(ctx, token)
		if ctx.Err() != nil {
			return nil
		}
		r.setState(Disconnected)

		switch {
		case errors.Is(err, io.EOF):
			log.Println("[realtime] stream ended, reconnecting")
		case errors.Is(err, ErrUnauthorized):
			if rerr := r.renew(ctx, token); rerr != nil {
				return rerr
			}
		default:
			log.Printf("[realtime] stream error: %v. Retrying in %s...", err, r.backoff)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-r.after(r.backoff):
		}
	}
}

func (r *Reconciler) connectOnce(ctx context.Context, token string) error {
	r.setState(Connecting)
	stream, err := r.transport.Connect(ctx, token)
	if err != nil {
		return err
	}
	defer stream.Close()

	r.setState(Streaming)
	for {
		ev, err := stream.Next()
		if err != nil {
			return err
		}
		r.handle(ctx, ev)
	}
}

func (r *Reconciler) renew(ctx context.Context, token string) error {
	if r.renewer == nil {
		log.Println("[realtime] subscription unauthorized")
		return nil
	}
	if _, err := r.renewer.Renew(ctx, token); err != nil {
		if errors.Is(err, session.ErrSessionExpired) {
			return err
		}
		log.Printf("[realtime] renew after unauthorized: %v", err)
	}
	return nil
}

func (r *Reconciler) handle(ctx context.Context, ev Event) {
	var title string
	switch ev.Name {
	case EventPaymentReceived:
		title = "Payment Received"
	case EventPaymentSent:
		title = "Payment Sent"
	default:
		return
	}

	p, err := ParsePayment(ev.Data)
	if err != nil {
		log.Printf("[realtime] failed to parse %s data %q: %v", ev.Name, ev.Data, err)
		return
	}
	if r.notifier != nil {
		r.notifier.Push(title, fmt.Sprintf("%s sats - %s", models.FormatSats(p.AmountSats), p.Memo), notify.Success)
	}
	if r.refresher != nil {
		if err := r.refresher.Refresh(ctx); err != nil {
			log.Printf("[realtime] refresh after %s: %v", ev.Name, err)
		}
	}
}
