// Package app assembles the wallet client from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/hongminglow/aratiri-client/internal/apiclient"
	"github.com/hongminglow/aratiri-client/internal/config"
	"github.com/hongminglow/aratiri-client/internal/notify"
	"github.com/hongminglow/aratiri-client/internal/payment"
	"github.com/hongminglow/aratiri-client/internal/realtime"
	"github.com/hongminglow/aratiri-client/internal/session"
	"github.com/hongminglow/aratiri-client/internal/storage"
	"github.com/hongminglow/aratiri-client/internal/storage/file"
	"github.com/hongminglow/aratiri-client/internal/storage/postgres"
	"github.com/hongminglow/aratiri-client/internal/wallet"
)

const sessionExpiredTitle = "Session expired"

// App is the wired client. Fields are safe to use concurrently.
type App struct {
	Config        config.Config
	KV            storage.KV
	Sessions      *session.Store
	API           *apiclient.Client
	Wallet        *wallet.Service
	ReadModel     *wallet.ReadModel
	Preferences   *wallet.Preferences
	Notifications *notify.Queue
	Payments      *payment.Flow
	Reconciler    *realtime.Reconciler
}

// Option adjusts the wiring, mostly for tests.
type Option func(*options)

type options struct {
	kv       storage.KV
	observer notify.Observer
}

// WithKV uses kv instead of the configured store.
func WithKV(kv storage.KV) Option {
	return func(o *options) { o.kv = kv }
}

// WithNotificationObserver forwards every notification to fn.
func WithNotificationObserver(fn notify.Observer) Option {
	return func(o *options) { o.observer = fn }
}

// New opens the configured store, restores the persisted session and wires
// every component. A session that expired while the client was closed is
// cleared and reported as a notification rather than an error.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	kv := o.kv
	if kv == nil {
		var err error
		if kv, err = OpenStore(ctx, cfg); err != nil {
			return nil, err
		}
	}

	queueOpts := []notify.Option{notify.WithTTL(cfg.NotificationTTL)}
	if o.observer != nil {
		queueOpts = append(queueOpts, notify.WithObserver(o.observer))
	}
	queue := notify.NewQueue(queueOpts...)

	sessions := session.NewStore(kv)
	if err := sessions.Restore(ctx); err != nil {
		if !errors.Is(err, session.ErrSessionExpired) {
			queue.Close()
			kv.Close()
			return nil, fmt.Errorf("restore session: %w", err)
		}
		queue.Error(sessionExpiredTitle, session.ReasonExpiredAtStart.Message())
	}

	api := apiclient.New(cfg.APIBaseURL, sessions, apiclient.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}))
	svc := wallet.NewService(api, sessions)
	model := wallet.NewReadModel(svc, wallet.WithHistoryDays(cfg.HistoryDays))
	dispatcher := payment.NewDispatcher(api, queue, model)

	reconciler := realtime.NewReconciler(
		transport(cfg),
		sessions,
		queue,
		model,
		realtime.WithRenewer(api),
		realtime.WithBackoff(cfg.ReconnectBackoff),
		realtime.WithStateObserver(func(s realtime.State) {
			log.Printf("[realtime] %s", s)
		}),
	)

	return &App{
		Config:        cfg,
		KV:            kv,
		Sessions:      sessions,
		API:           api,
		Wallet:        svc,
		ReadModel:     model,
		Preferences:   wallet.NewPreferences(kv),
		Notifications: queue,
		Payments:      payment.NewFlow(payment.NewResolver(api), dispatcher),
		Reconciler:    reconciler,
	}, nil
}

// OpenStore returns the KV named by cfg.Store.
func OpenStore(ctx context.Context, cfg config.Config) (storage.KV, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return storage.NewMemory(), nil
	case config.StorePostgres:
		s, err := postgres.NewStore(ctx, cfg.DatabaseURL, "default")
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return s, nil
	default:
		s, err := file.Open(cfg.StorePath, cfg.StorePassphrase)
		if err != nil {
			return nil, fmt.Errorf("open state file: %w", err)
		}
		return s, nil
	}
}

func transport(cfg config.Config) realtime.Transport {
	if cfg.RealtimeTransport == config.TransportWebSocket {
		return realtime.NewWebSocket(cfg.APIBaseURL, nil)
	}
	// No client timeout: the stream stays open.
	return realtime.NewSSE(cfg.APIBaseURL, &http.Client{})
}

// Watch keeps the realtime subscription alive and turns forced logouts into
// notifications until ctx ends or the session can no longer be renewed.
func (a *App) Watch(ctx context.Context) error {
	ended, leave := a.Sessions.Subscribe()
	defer leave()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Reconciler.Run(ctx)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				// Run may end the session just before cancelling ctx.
				for {
					select {
					case ev := <-ended:
						a.reportEnded(ev)
					default:
						return nil
					}
				}
			case ev := <-ended:
				a.reportEnded(ev)
			}
		}
	})
	return g.Wait()
}

func (a *App) reportEnded(ev session.Ended) {
	if msg := ev.Reason.Message(); msg != "" {
		a.Notifications.Error(sessionExpiredTitle, msg)
	}
}

// Close stops pending notification timers and releases the store.
func (a *App) Close() error {
	a.Notifications.Close()
	return a.KV.Close()
}
