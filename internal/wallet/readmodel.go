package wallet

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hongminglow/aratiri-client/internal/models"
)

// DefaultHistoryDays is how far back the transaction list reaches.
const DefaultHistoryDays = 30

// Snapshot is one wholesale fetch of the account and its recent transactions.
type Snapshot struct {
	Account      models.Account       `json:"account"`
	Transactions []models.Transaction `json:"transactions"`
}

// ReadModel holds the latest Snapshot. Every Refresh replaces it entirely, so
// overlapping refreshes from payments and push events are harmless: the last
// one to finish wins and nothing is merged.
type ReadModel struct {
	svc      *Service
	days     int
	now      func() time.Time
	onChange func(Snapshot)

	mu        sync.RWMutex
	snap      Snapshot
	loaded    bool
	updatedAt time.Time
}

type ReadModelOption func(*ReadModel)

// WithHistoryDays overrides DefaultHistoryDays.
func WithHistoryDays(days int) ReadModelOption {
	return func(m *ReadModel) {
		if days > 0 {
			m.days = days
		}
	}
}

// WithClock replaces time.Now when computing the transaction window.
func WithClock(now func() time.Time) ReadModelOption {
	return func(m *ReadModel) { m.now = now }
}

// OnChange registers fn to receive every new snapshot.
func OnChange(fn func(Snapshot)) ReadModelOption {
	return func(m *ReadModel) { m.onChange = fn }
}

func NewReadModel(svc *Service, opts ...ReadModelOption) *ReadModel {
	m := &ReadModel{svc: svc, days: DefaultHistoryDays, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Refresh refetches the account and the transaction window concurrently and
// swaps in the result. On error the previous snapshot is kept.
func (m *ReadModel) Refresh(ctx context.Context) error {
	to := m.now().UTC()
	from := to.AddDate(0, 0, -m.days)

	var next Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		acc, err := m.svc.Account(gctx)
		next.Account = acc
		return err
	})
	g.Go(func() error {
		txs, err := m.svc.Transactions(gctx, from, to)
		next.Transactions = txs
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	m.mu.Lock()
	m.snap = next
	m.loaded = true
	m.updatedAt = m.now()
	fn := m.onChange
	m.mu.Unlock()

	if fn != nil {
		fn(next)
	}
	return nil
}

// Snapshot returns the latest data and whether any refresh has succeeded.
func (m *ReadModel) Snapshot() (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap, m.loaded
}

func (m *ReadModel) UpdatedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updatedAt
}
