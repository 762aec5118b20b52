// Package session owns the process-wide access/refresh token pair. It is the
// only component that reads or writes tokens; everything else goes through it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/hongminglow/aratiri-client/internal/auth"
	"github.com/hongminglow/aratiri-client/internal/storage"
)

// ErrSessionExpired signals that the user must authenticate again.
var ErrSessionExpired = errors.New("session expired")

// Reason explains why a session ended.
type Reason string

const (
	ReasonLogout         Reason = "logout"
	ReasonExpiredAtStart Reason = "expired"
	ReasonNoRefreshToken Reason = "no_refresh_token"
	ReasonRefreshFailed  Reason = "refresh_failed"
)

// Message is the user-facing explanation for a forced logout.
func (r Reason) Message() string {
	switch r {
	case ReasonExpiredAtStart:
		return "Your session has expired. Please log in again."
	case ReasonNoRefreshToken, ReasonRefreshFailed:
		return "Session expired. Please log in again."
	default:
		return ""
	}
}

// Ended is broadcast to subscribers whenever the session is cleared.
type Ended struct {
	Reason Reason
	At     time.Time
}

// Store holds the current token pair in memory and mirrors it to a KV.
type Store struct {
	kv  storage.KV
	now func() time.Time

	mu      sync.RWMutex
	access  string
	refresh string

	subMu  sync.Mutex
	nextID int
	subs   map[int]chan Ended
}

// NewStore wraps kv. Call Restore before first use to pick up persisted tokens.
func NewStore(kv storage.KV) *Store {
	return &Store{
		kv:   kv,
		now:  time.Now,
		subs: make(map[int]chan Ended),
	}
}

// Restore loads persisted tokens. A stored access token that has already
// expired clears the session and returns ErrSessionExpired.
func (s *Store) Restore(ctx context.Context) error {
	access, err := s.kv.Get(ctx, storage.KeyAccessToken)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load access token: %w", err)
	}
	refresh, err := s.kv.Get(ctx, storage.KeyRefreshToken)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load refresh token: %w", err)
	}

	s.mu.Lock()
	s.access, s.refresh = access, refresh
	s.mu.Unlock()

	if access != "" && s.IsExpired(access) {
		if err := s.Expire(ctx, ReasonExpiredAtStart); err != nil {
			return err
		}
		return ErrSessionExpired
	}
	return nil
}

// AccessToken returns the current access token or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.access
}

// RefreshToken returns the current refresh token or "".
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refresh
}

// Authenticated reports whether an access token is present.
func (s *Store) Authenticated() bool {
	return s.AccessToken() != ""
}

// IsExpired decodes token's exp claim against the store's clock.
func (s *Store) IsExpired(token string) bool {
	return auth.IsExpired(token, s.now())
}

// SetSession persists both tokens and then swaps them in together.
func (s *Store) SetSession(ctx context.Context, access, refresh string) error {
	if err := s.kv.SetMany(ctx, map[string]string{
		storage.KeyAccessToken:  access,
		storage.KeyRefreshToken: refresh,
	}); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	s.mu.Lock()
	s.access, s.refresh = access, refresh
	s.mu.Unlock()
	return nil
}

// Clear removes both tokens. It is the single logout path.
func (s *Store) Clear(ctx context.Context) error {
	return s.end(ctx, ReasonLogout)
}

// Expire clears the session and broadcasts reason to subscribers.
func (s *Store) Expire(ctx context.Context, reason Reason) error {
	return s.end(ctx, reason)
}

func (s *Store) end(ctx context.Context, reason Reason) error {
	s.mu.Lock()
	s.access, s.refresh = "", ""
	s.mu.Unlock()

	err := s.kv.Delete(ctx, storage.KeyAccessToken, storage.KeyRefreshToken)
	if err != nil {
		log.Printf("[session] delete persisted tokens: %v", err)
	}
	s.broadcast(Ended{Reason: reason, At: s.now()})
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Subscribe returns a channel receiving every session end. The channel is
// buffered; a subscriber that falls behind misses events rather than blocking
// the store. Call cancel to unsubscribe.
func (s *Store) Subscribe() (<-chan Ended, func()) {
	ch := make(chan Ended, 4)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (s *Store) broadcast(ev Ended) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("[session] subscriber lagging, dropped %s event", ev.Reason)
		}
	}
}
