package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/hongminglow/aratiri-client/internal/models/dto"
	"github.com/hongminglow/aratiri-client/internal/session"
)

type refreshState int

const (
	stateIdle refreshState = iota
	stateRefreshing
)

type refreshResult struct {
	token string
	err   error
}

// refresher is the Idle -> Refreshing -> Idle machine. The first caller to see
// a 401 leads the refresh; callers arriving while it runs wait on a channel and
// receive the leader's outcome in the order they queued.
type refresher struct {
	client   *Client
	sessions *session.Store

	mu      sync.Mutex
	state   refreshState
	waiters []chan refreshResult
}

func newRefresher(c *Client, sessions *session.Store) *refresher {
	return &refresher{client: c, sessions: sessions}
}

// renew returns a usable access token for a caller whose request was rejected
// while holding stale.
func (r *refresher) renew(ctx context.Context, stale string) (string, error) {
	r.mu.Lock()
	if r.state == stateRefreshing {
		ch := make(chan refreshResult, 1)
		r.waiters = append(r.waiters, ch)
		r.mu.Unlock()
		select {
		case res := <-ch:
			return res.token, res.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	// A refresh finished after this caller's request went out.
	if current := r.sessions.AccessToken(); current != "" && current != stale {
		r.mu.Unlock()
		return current, nil
	}
	r.state = stateRefreshing
	r.mu.Unlock()

	return r.lead(context.WithoutCancel(ctx))
}

func (r *refresher) lead(ctx context.Context) (token string, err error) {
	defer func() { r.settle(token, err) }()

	refreshToken := r.sessions.RefreshToken()
	if refreshToken == "" {
		if clearErr := r.sessions.Expire(ctx, session.ReasonNoRefreshToken); clearErr != nil {
			log.Printf("[apiclient] clear session: %v", clearErr)
		}
		return "", ErrSessionExpired
	}

	pair, err := r.exchange(ctx, refreshToken)
	if err != nil {
		log.Printf("[apiclient] token refresh failed: %v", err)
		if clearErr := r.sessions.Expire(ctx, session.ReasonRefreshFailed); clearErr != nil {
			log.Printf("[apiclient] clear session: %v", clearErr)
		}
		return "", fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	if err := r.sessions.SetSession(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

func (r *refresher) exchange(ctx context.Context, refreshToken string) (dto.TokenPair, error) {
	var pair dto.TokenPair
	err := r.client.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      "/auth/refresh",
		JSON:      dto.RefreshRequest{RefreshToken: refreshToken},
		Anonymous: true,
	}, &pair)
	if err != nil {
		return dto.TokenPair{}, err
	}
	if pair.AccessToken == "" {
		return dto.TokenPair{}, errors.New("failed to refresh token")
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

// settle returns the machine to idle and releases every queued caller.
func (r *refresher) settle(token string, err error) {
	r.mu.Lock()
	waiters := r.waiters
	r.waiters = nil
	r.state = stateIdle
	r.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshResult{token: token, err: err}
	}
}
