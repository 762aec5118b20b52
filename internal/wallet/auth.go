// Package wallet wraps the account-facing endpoints of the wallet API:
// credential exchanges, account data, invoices and user preferences.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/hongminglow/aratiri-client/internal/apiclient"
	"github.com/hongminglow/aratiri-client/internal/models/dto"
	"github.com/hongminglow/aratiri-client/internal/session"
)

// ErrMissingTokens is returned when a credential exchange answers without a
// usable token pair.
var ErrMissingTokens = errors.New("authentication response is missing tokens")

// Doer is the slice of the API client the wallet depends on.
type Doer interface {
	Do(ctx context.Context, req apiclient.Request, out any) error
}

// Service performs wallet API calls on behalf of the current session.
type Service struct {
	api      Doer
	sessions *session.Store
}

func NewService(api Doer, sessions *session.Store) *Service {
	return &Service{api: api, sessions: sessions}
}

// Login exchanges a username and password for a session.
func (s *Service) Login(ctx context.Context, username, password string) error {
	return s.exchange(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      "/auth/login",
		JSON:      dto.LoginRequest{Username: strings.TrimSpace(username), Password: password},
		Anonymous: true,
	})
}

// LoginWithGoogle forwards a Google identity token verbatim.
func (s *Service) LoginWithGoogle(ctx context.Context, idToken string) error {
	return s.exchange(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      "/auth/sso/google",
		Text:      idToken,
		Anonymous: true,
	})
}

// Register creates an account. The user then receives a verification code by
// email and completes sign-up with Verify.
func (s *Service) Register(ctx context.Context, req dto.RegisterRequest) error {
	return s.api.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      "/auth/register",
		JSON:      req,
		Anonymous: true,
	}, nil)
}

// Verify confirms the emailed code and starts a session.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	return s.exchange(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      "/auth/verify",
		JSON:      dto.VerifyRequest{Email: email, Code: strings.TrimSpace(code)},
		Anonymous: true,
	})
}

func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	return s.api.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      "/auth/forgot-password",
		JSON:      dto.ForgotPasswordRequest{Email: email},
		Anonymous: true,
	}, nil)
}

func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	return s.api.Do(ctx, apiclient.Request{
		Method:    http.MethodPost,
		Path:      "/auth/reset-password",
		JSON:      dto.ResetPasswordRequest{Email: email, Code: strings.TrimSpace(code), NewPassword: newPassword},
		Anonymous: true,
	}, nil)
}

// Logout tells the service to revoke the refresh token, then clears the local
// session whether or not the call succeeded.
func (s *Service) Logout(ctx context.Context) error {
	if refresh := s.sessions.RefreshToken(); refresh != "" {
		err := s.api.Do(ctx, apiclient.Request{
			Method:    http.MethodPost,
			Path:      "/auth/logout",
			JSON:      dto.LogoutRequest{RefreshToken: refresh},
			Anonymous: true,
		}, nil)
		if err != nil {
			log.Printf("[wallet] logout request failed: %v", err)
		}
	}
	return s.sessions.Clear(ctx)
}

func (s *Service) exchange(ctx context.Context, req apiclient.Request) error {
	var pair dto.TokenPair
	if err := s.api.Do(ctx, req, &pair); err != nil {
		return err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return ErrMissingTokens
	}
	if err := s.sessions.SetSession(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}
