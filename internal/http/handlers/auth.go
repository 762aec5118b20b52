package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/aratiri-client/internal/auth"
	"github.com/hongminglow/aratiri-client/internal/http/respond"
	"github.com/hongminglow/aratiri-client/internal/ledger"
	"github.com/hongminglow/aratiri-client/internal/models/dto"
)

// AuthHandler owns the credential exchange endpoints under /auth.
type AuthHandler struct {
	ledger *ledger.Ledger
	tokens *auth.TokenManager
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(l *ledger.Ledger, tokens *auth.TokenManager) *AuthHandler {
	return &AuthHandler{ledger: l, tokens: tokens}
}

// Register attaches auth routes to the router.
func (h *AuthHandler) Register(r *mux.Router) {
	r.HandleFunc("/auth/register", h.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/verify", h.handleVerify).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/auth/sso/google", h.handleGoogle).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/auth/forgot-password", h.handleForgot).Methods(http.MethodPost)
	r.HandleFunc("/auth/reset-password", h.handleReset).Methods(http.MethodPost)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := validateRegistration(req); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}

	user, code, err := h.ledger.Register(req.Name, req.Email, req.Alias, passwordHash)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrAlreadyExists):
			respond.Error(w, http.StatusConflict, err.Error())
		default:
			log.Printf("register user error: %v", err)
			respond.Error(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}
	// Stands in for the verification email.
	log.Printf("verification code for %s: %s", user.Email, code)
	respond.JSON(w, http.StatusCreated, map[string]string{"message": "Verification code sent to " + user.Email})
}

func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	user, err := h.ledger.Verify(req.Email, strings.TrimSpace(req.Code))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid or expired verification code")
		return
	}
	h.issue(w, user.ID)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Password) == "" {
		respond.Error(w, http.StatusBadRequest, "username and password are required")
		return
	}
	user, err := h.ledger.FindByIdentifier(req.Username)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			respond.Error(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		log.Printf("login failed: error fetching user %s: %v", req.Username, err)
		respond.Error(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		respond.Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !user.Verified {
		respond.Error(w, http.StatusForbidden, "Please verify your email before logging in")
		return
	}
	h.issue(w, user.ID)
}

func (h *AuthHandler) handleGoogle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 16<<10))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "failed to read identity token")
		return
	}
	email, name, err := auth.Identity(strings.TrimSpace(string(body)))
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "Invalid Google identity token")
		return
	}
	user := h.ledger.SSOUser(email, name)
	h.issue(w, user.ID)
}

func (h *AuthHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		respond.Error(w, http.StatusBadRequest, "refreshToken is required")
		return
	}
	userID, next, err := h.ledger.RotateRefresh(req.RefreshToken)
	if err != nil {
		respond.Error(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	access, err := h.tokens.Generate(userID)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respond.JSON(w, http.StatusOK, dto.TokenPair{AccessToken: access, RefreshToken: next})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	h.ledger.RevokeRefresh(req.RefreshToken)
	respond.NoContent(w)
}

func (h *AuthHandler) handleForgot(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	code, err := h.ledger.StartReset(req.Email)
	if err == nil {
		log.Printf("password reset code for %s: %s", req.Email, code)
	}
	// Same answer for unknown emails.
	respond.JSON(w, http.StatusOK, map[string]string{"message": "If the email exists, a reset code was sent"})
}

func (h *AuthHandler) handleReset(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := validatePassword(req.NewPassword); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	passwordHash, err := hashPassword(req.NewPassword)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to hash password")
		return
	}
	if err := h.ledger.Reset(req.Email, strings.TrimSpace(req.Code), passwordHash); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid or expired reset code")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

func (h *AuthHandler) issue(w http.ResponseWriter, userID string) {
	access, err := h.tokens.Generate(userID)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respond.JSON(w, http.StatusOK, dto.TokenPair{AccessToken: access, RefreshToken: h.ledger.IssueRefresh(userID)})
}

func validateRegistration(req dto.RegisterRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Alias) == "" {
		return errors.New("name, email, and alias are required")
	}
	if !strings.Contains(req.Email, "@") {
		return errors.New("email is invalid")
	}
	if strings.ContainsAny(req.Alias, "@ /") {
		return errors.New("alias may not contain spaces, slashes or @")
	}
	return validatePassword(req.Password)
}

func validatePassword(password string) error {
	if len(strings.TrimSpace(password)) < 8 || !utf8.ValidString(password) {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
