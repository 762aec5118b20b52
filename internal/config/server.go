package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig holds the sandbox API's configuration sourced from env vars.
type ServerConfig struct {
	Port        string
	JWTSecret   string
	JWTIssuer   string
	JWTTTL      time.Duration
	CORSOrigins []string
	// InitialBalanceSats is credited to every new sandbox account.
	InitialBalanceSats int64
}

// LoadServer reads the sandbox configuration from the environment and
// performs minimal validation.
func LoadServer() (ServerConfig, error) {
	cfg := ServerConfig{
		Port:        fallback(os.Getenv("PORT"), "8080"),
		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:   fallback(os.Getenv("JWT_ISSUER"), "aratiri-sandbox"),
		CORSOrigins: parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
	}

	minutes := fallback(os.Getenv("JWT_TTL_MINUTES"), "15")
	if ttlMinutes, err := strconv.Atoi(minutes); err == nil && ttlMinutes > 0 {
		cfg.JWTTTL = time.Duration(ttlMinutes) * time.Minute
	} else {
		cfg.JWTTTL = 15 * time.Minute
	}

	balance := fallback(os.Getenv("SANDBOX_INITIAL_BALANCE"), "100000")
	sats, err := strconv.ParseInt(balance, 10, 64)
	if err != nil || sats < 0 {
		return ServerConfig{}, fmt.Errorf("invalid SANDBOX_INITIAL_BALANCE value: %q", balance)
	}
	cfg.InitialBalanceSats = sats

	if cfg.JWTSecret == "" {
		return ServerConfig{}, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c ServerConfig) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
