package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"

	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config holds the wallet client's runtime configuration.
type Config struct {
	APIBaseURL        string        `mapstructure:"api_base_url"`
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	RealtimeTransport string        `mapstructure:"realtime_transport"`
	ReconnectBackoff  time.Duration `mapstructure:"reconnect_backoff"`
	NotificationTTL   time.Duration `mapstructure:"notification_ttl"`
	HistoryDays       int           `mapstructure:"history_days"`
	Store             string        `mapstructure:"store"`
	StorePath         string        `mapstructure:"store_path"`
	StorePassphrase   string        `mapstructure:"store_passphrase"`
	DatabaseURL       string        `mapstructure:"database_url"`
}

// Load reads defaults, then the optional file named by ARATIRI_CONFIG, then
// ARATIRI_* environment variables, and validates the result.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ARATIRI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database_url", "ARATIRI_DATABASE_URL", "DATABASE_URL"); err != nil {
		return Config{}, err
	}

	if path := strings.TrimSpace(os.Getenv("ARATIRI_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	cfg.RealtimeTransport = strings.ToLower(strings.TrimSpace(cfg.RealtimeTransport))
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.StorePath = expandHome(cfg.StorePath)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_base_url", "https://aratiri.diegoyegros.com/v1")
	v.SetDefault("http_timeout", 15*time.Second)
	v.SetDefault("realtime_transport", TransportSSE)
	v.SetDefault("reconnect_backoff", 5*time.Second)
	v.SetDefault("notification_ttl", 5*time.Second)
	v.SetDefault("history_days", 30)
	v.SetDefault("store", StoreFile)
	v.SetDefault("store_path", filepath.Join("~", ".aratiri", "state.json"))
	v.SetDefault("store_passphrase", "")
	v.SetDefault("database_url", "")
}

// Validate performs minimal sanity checks.
func (c Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("api_base_url is required")
	}
	switch c.RealtimeTransport {
	case TransportSSE, TransportWebSocket:
	default:
		return fmt.Errorf("unknown realtime_transport %q", c.RealtimeTransport)
	}
	switch c.Store {
	case StoreFile:
		if c.StorePath == "" {
			return errors.New("store_path is required for the file store")
		}
	case StorePostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	if c.HTTPTimeout <= 0 || c.ReconnectBackoff <= 0 || c.NotificationTTL <= 0 {
		return errors.New("durations must be positive")
	}
	if c.HistoryDays <= 0 {
		return errors.New("history_days must be positive")
	}
	return nil
}

func expandHome(path string) string {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
