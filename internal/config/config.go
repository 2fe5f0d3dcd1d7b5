package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "VIBEBOARD"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabasePath      = "vibeboard.db"
	defaultLogLevel          = "info"
	defaultTokenTTLMinutes   = 30
	defaultListTimeoutMillis = 5000
	defaultMaxUploadBytes    = 5 << 20
	defaultShortCodeAttempts = 5
	defaultProviderJWKSURL   = "https://www.googleapis.com/oauth2/v3/certs"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabasePath      string
	LogLevel          string
	SigningSecret     string
	TokenTTL          time.Duration
	ProviderAudience  string
	ProviderJWKSURL   string
	AdminUserID       string
	CloudinaryURL     string
	MaxUploadBytes    int64
	ListTimeout       time.Duration
	ShortCodeAttempts int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("token.ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("provider.jwks_url", defaultProviderJWKSURL)
	configViper.SetDefault("list.timeout_ms", defaultListTimeoutMillis)
	configViper.SetDefault("upload.max_bytes", defaultMaxUploadBytes)
	configViper.SetDefault("shortlink.max_attempts", defaultShortCodeAttempts)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		DatabasePath:      configViper.GetString("database.path"),
		LogLevel:          configViper.GetString("log.level"),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		TokenTTL:          time.Duration(configViper.GetInt("token.ttl_minutes")) * time.Minute,
		ProviderAudience:  configViper.GetString("provider.audience"),
		ProviderJWKSURL:   configViper.GetString("provider.jwks_url"),
		AdminUserID:       configViper.GetString("admin.user_id"),
		CloudinaryURL:     configViper.GetString("cloudinary.url"),
		MaxUploadBytes:    configViper.GetInt64("upload.max_bytes"),
		ListTimeout:       time.Duration(configViper.GetInt("list.timeout_ms")) * time.Millisecond,
		ShortCodeAttempts: configViper.GetInt("shortlink.max_attempts"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if strings.TrimSpace(c.ProviderAudience) == "" {
		return fmt.Errorf("provider.audience is required")
	}
	if c.ListTimeout <= 0 {
		return fmt.Errorf("list.timeout_ms must be positive")
	}
	if c.ShortCodeAttempts <= 0 {
		return fmt.Errorf("shortlink.max_attempts must be positive")
	}
	return nil
}
