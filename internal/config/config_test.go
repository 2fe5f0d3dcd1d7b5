package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("provider.audience", "client-id.apps.test")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.HTTPAddress != "0.0.0.0:8080" {
		t.Fatalf("unexpected http address: %s", cfg.HTTPAddress)
	}
	if cfg.DatabasePath != "vibeboard.db" {
		t.Fatalf("unexpected database path: %s", cfg.DatabasePath)
	}
	if cfg.TokenTTL != 30*time.Minute {
		t.Fatalf("unexpected token ttl: %s", cfg.TokenTTL)
	}
	if cfg.ListTimeout != 5*time.Second {
		t.Fatalf("unexpected list timeout: %s", cfg.ListTimeout)
	}
	if cfg.MaxUploadBytes != 5<<20 {
		t.Fatalf("unexpected upload limit: %d", cfg.MaxUploadBytes)
	}
	if cfg.ShortCodeAttempts != 5 {
		t.Fatalf("unexpected short code attempts: %d", cfg.ShortCodeAttempts)
	}
}

func TestLoadRequiresSigningSecret(t *testing.T) {
	configViper := NewViper()
	configViper.Set("provider.audience", "client-id.apps.test")

	_, err := Load(configViper)
	if err == nil || !strings.Contains(err.Error(), "auth.signing_secret") {
		t.Fatalf("expected signing secret error, got %v", err)
	}
}

func TestLoadRequiresProviderAudience(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")

	_, err := Load(configViper)
	if err == nil || !strings.Contains(err.Error(), "provider.audience") {
		t.Fatalf("expected provider audience error, got %v", err)
	}
}

func TestLoadRejectsNonPositiveListTimeout(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("provider.audience", "client-id.apps.test")
	configViper.Set("list.timeout_ms", 0)

	_, err := Load(configViper)
	if err == nil || !strings.Contains(err.Error(), "list.timeout_ms") {
		t.Fatalf("expected list timeout error, got %v", err)
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	configViper := NewViper()
	configViper.Set("auth.signing_secret", "secret")
	configViper.Set("provider.audience", "client-id.apps.test")
	configViper.Set("http.address", "127.0.0.1:9999")
	configViper.Set("admin.user_id", "user-admin")
	configViper.Set("token.ttl_minutes", 5)

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.HTTPAddress != "127.0.0.1:9999" {
		t.Fatalf("unexpected http address: %s", cfg.HTTPAddress)
	}
	if cfg.AdminUserID != "user-admin" {
		t.Fatalf("unexpected admin user id: %s", cfg.AdminUserID)
	}
	if cfg.TokenTTL != 5*time.Minute {
		t.Fatalf("unexpected token ttl: %s", cfg.TokenTTL)
	}
}
