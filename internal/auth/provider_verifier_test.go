package auth

import (
	"context"
	"errors"
	"testing"
)

func TestNewProviderVerifierRequiresAudience(t *testing.T) {
	_, err := NewProviderVerifier(ProviderVerifierConfig{
		JWKSURL:        "https://issuer.test/jwks",
		AllowedIssuers: []string{"https://issuer.test"},
	})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestNewProviderVerifierRequiresJWKSURL(t *testing.T) {
	_, err := NewProviderVerifier(ProviderVerifierConfig{
		Audience:       "client-id.apps.test",
		AllowedIssuers: []string{"https://issuer.test"},
	})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestNewProviderVerifierRequiresIssuers(t *testing.T) {
	_, err := NewProviderVerifier(ProviderVerifierConfig{
		Audience: "client-id.apps.test",
		JWKSURL:  "https://issuer.test/jwks",
	})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}

	_, err = NewProviderVerifier(ProviderVerifierConfig{
		Audience:       "client-id.apps.test",
		JWKSURL:        "https://issuer.test/jwks",
		AllowedIssuers: []string{"  ", ""},
	})
	if !errors.Is(err, ErrInvalidVerifierConfig) {
		t.Fatalf("expected blank issuers rejected, got %v", err)
	}
}

func TestVerifyRejectsEmptyToken(t *testing.T) {
	verifier, err := NewProviderVerifier(ProviderVerifierConfig{
		Audience:       "client-id.apps.test",
		JWKSURL:        "https://issuer.test/jwks",
		AllowedIssuers: []string{"https://issuer.test"},
	})
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}

	if _, err := verifier.Verify(context.Background(), ""); err == nil {
		t.Fatalf("expected empty token rejected")
	}
}
