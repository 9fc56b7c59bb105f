package config_test

import (
	"testing"

	"github.com/watchhub/signalhub/internal/config"
)

func TestResolveSecrets_NoopWithoutPasswordSalt(t *testing.T) {
	c := config.Config{Secret: "plain-secret"}
	c.ResolveSecrets()
	if c.Secret != "plain-secret" {
		t.Errorf("expected Secret to be left untouched, got %q", c.Secret)
	}
}

func TestResolveSecrets_StretchesWithPasswordSalt(t *testing.T) {
	c := config.Config{Secret: "passphrase", PasswordSalt: "somesalt"}
	c.ResolveSecrets()
	if c.Secret == "passphrase" {
		t.Error("expected Secret to be derived, not left as the raw passphrase")
	}
	if len(c.Secret) != 64 { // 32-byte key, hex-encoded
		t.Errorf("expected a 64-character hex key, got length %d", len(c.Secret))
	}
}

func TestResolveSecrets_DeterministicForSameInputs(t *testing.T) {
	c1 := config.Config{Secret: "passphrase", PasswordSalt: "somesalt"}
	c2 := config.Config{Secret: "passphrase", PasswordSalt: "somesalt"}
	c1.ResolveSecrets()
	c2.ResolveSecrets()
	if c1.Secret != c2.Secret {
		t.Error("expected identical inputs to derive identical secrets")
	}
}

func TestResolveSecrets_DifferentSaltsDeriveDifferentSecrets(t *testing.T) {
	c1 := config.Config{Secret: "passphrase", PasswordSalt: "salt1"}
	c2 := config.Config{Secret: "passphrase", PasswordSalt: "salt2"}
	c1.ResolveSecrets()
	c2.ResolveSecrets()
	if c1.Secret == c2.Secret {
		t.Error("expected different salts to derive different secrets")
	}
}
