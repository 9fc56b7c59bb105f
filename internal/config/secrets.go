package config

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	secretDerivationIterations = 600_000
	secretDerivationKeyLen     = 32
)

// ResolveSecrets stretches an operator-supplied passphrase into the signing
// key actually used for bearer tokens, mirroring the teacher's
// password-salt derivation. A no-op when PasswordSalt is unset, so an
// operator can also supply Secret as an already high-entropy key directly.
func (c *Config) ResolveSecrets() {
	if c.PasswordSalt == "" {
		return
	}
	derived := pbkdf2.Key([]byte(c.Secret), []byte(c.PasswordSalt), secretDerivationIterations, secretDerivationKeyLen, sha256.New)
	c.Secret = fmt.Sprintf("%x", derived)
}
