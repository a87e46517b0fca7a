// Package credentials maps network names to saved authentication material.
// Secrets are sealed in memguard enclaves and only opened for the length of
// a connect call.
package credentials

import (
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
)

// Security names an authentication scheme.
type Security string

const (
	SecurityOpen   Security = "open"
	SecurityWPAPSK Security = "wpa-psk"
)

// Valid reports whether s is a scheme the connector can join. Enterprise
// networks need a certificate profile and are not supported.
func (s Security) Valid() bool {
	switch s {
	case SecurityOpen, SecurityWPAPSK:
		return true
	}
	return false
}

// ErrNoSecret is returned by Open for networks without a secret.
var ErrNoSecret = errors.New("credentials: no secret")

// Auth is the material needed to join one network.
type Auth struct {
	Security Security
	secret   *memguard.Enclave // nil for open networks
}

// NewAuth seals secret into an enclave. An empty secret yields an Auth
// with no enclave.
func NewAuth(security Security, secret string) *Auth {
	a := &Auth{Security: security}
	if secret != "" {
		// NewEnclave wipes its argument.
		a.secret = memguard.NewEnclave([]byte(secret))
	}
	return a
}

// HasSecret reports whether a secret is stored.
func (a *Auth) HasSecret() bool {
	return a != nil && a.secret != nil
}

// Open decrypts the secret into a locked buffer. The caller must Destroy it.
func (a *Auth) Open() (*memguard.LockedBuffer, error) {
	if !a.HasSecret() {
		return nil, ErrNoSecret
	}
	buf, err := a.secret.Open()
	if err != nil {
		return nil, fmt.Errorf("credentials: open enclave: %w", err)
	}
	return buf, nil
}

// String never prints the secret.
func (a *Auth) String() string {
	if a == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Auth{security=%s secret=%t}", a.Security, a.HasSecret())
}

// Lookup returns the credential saved for ssid.
type Lookup interface {
	LookupCredential(ssid string) (*Auth, bool)
}
