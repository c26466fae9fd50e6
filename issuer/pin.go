package issuer

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	PINSchemePlain  = "plain"
	PINSchemeBcrypt = "bcrypt"
)

// PINScheme controls how a PIN is stored and compared.
type PINScheme interface {
	Seal(pin string) (string, error)
	Match(stored, pin string) bool
}

// PlainPIN stores the PIN as given and compares strings. This is the default.
type PlainPIN struct{}

func (PlainPIN) Seal(pin string) (string, error) { return pin, nil }

func (PlainPIN) Match(stored, pin string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(pin)) == 1
}

// BcryptPIN stores a bcrypt hash in the pin column. Opt-in only.
type BcryptPIN struct {
	Cost int
}

func (b BcryptPIN) Seal(pin string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(h), nil
}

func (BcryptPIN) Match(stored, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(pin)) == nil
}

// NewPINScheme maps a config name to a scheme.
func NewPINScheme(name string) (PINScheme, error) {
	switch name {
	case "", PINSchemePlain:
		return PlainPIN{}, nil
	case PINSchemeBcrypt:
		return BcryptPIN{}, nil
	default:
		return nil, fmt.Errorf("unsupported PIN_SCHEME=%s", name)
	}
}
