// Package wallet loads the process signing keypair.
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrMissingKey is returned by Decode for an empty input.
	ErrMissingKey = errors.New("signing key not configured")
	// ErrMalformedKey is returned by Decode for input that is not a valid keypair.
	ErrMalformedKey = errors.New("malformed signing key")
)

// Wallet holds the keypair that pays for and co-signs launches.
type Wallet struct {
	key      solana.PrivateKey
	degraded bool
}

// Load decodes encoded as a base58 (or JSON byte array) secret key. When the
// key is missing or malformed a fresh, unfunded keypair is generated instead
// and the wallet is marked degraded; launches will then fail at submission.
func Load(encoded string, logger *slog.Logger) (*Wallet, error) {
	if logger == nil {
		logger = slog.Default()
	}

	key, err := Decode(encoded)
	if err == nil {
		return &Wallet{key: key}, nil
	}

	fresh, genErr := solana.NewRandomPrivateKey()
	if genErr != nil {
		return nil, fmt.Errorf("generate fallback keypair: %w", genErr)
	}
	logger.Warn("Signing key unavailable, using a freshly generated unfunded keypair",
		"reason", err,
		"public_key", fresh.PublicKey().String(),
	)
	return &Wallet{key: fresh, degraded: true}, nil
}

// FromPrivateKey wraps an existing key.
func FromPrivateKey(key solana.PrivateKey) *Wallet {
	return &Wallet{key: key}
}

// Decode parses and validates a secret key.
func Decode(encoded string) (solana.PrivateKey, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrMissingKey
	}

	var raw []byte
	if strings.HasPrefix(encoded, "[") {
		if err := json.Unmarshal([]byte(encoded), &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
	} else {
		key, err := solana.PrivateKeyFromBase58(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
		raw = key
	}

	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrMalformedKey, ed25519.PrivateKeySize, len(raw))
	}
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived, raw) {
		return nil, fmt.Errorf("%w: public half does not match seed", ErrMalformedKey)
	}
	return solana.PrivateKey(raw), nil
}

// PublicKey returns the wallet address.
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

// PrivateKey returns the signing key.
func (w *Wallet) PrivateKey() solana.PrivateKey {
	return w.key
}

// Degraded reports whether the wallet is a generated fallback.
func (w *Wallet) Degraded() bool {
	return w.degraded
}
