/*
Package randx generates cryptographically secure random values.

It backs verification codes (fixed-length decimal strings), token nonces
(hex strings) and object storage keys (UUIDs).
*/
package randx

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// DigitChars is the alphabet for numeric verification codes.
	DigitChars = "0123456789"

	// NonceBytes is the number of random bytes in a token nonce (64 hex characters).
	NonceBytes = 32
)

// Digits returns a uniformly random decimal string of the given length.
func Digits(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive, got %d", length)
	}

	result := make([]byte, length)
	limit := big.NewInt(int64(len(DigitChars)))

	for i := range length {
		num, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate random digit: %w", err)
		}
		result[i] = DigitChars[num.Int64()]
	}

	return string(result), nil
}

// Hex returns n random bytes encoded as a lowercase hex string.
func Hex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Nonce returns a NonceBytes-long hex nonce for per-issuance token differentiation.
func Nonce() (string, error) {
	return Hex(NonceBytes)
}

// ObjectID returns a UUID v4 string used to build unique storage keys.
func ObjectID() string {
	return uuid.New().String()
}

// IsDigits reports whether s is a non-empty string of decimal digits only.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
