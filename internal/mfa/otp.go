// Package mfa holds the step-up challenge model and its numeric one-time codes.
package mfa

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
)

// CodeDigits is the length of every code.
const CodeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// NewCode draws a code uniformly from 000000-999999.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("draw code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeDigits, n.Int64()), nil
}

// HashCode is the only form in which a code is stored.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// CodeMatches compares in constant time.
func CodeMatches(code, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(HashCode(code)), []byte(storedHash)) == 1
}
