package security

import (
	"sync"
	"time"
)

var testKeys = sync.OnceValues(func() (KeyPair, error) { return LoadKeyPair("", "") })

// NewTestTokenProvider returns a TokenProvider over a process-wide ephemeral P-256 key with
// 15 minute identity and 24 hour refresh lifetimes. Tests and fixtures only.
func NewTestTokenProvider() (*TokenProvider, error) {
	keys, err := testKeys()
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(keys.Signer, keys.Public, "test-issuer", "test-audience", 15*time.Minute, 24*time.Hour), nil
}
