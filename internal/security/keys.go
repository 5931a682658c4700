package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrInvalidKey is returned for unreadable PEM or an unsupported key type.
	ErrInvalidKey = errors.New("invalid key")
	// ErrKeyMismatch is returned when the configured public key does not belong to the private key.
	ErrKeyMismatch = errors.New("public key does not match private key")
)

// KeyPair is the dev identity provider's signing material.
type KeyPair struct {
	Signer crypto.Signer
	Public crypto.PublicKey
	// Ephemeral is set when the pair was generated for this process only.
	Ephemeral bool
}

// LoadKeyPair reads the pair from privateKey and publicKey, each inline PEM or a file path.
// When both are empty it generates an ephemeral ECDSA P-256 pair; tokens signed with it do not
// survive a restart. Setting only one of them is an error.
func LoadKeyPair(privateKey, publicKey string) (KeyPair, error) {
	privateKey, publicKey = strings.TrimSpace(privateKey), strings.TrimSpace(publicKey)
	switch {
	case privateKey == "" && publicKey == "":
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return KeyPair{}, fmt.Errorf("generate signing key: %w", err)
		}
		return KeyPair{Signer: key, Public: key.Public(), Ephemeral: true}, nil
	case privateKey == "" || publicKey == "":
		return KeyPair{}, fmt.Errorf("%w: set both the private and the public key", ErrInvalidKey)
	}

	signer, err := ParsePrivateKey(privateKey)
	if err != nil {
		return KeyPair{}, fmt.Errorf("private key: %w", err)
	}
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return KeyPair{}, fmt.Errorf("public key: %w", err)
	}
	eq, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !eq.Equal(pub) {
		return KeyPair{}, ErrKeyMismatch
	}
	return KeyPair{Signer: signer, Public: pub}, nil
}

// ParsePrivateKey accepts PKCS#1 RSA, SEC 1 EC and PKCS#8 keys.
func ParsePrivateKey(s string) (crypto.Signer, error) {
	block, err := readBlock(s)
	if err != nil {
		return nil, err
	}
	var key any
	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		key, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidKey, block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	signer, ok := key.(crypto.Signer)
	if !ok || signingMethod(signer.Public()) == nil {
		return nil, fmt.Errorf("%w: only RSA and ECDSA P-256 keys can sign", ErrInvalidKey)
	}
	return signer, nil
}

// ParsePublicKey accepts PKIX and PKCS#1 RSA public keys.
func ParsePublicKey(s string) (crypto.PublicKey, error) {
	block, err := readBlock(s)
	if err != nil {
		return nil, err
	}
	var pub crypto.PublicKey
	switch block.Type {
	case "PUBLIC KEY":
		pub, err = x509.ParsePKIXPublicKey(block.Bytes)
	case "RSA PUBLIC KEY":
		pub, err = x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrInvalidKey, block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return pub, nil
}

// readBlock decodes the first PEM block of s, reading s as a file path unless it is inline PEM.
func readBlock(s string) (*pem.Block, error) {
	s = strings.TrimSpace(s)
	raw := []byte(s)
	if !strings.HasPrefix(s, "-----BEGIN") {
		b, err := os.ReadFile(s)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidKey)
	}
	return block, nil
}
