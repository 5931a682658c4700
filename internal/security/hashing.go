package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrWrongPassword is returned by PasswordHasher.Verify when the password does not match.
var ErrWrongPassword = errors.New("wrong password")

// PasswordHasher stores passwords as bcrypt hashes for the dev identity provider.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a hasher at cost, clamped to bcrypt's range; zero picks bcrypt.DefaultCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	switch {
	case cost == 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost is the bcrypt cost in use.
func (h *PasswordHasher) Cost() int { return h.cost }

func (h *PasswordHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify reports ErrWrongPassword for a mismatch; a malformed hash is returned as is.
func (h *PasswordHasher) Verify(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrWrongPassword
	}
	return err
}
