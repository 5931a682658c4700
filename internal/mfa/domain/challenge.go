package domain

import "time"

// Challenge is a step-up OTP issued to an email address. Only the code's hash is kept.
type Challenge struct {
	ID         string
	Email      string
	CodeHash   string
	Attempts   int
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	CreatedAt  time.Time
}

// Verified reports whether the code was confirmed and the confirmation is still within ttl of now.
func (c *Challenge) Verified(now time.Time, ttl time.Duration) bool {
	return c.VerifiedAt != nil && now.Before(c.VerifiedAt.Add(ttl))
}
