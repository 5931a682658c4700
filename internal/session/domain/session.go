package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenLifetime is assumed when neither the token nor the provider states an expiry.
const DefaultTokenLifetime = time.Hour

// Role is a closed set of role tags that drive route authorization.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleRecruiter Role = "recruiter"
)

// Known reports whether r is one of the recognized roles.
func (r Role) Known() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleRecruiter:
		return true
	}
	return false
}

// Profile holds display-only fields. It never participates in authorization.
type Profile struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// SessionRecord is one authenticated session as persisted in the session slot.
type SessionRecord struct {
	IdentityToken string    `json:"identityToken"`
	RefreshToken  string    `json:"refreshToken"`
	Role          Role      `json:"role"`
	Profile       Profile   `json:"profile"`
	IssuedAt      time.Time `json:"issuedAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// Valid reports whether the record satisfies the invariants required to be treated as a session.
// An unknown role is still valid: it fails closed at the route gate instead.
func (r *SessionRecord) Valid() bool {
	return r != nil && strings.TrimSpace(r.IdentityToken) != ""
}

// ExpiresWithin reports whether the identity token expires within d of now.
func (r *SessionRecord) ExpiresWithin(now time.Time, d time.Duration) bool {
	if r.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(d).Before(r.ExpiresAt)
}

// Clone returns a copy safe to hand out as a read-only view.
func (r *SessionRecord) Clone() *SessionRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// TokenTimes derives issuedAt/expiresAt for an identity token. JWT iat/exp claims win when
// present; otherwise expiresIn (seconds, from the provider) or DefaultTokenLifetime applies from now.
// Claims are read without signature verification; the backend is the verifier.
func TokenTimes(token string, expiresIn int64, now time.Time) (issuedAt, expiresAt time.Time) {
	issuedAt = now
	switch {
	case expiresIn > 0:
		expiresAt = now.Add(time.Duration(expiresIn) * time.Second)
	default:
		expiresAt = now.Add(DefaultTokenLifetime)
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return issuedAt, expiresAt
	}
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time.UTC()
	}
	return issuedAt, expiresAt
}

// Current is the result of reading the session slot: exactly one of Active or None.
type Current interface {
	current()
}

// Active carries a valid session record.
type Active struct {
	Record SessionRecord
}

// None means no usable session exists (absent, malformed, or missing its identity token).
type None struct{}

func (Active) current() {}
func (None) current()   {}

// Decode parses a persisted payload. Any failure maps to None; it never returns an error.
func Decode(raw []byte) Current {
	if len(raw) == 0 {
		return None{}
	}
	var rec SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return None{}
	}
	if !rec.Valid() {
		return None{}
	}
	return Active{Record: rec}
}

// Encode serializes a record for the session slot.
func Encode(rec *SessionRecord) ([]byte, error) {
	return json.Marshal(rec)
}
