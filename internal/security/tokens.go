package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for a well-formed token past its exp claim.
	ErrTokenExpired = errors.New("token expired")
)

// IdentityClaims holds JWT claims for the short-lived identity token.
type IdentityClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// RefreshClaims holds JWT claims for the refresh token (jti binds it to the user's current grant).
type RefreshClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenProvider issues and validates identity and refresh JWTs using RS256 or ES256.
// It backs the development identity provider only; the console never verifies signatures.
type TokenProvider struct {
	privateKey  crypto.Signer
	publicKey   crypto.PublicKey
	issuer      string
	audience    string
	identityTTL time.Duration
	refreshTTL  time.Duration
	nowF        func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and checked on validation.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, identityTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey:  privateKey,
		publicKey:   publicKey,
		issuer:      issuer,
		audience:    audience,
		identityTTL: identityTTL,
		refreshTTL:  refreshTTL,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// IdentityTTL is the lifetime of issued identity tokens.
func (p *TokenProvider) IdentityTTL() time.Duration { return p.identityTTL }

// IssueIdentity issues a short-lived identity JWT for the given user.
// Returns the token string, its jti, and expiration time.
func (p *TokenProvider) IssueIdentity(userID, email string) (token, jti string, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := p.nowF()
	expiresAt = now.Add(p.identityTTL)
	claims := IdentityClaims{
		RegisteredClaims: p.registered(jti, userID, now, expiresAt),
		Email:            email,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

// IssueRefresh issues a long-lived refresh JWT and returns the token, its jti
// (for rotation binding), and expiration time. Caller should store jti on the user's grant.
func (p *TokenProvider) IssueRefresh(userID, email string) (token, jti string, expiresAt time.Time, err error) {
	jti, err = generateJTI()
	if err != nil {
		return "", "", time.Time{}, err
	}
	now := p.nowF()
	expiresAt = now.Add(p.refreshTTL)
	claims := RefreshClaims{
		RegisteredClaims: p.registered(jti, userID, now, expiresAt),
		Email:            email,
	}
	token, err = p.sign(claims)
	return token, jti, expiresAt, err
}

func (p *TokenProvider) registered(jti, subject string, now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

// signingMethod picks RS256 for RSA and ES256 for P-256 keys; nil for anything else.
func signingMethod(pub crypto.PublicKey) jwt.SigningMethod {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		return jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		if k.Curve == elliptic.P256() {
			return jwt.SigningMethodES256
		}
	}
	return nil
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	method := signingMethod(p.privateKey.Public())
	if method == nil {
		return "", ErrInvalidToken
	}
	return jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
}

// ValidateIdentity parses and validates the identity token (signature, exp, iss, aud).
// Returns userID and email, or ErrInvalidToken.
func (p *TokenProvider) ValidateIdentity(tokenString string) (userID, email string, err error) {
	claims := &IdentityClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return "", "", err
	}
	return claims.Subject, claims.Email, nil
}

// ValidateRefresh parses and validates the refresh token (signature, exp, iss, aud).
// Returns jti, userID and email, or ErrInvalidToken / ErrTokenExpired.
func (p *TokenProvider) ValidateRefresh(tokenString string) (jti, userID, email string, err error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return "", "", "", err
	}
	return claims.ID, claims.Subject, claims.Email, nil
}

func (p *TokenProvider) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithTimeFunc(p.nowF),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
