// Package provider is the client for the external identity provider: password sign-in and
// refresh-token exchange.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"recruitpipe/console/internal/identity/domain"
	"recruitpipe/console/internal/platform/httpclient"
)

var (
	// ErrRejected matches every *RejectedError.
	ErrRejected = errors.New("identity provider rejected the request")
	// ErrUnreachable wraps transport failures and unparseable responses.
	ErrUnreachable = errors.New("identity provider unreachable")
)

// RejectedError carries the provider's machine-readable code.
type RejectedError struct {
	Status int
	Code   domain.ErrorCode
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("identity provider rejected request: %s (status %d)", e.Code, e.Status)
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// Config points the client at the provider.
type Config struct {
	// SignInURL is the password sign-in endpoint (…/v1/accounts:signInWithPassword).
	SignInURL string
	// TokenURL is the refresh-token exchange endpoint (…/v1/token).
	TokenURL string
	// APIKey is sent as the key query parameter; empty omits it.
	APIKey string
}

// Client talks to the identity provider over HTTPS.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a provider client. httpClient may be nil for the default transport.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = httpclient.New(0)
	}
	return &Client{cfg: cfg, http: httpClient}
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	IDToken      string      `json:"idToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    json.Number `json:"expiresIn"`
	LocalID      string      `json:"localId"`
	Email        string      `json:"email"`
}

type refreshRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	IDToken      string      `json:"id_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    json.Number `json:"expires_in"`
	UserID       string      `json:"user_id"`
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignInWithPassword verifies email/password and returns identity and refresh tokens.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domain.Credentials, error) {
	resp, err := httpclient.PostJSON(ctx, c.http, c.endpoint(c.cfg.SignInURL), nil, signInRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if !resp.OK() {
		return nil, rejection(resp)
	}
	var out signInResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding sign-in response: %v", ErrUnreachable, err)
	}
	if out.IDToken == "" {
		return nil, fmt.Errorf("%w: sign-in response has no identity token", ErrUnreachable)
	}
	return &domain.Credentials{
		IdentityToken: out.IDToken,
		RefreshToken:  out.RefreshToken,
		ExpiresIn:     seconds(out.ExpiresIn),
		UserID:        out.LocalID,
		Email:         out.Email,
	}, nil
}

// Refresh exchanges a refresh token for a new identity token (and possibly a rotated refresh token).
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.Credentials, error) {
	resp, err := httpclient.PostJSON(ctx, c.http, c.endpoint(c.cfg.TokenURL), nil, refreshRequest{
		GrantType:    "refresh_token",
		RefreshToken: refreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if !resp.OK() {
		return nil, rejection(resp)
	}
	var out refreshResponse
	if err := resp.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding token response: %v", ErrUnreachable, err)
	}
	if out.IDToken == "" {
		return nil, fmt.Errorf("%w: token response has no identity token", ErrUnreachable)
	}
	rt := out.RefreshToken
	if rt == "" {
		rt = refreshToken
	}
	return &domain.Credentials{
		IdentityToken: out.IDToken,
		RefreshToken:  rt,
		ExpiresIn:     seconds(out.ExpiresIn),
		UserID:        out.UserID,
	}, nil
}

func (c *Client) endpoint(raw string) string {
	if c.cfg.APIKey == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	q.Set("key", c.cfg.APIKey)
	u.RawQuery = q.Encode()
	return u.String()
}

// rejection turns a non-2xx response into a *RejectedError. Every 5xx counts as unreachable,
// whatever code it carries: the provider failed rather than judged the credentials.
func rejection(resp *httpclient.Response) error {
	var env errorEnvelope
	_ = json.Unmarshal(resp.Body, &env)
	if resp.Status >= http.StatusInternalServerError {
		if env.Error.Message != "" {
			return fmt.Errorf("%w: status %d: %s", ErrUnreachable, resp.Status, env.Error.Message)
		}
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.Status)
	}
	return &RejectedError{Status: resp.Status, Code: ParseCode(env.Error.Message)}
}

// ParseCode extracts the code from a provider message such as
// "TOO_MANY_ATTEMPTS_TRY_LATER : Access to this account has been temporarily disabled".
func ParseCode(message string) domain.ErrorCode {
	message = strings.TrimSpace(message)
	if i := strings.Index(message, " "); i >= 0 {
		message = message[:i]
	}
	if message == "" {
		return domain.CodeUnknown
	}
	return domain.ErrorCode(message)
}

func seconds(n json.Number) int64 {
	v, err := n.Int64()
	if err != nil || v < 0 {
		return 0
	}
	return v
}
