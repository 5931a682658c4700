// Package backend is the client for the application backend's identity endpoints:
// login verification, step-up OTP, password change and profile edits.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"recruitpipe/console/internal/platform/httpclient"
)

const (
	pathLogin         = "/api/auth/login"
	pathSendOTP       = "/api/auth/send-otp"
	pathVerifyOTP     = "/api/auth/verify-otp"
	pathResetPassword = "/api/auth/reset-password"
	pathProfile       = "/api/users/profile"
)

var (
	// ErrRejected matches every *APIError: the backend answered and refused.
	ErrRejected = errors.New("backend rejected the request")
	// ErrUnreachable wraps transport failures and 5xx answers.
	ErrUnreachable = errors.New("backend unreachable")
	// ErrNotAuthenticated is returned before any request when no auth headers are available. The
	// step-up flow also wraps 401 answers with it.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// APIError is a non-2xx answer with the backend's message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend rejected request (status %d)", e.Status)
	}
	return fmt.Sprintf("backend rejected request (status %d): %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return ErrRejected }

// HeaderSource yields the headers for authorized calls. The session manager is the only implementation
// outside tests; it may refresh the identity token before answering.
type HeaderSource interface {
	FreshAuthHeaders(ctx context.Context) (map[string]string, error)
}

// Profile is the backend's view of the signed-in user.
type Profile struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// OTPDispatch acknowledges an OTP send. DevCode is only set by development backends.
type OTPDispatch struct {
	Message string `json:"message"`
	DevCode string `json:"otp,omitempty"`
}

// ProfileUpdate carries the editable display fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Client calls the application backend.
type Client struct {
	baseURL string
	http    *http.Client
	headers HeaderSource
}

// NewClient returns a backend client rooted at baseURL. headers may be nil until the session
// manager exists; SetHeaderSource completes the wiring.
func NewClient(baseURL string, httpClient *http.Client, headers HeaderSource) *Client {
	if httpClient == nil {
		httpClient = httpclient.New(0)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, headers: headers}
}

// SetHeaderSource sets the source of authorized-call headers.
func (c *Client) SetHeaderSource(h HeaderSource) { c.headers = h }

// VerifyLogin exchanges an identity token for the backend's profile/role payload.
func (c *Client) VerifyLogin(ctx context.Context, identityToken string) (*Profile, error) {
	var out struct {
		Profile
		User *Profile `json:"user"`
	}
	if err := c.call(ctx, http.MethodPost, pathLogin, nil, map[string]string{"identityToken": identityToken}, &out); err != nil {
		return nil, err
	}
	p := out.Profile
	if out.User != nil {
		p = *out.User
	}
	return &p, nil
}

// SendOTP asks the backend to email a one-time code to email.
func (c *Client) SendOTP(ctx context.Context, email string) (*OTPDispatch, error) {
	h, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	var out OTPDispatch
	if err := c.call(ctx, http.MethodPost, pathSendOTP, h, map[string]string{"email": email}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyOTP checks code for email. A wrong code is an *APIError.
func (c *Client) VerifyOTP(ctx context.Context, email, code string) error {
	h, err := c.authHeaders(ctx)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, pathVerifyOTP, h, map[string]string{"email": email, "otp": code}, nil)
}

// ResetPassword sets a new password for email after step-up verification.
func (c *Client) ResetPassword(ctx context.Context, email, newPassword string) error {
	h, err := c.authHeaders(ctx)
	if err != nil {
		return err
	}
	return c.call(ctx, http.MethodPost, pathResetPassword, h, map[string]string{"email": email, "newPassword": newPassword}, nil)
}

// UpdateProfile edits display fields and returns the stored profile.
func (c *Client) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*Profile, error) {
	h, err := c.authHeaders(ctx)
	if err != nil {
		return nil, err
	}
	var out Profile
	if err := c.call(ctx, http.MethodPut, pathProfile, h, upd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) authHeaders(ctx context.Context) (map[string]string, error) {
	if c.headers == nil {
		return nil, ErrNotAuthenticated
	}
	h, err := c.headers.FreshAuthHeaders(ctx)
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return nil, ErrNotAuthenticated
	}
	return h, nil
}

func (c *Client) call(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	resp, err := httpclient.Do(ctx, c.http, method, c.baseURL+path, headers, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.Status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrUnreachable, resp.Status)
	}
	if !resp.OK() {
		var m messageBody
		_ = resp.Decode(&m)
		msg := m.Message
		if msg == "" {
			msg = m.Error
		}
		return &APIError{Status: resp.Status, Message: msg}
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrUnreachable, path, err)
	}
	return nil
}
