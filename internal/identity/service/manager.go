// Package service is the session manager: two-phase login, logout, token refresh and the
// derived auth views every other component reads.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"recruitpipe/console/internal/audit"
	auditdomain "recruitpipe/console/internal/audit/domain"
	"recruitpipe/console/internal/backend"
	identitydomain "recruitpipe/console/internal/identity/domain"
	"recruitpipe/console/internal/identity/provider"
	"recruitpipe/console/internal/session/domain"
	"recruitpipe/console/internal/session/store"
)

const instrumentationName = "recruitpipe/console/internal/identity/service"

// DefaultRefreshSkew is how long before expiry FreshAuthHeaders refreshes the identity token.
const DefaultRefreshSkew = time.Minute

// IdentityProvider is the external credential check.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*identitydomain.Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (*identitydomain.Credentials, error)
}

// Backend verifies identity tokens and edits the profile.
type Backend interface {
	VerifyLogin(ctx context.Context, identityToken string) (*backend.Profile, error)
	UpdateProfile(ctx context.Context, upd backend.ProfileUpdate) (*backend.Profile, error)
}

// Options tunes a Manager. Zero values pick defaults.
type Options struct {
	RefreshSkew time.Duration
	Logger      *slog.Logger
	Audit       audit.AuditLogger
	Tracer      trace.Tracer
	Meter       metric.Meter
	Now         func() time.Time
}

// Manager owns the credential store. Callers only ever see derived views.
type Manager struct {
	store    *store.Store
	idp      IdentityProvider
	backend  Backend
	validate *validator.Validate
	audit    audit.AuditLogger
	logger   *slog.Logger
	tracer   trace.Tracer
	attempts metric.Int64Counter
	skew     time.Duration
	nowF     func() time.Time

	loggingIn atomic.Bool
	refreshes singleflight.Group
}

// NewManager returns a Manager over st. Call Init before use to restore a persisted session.
func NewManager(st *store.Store, idp IdentityProvider, be Backend, opts Options) *Manager {
	m := &Manager{
		store:    st,
		idp:      idp,
		backend:  be,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		audit:    opts.Audit,
		logger:   opts.Logger,
		tracer:   opts.Tracer,
		skew:     opts.RefreshSkew,
		nowF:     opts.Now,
	}
	if m.audit == nil {
		m.audit = audit.Nop{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer(instrumentationName)
	}
	if m.skew <= 0 {
		m.skew = DefaultRefreshSkew
	}
	if m.nowF == nil {
		m.nowF = func() time.Time { return time.Now().UTC() }
	}
	meter := opts.Meter
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	counter, err := meter.Int64Counter("session.login.attempts",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		m.logger.Warn("login counter unavailable", "error", err)
	}
	m.attempts = counter
	return m
}

// Init restores the persisted session, if any.
func (m *Manager) Init(ctx context.Context) domain.Current {
	return m.store.Restore(ctx)
}

// Close releases the session slot.
func (m *Manager) Close() error {
	return m.store.Close()
}

type loginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// Login runs the two-phase protocol: provider sign-in, then backend verification of the identity
// token. The credential store is written once, only after both phases succeed.
func (m *Manager) Login(ctx context.Context, email, password string) (*domain.SessionRecord, error) {
	in := loginInput{Email: strings.ToLower(strings.TrimSpace(email)), Password: password}
	if err := m.validate.Struct(in); err != nil {
		m.recordAttempt(ctx, "invalid_input")
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !m.loggingIn.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer m.loggingIn.Store(false)

	ctx, span := m.tracer.Start(ctx, "session.Login")
	defer span.End()

	creds, err := m.signIn(ctx, in.Email, in.Password)
	if err != nil {
		m.failLogin(ctx, span, in.Email, "identity", err)
		return nil, err
	}
	prof, err := m.verify(ctx, creds.IdentityToken)
	if err != nil {
		m.failLogin(ctx, span, in.Email, "backend", err)
		return nil, err
	}

	rec := mergeProfile(creds, prof, m.nowF())
	if err := m.store.Save(ctx, rec); err != nil {
		m.failLogin(ctx, span, in.Email, "store", err)
		return nil, fmt.Errorf("save session: %w", err)
	}
	m.recordAttempt(ctx, "success")
	m.audit.LogEvent(ctx, auditdomain.ActionLoginSuccess, rec.Profile.Email, string(rec.Role))
	m.logger.InfoContext(ctx, "login succeeded", "email", rec.Profile.Email, "role", rec.Role)
	return rec.Clone(), nil
}

func (m *Manager) signIn(ctx context.Context, email, password string) (*identitydomain.Credentials, error) {
	ctx, span := m.tracer.Start(ctx, "session.Login.identity")
	defer span.End()
	creds, err := m.idp.SignInWithPassword(ctx, email, password)
	if err != nil {
		var rej *provider.RejectedError
		if errors.As(err, &rej) {
			return nil, &IdentityRejectedError{Code: rej.Code}
		}
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnreachable, err)
	}
	if strings.TrimSpace(creds.IdentityToken) == "" {
		return nil, fmt.Errorf("%w: empty identity token", ErrIdentityUnreachable)
	}
	return creds, nil
}

func (m *Manager) verify(ctx context.Context, identityToken string) (*backend.Profile, error) {
	ctx, span := m.tracer.Start(ctx, "session.Login.backend")
	defer span.End()
	prof, err := m.backend.VerifyLogin(ctx, identityToken)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			return nil, &BackendRejectedError{Status: apiErr.Status, Message: apiErr.Message}
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
	}
	return prof, nil
}

func (m *Manager) failLogin(ctx context.Context, span trace.Span, email, phase string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, phase)
	outcome := phase + "_rejected"
	if errors.Is(err, ErrIdentityUnreachable) || errors.Is(err, ErrBackendUnreachable) {
		outcome = phase + "_unreachable"
	}
	m.recordAttempt(ctx, outcome)
	m.audit.LogEvent(ctx, auditdomain.ActionLoginFailure, email, outcome)
	m.logger.WarnContext(ctx, "login failed", "email", email, "phase", phase, "error", err)
}

func (m *Manager) recordAttempt(ctx context.Context, outcome string) {
	if m.attempts == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func mergeProfile(creds *identitydomain.Credentials, prof *backend.Profile, now time.Time) *domain.SessionRecord {
	iat, exp := domain.TokenTimes(creds.IdentityToken, creds.ExpiresIn, now)
	email := prof.Email
	if email == "" {
		email = creds.Email
	}
	return &domain.SessionRecord{
		IdentityToken: creds.IdentityToken,
		RefreshToken:  creds.RefreshToken,
		Role:          domain.Role(prof.Role),
		Profile: domain.Profile{
			Name:     prof.Name,
			Email:    email,
			Username: prof.Username,
		},
		IssuedAt:  iat,
		ExpiresAt: exp,
	}
}

// Logout destroys the session. It never touches the network and is safe to repeat.
func (m *Manager) Logout(ctx context.Context) error {
	rec := m.store.Record()
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if rec != nil {
		m.audit.LogEvent(ctx, auditdomain.ActionLogout, rec.Profile.Email, "")
	}
	return nil
}

// IdentityToken returns the current identity token; false when logged out.
func (m *Manager) IdentityToken() (string, bool) {
	rec := m.store.Record()
	if rec == nil {
		return "", false
	}
	return rec.IdentityToken, true
}

// AuthHeaders returns the bearer header for the current token, or an empty map.
func (m *Manager) AuthHeaders() map[string]string {
	tok, ok := m.IdentityToken()
	if !ok {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + tok}
}

// IsAuthenticated reports whether a usable session exists.
func (m *Manager) IsAuthenticated() bool {
	_, ok := m.store.Current().(domain.Active)
	return ok
}

// Role returns the session's role tag, or "" when logged out.
func (m *Manager) Role() domain.Role {
	if rec := m.store.Record(); rec != nil {
		return rec.Role
	}
	return ""
}

// Profile returns the display fields of the session.
func (m *Manager) Profile() (domain.Profile, bool) {
	rec := m.store.Record()
	if rec == nil {
		return domain.Profile{}, false
	}
	return rec.Profile, true
}

// ExpiresAt returns when the identity token expires; false when logged out.
func (m *Manager) ExpiresAt() (time.Time, bool) {
	rec := m.store.Record()
	if rec == nil {
		return time.Time{}, false
	}
	return rec.ExpiresAt, true
}

// FreshAuthHeaders is AuthHeaders with a refresh first when the token is about to expire.
// A transport failure during refresh still yields the current headers; an expired session yields
// an empty map and ErrSessionExpired.
func (m *Manager) FreshAuthHeaders(ctx context.Context) (map[string]string, error) {
	rec := m.store.Record()
	if rec == nil {
		return map[string]string{}, nil
	}
	if rec.RefreshToken != "" && rec.ExpiresWithin(m.nowF(), m.skew) {
		if _, err := m.shared(ctx, false); err != nil {
			if errors.Is(err, ErrSessionExpired) {
				return map[string]string{}, err
			}
			m.logger.WarnContext(ctx, "token refresh failed, using current token", "error", err)
		}
	}
	return m.AuthHeaders(), nil
}

// Refresh exchanges the refresh token for a new identity token. Concurrent calls share one exchange.
// A provider rejection destroys the session.
func (m *Manager) Refresh(ctx context.Context) (*domain.SessionRecord, error) {
	return m.shared(ctx, true)
}

// shared runs at most one exchange at a time. Unless forced, a record that is no longer near
// expiry is returned as is, so callers that lost the race do not exchange again.
func (m *Manager) shared(ctx context.Context, force bool) (*domain.SessionRecord, error) {
	v, err, _ := m.refreshes.Do("refresh", func() (any, error) {
		if !force {
			if cur := m.store.Record(); cur != nil && !cur.ExpiresWithin(m.nowF(), m.skew) {
				return cur, nil
			}
		}
		return m.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.SessionRecord).Clone(), nil
}

func (m *Manager) refresh(ctx context.Context) (*domain.SessionRecord, error) {
	ctx, span := m.tracer.Start(ctx, "session.Refresh")
	defer span.End()

	rec := m.store.Record()
	if rec == nil {
		return nil, ErrNotAuthenticated
	}
	if rec.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrIdentityUnreachable)
	}
	creds, err := m.idp.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, provider.ErrRejected) {
			if clearErr := m.store.Clear(ctx); clearErr != nil {
				m.logger.WarnContext(ctx, "clear expired session", "error", clearErr)
			}
			m.audit.LogEvent(ctx, auditdomain.ActionSessionExpired, rec.Profile.Email, "")
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrIdentityUnreachable, err)
	}

	iat, exp := domain.TokenTimes(creds.IdentityToken, creds.ExpiresIn, m.nowF())
	updated, err := m.store.Update(ctx, func(cur *domain.SessionRecord) {
		// Another login replaced the session while the exchange was in flight.
		if cur.RefreshToken != rec.RefreshToken {
			return
		}
		cur.IdentityToken = creds.IdentityToken
		if creds.RefreshToken != "" {
			cur.RefreshToken = creds.RefreshToken
		}
		cur.IssuedAt = iat
		cur.ExpiresAt = exp
	})
	if err != nil {
		if errors.Is(err, store.ErrNoSession) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("save refreshed session: %w", err)
	}
	m.audit.LogEvent(ctx, auditdomain.ActionTokenRefreshed, updated.Profile.Email, "")
	return updated, nil
}

// ProfileUpdate carries the editable display fields; nil leaves a field unchanged.
type ProfileUpdate struct {
	Name     *string `validate:"omitempty,min=1,max=120"`
	Username *string `validate:"omitempty,min=3,max=40,alphanum"`
}

// UpdateProfile saves display fields on the backend and merges the answer into the session.
// The role is never taken from this answer.
func (m *Manager) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*domain.SessionRecord, error) {
	if !m.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if err := m.validate.Struct(upd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	prof, err := m.backend.UpdateProfile(ctx, backend.ProfileUpdate{Name: upd.Name, Username: upd.Username})
	if err != nil {
		var apiErr *backend.APIError
		switch {
		case errors.As(err, &apiErr):
			return nil, &BackendRejectedError{Status: apiErr.Status, Message: apiErr.Message}
		case errors.Is(err, backend.ErrNotAuthenticated):
			return nil, ErrNotAuthenticated
		default:
			return nil, fmt.Errorf("%w: %v", ErrBackendUnreachable, err)
		}
	}
	updated, err := m.store.Update(ctx, func(cur *domain.SessionRecord) {
		if prof.Name != "" {
			cur.Profile.Name = prof.Name
		}
		if prof.Username != "" {
			cur.Profile.Username = prof.Username
		}
		if prof.Email != "" {
			cur.Profile.Email = prof.Email
		}
	})
	if err != nil {
		if errors.Is(err, store.ErrNoSession) {
			return nil, ErrNotAuthenticated
		}
		return nil, fmt.Errorf("save profile: %w", err)
	}
	m.audit.LogEvent(ctx, auditdomain.ActionProfileUpdated, updated.Profile.Email, "")
	return updated, nil
}
