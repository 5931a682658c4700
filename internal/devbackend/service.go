// Package devbackend is a local stand-in for the identity provider and the application
// backend. It speaks the same JSON contracts the console's clients expect so the whole
// login, refresh and step-up password change cycle runs without external services.
package devbackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"recruitpipe/console/internal/devotp"
	"recruitpipe/console/internal/mfa"
	mfadomain "recruitpipe/console/internal/mfa/domain"
	mfarepo "recruitpipe/console/internal/mfa/repository"
	"recruitpipe/console/internal/security"
	sessiondomain "recruitpipe/console/internal/session/domain"
	userdomain "recruitpipe/console/internal/user/domain"
	userrepo "recruitpipe/console/internal/user/repository"
)

// Identity provider errors. Each maps to one provider error code on the wire.
var (
	ErrInvalidEmail        = errors.New("invalid email")
	ErrEmailNotFound       = errors.New("email not found")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrUserDisabled        = errors.New("user disabled")
	ErrTooManyAttempts     = errors.New("too many attempts, try later")
	ErrInvalidRefreshToken = errors.New("invalid or revoked refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrRefreshTokenReuse   = errors.New("refresh token reuse detected; all grants revoked")
)

// Application backend errors.
var (
	ErrUnauthorized    = errors.New("missing or invalid identity token")
	ErrForbidden       = errors.New("email does not belong to the signed-in user")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNoChallenge     = errors.New("no verification code was sent or it has expired")
	ErrCodeMismatch    = errors.New("invalid verification code")
	ErrTooManyOTPTries = errors.New("too many verification attempts; request a new code")
	ErrStepUpRequired  = errors.New("verify the emailed code before changing the password")
	ErrUnknownRole     = errors.New("unknown role")
)

// MaxOTPAttempts is how many wrong codes a challenge tolerates before it must be re-sent.
const MaxOTPAttempts = 5

// DefaultStepUpTTL is how long a verified code authorizes a password change.
const DefaultStepUpTTL = 5 * time.Minute

// Account is a user to create at startup.
type Account struct {
	Role     string
	Email    string
	Password string
	Name     string
}

// Grant is the result of a sign-in or a refresh exchange.
type Grant struct {
	IdentityToken string
	RefreshToken  string
	ExpiresIn     int64
	UserID        string
	Email         string
}

// Dispatch acknowledges an OTP send. Code is only set when dev OTP retrieval is on.
type Dispatch struct {
	Message string
	Code    string
}

// ProfileChange carries editable display fields; nil leaves a field unchanged.
type ProfileChange struct {
	Name     *string `validate:"omitempty,min=1,max=120"`
	Username *string `validate:"omitempty,min=3,max=40,alphanum"`
}

type refreshGrant struct {
	userID    string
	expiresAt time.Time
}

// Options tunes a Service. Zero values pick defaults.
type Options struct {
	// DevOTP, when set, records plaintext codes and returns them in send responses.
	DevOTP       *devotp.Outbox
	Limiter      *SignInLimiter
	ChallengeTTL time.Duration
	StepUpTTL    time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
}

// Service implements the identity provider and backend operations over in-memory repositories.
type Service struct {
	users      userrepo.Repository
	challenges mfarepo.Repository
	tokens     *security.TokenProvider
	hasher     *security.PasswordHasher
	validate   *validator.Validate

	devOTP       *devotp.Outbox
	limiter      *SignInLimiter
	challengeTTL time.Duration
	stepUpTTL    time.Duration
	logger       *slog.Logger
	now          func() time.Time

	mu     sync.Mutex
	grants map[string]refreshGrant // refresh jti -> grant
}

// NewService returns a Service. tokens and hasher are required.
func NewService(users userrepo.Repository, challenges mfarepo.Repository, tokens *security.TokenProvider, hasher *security.PasswordHasher, opts Options) *Service {
	s := &Service{
		users:        users,
		challenges:   challenges,
		tokens:       tokens,
		hasher:       hasher,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		devOTP:       opts.DevOTP,
		limiter:      opts.Limiter,
		challengeTTL: opts.ChallengeTTL,
		stepUpTTL:    opts.StepUpTTL,
		logger:       opts.Logger,
		now:          opts.Now,
		grants:       make(map[string]refreshGrant),
	}
	if s.challengeTTL <= 0 {
		s.challengeTTL = mfarepo.DefaultChallengeTTL
	}
	if s.stepUpTTL <= 0 {
		s.stepUpTTL = DefaultStepUpTTL
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// DevOTPEnabled reports whether plaintext codes are retained.
func (s *Service) DevOTPEnabled() bool { return s.devOTP != nil }

// Seed creates the given accounts. An email that already exists is an error.
func (s *Service) Seed(ctx context.Context, accounts []Account) error {
	for _, a := range accounts {
		email := normalizeEmail(a.Email)
		if err := s.validate.Var(email, "required,email"); err != nil {
			return fmt.Errorf("seed %q: %w", a.Email, ErrInvalidEmail)
		}
		if !sessiondomain.Role(a.Role).Known() {
			return fmt.Errorf("seed %q: %w: %q", email, ErrUnknownRole, a.Role)
		}
		hash, err := s.hasher.Hash(a.Password)
		if err != nil {
			return fmt.Errorf("seed %q: hash password: %w", email, err)
		}
		name := a.Name
		if name == "" {
			name = displayName(email)
		}
		now := s.now()
		u := &userdomain.User{
			ID:           uuid.NewString(),
			Email:        email,
			Name:         name,
			Username:     strings.SplitN(email, "@", 2)[0],
			Role:         a.Role,
			PasswordHash: hash,
			Status:       userdomain.UserStatusActive,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return fmt.Errorf("seed %q: %w", email, err)
		}
		s.logger.Info("seeded user", "user_id", u.ID, "role", u.Role)
	}
	return nil
}

// SignIn verifies email/password and issues an identity and a refresh token.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Grant, error) {
	email = normalizeEmail(email)
	if s.validate.Var(email, "required,email") != nil {
		return nil, ErrInvalidEmail
	}
	if s.limiter != nil && !s.limiter.Allow(email) {
		return nil, ErrTooManyAttempts
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrEmailNotFound
	}
	if u.Status == userdomain.UserStatusDisabled {
		return nil, ErrUserDisabled
	}
	if err := s.hasher.Verify(u.PasswordHash, password); err != nil {
		if !errors.Is(err, security.ErrWrongPassword) {
			s.logger.Error("stored password hash unreadable", "user_id", u.ID, "error", err)
		}
		s.logger.Info("sign-in rejected", "user_id", u.ID)
		return nil, ErrInvalidPassword
	}
	return s.issue(u.ID, u.Email)
}

// Refresh rotates a refresh token. Presenting a token whose grant was already rotated
// away revokes every grant of that user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Grant, error) {
	jti, userID, email, err := s.tokens.ValidateRefresh(refreshToken)
	if errors.Is(err, security.ErrTokenExpired) {
		return nil, ErrRefreshTokenExpired
	}
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	s.mu.Lock()
	g, ok := s.grants[jti]
	if ok {
		delete(s.grants, jti)
	}
	s.mu.Unlock()
	if !ok {
		s.revokeUser(userID)
		s.logger.Warn("refresh token reuse", "user_id", userID)
		return nil, ErrRefreshTokenReuse
	}
	if !s.now().Before(g.expiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Status == userdomain.UserStatusDisabled || u.Email != email {
		return nil, ErrInvalidRefreshToken
	}
	return s.issue(u.ID, u.Email)
}

func (s *Service) issue(userID, email string) (*Grant, error) {
	idToken, _, idExp, err := s.tokens.IssueIdentity(userID, email)
	if err != nil {
		return nil, fmt.Errorf("issue identity token: %w", err)
	}
	rt, jti, rtExp, err := s.tokens.IssueRefresh(userID, email)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	s.mu.Lock()
	s.grants[jti] = refreshGrant{userID: userID, expiresAt: rtExp}
	s.mu.Unlock()

	expiresIn := int64(idExp.Sub(s.now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return &Grant{IdentityToken: idToken, RefreshToken: rt, ExpiresIn: expiresIn, UserID: userID, Email: email}, nil
}

func (s *Service) revokeUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jti, g := range s.grants {
		if g.userID == userID {
			delete(s.grants, jti)
		}
	}
}

// Authenticate resolves an identity token to its user.
func (s *Service) Authenticate(ctx context.Context, identityToken string) (*userdomain.User, error) {
	if identityToken == "" {
		return nil, ErrUnauthorized
	}
	userID, email, err := s.tokens.ValidateIdentity(identityToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Email != email || u.Status == userdomain.UserStatusDisabled {
		return nil, ErrUnauthorized
	}
	return u, nil
}

// SendOTP issues a fresh step-up code for the caller's own email, replacing any earlier one.
func (s *Service) SendOTP(ctx context.Context, caller *userdomain.User, email string) (*Dispatch, error) {
	if err := s.ownEmail(caller, email); err != nil {
		return nil, err
	}
	code, err := mfa.NewCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	now := s.now()
	c := &mfadomain.Challenge{
		ID:        uuid.NewString(),
		Email:     caller.Email,
		CodeHash:  mfa.HashCode(code),
		ExpiresAt: now.Add(s.challengeTTL),
		CreatedAt: now,
	}
	if err := s.challenges.Put(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("step-up code issued", "user_id", caller.ID, "challenge_id", c.ID)

	d := &Dispatch{Message: "Verification code sent to " + caller.Email}
	if s.devOTP != nil {
		s.devOTP.Record(devotp.Message{Email: caller.Email, Code: code, SentAt: s.now(), ExpiresAt: c.ExpiresAt})
		d.Code = code
	}
	return d, nil
}

// VerifyOTP checks code against the caller's live challenge.
func (s *Service) VerifyOTP(ctx context.Context, caller *userdomain.User, email, code string) error {
	if err := s.ownEmail(caller, email); err != nil {
		return err
	}
	if s.validate.Var(code, "len=6,numeric") != nil {
		return fmt.Errorf("%w: code must be 6 digits", ErrInvalidInput)
	}
	c, err := s.challenges.GetByEmail(ctx, caller.Email)
	if err != nil {
		return err
	}
	now := s.now()
	if c == nil || !now.Before(c.ExpiresAt) {
		return ErrNoChallenge
	}
	if c.Attempts >= MaxOTPAttempts {
		return ErrTooManyOTPTries
	}
	if !mfa.CodeMatches(code, c.CodeHash) {
		c.Attempts++
		if err := s.challenges.Put(ctx, c); err != nil {
			return err
		}
		return ErrCodeMismatch
	}
	c.VerifiedAt = &now
	if err := s.challenges.Put(ctx, c); err != nil {
		return err
	}
	if s.devOTP != nil {
		s.devOTP.Consume(caller.Email)
	}
	s.logger.Info("step-up verified", "user_id", caller.ID, "challenge_id", c.ID)
	return nil
}

// ResetPassword sets a new password after a recent successful VerifyOTP. The challenge is
// consumed and every refresh grant of the user is revoked.
func (s *Service) ResetPassword(ctx context.Context, caller *userdomain.User, email, newPassword string) error {
	if err := s.ownEmail(caller, email); err != nil {
		return err
	}
	c, err := s.challenges.GetByEmail(ctx, caller.Email)
	if err != nil {
		return err
	}
	if c == nil || !c.Verified(s.now(), s.stepUpTTL) {
		return ErrStepUpRequired
	}
	if err := security.ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	caller.PasswordHash = hash
	caller.UpdatedAt = s.now()
	if err := s.users.Update(ctx, caller); err != nil {
		return err
	}
	if err := s.challenges.Delete(ctx, caller.Email); err != nil {
		return err
	}
	s.revokeUser(caller.ID)
	s.logger.Info("password changed", "user_id", caller.ID)
	return nil
}

// UpdateProfile edits the caller's display fields and returns the stored user.
func (s *Service) UpdateProfile(ctx context.Context, caller *userdomain.User, ch ProfileChange) (*userdomain.User, error) {
	if ch.Name != nil {
		v := strings.TrimSpace(*ch.Name)
		ch.Name = &v
	}
	if ch.Username != nil {
		v := strings.TrimSpace(*ch.Username)
		ch.Username = &v
	}
	if err := s.validate.Struct(ch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if ch.Name != nil {
		caller.Name = *ch.Name
	}
	if ch.Username != nil {
		caller.Username = *ch.Username
	}
	caller.UpdatedAt = s.now()
	if err := s.users.Update(ctx, caller); err != nil {
		return nil, err
	}
	return caller, nil
}

// DevCode returns the live code last sent to the caller, when dev OTP retrieval is on.
func (s *Service) DevCode(caller *userdomain.User) (devotp.Message, bool) {
	if s.devOTP == nil || caller == nil {
		return devotp.Message{}, false
	}
	return s.devOTP.Latest(caller.Email)
}

func (s *Service) ownEmail(caller *userdomain.User, email string) error {
	if caller == nil {
		return ErrUnauthorized
	}
	if normalizeEmail(email) != caller.Email {
		return ErrForbidden
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// displayName turns "ava.stone@example.com" into "Ava Stone".
func displayName(email string) string {
	local := strings.SplitN(email, "@", 2)[0]
	parts := strings.FieldsFunc(local, func(r rune) bool { return r == '.' || r == '_' || r == '-' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
