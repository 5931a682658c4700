// Package stepup is the step-up verification flow that re-proves a signed-in user's identity
// with an emailed one-time code before a password change.
//
// Phases only move forward (REQUEST, VERIFY, RESET, DONE). A rejected code keeps the flow in
// VERIFY with every digit cleared, and Restart returns to REQUEST from anywhere.
package stepup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"recruitpipe/console/internal/audit"
	auditdomain "recruitpipe/console/internal/audit/domain"
	"recruitpipe/console/internal/backend"
	"recruitpipe/console/internal/security"
	"recruitpipe/console/internal/session/domain"
)

// CodeLength is the number of digit slots.
const CodeLength = 6

// DefaultCooldown is the time between two OTP sends.
const DefaultCooldown = 60 * time.Second

var (
	ErrClosed           = errors.New("step-up flow closed")
	ErrWrongPhase       = errors.New("operation not allowed in the current phase")
	ErrBusy             = errors.New("request already in progress")
	ErrNoTargetEmail    = errors.New("session has no email to send the code to")
	ErrCooldownActive   = errors.New("wait before requesting another code")
	ErrIncompleteCode   = errors.New("enter all six digits")
	ErrCodeRejected     = errors.New("verification code rejected")
	// ErrForbidden means the backend refused the target email for this session.
	ErrForbidden        = errors.New("not allowed to verify this email")
	ErrPolicyViolation  = security.ErrPasswordPolicy
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrSuperseded is returned when the flow was restarted, or moved past VERIFY, while the
	// request was in flight; the result was discarded.
	ErrSuperseded = errors.New("flow changed during request")
)

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

// Phase is the flow's position.
type Phase int

const (
	PhaseRequest Phase = iota
	PhaseVerify
	PhaseReset
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseRequest:
		return "REQUEST"
	case PhaseVerify:
		return "VERIFY"
	case PhaseReset:
		return "RESET"
	case PhaseDone:
		return "DONE"
	}
	return "UNKNOWN"
}

// State is a snapshot of the flow for rendering.
type State struct {
	Phase Phase
	// Email is the address the code was sent to.
	Email string
	Code  [CodeLength]string
	// Focus is the slot that should hold the cursor.
	Focus                    int
	CooldownRemaining        int
	CandidatePassword        string
	CandidatePasswordConfirm string
	Sending                  bool
	Verifying                bool
	Saving                   bool
	// DevCode is the plaintext code a development backend returned; empty otherwise.
	DevCode string
	// Err is the last failure, cleared by the next successful step.
	Err error
}

// CanResend reports whether Send is currently allowed.
func (s State) CanResend() bool {
	return (s.Phase == PhaseRequest || s.Phase == PhaseVerify) && !s.Sending && s.CooldownRemaining == 0
}

// Backend is the application backend's step-up surface.
type Backend interface {
	SendOTP(ctx context.Context, email string) (*backend.OTPDispatch, error)
	VerifyOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, newPassword string) error
}

// ProfileSource yields the signed-in user's profile; the session manager implements it.
type ProfileSource interface {
	Profile() (domain.Profile, bool)
}

// Options tunes a Flow. Zero values pick defaults.
type Options struct {
	Cooldown time.Duration
	// DevAutofill pastes a development backend's plaintext code into the slots. Only set it
	// from configuration that refuses to enable it in production.
	DevAutofill bool
	Clock       Clock
	Logger      *slog.Logger
	Audit       audit.AuditLogger
	// OnChange is called with a fresh snapshot after every state change, outside the lock.
	OnChange func(State)
}

type cooldown struct {
	ticker Ticker
	stop   chan struct{}
}

// Flow is one step-up verification attempt. It is safe for concurrent use.
type Flow struct {
	backend Backend
	profile ProfileSource
	opts    Options

	mu     sync.Mutex
	state  State
	cd     *cooldown
	epoch  uint64
	closed bool
}

// New returns a flow in REQUEST.
func New(be Backend, profile ProfileSource, opts Options) *Flow {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Audit == nil {
		opts.Audit = audit.Nop{}
	}
	return &Flow{backend: be, profile: profile, opts: opts}
}

// Snapshot returns a copy of the current state.
func (f *Flow) Snapshot() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Send dispatches a code to the session's email. It serves both the first send and every resend.
func (f *Flow) Send(ctx context.Context) error {
	f.mu.Lock()
	if err := f.usableLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.state.Phase != PhaseRequest && f.state.Phase != PhaseVerify {
		f.mu.Unlock()
		return ErrWrongPhase
	}
	if f.state.Sending {
		f.mu.Unlock()
		return ErrBusy
	}
	if f.state.CooldownRemaining > 0 {
		f.mu.Unlock()
		return ErrCooldownActive
	}
	prof, ok := f.profile.Profile()
	email := strings.TrimSpace(prof.Email)
	if !ok || email == "" {
		f.state.Err = ErrNoTargetEmail
		f.mu.Unlock()
		f.notify()
		return ErrNoTargetEmail
	}
	f.state.Sending = true
	epoch := f.epoch
	f.mu.Unlock()
	f.notify()

	dispatch, err := f.backend.SendOTP(ctx, email)

	f.mu.Lock()
	f.state.Sending = false
	// A verify that completed meanwhile moved the flow past VERIFY; a late dispatch must not pull it back.
	if f.closed || f.epoch != epoch || (f.state.Phase != PhaseRequest && f.state.Phase != PhaseVerify) {
		f.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		f.state.Err = err
		f.mu.Unlock()
		f.notify()
		f.opts.Logger.WarnContext(ctx, "step-up code dispatch failed", "error", err)
		return fmt.Errorf("send code: %w", err)
	}
	f.state.Phase = PhaseVerify
	f.state.Email = email
	f.state.Err = nil
	f.clearCodeLocked()
	f.state.DevCode = ""
	if f.opts.DevAutofill && sixDigits.MatchString(dispatch.DevCode) {
		f.state.DevCode = dispatch.DevCode
		f.fillLocked(dispatch.DevCode)
	}
	f.startCooldownLocked()
	f.mu.Unlock()
	f.notify()

	f.opts.Audit.LogEvent(ctx, auditdomain.ActionStepUpOTPSent, email, "")
	return nil
}

// Input types s into slot. An empty s clears the slot; a single digit fills it and moves focus
// to the next slot. Anything else is rejected.
func (f *Flow) Input(slot int, s string) bool {
	f.mu.Lock()
	if f.closed || f.state.Phase != PhaseVerify || slot < 0 || slot >= CodeLength {
		f.mu.Unlock()
		return false
	}
	switch {
	case s == "":
		f.state.Code[slot] = ""
		f.state.Focus = slot
	case len(s) == 1 && s[0] >= '0' && s[0] <= '9':
		f.state.Code[slot] = s
		f.state.Focus = slot
		if slot+1 < CodeLength {
			f.state.Focus = slot + 1
		}
	default:
		f.mu.Unlock()
		return false
	}
	f.mu.Unlock()
	f.notify()
	return true
}

// Backspace clears slot, or moves focus to the previous slot when slot is already empty.
func (f *Flow) Backspace(slot int) {
	f.mu.Lock()
	if f.closed || f.state.Phase != PhaseVerify || slot < 0 || slot >= CodeLength {
		f.mu.Unlock()
		return
	}
	if f.state.Code[slot] != "" {
		f.state.Code[slot] = ""
		f.state.Focus = slot
	} else if slot > 0 {
		f.state.Focus = slot - 1
	}
	f.mu.Unlock()
	f.notify()
}

// Paste fills every slot at once when s is exactly six digits (surrounding whitespace ignored),
// leaving focus on the last slot. Any other text places nothing.
func (f *Flow) Paste(slot int, s string) bool {
	s = strings.TrimSpace(s)
	f.mu.Lock()
	if f.closed || f.state.Phase != PhaseVerify || slot < 0 || slot >= CodeLength || !sixDigits.MatchString(s) {
		f.mu.Unlock()
		return false
	}
	f.fillLocked(s)
	f.mu.Unlock()
	f.notify()
	return true
}

// Code returns the slots concatenated.
func (f *Flow) Code() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codeLocked()
}

// Complete reports whether all slots hold a digit.
func (f *Flow) Complete() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.codeLocked()) == CodeLength
}

// Verify submits the entered code. A 400 or 429 answer is a rejected code: every slot is cleared
// and the flow stays in VERIFY. A 401 or 403 answer, or a transport failure, keeps the digits.
func (f *Flow) Verify(ctx context.Context) error {
	f.mu.Lock()
	if err := f.usableLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.state.Phase != PhaseVerify {
		f.mu.Unlock()
		return ErrWrongPhase
	}
	if f.state.Verifying {
		f.mu.Unlock()
		return ErrBusy
	}
	code := f.codeLocked()
	if len(code) != CodeLength {
		f.state.Err = ErrIncompleteCode
		f.mu.Unlock()
		f.notify()
		return ErrIncompleteCode
	}
	email := f.state.Email
	f.state.Verifying = true
	epoch := f.epoch
	f.mu.Unlock()
	f.notify()

	err := f.backend.VerifyOTP(ctx, email, code)

	f.mu.Lock()
	f.state.Verifying = false
	if f.closed || f.epoch != epoch {
		f.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		var apiErr *backend.APIError
		switch {
		case errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusTooManyRequests):
			f.clearCodeLocked()
			f.state.DevCode = ""
			err = fmt.Errorf("%w: %w", ErrCodeRejected, err)
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized:
			err = fmt.Errorf("%w: %w", backend.ErrNotAuthenticated, err)
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden:
			err = fmt.Errorf("%w: %w", ErrForbidden, err)
		default:
			err = fmt.Errorf("verify code: %w", err)
		}
		f.state.Err = err
		f.mu.Unlock()
		f.notify()
		if errors.Is(err, ErrCodeRejected) {
			f.opts.Audit.LogEvent(ctx, auditdomain.ActionStepUpRejected, email, "")
		}
		return err
	}
	f.state.Phase = PhaseReset
	f.state.Err = nil
	f.clearCodeLocked()
	f.state.DevCode = ""
	f.stopCooldownLocked()
	f.state.CooldownRemaining = 0
	f.mu.Unlock()
	f.notify()

	f.opts.Audit.LogEvent(ctx, auditdomain.ActionStepUpVerified, email, "")
	return nil
}

// SetPassword records the candidate password and its confirmation.
func (f *Flow) SetPassword(password, confirm string) error {
	f.mu.Lock()
	if err := f.usableLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.state.Phase != PhaseReset {
		f.mu.Unlock()
		return ErrWrongPhase
	}
	f.state.CandidatePassword = password
	f.state.CandidatePasswordConfirm = confirm
	f.mu.Unlock()
	f.notify()
	return nil
}

// PolicyReport evaluates the candidate password for live feedback.
func (f *Flow) PolicyReport() []security.RuleResult {
	f.mu.Lock()
	pw := f.state.CandidatePassword
	f.mu.Unlock()
	return security.EvaluatePassword(pw)
}

// Reset submits the new password. Policy and confirmation are checked locally first and block
// the request. On failure the flow stays in RESET with the fields kept.
func (f *Flow) Reset(ctx context.Context) error {
	f.mu.Lock()
	if err := f.usableLocked(); err != nil {
		f.mu.Unlock()
		return err
	}
	if f.state.Phase != PhaseReset {
		f.mu.Unlock()
		return ErrWrongPhase
	}
	if f.state.Saving {
		f.mu.Unlock()
		return ErrBusy
	}
	pw, confirm := f.state.CandidatePassword, f.state.CandidatePasswordConfirm
	if err := security.ValidatePassword(pw); err != nil {
		f.state.Err = err
		f.mu.Unlock()
		f.notify()
		return err
	}
	if !security.PasswordsMatch(pw, confirm) {
		f.state.Err = ErrPasswordMismatch
		f.mu.Unlock()
		f.notify()
		return ErrPasswordMismatch
	}
	email := f.state.Email
	f.state.Saving = true
	epoch := f.epoch
	f.mu.Unlock()
	f.notify()

	err := f.backend.ResetPassword(ctx, email, pw)

	f.mu.Lock()
	f.state.Saving = false
	if f.closed || f.epoch != epoch {
		f.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		err = fmt.Errorf("change password: %w", err)
		f.state.Err = err
		f.mu.Unlock()
		f.notify()
		return err
	}
	f.state.Phase = PhaseDone
	f.state.Err = nil
	f.state.CandidatePassword = ""
	f.state.CandidatePasswordConfirm = ""
	f.mu.Unlock()
	f.notify()

	f.opts.Audit.LogEvent(ctx, auditdomain.ActionPasswordChanged, email, "")
	f.opts.Logger.InfoContext(ctx, "password changed after step-up verification", "email", email)
	return nil
}

// Restart clears the attempt and returns to REQUEST from any phase, cancelling the cooldown.
// Requests still in flight keep their busy flag until they resolve; their results are discarded.
func (f *Flow) Restart() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.stopCooldownLocked()
	f.epoch++
	f.state = State{
		Phase:     PhaseRequest,
		Sending:   f.state.Sending,
		Verifying: f.state.Verifying,
		Saving:    f.state.Saving,
	}
	f.mu.Unlock()
	f.notify()
}

// Close tears the flow down. The cooldown is cancelled and later calls fail with ErrClosed.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.stopCooldownLocked()
	f.state = State{}
}

func (f *Flow) usableLocked() error {
	if f.closed {
		return ErrClosed
	}
	return nil
}

func (f *Flow) codeLocked() string {
	return strings.Join(f.state.Code[:], "")
}

func (f *Flow) clearCodeLocked() {
	f.state.Code = [CodeLength]string{}
	f.state.Focus = 0
}

func (f *Flow) fillLocked(digits string) {
	for i := 0; i < CodeLength; i++ {
		f.state.Code[i] = string(digits[i])
	}
	f.state.Focus = CodeLength - 1
}

func (f *Flow) startCooldownLocked() {
	f.stopCooldownLocked()
	f.state.CooldownRemaining = int(f.opts.Cooldown / time.Second)
	if f.state.CooldownRemaining <= 0 {
		f.state.CooldownRemaining = 0
		return
	}
	cd := &cooldown{ticker: f.opts.Clock.NewTicker(time.Second), stop: make(chan struct{})}
	f.cd = cd
	go f.runCooldown(cd)
}

func (f *Flow) stopCooldownLocked() {
	if f.cd == nil {
		return
	}
	f.cd.ticker.Stop()
	close(f.cd.stop)
	f.cd = nil
}

// runCooldown decrements the counter once per tick until it reaches zero. A cooldown that is
// no longer current never touches the state.
func (f *Flow) runCooldown(cd *cooldown) {
	for {
		select {
		case <-cd.stop:
			return
		case <-cd.ticker.C():
		}
		f.mu.Lock()
		if f.cd != cd {
			f.mu.Unlock()
			return
		}
		f.state.CooldownRemaining--
		done := f.state.CooldownRemaining <= 0
		if done {
			f.state.CooldownRemaining = 0
			f.stopCooldownLocked()
		}
		f.mu.Unlock()
		f.notify()
		if done {
			return
		}
	}
}

func (f *Flow) notify() {
	if f.opts.OnChange == nil {
		return
	}
	f.opts.OnChange(f.Snapshot())
}
