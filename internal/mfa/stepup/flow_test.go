package stepup

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditdomain "recruitpipe/console/internal/audit/domain"
	"recruitpipe/console/internal/backend"
	"recruitpipe/console/internal/security"
	"recruitpipe/console/internal/session/domain"
)

type fakeTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.c }
func (t *fakeTicker) Stop()               { t.stopped.Store(true) }

// tick delivers one tick if the cooldown goroutine is still listening.
func (t *fakeTicker) tick() bool {
	select {
	case t.c <- time.Now():
		return true
	case <-time.After(100 * time.Millisecond):
		return false
	}
}

type fakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{c: make(chan time.Time)}
	c.tickers = append(c.tickers, t)
	return t
}

func (c *fakeClock) last() *fakeTicker {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.tickers) == 0 {
		return nil
	}
	return c.tickers[len(c.tickers)-1]
}

func (c *fakeClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type fakeBackend struct {
	mu        sync.Mutex
	code      string
	devCode   string
	sendErr   error
	verifyErr error
	resetErr  error
	sends     int
	verifies  int
	resets    []string
	sendGate  chan struct{}
	sendEnter chan struct{}
}

func (b *fakeBackend) SendOTP(ctx context.Context, email string) (*backend.OTPDispatch, error) {
	if b.sendEnter != nil {
		b.sendEnter <- struct{}{}
		<-b.sendGate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sends++
	if b.sendErr != nil {
		return nil, b.sendErr
	}
	return &backend.OTPDispatch{Message: "sent", DevCode: b.devCode}, nil
}

func (b *fakeBackend) VerifyOTP(ctx context.Context, email, code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verifies++
	if b.verifyErr != nil {
		return b.verifyErr
	}
	if code != b.code {
		return &backend.APIError{Status: 400, Message: "Invalid or expired OTP"}
	}
	return nil
}

func (b *fakeBackend) ResetPassword(ctx context.Context, email, newPassword string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resets = append(b.resets, newPassword)
	return b.resetErr
}

type profileSource struct {
	p  domain.Profile
	ok bool
}

func (s profileSource) Profile() (domain.Profile, bool) { return s.p, s.ok }

type memAudit struct {
	mu      sync.Mutex
	actions []string
}

func (a *memAudit) LogEvent(ctx context.Context, action, subject, detail string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
}

func (a *memAudit) list() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.actions...)
}

var signedIn = profileSource{p: domain.Profile{Name: "Rex", Email: "rex@example.com"}, ok: true}

type fixture struct {
	flow  *Flow
	be    *fakeBackend
	clock *fakeClock
	audit *memAudit
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	fx := &fixture{be: &fakeBackend{code: "123456"}, clock: &fakeClock{}, audit: &memAudit{}}
	opts.Clock = fx.clock
	opts.Audit = fx.audit
	fx.flow = New(fx.be, signedIn, opts)
	t.Cleanup(fx.flow.Close)
	return fx
}

func (fx *fixture) toVerify(t *testing.T) {
	t.Helper()
	require.NoError(t, fx.flow.Send(context.Background()))
	require.Equal(t, PhaseVerify, fx.flow.Snapshot().Phase)
}

func (fx *fixture) toReset(t *testing.T) {
	t.Helper()
	fx.toVerify(t)
	require.True(t, fx.flow.Paste(0, "123456"))
	require.NoError(t, fx.flow.Verify(context.Background()))
	require.Equal(t, PhaseReset, fx.flow.Snapshot().Phase)
}

func waitRemaining(t *testing.T, f *Flow, want int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.Snapshot().CooldownRemaining == want },
		time.Second, time.Millisecond, "cooldown should reach %d", want)
}

func TestNew_StartsInRequest(t *testing.T) {
	fx := newFixture(t, Options{})
	s := fx.flow.Snapshot()
	assert.Equal(t, PhaseRequest, s.Phase)
	assert.Equal(t, [CodeLength]string{}, s.Code)
	assert.True(t, s.CanResend())
}

func TestSend_RequiresEmail(t *testing.T) {
	for name, src := range map[string]profileSource{
		"logged out":  {},
		"blank email": {p: domain.Profile{Name: "Rex", Email: "  "}, ok: true},
	} {
		t.Run(name, func(t *testing.T) {
			be := &fakeBackend{}
			f := New(be, src, Options{Clock: &fakeClock{}})
			defer f.Close()

			err := f.Send(context.Background())
			assert.ErrorIs(t, err, ErrNoTargetEmail)
			assert.Equal(t, PhaseRequest, f.Snapshot().Phase)
			assert.Zero(t, be.sends)
		})
	}
}

func TestSend_StartsCooldownAndBlocksResend(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.toVerify(t)

	s := fx.flow.Snapshot()
	assert.Equal(t, 60, s.CooldownRemaining)
	assert.Equal(t, "rex@example.com", s.Email)
	assert.False(t, s.CanResend())
	assert.ErrorIs(t, fx.flow.Send(context.Background()), ErrCooldownActive)
	assert.Equal(t, 1, fx.be.sends)
	assert.Equal(t, []string{auditdomain.ActionStepUpOTPSent}, fx.audit.list())
}

func TestSend_FailureStaysInRequest(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.be.sendErr = backend.ErrUnreachable

	err := fx.flow.Send(context.Background())
	require.ErrorIs(t, err, backend.ErrUnreachable)
	s := fx.flow.Snapshot()
	assert.Equal(t, PhaseRequest, s.Phase)
	assert.False(t, s.Sending)
	assert.Zero(t, s.CooldownRemaining)
	assert.Error(t, s.Err)
	assert.Zero(t, fx.clock.count(), "no cooldown after a failed send")
}

func TestCooldown_CountsDownAndEnablesResendAtZero(t *testing.T) {
	fx := newFixture(t, Options{Cooldown: 3 * time.Second})
	fx.toVerify(t)
	tk := fx.clock.last()
	require.NotNil(t, tk)

	for want := 2; want >= 1; want-- {
		require.True(t, tk.tick())
		waitRemaining(t, fx.flow, want)
		assert.False(t, fx.flow.Snapshot().CanResend(), "remaining %d", want)
		assert.ErrorIs(t, fx.flow.Send(context.Background()), ErrCooldownActive)
	}
	require.True(t, tk.tick())
	waitRemaining(t, fx.flow, 0)
	assert.True(t, fx.flow.Snapshot().CanResend())
	require.Eventually(t, tk.stopped.Load, time.Second, time.Millisecond, "ticker stops itself at zero")

	// Resend restarts the cooldown on a new ticker and clears the entered digits.
	require.True(t, fx.flow.Input(0, "9"))
	require.NoError(t, fx.flow.Send(context.Background()))
	s := fx.flow.Snapshot()
	assert.Equal(t, 3, s.CooldownRemaining)
	assert.Equal(t, [CodeLength]string{}, s.Code)
	assert.Equal(t, 2, fx.clock.count())
	assert.Equal(t, 2, fx.be.sends)
}

func TestRestart_CancelsCooldown(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.toVerify(t)
	tk := fx.clock.last()

	fx.flow.Restart()
	assert.True(t, tk.stopped.Load())
	s := fx.flow.Snapshot()
	assert.Equal(t, PhaseRequest, s.Phase)
	assert.Zero(t, s.CooldownRemaining)

	// A tick that races the cancellation must not mutate anything.
	tk.tick()
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, fx.flow.Snapshot().CooldownRemaining)
	assert.True(t, fx.flow.Snapshot().CanResend())
}

func TestClose_CancelsCooldownAndDisablesFlow(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.toVerify(t)
	tk := fx.clock.last()

	fx.flow.Close()
	assert.True(t, tk.stopped.Load())
	tk.tick()
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, fx.flow.Snapshot().CooldownRemaining)

	assert.ErrorIs(t, fx.flow.Send(context.Background()), ErrClosed)
	assert.ErrorIs(t, fx.flow.Verify(context.Background()), ErrClosed)
	assert.ErrorIs(t, fx.flow.Reset(context.Background()), ErrClosed)
	assert.False(t, fx.flow.Paste(0, "123456"))
	fx.flow.Restart()
	assert.Equal(t, PhaseRequest, fx.flow.Snapshot().Phase)
}

func TestPaste(t *testing.T) {
	fx := newFixture(t, Options{})
	assert.False(t, fx.flow.Paste(0, "123456"), "no digit entry before a code was sent")
	fx.toVerify(t)

	for _, bad := range []string{"12a456", "12345", "1234567", "", "１２３４５６"} {
		assert.False(t, fx.flow.Paste(0, bad), "paste %q", bad)
		assert.Equal(t, [CodeLength]string{}, fx.flow.Snapshot().Code, "paste %q placed digits", bad)
	}

	require.True(t, fx.flow.Paste(0, " 123456\n"))
	s := fx.flow.Snapshot()
	assert.Equal(t, [CodeLength]string{"1", "2", "3", "4", "5", "6"}, s.Code)
	assert.Equal(t, 5, s.Focus)
	assert.Equal(t, "123456", fx.flow.Code())
	assert.True(t, fx.flow.Complete())
}

func TestInputAndBackspace(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.toVerify(t)
	f := fx.flow

	assert.True(t, f.Input(0, "4"))
	assert.Equal(t, 1, f.Snapshot().Focus)
	assert.False(t, f.Input(1, "x"))
	assert.False(t, f.Input(1, "42"))
	assert.False(t, f.Input(6, "1"))
	assert.False(t, f.Input(-1, "1"))
	assert.Equal(t, "", f.Snapshot().Code[1])

	for i, d := range []string{"2", "3", "4", "5", "6"} {
		require.True(t, f.Input(i+1, d))
	}
	assert.Equal(t, 5, f.Snapshot().Focus, "focus stays on the last slot")
	assert.Equal(t, "423456", f.Code())

	f.Backspace(5)
	assert.Equal(t, "", f.Snapshot().Code[5])
	assert.Equal(t, 5, f.Snapshot().Focus)
	assert.False(t, f.Complete())

	f.Backspace(5)
	assert.Equal(t, 4, f.Snapshot().Focus, "backspace on an empty slot moves back")
	assert.Equal(t, "5", f.Snapshot().Code[4], "moving back does not erase")

	require.True(t, f.Input(2, ""))
	assert.Equal(t, "", f.Snapshot().Code[2])

	f.Backspace(0)
	f.Backspace(0)
	assert.Equal(t, 0, f.Snapshot().Focus)
}

func TestVerify_IncompleteMakesNoCall(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.toVerify(t)
	require.True(t, fx.flow.Input(0, "1"))

	assert.ErrorIs(t, fx.flow.Verify(context.Background()), ErrIncompleteCode)
	assert.Zero(t, fx.be.verifies)
	assert.Equal(t, "1", fx.flow.Snapshot().Code[0])
}

func TestVerify_RejectedClearsSlotsAndStaysInVerify(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.toVerify(t)
	require.True(t, fx.flow.Paste(0, "999999"))

	err := fx.flow.Verify(context.Background())
	require.ErrorIs(t, err, ErrCodeRejected)
	assert.ErrorIs(t, err, backend.ErrRejected)

	s := fx.flow.Snapshot()
	assert.Equal(t, PhaseVerify, s.Phase)
	assert.Equal(t, [CodeLength]string{}, s.Code)
	assert.Equal(t, 0, s.Focus)
	assert.False(t, s.Verifying)
	assert.Greater(t, s.CooldownRemaining, 0, "a wrong code does not reset the cooldown")
	assert.Contains(t, fx.audit.list(), auditdomain.ActionStepUpRejected)

	// Retry with the right code.
	require.True(t, fx.flow.Paste(0, "123456"))
	require.NoError(t, fx.flow.Verify(context.Background()))
	assert.Equal(t, PhaseReset, fx.flow.Snapshot().Phase)
}

func TestVerify_TransportFailureKeepsDigits(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.toVerify(t)
	require.True(t, fx.flow.Paste(0, "123456"))
	fx.be.verifyErr = backend.ErrUnreachable

	err := fx.flow.Verify(context.Background())
	require.ErrorIs(t, err, backend.ErrUnreachable)
	assert.NotErrorIs(t, err, ErrCodeRejected)
	s := fx.flow.Snapshot()
	assert.Equal(t, PhaseVerify, s.Phase)
	assert.Equal(t, "123456", fx.flow.Code())
}

func TestVerify_SuccessCancelsCooldown(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.toReset(t)
	assert.True(t, fx.clock.last().stopped.Load())
	s := fx.flow.Snapshot()
	assert.Zero(t, s.CooldownRemaining)
	assert.Equal(t, [CodeLength]string{}, s.Code)
	assert.ErrorIs(t, fx.flow.Send(context.Background()), ErrWrongPhase)
}

func TestReset_LocalChecksBlockSubmission(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.toReset(t)
	ctx := context.Background()

	require.NoError(t, fx.flow.SetPassword("abc12345", "abc12345"))
	err := fx.flow.Reset(ctx)
	require.ErrorIs(t, err, ErrPolicyViolation)
	var pe *security.PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "uppercase", pe.Failed.ID)

	require.NoError(t, fx.flow.SetPassword("Abc12345", "Abc1234"))
	for _, r := range fx.flow.PolicyReport() {
		assert.True(t, r.Passed, r.ID)
	}
	assert.ErrorIs(t, fx.flow.Reset(ctx), ErrPasswordMismatch)

	assert.Empty(t, fx.be.resets, "no request while local checks fail")
	s := fx.flow.Snapshot()
	assert.Equal(t, PhaseReset, s.Phase)
	assert.Equal(t, "Abc12345", s.CandidatePassword)
	assert.Equal(t, "Abc1234", s.CandidatePasswordConfirm)
}

func TestReset_BackendFailureKeepsFields(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.toReset(t)
	fx.be.resetErr = &backend.APIError{Status: 400, Message: "password reused"}

	require.NoError(t, fx.flow.SetPassword("Abc12345", "Abc12345"))
	err := fx.flow.Reset(context.Background())
	require.ErrorIs(t, err, backend.ErrRejected)

	s := fx.flow.Snapshot()
	assert.Equal(t, PhaseReset, s.Phase)
	assert.Equal(t, "Abc12345", s.CandidatePassword)
	assert.Equal(t, "Abc12345", s.CandidatePasswordConfirm)
	assert.False(t, s.Saving)
	assert.Error(t, s.Err)
}

func TestWrongPhase(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()
	assert.ErrorIs(t, fx.flow.Verify(ctx), ErrWrongPhase)
	assert.ErrorIs(t, fx.flow.Reset(ctx), ErrWrongPhase)
	assert.ErrorIs(t, fx.flow.SetPassword("Abc12345", "Abc12345"), ErrWrongPhase)

	fx.toVerify(t)
	assert.ErrorIs(t, fx.flow.Reset(ctx), ErrWrongPhase)
}

func TestSend_ConcurrentSubmitIsBusy(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.be.sendEnter = make(chan struct{})
	fx.be.sendGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- fx.flow.Send(context.Background()) }()
	<-fx.be.sendEnter

	assert.True(t, fx.flow.Snapshot().Sending)
	assert.False(t, fx.flow.Snapshot().CanResend())
	assert.ErrorIs(t, fx.flow.Send(context.Background()), ErrBusy)

	close(fx.be.sendGate)
	require.NoError(t, <-done)
	assert.False(t, fx.flow.Snapshot().Sending)
	assert.Equal(t, 1, fx.be.sends)
}

func TestRestart_DiscardsInFlightResult(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.be.sendEnter = make(chan struct{})
	fx.be.sendGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- fx.flow.Send(context.Background()) }()
	<-fx.be.sendEnter

	fx.flow.Restart()
	assert.True(t, fx.flow.Snapshot().Sending, "busy flag clears only when the request resolves")

	close(fx.be.sendGate)
	assert.ErrorIs(t, <-done, ErrSuperseded)
	s := fx.flow.Snapshot()
	assert.Equal(t, PhaseRequest, s.Phase)
	assert.False(t, s.Sending)
	assert.Zero(t, fx.clock.count(), "a discarded send starts no cooldown")
}

func TestSend_LateResendAfterVerifyIsDiscarded(t *testing.T) {
	fx := newFixture(t, Options{Cooldown: time.Second})
	fx.toVerify(t)
	require.True(t, fx.clock.last().tick())
	waitRemaining(t, fx.flow, 0)

	fx.be.sendEnter = make(chan struct{})
	fx.be.sendGate = make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- fx.flow.Send(context.Background()) }()
	<-fx.be.sendEnter

	require.True(t, fx.flow.Paste(0, "123456"))
	require.NoError(t, fx.flow.Verify(context.Background()))
	require.Equal(t, PhaseReset, fx.flow.Snapshot().Phase)

	close(fx.be.sendGate)
	assert.ErrorIs(t, <-done, ErrSuperseded)
	s := fx.flow.Snapshot()
	assert.Equal(t, PhaseReset, s.Phase, "phases never move backwards")
	assert.False(t, s.Sending)
	assert.Zero(t, s.CooldownRemaining)
	assert.Equal(t, 1, fx.clock.count(), "a discarded resend starts no cooldown")
}

func TestVerify_AuthFailuresKeepDigits(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{401, backend.ErrNotAuthenticated},
		{403, ErrForbidden},
		{500, backend.ErrRejected},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			fx := newFixture(t, Options{})
			fx.toVerify(t)
			require.True(t, fx.flow.Paste(0, "123456"))
			fx.be.verifyErr = &backend.APIError{Status: tt.status, Message: "refused"}

			err := fx.flow.Verify(context.Background())
			require.ErrorIs(t, err, tt.want)
			assert.NotErrorIs(t, err, ErrCodeRejected)
			assert.Equal(t, PhaseVerify, fx.flow.Snapshot().Phase)
			assert.Equal(t, "123456", fx.flow.Code())
			assert.NotContains(t, fx.audit.list(), auditdomain.ActionStepUpRejected)
		})
	}
}

func TestVerify_TooManyTriesIsRejectedCode(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.toVerify(t)
	require.True(t, fx.flow.Paste(0, "123456"))
	fx.be.verifyErr = &backend.APIError{Status: 429, Message: "too many attempts"}

	require.ErrorIs(t, fx.flow.Verify(context.Background()), ErrCodeRejected)
	assert.Empty(t, fx.flow.Code())
}

func TestDevAutofill(t *testing.T) {
	t.Run("enabled", func(t *testing.T) {
		fx := newFixture(t, Options{DevAutofill: true})
		fx.be.devCode = "123456"
		fx.toVerify(t)
		s := fx.flow.Snapshot()
		assert.Equal(t, "123456", s.DevCode)
		assert.Equal(t, "123456", fx.flow.Code())
		assert.Equal(t, 5, s.Focus)
		require.NoError(t, fx.flow.Verify(context.Background()))
		assert.Empty(t, fx.flow.Snapshot().DevCode)
	})
	t.Run("disabled ignores plaintext code", func(t *testing.T) {
		fx := newFixture(t, Options{})
		fx.be.devCode = "123456"
		fx.toVerify(t)
		assert.Empty(t, fx.flow.Snapshot().DevCode)
		assert.Empty(t, fx.flow.Code())
	})
	t.Run("malformed dev code ignored", func(t *testing.T) {
		fx := newFixture(t, Options{DevAutofill: true})
		fx.be.devCode = "12ab"
		fx.toVerify(t)
		assert.Empty(t, fx.flow.Snapshot().DevCode)
		assert.Empty(t, fx.flow.Code())
	})
}

func TestOnChange(t *testing.T) {
	var mu sync.Mutex
	var phases []Phase
	fx := newFixture(t, Options{OnChange: func(s State) {
		mu.Lock()
		defer mu.Unlock()
		phases = append(phases, s.Phase)
	}})
	fx.toReset(t)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, phases)
	assert.Equal(t, PhaseReset, phases[len(phases)-1])
	assert.Contains(t, phases, PhaseVerify)
}

func TestEndToEnd_ChangeAgain(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()
	f := fx.flow

	for cycle := 0; cycle < 2; cycle++ {
		require.Equal(t, PhaseRequest, f.Snapshot().Phase)
		require.NoError(t, f.Send(ctx), "cycle %d", cycle)
		assert.Equal(t, 60, f.Snapshot().CooldownRemaining)
		require.True(t, f.Paste(0, "123456"))
		require.NoError(t, f.Verify(ctx))
		require.NoError(t, f.SetPassword("Abc12345", "Abc12345"))
		require.NoError(t, f.Reset(ctx))

		s := f.Snapshot()
		assert.Equal(t, PhaseDone, s.Phase)
		assert.Empty(t, s.CandidatePassword)

		f.Restart()
		assert.Equal(t, State{Phase: PhaseRequest}, f.Snapshot(), "cycle %d leaves no state behind", cycle)
	}
	assert.Equal(t, []string{"Abc12345", "Abc12345"}, fx.be.resets)
	assert.Equal(t, []string{
		auditdomain.ActionStepUpOTPSent, auditdomain.ActionStepUpVerified, auditdomain.ActionPasswordChanged,
		auditdomain.ActionStepUpOTPSent, auditdomain.ActionStepUpVerified, auditdomain.ActionPasswordChanged,
	}, fx.audit.list())
}

func TestRestart_FromEveryPhase(t *testing.T) {
	steps := map[Phase]func(fx *fixture, t *testing.T){
		PhaseRequest: func(*fixture, *testing.T) {},
		PhaseVerify:  func(fx *fixture, t *testing.T) { fx.toVerify(t) },
		PhaseReset:   func(fx *fixture, t *testing.T) { fx.toReset(t) },
	}
	for phase, to := range steps {
		t.Run(phase.String(), func(t *testing.T) {
			fx := newFixture(t, Options{})
			to(fx, t)
			fx.flow.Restart()
			assert.Equal(t, State{Phase: PhaseRequest}, fx.flow.Snapshot())
		})
	}
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "REQUEST", PhaseRequest.String())
	assert.Equal(t, "VERIFY", PhaseVerify.String())
	assert.Equal(t, "RESET", PhaseReset.String())
	assert.Equal(t, "DONE", PhaseDone.String())
	assert.Equal(t, "UNKNOWN", Phase(9).String())
}
