package devbackend_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recruitpipe/console/internal/backend"
	"recruitpipe/console/internal/devbackend"
	"recruitpipe/console/internal/devotp"
	identitydomain "recruitpipe/console/internal/identity/domain"
	"recruitpipe/console/internal/identity/provider"
	"recruitpipe/console/internal/identity/service"
	mfarepo "recruitpipe/console/internal/mfa/repository"
	"recruitpipe/console/internal/mfa/stepup"
	"recruitpipe/console/internal/platform/httpclient"
	"recruitpipe/console/internal/platform/rbac"
	"recruitpipe/console/internal/security"
	sessiondomain "recruitpipe/console/internal/session/domain"
	"recruitpipe/console/internal/session/repository"
	"recruitpipe/console/internal/session/store"
	userrepo "recruitpipe/console/internal/user/repository"
)

const (
	apiKey   = "dev-key"
	password = "Recruit2026"
)

type console struct {
	manager *service.Manager
	backend *backend.Client
}

func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	require.NoError(t, err)
	svc := devbackend.NewService(userrepo.NewMemoryRepository(), mfarepo.NewMemoryRepository(), tokens, security.NewPasswordHasher(4), devbackend.Options{
		DevOTP: devotp.NewOutbox(nil),
	})
	require.NoError(t, svc.Seed(context.Background(), []devbackend.Account{
		{Role: "manager", Email: "mia@example.com", Password: password},
		{Role: "recruiter", Email: "rex@example.com", Password: password},
	}))
	srv := httptest.NewServer(devbackend.NewHandler(svc, apiKey, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func newConsole(t *testing.T, srv *httptest.Server, key string) *console {
	t.Helper()
	hc := httpclient.New(5 * time.Second)
	idp := provider.NewClient(provider.Config{
		SignInURL: srv.URL + "/v1/accounts:signInWithPassword",
		TokenURL:  srv.URL + "/v1/token",
		APIKey:    key,
	}, hc)
	be := backend.NewClient(srv.URL, hc, nil)
	m := service.NewManager(store.New(repository.NewMemorySlot(), nil), idp, be, service.Options{})
	be.SetHeaderSource(m)
	m.Init(context.Background())
	t.Cleanup(func() { _ = m.Close() })
	return &console{manager: m, backend: be}
}

func TestConsole_LoginStepUpPasswordChangeRelogin(t *testing.T) {
	srv := startBackend(t)
	c := newConsole(t, srv, apiKey)
	ctx := context.Background()

	rec, err := c.manager.Login(ctx, " Mia@Example.com ", password)
	require.NoError(t, err)
	assert.Equal(t, sessiondomain.RoleManager, rec.Role)
	assert.Equal(t, "mia@example.com", rec.Profile.Email)
	assert.Equal(t, "Mia", rec.Profile.Name)
	assert.True(t, rec.ExpiresAt.After(rec.IssuedAt))
	assert.Equal(t, rbac.ElevatedLandingPath, rbac.LandingFor(c.manager.Role()))

	flow := stepup.New(c.backend, c.manager, stepup.Options{Cooldown: time.Hour, DevAutofill: true})
	t.Cleanup(flow.Close)

	require.NoError(t, flow.Send(ctx))
	st := flow.Snapshot()
	assert.Equal(t, stepup.PhaseVerify, st.Phase)
	require.Len(t, st.DevCode, stepup.CodeLength)
	assert.True(t, flow.Complete())
	assert.Equal(t, st.DevCode, flow.Code())
	assert.ErrorIs(t, flow.Send(ctx), stepup.ErrCooldownActive)

	require.NoError(t, flow.Verify(ctx))
	assert.Equal(t, stepup.PhaseReset, flow.Snapshot().Phase)

	require.NoError(t, flow.SetPassword("weak", "weak"))
	assert.ErrorIs(t, flow.Reset(ctx), stepup.ErrPolicyViolation)

	require.NoError(t, flow.SetPassword("Brand9New", "Brand9New"))
	require.NoError(t, flow.Reset(ctx))
	assert.Equal(t, stepup.PhaseDone, flow.Snapshot().Phase)

	require.NoError(t, c.manager.Logout(ctx))
	assert.False(t, c.manager.IsAuthenticated())

	_, err = c.manager.Login(ctx, "mia@example.com", password)
	var rejected *service.IdentityRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, identitydomain.CodeInvalidPassword, rejected.Code)
	assert.False(t, c.manager.IsAuthenticated())

	_, err = c.manager.Login(ctx, "mia@example.com", "Brand9New")
	require.NoError(t, err)
	assert.True(t, c.manager.IsAuthenticated())
}

func TestConsole_WrongCodeKeepsVerifyPhase(t *testing.T) {
	srv := startBackend(t)
	c := newConsole(t, srv, apiKey)
	ctx := context.Background()
	_, err := c.manager.Login(ctx, "rex@example.com", password)
	require.NoError(t, err)

	flow := stepup.New(c.backend, c.manager, stepup.Options{Cooldown: time.Hour})
	t.Cleanup(flow.Close)
	require.NoError(t, flow.Send(ctx))
	assert.Empty(t, flow.Snapshot().DevCode, "autofill is off")

	resp, err := httpclient.Do(ctx, http.DefaultClient, http.MethodGet, srv.URL+"/dev/otp", c.manager.AuthHeaders(), nil)
	require.NoError(t, err)
	require.True(t, resp.OK())
	var dev struct {
		OTP       string `json:"otp"`
		ExpiresIn int    `json:"expires_in"`
	}
	require.NoError(t, resp.Decode(&dev))
	assert.Positive(t, dev.ExpiresIn)

	wrong := "000000"
	if dev.OTP == wrong {
		wrong = "999999"
	}
	require.True(t, flow.Paste(0, wrong))
	err = flow.Verify(ctx)
	require.ErrorIs(t, err, stepup.ErrCodeRejected)
	st := flow.Snapshot()
	assert.Equal(t, stepup.PhaseVerify, st.Phase)
	assert.Equal(t, "", flow.Code())
	assert.Equal(t, 0, st.Focus)

	require.True(t, flow.Paste(0, dev.OTP))
	require.NoError(t, flow.Verify(ctx))
	assert.Equal(t, stepup.PhaseReset, flow.Snapshot().Phase)
}

func TestConsole_RefreshRotatesTokens(t *testing.T) {
	srv := startBackend(t)
	c := newConsole(t, srv, apiKey)
	ctx := context.Background()
	first, err := c.manager.Login(ctx, "rex@example.com", password)
	require.NoError(t, err)

	second, err := c.manager.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, first.Role, second.Role)
	assert.Equal(t, first.Profile, second.Profile)

	name := "Rex Hunter"
	rec, err := c.manager.UpdateProfile(ctx, service.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Rex Hunter", rec.Profile.Name)
}

func TestConsole_ProviderErrors(t *testing.T) {
	srv := startBackend(t)
	ctx := context.Background()

	c := newConsole(t, srv, apiKey)
	_, err := c.manager.Login(ctx, "ghost@example.com", password)
	var rejected *service.IdentityRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, identitydomain.CodeEmailNotFound, rejected.Code)
	assert.Equal(t, identitydomain.CodeEmailNotFound.Message(), service.FriendlyMessage(err))

	wrongKey := newConsole(t, srv, "nope")
	_, err = wrongKey.manager.Login(ctx, "rex@example.com", password)
	assert.True(t, errors.Is(err, service.ErrIdentityRejected))
	assert.False(t, wrongKey.manager.IsAuthenticated())
}

func TestRouter_BackendRequiresBearer(t *testing.T) {
	srv := startBackend(t)

	for _, path := range []string{"/api/auth/send-otp", "/api/auth/verify-otp", "/api/auth/reset-password"} {
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(`{"email":"rex@example.com"}`))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", strings.NewReader(`{"identityToken":"forged"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_RefreshGrantType(t *testing.T) {
	srv := startBackend(t)
	resp, err := http.Post(srv.URL+"/v1/token?key="+apiKey, "application/json", strings.NewReader(`{"grant_type":"password","refresh_token":"x"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
