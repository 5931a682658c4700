package devbackend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	identitydomain "recruitpipe/console/internal/identity/domain"
	"recruitpipe/console/internal/security"
	userdomain "recruitpipe/console/internal/user/domain"
)

const maxBodyBytes = 1 << 16

type callerKey struct{}

// Handler exposes a Service over HTTP.
type Handler struct {
	svc    *Service
	apiKey string
	logger *slog.Logger
}

// NewHandler returns a Handler. A non-empty apiKey must be presented as ?key= on provider calls.
func NewHandler(svc *Service, apiKey string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, apiKey: apiKey, logger: logger}
}

// Router mounts the identity provider routes under /v1 and the backend routes under /api.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Route("/v1", func(r chi.Router) {
		r.Use(h.requireAPIKey)
		r.Post("/accounts:signInWithPassword", h.signIn)
		r.Post("/token", h.token)
	})

	r.Post("/api/auth/login", h.login)
	r.Group(func(r chi.Router) {
		r.Use(h.requireBearer)
		r.Post("/api/auth/send-otp", h.sendOTP)
		r.Post("/api/auth/verify-otp", h.verifyOTP)
		r.Post("/api/auth/reset-password", h.resetPassword)
		r.Put("/api/users/profile", h.updateProfile)
		if h.svc.DevOTPEnabled() {
			r.Get("/dev/otp", h.devOTP)
		}
	})
	return r
}

// Identity provider routes.

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    string `json:"expires_in"`
	UserID       string `json:"user_id"`
}

type providerError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req, h.writeProviderBadRequest) {
		return
	}
	g, err := h.svc.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{
		IDToken:      g.IdentityToken,
		RefreshToken: g.RefreshToken,
		ExpiresIn:    strconv.FormatInt(g.ExpiresIn, 10),
		LocalID:      g.UserID,
		Email:        g.Email,
	})
}

func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !decodeJSON(w, r, &req, h.writeProviderBadRequest) {
		return
	}
	if req.GrantType != "refresh_token" {
		writeProviderCode(w, http.StatusBadRequest, "INVALID_GRANT_TYPE")
		return
	}
	if req.RefreshToken == "" {
		writeProviderCode(w, http.StatusBadRequest, "MISSING_REFRESH_TOKEN")
		return
	}
	g, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		h.writeProviderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		IDToken:      g.IdentityToken,
		RefreshToken: g.RefreshToken,
		ExpiresIn:    strconv.FormatInt(g.ExpiresIn, 10),
		UserID:       g.UserID,
	})
}

func (h *Handler) writeProviderBadRequest(w http.ResponseWriter) {
	writeProviderCode(w, http.StatusBadRequest, "INVALID_REQUEST")
}

func (h *Handler) writeProviderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidEmail):
		writeProviderCode(w, http.StatusBadRequest, string(identitydomain.CodeInvalidEmail))
	case errors.Is(err, ErrEmailNotFound):
		writeProviderCode(w, http.StatusBadRequest, string(identitydomain.CodeEmailNotFound))
	case errors.Is(err, ErrInvalidPassword):
		writeProviderCode(w, http.StatusBadRequest, string(identitydomain.CodeInvalidPassword))
	case errors.Is(err, ErrUserDisabled):
		writeProviderCode(w, http.StatusBadRequest, string(identitydomain.CodeUserDisabled))
	case errors.Is(err, ErrTooManyAttempts):
		writeProviderCode(w, http.StatusBadRequest, string(identitydomain.CodeTooManyAttempts)+" : Access to this account has been temporarily disabled due to many failed login attempts.")
	case errors.Is(err, ErrRefreshTokenExpired):
		writeProviderCode(w, http.StatusBadRequest, string(identitydomain.CodeTokenExpired))
	case errors.Is(err, ErrInvalidRefreshToken), errors.Is(err, ErrRefreshTokenReuse):
		writeProviderCode(w, http.StatusBadRequest, string(identitydomain.CodeInvalidRefreshToken))
	default:
		h.logger.Error("identity provider request failed", "error", err)
		writeProviderCode(w, http.StatusInternalServerError, "INTERNAL_ERROR")
	}
}

func writeProviderCode(w http.ResponseWriter, status int, message string) {
	var body providerError
	body.Error.Code = status
	body.Error.Message = message
	writeJSON(w, status, body)
}

// Backend routes.

type profileResponse struct {
	Role     string `json:"role"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func toProfile(u *userdomain.User) profileResponse {
	return profileResponse{Role: u.Role, Name: u.Name, Email: u.Email, Username: u.Username}
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IdentityToken string `json:"identityToken"`
	}
	if !decodeJSON(w, r, &req, writeBadRequest) {
		return
	}
	u, err := h.svc.Authenticate(r.Context(), req.IdentityToken)
	if err != nil {
		h.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		User profileResponse `json:"user"`
	}{toProfile(u)})
}

func (h *Handler) sendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req, writeBadRequest) {
		return
	}
	d, err := h.svc.SendOTP(r.Context(), caller(r.Context()), req.Email)
	if err != nil {
		h.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
		OTP     string `json:"otp,omitempty"`
	}{d.Message, d.Code})
}

func (h *Handler) verifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		OTP   string `json:"otp"`
	}
	if !decodeJSON(w, r, &req, writeBadRequest) {
		return
	}
	if err := h.svc.VerifyOTP(r.Context(), caller(r.Context()), req.Email, req.OTP); err != nil {
		h.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Code verified"})
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		NewPassword string `json:"newPassword"`
	}
	if !decodeJSON(w, r, &req, writeBadRequest) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), caller(r.Context()), req.Email, req.NewPassword); err != nil {
		h.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Password updated"})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     *string `json:"name"`
		Username *string `json:"username"`
	}
	if !decodeJSON(w, r, &req, writeBadRequest) {
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), caller(r.Context()), ProfileChange{Name: req.Name, Username: req.Username})
	if err != nil {
		h.writeBackendError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfile(u))
}

func (h *Handler) devOTP(w http.ResponseWriter, r *http.Request) {
	msg, ok := h.svc.DevCode(caller(r.Context()))
	if !ok {
		writeMessage(w, http.StatusNotFound, "no pending code")
		return
	}
	writeJSON(w, http.StatusOK, struct {
		OTP       string `json:"otp"`
		ExpiresIn int    `json:"expires_in"`
	}{msg.Code, int(msg.Remaining(h.svc.now()).Seconds())})
}

func (h *Handler) writeBackendError(w http.ResponseWriter, err error) {
	var policy *security.PolicyError
	switch {
	case errors.Is(err, ErrUnauthorized):
		writeMessage(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrStepUpRequired):
		writeMessage(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ErrTooManyOTPTries):
		writeMessage(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &policy):
		writeMessage(w, http.StatusBadRequest, "Password does not meet requirements: "+policy.Failed.Description)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNoChallenge), errors.Is(err, ErrCodeMismatch):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("backend request failed", "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

func writeBadRequest(w http.ResponseWriter) {
	writeMessage(w, http.StatusBadRequest, "invalid request body")
}

// Middleware.

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.apiKey != "" && r.URL.Query().Get("key") != h.apiKey {
			writeProviderCode(w, http.StatusBadRequest, "API_KEY_INVALID")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			writeMessage(w, http.StatusUnauthorized, ErrUnauthorized.Error())
			return
		}
		u, err := h.svc.Authenticate(r.Context(), strings.TrimSpace(token))
		if err != nil {
			h.writeBackendError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, u)))
	})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func caller(ctx context.Context) *userdomain.User {
	u, _ := ctx.Value(callerKey{}).(*userdomain.User)
	return u
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any, onErr func(http.ResponseWriter)) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		onErr(w)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
