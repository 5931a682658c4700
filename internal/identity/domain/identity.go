package domain

// ErrorCode is the identity provider's machine-readable failure vocabulary.
type ErrorCode string

const (
	CodeEmailNotFound       ErrorCode = "EMAIL_NOT_FOUND"
	CodeInvalidPassword     ErrorCode = "INVALID_PASSWORD"
	CodeInvalidCredentials  ErrorCode = "INVALID_LOGIN_CREDENTIALS"
	CodeInvalidEmail        ErrorCode = "INVALID_EMAIL"
	CodeUserDisabled        ErrorCode = "USER_DISABLED"
	CodeTooManyAttempts     ErrorCode = "TOO_MANY_ATTEMPTS_TRY_LATER"
	CodeTokenExpired        ErrorCode = "TOKEN_EXPIRED"
	CodeInvalidRefreshToken ErrorCode = "INVALID_REFRESH_TOKEN"
	CodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
	CodeUnknown             ErrorCode = "UNKNOWN"
)

// Credentials is what a successful sign-in or token refresh yields.
type Credentials struct {
	IdentityToken string
	RefreshToken  string
	// ExpiresIn is the identity token lifetime in seconds as reported by the provider (0 if absent).
	ExpiresIn int64
	UserID    string
	Email     string
}

// friendly maps provider codes to user-facing text. Codes that never reach a login form
// (refresh failures) share the session-expired message.
var friendly = map[ErrorCode]string{
	CodeEmailNotFound:       "No account exists for this email address.",
	CodeInvalidPassword:     "Incorrect email or password.",
	CodeInvalidCredentials:  "Incorrect email or password.",
	CodeInvalidEmail:        "Enter a valid email address.",
	CodeUserDisabled:        "This account has been disabled. Contact your administrator.",
	CodeTooManyAttempts:     "Too many failed attempts. Try again later or reset your password.",
	CodeTokenExpired:        "Your session has expired. Sign in again.",
	CodeInvalidRefreshToken: "Your session has expired. Sign in again.",
	CodeUserNotFound:        "Your session has expired. Sign in again.",
}

// Message returns the user-facing text for code.
func (c ErrorCode) Message() string {
	if m, ok := friendly[c]; ok {
		return m
	}
	return "Sign-in failed. Please try again."
}

// Recoverable reports whether the user can fix the failure by re-entering credentials or waiting.
func (c ErrorCode) Recoverable() bool {
	switch c {
	case CodeEmailNotFound, CodeInvalidPassword, CodeInvalidCredentials, CodeInvalidEmail, CodeTooManyAttempts:
		return true
	}
	return false
}
