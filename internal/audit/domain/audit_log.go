package domain

import "time"

// Session lifecycle actions.
const (
	ActionLoginSuccess    = "login_success"
	ActionLoginFailure    = "login_failure"
	ActionLogout          = "logout"
	ActionTokenRefreshed  = "token_refreshed"
	ActionSessionExpired  = "session_expired"
	ActionProfileUpdated  = "profile_updated"
	ActionStepUpOTPSent   = "stepup_otp_sent"
	ActionStepUpVerified  = "stepup_verified"
	ActionStepUpRejected  = "stepup_rejected"
	ActionPasswordChanged = "password_changed"
)

// AuditLog represents one audit event. Subject is the account email when known.
type AuditLog struct {
	ID        string
	Action    string
	Subject   string
	Detail    string
	CreatedAt time.Time
}
