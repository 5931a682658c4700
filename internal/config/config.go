// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Session slot backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreBolt   = "bolt"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// IdentityBaseURL is the identity provider root (e.g. https://identitytoolkit.example.com).
	IdentityBaseURL string `mapstructure:"IDENTITY_BASE_URL"`
	// IdentityAPIKey is sent as ?key= on identity provider calls; optional.
	IdentityAPIKey string `mapstructure:"IDENTITY_API_KEY"`
	// BackendBaseURL is the application backend root (e.g. https://api.recruitpipe.example.com).
	BackendBaseURL string `mapstructure:"BACKEND_BASE_URL"`

	// SessionStore selects the persisted session slot: "memory" (tab-scoped) or "bolt" (file).
	SessionStore string `mapstructure:"SESSION_STORE"`
	// SessionStorePath is the bbolt file used when SessionStore is "bolt".
	SessionStorePath string `mapstructure:"SESSION_STORE_PATH"`

	// HTTPTimeout is the per-request transport timeout (e.g. "15s").
	HTTPTimeout string `mapstructure:"HTTP_TIMEOUT"`
	// TokenRefreshSkew is how long before expiry the identity token is refreshed (e.g. "1m").
	TokenRefreshSkew string `mapstructure:"TOKEN_REFRESH_SKEW"`
	// OTPCooldown is the resend cooldown of the step-up flow (e.g. "60s").
	OTPCooldown string `mapstructure:"OTP_COOLDOWN"`
	// OTPAutofill fills the step-up code from a development backend's plaintext OTP. Must not be true when Env is production.
	OTPAutofill bool `mapstructure:"OTP_AUTOFILL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `mapstructure:"LOG_LEVEL"`

	// OTLPEndpoint is the OpenTelemetry collector (gRPC); empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Dev backend only.
	// DevBackendAddr is the listen address of the development identity provider/backend.
	DevBackendAddr string `mapstructure:"DEV_BACKEND_ADDR"`
	// DevSignInRate is the per-email sign-in rate (attempts per second) before TOO_MANY_ATTEMPTS_TRY_LATER.
	DevSignInRate float64 `mapstructure:"DEV_SIGNIN_RATE"`
	// DevSignInBurst is the sign-in burst allowed per email.
	DevSignInBurst int `mapstructure:"DEV_SIGNIN_BURST"`
	// DevSeedUsers is a comma-separated list of role:email:password entries.
	DevSeedUsers string `mapstructure:"DEV_SEED_USERS"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; empty generates an ephemeral key.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim of dev identity tokens.
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim of dev identity tokens.
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the identity token lifetime (e.g. "1h").
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// JWTRefreshTTL is the refresh token lifetime (e.g. "168h").
	JWTRefreshTTL string `mapstructure:"JWT_REFRESH_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
}

// SeedUser is one DEV_SEED_USERS entry.
type SeedUser struct {
	Role     string
	Email    string
	Password string
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("IDENTITY_BASE_URL", "http://localhost:8089")
	v.SetDefault("IDENTITY_API_KEY", "")
	v.SetDefault("BACKEND_BASE_URL", "http://localhost:8089")
	v.SetDefault("SESSION_STORE", SessionStoreBolt)
	v.SetDefault("SESSION_STORE_PATH", "recruitpipe-session.db")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("TOKEN_REFRESH_SKEW", "1m")
	v.SetDefault("OTP_COOLDOWN", "60s")
	v.SetDefault("OTP_AUTOFILL", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("DEV_BACKEND_ADDR", ":8089")
	v.SetDefault("DEV_SIGNIN_RATE", 1.0)
	v.SetDefault("DEV_SIGNIN_BURST", 5)
	v.SetDefault("DEV_SEED_USERS", "")
	v.SetDefault("JWT_PRIVATE_KEY", "")
	v.SetDefault("JWT_PUBLIC_KEY", "")
	v.SetDefault("JWT_ISSUER", "recruitpipe-identity")
	v.SetDefault("JWT_AUDIENCE", "recruitpipe-console")
	v.SetDefault("JWT_ACCESS_TTL", "1h")
	v.SetDefault("JWT_REFRESH_TTL", "168h") // 7d
	v.SetDefault("BCRYPT_COST", 12)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.IdentityBaseURL) == "" {
		return errors.New("config: IDENTITY_BASE_URL must be set")
	}
	if strings.TrimSpace(c.BackendBaseURL) == "" {
		return errors.New("config: BACKEND_BASE_URL must be set")
	}

	c.SessionStore = strings.ToLower(strings.TrimSpace(c.SessionStore))
	switch c.SessionStore {
	case SessionStoreMemory:
	case SessionStoreBolt:
		if strings.TrimSpace(c.SessionStorePath) == "" {
			return errors.New("config: SESSION_STORE_PATH must be set when SESSION_STORE=bolt")
		}
	default:
		return fmt.Errorf("config: SESSION_STORE must be %q or %q, got %q", SessionStoreMemory, SessionStoreBolt, c.SessionStore)
	}

	if c.OTPAutofill && c.Production() {
		return errors.New("config: OTP_AUTOFILL must not be true when APP_ENV=production")
	}

	for key, raw := range map[string]string{
		"HTTP_TIMEOUT":       c.HTTPTimeout,
		"TOKEN_REFRESH_SKEW": c.TokenRefreshSkew,
		"OTP_COOLDOWN":       c.OTPCooldown,
	} {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 {
			return fmt.Errorf("config: %s must be a positive duration, got %q", key, raw)
		}
	}

	if c.BcryptCost == 0 {
		c.BcryptCost = 12
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if _, err := c.SeedUsers(); err != nil {
		return err
	}
	return nil
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "production")
}

// SignInURL is the identity provider's password sign-in endpoint.
func (c *Config) SignInURL() string {
	return strings.TrimRight(c.IdentityBaseURL, "/") + "/v1/accounts:signInWithPassword"
}

// TokenURL is the identity provider's refresh-token exchange endpoint.
func (c *Config) TokenURL() string {
	return strings.TrimRight(c.IdentityBaseURL, "/") + "/v1/token"
}

// Timeout parses HTTPTimeout. Returns 15s if unset or invalid.
func (c *Config) Timeout() time.Duration {
	return durationOr(c.HTTPTimeout, 15*time.Second)
}

// RefreshSkew parses TokenRefreshSkew. Returns 1m if unset or invalid.
func (c *Config) RefreshSkew() time.Duration {
	return durationOr(c.TokenRefreshSkew, time.Minute)
}

// Cooldown parses OTPCooldown. Returns 60s if unset or invalid.
func (c *Config) Cooldown() time.Duration {
	return durationOr(c.OTPCooldown, 60*time.Second)
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	return durationOr(c.JWTAccessTTL, time.Hour)
}

// RefreshTTL parses JWTRefreshTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	return durationOr(c.JWTRefreshTTL, 168*time.Hour)
}

// SeedUsers parses DevSeedUsers ("role:email:password,..."). Passwords may contain ':'.
func (c *Config) SeedUsers() ([]SeedUser, error) {
	if c == nil || strings.TrimSpace(c.DevSeedUsers) == "" {
		return nil, nil
	}
	parts := strings.Split(c.DevSeedUsers, ",")
	out := make([]SeedUser, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fields := strings.SplitN(p, ":", 3)
		if len(fields) != 3 || fields[0] == "" || fields[1] == "" || fields[2] == "" {
			return nil, fmt.Errorf("config: DEV_SEED_USERS entry %q must be role:email:password", p)
		}
		out = append(out, SeedUser{Role: fields[0], Email: strings.ToLower(fields[1]), Password: fields[2]})
	}
	return out, nil
}

func durationOr(raw string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
