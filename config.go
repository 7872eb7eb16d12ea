package authkit

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied by LoadEnvConfig when a variable is absent.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 14 * 24 * time.Hour
	DefaultResetCodeTTL    = 10 * time.Minute
	DefaultResetCooldown   = 5 * time.Minute
)

// EnvConfig is the environment-backed Config implementation. The signing
// secret is process-wide, read-only, and rotated out of band.
type EnvConfig struct {
	SigningKey      string
	SigningMethod   string
	ContextKey      string
	TokenLookup     string
	AuthScheme      string
	Issuer          string
	Audience        []string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	ResetCodeTTL    time.Duration
	ResetCooldown   time.Duration
	RotateOnRefresh bool
	RevokeOnReset   bool
}

var _ Config = (*EnvConfig)(nil)

// LoadEnvConfig reads configuration from environment variables, loading a
// local .env first when present. A missing AUTH_SIGNING_KEY is fatal:
// tokens must never be silently issued unsigned.
func LoadEnvConfig() (*EnvConfig, error) {
	_ = godotenv.Load() // ok if missing in prod

	cfg := &EnvConfig{
		SigningKey:      os.Getenv("AUTH_SIGNING_KEY"),
		SigningMethod:   getenvDefault("AUTH_SIGNING_METHOD", "HS256"),
		ContextKey:      getenvDefault("AUTH_CONTEXT_KEY", "user"),
		TokenLookup:     getenvDefault("AUTH_TOKEN_LOOKUP", "header:Authorization"),
		AuthScheme:      getenvDefault("AUTH_SCHEME", "Bearer"),
		Issuer:          getenvDefault("AUTH_ISSUER", "authkit"),
		AccessTokenTTL:  getenvDuration("AUTH_ACCESS_TOKEN_TTL", DefaultAccessTokenTTL),
		RefreshTokenTTL: getenvDuration("AUTH_REFRESH_TOKEN_TTL", DefaultRefreshTokenTTL),
		ResetCodeTTL:    getenvDuration("AUTH_RESET_CODE_TTL", DefaultResetCodeTTL),
		ResetCooldown:   getenvDuration("AUTH_RESET_COOLDOWN", DefaultResetCooldown),
		RotateOnRefresh: getenvBool("AUTH_REFRESH_ROTATION", true),
		RevokeOnReset:   getenvBool("AUTH_REVOKE_SESSIONS_ON_RESET", true),
	}

	if aud := os.Getenv("AUTH_AUDIENCE"); aud != "" {
		cfg.Audience = []string{aud}
	}

	if cfg.SigningKey == "" {
		return nil, ErrMissingSigningKey
	}

	return cfg, nil
}

func (c *EnvConfig) GetSigningKey() string    { return c.SigningKey }
func (c *EnvConfig) GetSigningMethod() string { return c.SigningMethod }
func (c *EnvConfig) GetContextKey() string    { return c.ContextKey }
func (c *EnvConfig) GetTokenLookup() string   { return c.TokenLookup }
func (c *EnvConfig) GetAuthScheme() string    { return c.AuthScheme }
func (c *EnvConfig) GetIssuer() string        { return c.Issuer }
func (c *EnvConfig) GetAudience() []string    { return c.Audience }

func (c *EnvConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL <= 0 {
		return DefaultAccessTokenTTL
	}
	return c.AccessTokenTTL
}

func (c *EnvConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL <= 0 {
		return DefaultRefreshTokenTTL
	}
	return c.RefreshTokenTTL
}

func (c *EnvConfig) GetResetCodeTTL() time.Duration {
	if c.ResetCodeTTL <= 0 {
		return DefaultResetCodeTTL
	}
	return c.ResetCodeTTL
}

func (c *EnvConfig) GetResetCooldown() time.Duration {
	if c.ResetCooldown <= 0 {
		return DefaultResetCooldown
	}
	return c.ResetCooldown
}

func (c *EnvConfig) GetRefreshRotationEnabled() bool { return c.RotateOnRefresh }
func (c *EnvConfig) GetRevokeSessionsOnReset() bool  { return c.RevokeOnReset }

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
