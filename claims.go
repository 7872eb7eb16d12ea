package authkit

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims represents the structured claims carried by access tokens.
type AuthClaims interface {
	Subject() string
	UserID() string
	Email() string
	Nickname() string
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims. The payload
// carries no secrets: identity id, email, nickname, and timing only.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID          string         `json:"uid,omitempty"`
	UserEmail    string         `json:"email,omitempty"`
	UserNickname string         `json:"nickname,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the user ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Email returns the email claim
func (c *JWTClaims) Email() string {
	return c.UserEmail
}

// Nickname returns the nickname claim
func (c *JWTClaims) Nickname() string {
	return c.UserNickname
}

// Expires returns the expiration time, zero when absent.
func (c *JWTClaims) Expires() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// IssuedAt returns the issuance time, zero when absent.
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

// ensureTokenID assigns a jti when the claims carry none, so individual
// tokens remain distinguishable in audits.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
