package authkit

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes surfaced to clients alongside the HTTP status code. They are
// stable identifiers; messages may change, text codes may not.
const (
	TextCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	TextCodeUserNotFound       = "USER_NOT_FOUND"
	TextCodeInvalidCreds       = "INVALID_CREDENTIALS"
	TextCodeInvalidToken       = "INVALID_TOKEN"
	TextCodeTokenExpired       = "TOKEN_EXPIRED"
	TextCodeAccountInactive    = "ACCOUNT_INACTIVE"
	TextCodeInvalidResetCode   = "INVALID_OR_EXPIRED_CODE"
	TextCodeResetCooldown      = "RESET_RATE_LIMITED"
	TextCodeValidationFailed   = "VALIDATION_FAILED"
	TextCodeEmptyPassword      = "EMPTY_PASSWORD"
	TextCodeSessionNotFound    = "SESSION_NOT_FOUND"
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
	TextCodeMissingSigningKey  = "MISSING_SIGNING_KEY"
	TextCodeHashCollision      = "TOKEN_HASH_COLLISION"
	TextCodeUnexpected         = "UNEXPECTED_ERROR"
)

// ErrDuplicateEmail is returned when registering an email that already
// belongs to an active identity.
var ErrDuplicateEmail = goerrors.New("an account with this email already exists", goerrors.CategoryConflict).
	WithCode(goerrors.CodeConflict).
	WithTextCode(TextCodeDuplicateEmail)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound).
	WithTextCode(TextCodeUserNotFound)

// ErrMismatchedHashAndPassword is the client-facing credentials error; it
// deliberately does not distinguish unknown email from wrong password.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCreds)

// ErrInvalidToken covers refresh tokens that are unknown, revoked, or
// expired, and access tokens that fail signature checks.
var ErrInvalidToken = goerrors.New("invalid authentication token", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidToken)

// ErrTokenExpired means the token signature was valid but the expiry passed.
var ErrTokenExpired = goerrors.New("authentication token has expired", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is returned for tokens we cannot parse at all.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidToken)

// ErrAccountInactive is distinct from token errors: the token was
// cryptographically valid but the underlying account is gone or disabled.
var ErrAccountInactive = goerrors.New("account is deactivated", goerrors.CategoryAuthz).
	WithCode(goerrors.CodeForbidden).
	WithTextCode(TextCodeAccountInactive)

// ErrInvalidOrExpiredCode collapses wrong, expired, and already-used reset
// codes into one answer to avoid enumeration.
var ErrInvalidOrExpiredCode = goerrors.New("invalid or expired reset code", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeInvalidResetCode)

// ErrResetRateLimited is the base rate-limit error; callers attach the
// remaining wait through RateLimitedError to report retry_after_seconds.
var ErrResetRateLimited = goerrors.New("a reset code was requested too recently", goerrors.CategoryRateLimit).
	WithCode(goerrors.CodeTooManyRequests).
	WithTextCode(TextCodeResetCooldown)

// ErrMissingSigningKey is fatal: tokens must never be issued unsigned.
var ErrMissingSigningKey = goerrors.New("token signing key is not configured", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal).
	WithTextCode(TextCodeMissingSigningKey)

// ErrTokenHashCollision marks a refresh-token hash collision on save. It
// is an integrity violation, never retried.
var ErrTokenHashCollision = goerrors.New("refresh token hash already exists", goerrors.CategoryInternal).
	WithCode(goerrors.CodeInternal).
	WithTextCode(TextCodeHashCollision)

// ErrUnableToFindSession is the error when the request has no credential
var ErrUnableToFindSession = goerrors.New("unable to find session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeSessionNotFound)

// ErrUnableToDecodeSession unable to decode JWT from the request
var ErrUnableToDecodeSession = goerrors.New("unable to decode session", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeSessionDecodeError)

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = goerrors.New("unable to map claims", goerrors.CategoryAuth).
	WithCode(goerrors.CodeUnauthorized).
	WithTextCode(TextCodeClaimsMappingError)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithCode(goerrors.CodeBadRequest).
	WithTextCode(TextCodeEmptyPassword)

// RateLimitedError builds a rate-limit error carrying the remaining
// cooldown so clients know when to retry.
func RateLimitedError(retryAfterSeconds int64) *goerrors.Error {
	return goerrors.New("a reset code was requested too recently", goerrors.CategoryRateLimit).
		WithCode(goerrors.CodeTooManyRequests).
		WithTextCode(TextCodeResetCooldown).
		WithMetadata(map[string]any{
			"retry_after_seconds": retryAfterSeconds,
		})
}

// WrapUnexpected converts any non-taxonomy error into a generic 500 so
// internal details never leak to clients.
func WrapUnexpected(err error, msg string) *goerrors.Error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithCode(goerrors.CodeInternal).
		WithTextCode(TextCodeUnexpected)
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
