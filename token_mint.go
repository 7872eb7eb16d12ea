package authkit

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"io"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// refreshTokenEntropy is the number of random bytes backing each refresh
// token before encoding.
const refreshTokenEntropy = 64

// MintRefreshToken generates an opaque refresh token with 64 bytes of
// entropy and returns the raw value together with its SHA-256 hex hash.
// Only the hash may be persisted; the raw token goes to the client once.
func MintRefreshToken() (raw string, hash string, err error) {
	buf := make([]byte, refreshTokenEntropy)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate refresh token entropy")
	}

	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, HashRefreshToken(raw), nil
}

// HashRefreshToken computes the storage hash for a raw refresh token. The
// same derivation runs at issuance and at presentation, so the stored
// hash always matches the hash recomputed from the client's raw token.
func HashRefreshToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewRefreshSession builds the session record for a freshly minted token.
func NewRefreshSession(userID uuid.UUID, tokenHash string, ttl time.Duration) *RefreshSession {
	now := time.Now()
	return &RefreshSession{
		ID:        uuid.New(),
		UserID:    userID,
		TokenHash: tokenHash,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

// resetCodeDigits is the length of password-reset codes.
const resetCodeDigits = 6

// GenerateResetCode returns a uniformly random 6-digit numeric code with
// leading zeros preserved.
func GenerateResetCode() (string, error) {
	// rejection sampling keeps the distribution uniform over [0, 10)
	// per digit
	digits := make([]byte, resetCodeDigits)
	buf := make([]byte, 1)
	for i := 0; i < resetCodeDigits; {
		if _, err := io.ReadFull(rand.Reader, buf); err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset code")
		}
		if buf[0] >= 250 {
			continue
		}
		digits[i] = '0' + buf[0]%10
		i++
	}
	return string(digits), nil
}
