package authkit

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the canonical identity record. Email is unique among active
// accounts and normalized to lower case at the repository boundary.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Nickname      string     `bun:"nickname" json:"nickname,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	Locale        string     `bun:"locale" json:"locale,omitempty"`
	Units         string     `bun:"units" json:"units,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsActive      bool       `bun:"is_active,notnull,default:true" json:"is_active,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Identity adapts the record to the Identity interface used by token
// issuance and context plumbing.
func (u *User) Identity() Identity {
	return userIdentity{user: u}
}

type userIdentity struct {
	user *User
}

func (i userIdentity) ID() string       { return i.user.ID.String() }
func (i userIdentity) Email() string    { return i.user.Email }
func (i userIdentity) Nickname() string { return i.user.Nickname }

// RefreshSession binds a refresh-token hash to a user and its validity
// window. The raw token is never stored.
type RefreshSession struct {
	bun.BaseModel `bun:"table:refresh_sessions,alias:rs"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	TokenHash     string     `bun:"token_hash,notnull,unique" json:"-"`
	IssuedAt      time.Time  `bun:"issued_at,notnull" json:"issued_at,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	RevokedAt     *time.Time `bun:"revoked_at,nullzero" json:"revoked_at,omitempty"`
}

// Usable reports whether the session can still be exchanged for access
// tokens: not revoked and not past its expiry.
func (s *RefreshSession) Usable(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// PasswordReset is one reset attempt. Rows are never deleted; superseded
// and verified rows are marked consumed and kept for audit and the
// cooldown lookback.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Code          string     `bun:"code,notnull" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	VerifiedAt    *time.Time `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	Consumed      bool       `bun:"consumed,notnull,default:false" json:"consumed,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}
