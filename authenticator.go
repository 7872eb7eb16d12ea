package authkit

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Auther is the orchestrator behind register, login, refresh, logout,
// and withdraw. It is the only writer of password hashes and refresh
// sessions; protected-route verification lives in middleware/jwtware.
type Auther struct {
	repo         RepositoryManager
	tokenService TokenService
	cfg          Config
	logger       Logger
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Auther. A missing signing key surfaces
// here as ErrMissingSigningKey rather than at first issuance.
func NewAuthenticator(repo RepositoryManager, cfg Config) (*Auther, error) {
	tokenService, err := NewTokenService(
		[]byte(cfg.GetSigningKey()),
		cfg.GetAccessTokenTTL(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		defLogger{},
	)
	if err != nil {
		return nil, err
	}

	return &Auther{
		repo:         repo,
		tokenService: tokenService,
		cfg:          cfg,
		logger:       defLogger{},
	}, nil
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Register creates the identity and issues its first token pair. The
// password hash is computed before the transaction opens so bcrypt work
// does not hold a connection.
func (s *Auther) Register(ctx context.Context, msg RegisterUserMessage) (*User, *TokenPair, error) {
	hash, err := HashPassword(msg.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, nil, richErr
		}
		return nil, nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Email:        msg.Email,
		Nickname:     msg.Nickname,
		Phone:        msg.Phone,
		Locale:       msg.Locale,
		Units:        msg.Units,
		PasswordHash: hash,
	}

	if msg.UseDeterministicID {
		if id, ok := DeterministicUserID(msg.Email); ok {
			user.ID = id
		}
	}

	var pair *TokenPair

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repo.Users().RegisterTx(ctx, tx, user)
		if err != nil {
			return err
		}

		user = created

		pair, err = s.issueTokenPairTx(ctx, tx, user)
		return err
	})

	if err != nil {
		return nil, nil, WrapUnexpected(err, "user registration failed")
	}

	s.logger.Info("registered new account", "user_id", user.ID.String())

	return user, pair, nil
}

// Login verifies credentials and issues a fresh token pair. Concurrent
// sessions from other devices stay valid.
func (s *Auther) Login(ctx context.Context, email, password string) (*User, *TokenPair, error) {
	user, err := s.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil, ErrIdentityNotFound
		}
		return nil, nil, WrapUnexpected(err, "failed to load account for login")
	}

	if !user.IsActive || user.DeletedAt != nil {
		return nil, nil, ErrIdentityNotFound
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		s.logger.Info("login rejected", "user_id", user.ID.String())
		return nil, nil, ErrMismatchedHashAndPassword
	}

	var pair *TokenPair
	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		pair, err = s.issueTokenPairTx(ctx, tx, user)
		return err
	})

	if err != nil {
		return nil, nil, WrapUnexpected(err, "failed to issue session")
	}

	return user, pair, nil
}

// Refresh exchanges a refresh token for a new access token. With rotation
// enabled the presented session is revoked and replaced in the same
// transaction; a replayed stale token then loses the race and fails.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}

	tokenHash := HashRefreshToken(refreshToken)

	var pair *TokenPair

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		session, err := s.repo.Sessions().GetByHashTx(ctx, tx, tokenHash)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrInvalidToken
			}
			return err
		}

		if !session.Usable(time.Now()) {
			return ErrInvalidToken
		}

		user, err := s.repo.Users().GetActiveByID(ctx, session.UserID)
		if err != nil {
			return ErrInvalidToken
		}

		if !s.cfg.GetRefreshRotationEnabled() {
			accessToken, expiresAt, err := s.tokenService.Generate(user.Identity())
			if err != nil {
				return err
			}
			pair = &TokenPair{
				AccessToken:      accessToken,
				AccessExpiresAt:  expiresAt,
				RefreshExpiresAt: session.ExpiresAt,
			}
			return nil
		}

		if err := s.repo.Sessions().RevokeTx(ctx, tx, session.UserID, tokenHash); err != nil {
			return err
		}

		pair, err = s.issueTokenPairTx(ctx, tx, user)
		return err
	})

	if err != nil {
		return nil, WrapUnexpected(err, "token refresh failed")
	}

	return pair, nil
}

// Logout revokes the session tied to the presented credential. Both raw
// refresh tokens and bearer access tokens are accepted. It is idempotent:
// unknown and already-revoked credentials succeed silently.
func (s *Auther) Logout(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}

	tokenHash := HashRefreshToken(credential)

	session, err := s.repo.Sessions().GetByHash(ctx, tokenHash)
	if err == nil {
		if err := s.repo.Sessions().Revoke(ctx, session.UserID, tokenHash); err != nil {
			return WrapUnexpected(err, "failed to revoke session")
		}
		return nil
	}

	if !repository.IsRecordNotFound(err) {
		return WrapUnexpected(err, "failed to resolve session for logout")
	}

	// not a refresh token we know. An access token cannot name a refresh
	// session, so a verified one is acknowledged without touching state.
	if claims, verr := s.tokenService.Validate(credential); verr == nil {
		if obj, serr := sessionFromAuthClaims(claims); serr == nil {
			if id, uerr := obj.GetUserUUID(); uerr == nil {
				s.logger.Info("logout acknowledged via access token", "user_id", id.String())
			}
		}
	}

	return nil
}

// Withdraw soft-deletes the identity and revokes every session. This is
// the one path that must guarantee no usable session survives, so the
// revocation sweep runs inside the same transaction as the deactivation.
func (s *Auther) Withdraw(ctx context.Context, userID uuid.UUID) error {
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.Users().SetActiveTx(ctx, tx, userID, false); err != nil {
			return err
		}
		return s.repo.Sessions().RevokeAllTx(ctx, tx, userID)
	})

	if err != nil {
		return WrapUnexpected(err, "account withdrawal failed")
	}

	s.logger.Info("account withdrawn", "user_id", userID.String())

	return nil
}

// SessionFromToken validates an access token and returns its session view.
func (s *Auther) SessionFromToken(raw string) (Session, error) {
	claims, err := s.tokenService.Validate(raw)
	if err != nil {
		return nil, err
	}

	return sessionFromAuthClaims(claims)
}

// IdentityFromSession resolves the active identity behind a session.
func (s *Auther) IdentityFromSession(ctx context.Context, session Session) (Identity, error) {
	id, err := session.GetUserUUID()
	if err != nil {
		return nil, ErrUnableToMapClaims
	}

	user, err := s.repo.Users().GetActiveByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return user.Identity(), nil
}

// issueTokenPairTx mints the access token and refresh token, persists the
// session record, and returns the pair. The raw refresh token exists only
// in the returned value.
func (s *Auther) issueTokenPairTx(ctx context.Context, tx bun.IDB, user *User) (*TokenPair, error) {
	accessToken, accessExpiresAt, err := s.tokenService.Generate(user.Identity())
	if err != nil {
		return nil, err
	}

	rawRefresh, refreshHash, err := MintRefreshToken()
	if err != nil {
		return nil, err
	}

	session := NewRefreshSession(user.ID, refreshHash, s.cfg.GetRefreshTokenTTL())
	if _, err := s.repo.Sessions().SaveTx(ctx, tx, session); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     rawRefresh,
		RefreshExpiresAt: session.ExpiresAt,
	}, nil
}
