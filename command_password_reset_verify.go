package authkit

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// VerifyResetCodeMessage consumes a reset code and rewrites the password.
type VerifyResetCodeMessage struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (m VerifyResetCodeMessage) Type() string { return "user.password_reset.verify" }

// VerifyResetCodeHandler finalizes a reset. Code consumption and the
// password rewrite commit together or not at all; the consume update is
// conditioned on "unconsumed AND unexpired" so concurrent attempts with
// the same code yield exactly one success.
type VerifyResetCodeHandler struct {
	repo   RepositoryManager
	cfg    Config
	logger Logger
}

// NewVerifyResetCodeHandler creates a handler with sane defaults.
func NewVerifyResetCodeHandler(repo RepositoryManager, cfg Config) *VerifyResetCodeHandler {
	return &VerifyResetCodeHandler{
		repo:   repo,
		cfg:    cfg,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *VerifyResetCodeHandler) WithLogger(logger Logger) *VerifyResetCodeHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyResetCodeHandler) Execute(ctx context.Context, event VerifyResetCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyResetCodeHandler) execute(ctx context.Context, event VerifyResetCodeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrIdentityNotFound
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	if !user.IsActive {
		return ErrIdentityNotFound
	}

	passwordHash, err := HashPassword(event.NewPassword)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid new password provided")
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		consumed, err := h.repo.PasswordResets().ConsumeTx(ctx, tx, user.ID, event.Code, time.Now())
		if err != nil {
			return err
		}

		// wrong, expired, and already-used codes are indistinguishable
		// to the client
		if !consumed {
			return ErrInvalidOrExpiredCode
		}

		if err := h.repo.Users().ResetPasswordTx(ctx, tx, user.ID, passwordHash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user password")
		}

		if h.cfg.GetRevokeSessionsOnReset() {
			if err := h.repo.Sessions().RevokeAllTx(ctx, tx, user.ID); err != nil {
				return err
			}
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	h.logger.Info("password reset completed", "user_id", user.ID.String())

	return nil
}
