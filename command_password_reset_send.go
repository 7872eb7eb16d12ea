package authkit

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// SendResetCodeMessage asks the coordinator to issue a reset code for the
// account behind the email.
type SendResetCodeMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *SendResetCodeResponse)
}

func (m SendResetCodeMessage) Type() string { return "user.password_reset.send" }

type SendResetCodeResponse struct {
	Reset     *PasswordReset
	ExpiresAt time.Time
	Success   bool
}

// SendResetCodeHandler issues time-boxed codes with a per-user cooldown.
// A new request supersedes all prior unconsumed requests in the same
// transaction, so at most one code is live per identity.
type SendResetCodeHandler struct {
	repo   RepositoryManager
	cfg    Config
	sender CodeSender
	logger Logger
}

// NewSendResetCodeHandler creates a handler with sane defaults.
func NewSendResetCodeHandler(repo RepositoryManager, cfg Config) *SendResetCodeHandler {
	return &SendResetCodeHandler{
		repo:   repo,
		cfg:    cfg,
		sender: LogCodeSender{},
		logger: defLogger{},
	}
}

// WithCodeSender sets the delivery channel for reset codes.
func (h *SendResetCodeHandler) WithCodeSender(sender CodeSender) *SendResetCodeHandler {
	if sender != nil {
		h.sender = sender
	}
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *SendResetCodeHandler) WithLogger(logger Logger) *SendResetCodeHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *SendResetCodeHandler) Execute(ctx context.Context, event SendResetCodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset send",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *SendResetCodeHandler) execute(ctx context.Context, event SendResetCodeMessage) error {
	resp := &SendResetCodeResponse{}

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

	// fast path only; the guarded insert below is what actually enforces
	// the rate limit when two sends pass this read together
	latest, err := h.repo.PasswordResets().LatestForUser(ctx, user.ID)
	if err != nil {
		return err
	}

	cooldown := h.cfg.GetResetCooldown()
	if latest != nil && latest.CreatedAt != nil && IsWithinThresholdPeriod(*latest.CreatedAt, cooldown) {
		return h.rateLimited(latest, cooldown)
	}

	code, err := GenerateResetCode()
	if err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		reset := &PasswordReset{
			UserID:    user.ID,
			Email:     user.Email,
			Code:      code,
			ExpiresAt: time.Now().Add(h.cfg.GetResetCodeTTL()),
		}

		created, err := h.repo.PasswordResets().CreateSupersedingTx(ctx, tx, reset, time.Now().Add(-cooldown))
		if err != nil {
			return err
		}

		if created == nil {
			// lost the race: a concurrent send committed inside the window
			latest, err := h.repo.PasswordResets().LatestForUserTx(ctx, tx, user.ID)
			if err != nil {
				return err
			}
			return h.rateLimited(latest, cooldown)
		}

		resp.Reset = created
		resp.ExpiresAt = created.ExpiresAt
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset request")
	}

	// fire and forget: a delivery failure does not invalidate the code,
	// and the code itself never reaches the logs
	go func(email, code string) {
		sendCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := h.sender.SendResetCode(sendCtx, email, code); err != nil {
			h.logger.Warn("reset code delivery failed", "to", MaskEmail(email), "error", err)
		}
	}(user.Email, code)

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *SendResetCodeHandler) rateLimited(latest *PasswordReset, cooldown time.Duration) error {
	seconds := int64(1)
	if latest != nil && latest.CreatedAt != nil {
		if remaining := RemainingCooldown(*latest.CreatedAt, cooldown); int64(remaining.Seconds()) > 1 {
			seconds = int64(remaining.Seconds())
		}
	}
	return RateLimitedError(seconds)
}
