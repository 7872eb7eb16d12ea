package authkit

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PasswordResets stores reset attempts. At most one unconsumed row may
// exist per identity; creating a new request supersedes prior ones inside
// the same transaction, and consumption is a conditional write so two
// concurrent verifications cannot both succeed.
type PasswordResets interface {
	repository.Repository[*PasswordReset]

	LatestForUser(ctx context.Context, userID uuid.UUID) (*PasswordReset, error)
	LatestForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*PasswordReset, error)

	CreateSupersedingTx(ctx context.Context, tx bun.IDB, reset *PasswordReset, cooldownCutoff time.Time) (*PasswordReset, error)

	ConsumeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, code string, now time.Time) (bool, error)
}

type passwordResets struct {
	repository.Repository[*PasswordReset]
	db *bun.DB
}

var (
	_ PasswordResets                        = (*passwordResets)(nil)
	_ repository.Repository[*PasswordReset] = (*passwordResets)(nil)
)

func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	repo := repository.NewRepository[*PasswordReset](db, repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset { return &PasswordReset{} },
		GetID: func(record *PasswordReset) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *PasswordReset, id uuid.UUID) {
			if record != nil {
				record.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &passwordResets{
		Repository: repo,
		db:         db,
	}
}

func (r *passwordResets) LatestForUser(ctx context.Context, userID uuid.UUID) (*PasswordReset, error) {
	return r.LatestForUserTx(ctx, r.db, userID)
}

// LatestForUserTx returns the most recent request for the identity,
// consumed or not; rows are kept forever for the cooldown lookback.
// Returns (nil, nil) when the user never requested a reset.
func (r *passwordResets) LatestForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*PasswordReset, error) {
	record := &PasswordReset{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		OrderExpr("?TableAlias.created_at DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load latest password reset")
	}

	return record, nil
}

var CreateResetGuardedSQL = `INSERT INTO "password_resets"
	("id", "user_id", "email", "code", "expires_at", "consumed", "created_at")
SELECT ?, ?, ?, ?, ?, ?, ?
WHERE NOT EXISTS (
	SELECT 1 FROM "password_resets"
	WHERE "user_id" = ? AND "created_at" > ?
) RETURNING *;`

// CreateSupersedingTx marks every unconsumed request for the identity as
// consumed and inserts the new one. Both writes run on the caller's
// transaction so the one-unconsumed-row invariant holds atomically.
//
// The insert itself is conditioned on no request existing after
// cooldownCutoff, so two transactions racing on the rate limit cannot
// both commit a row: the loser gets (nil, nil) and its supersede update
// rolls back with the transaction. A zero cutoff disables the guard.
func (r *passwordResets) CreateSupersedingTx(ctx context.Context, tx bun.IDB, reset *PasswordReset, cooldownCutoff time.Time) (*PasswordReset, error) {
	if reset.ID == uuid.Nil {
		reset.ID = uuid.New()
	}
	reset.Email = NormalizeEmail(reset.Email)
	if reset.CreatedAt == nil {
		now := time.Now()
		reset.CreatedAt = &now
	}

	_, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("consumed = ?", true).
		Where("user_id = ?", reset.UserID).
		Where("consumed = ?", false).
		Exec(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to supersede prior reset requests")
	}

	if cooldownCutoff.IsZero() {
		record, err := r.Repository.CreateTx(ctx, tx, reset)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset request")
		}
		return record, nil
	}

	res, err := r.Repository.RawTx(ctx, tx, CreateResetGuardedSQL,
		reset.ID.String(), reset.UserID.String(), reset.Email, reset.Code,
		reset.ExpiresAt, false, *reset.CreatedAt,
		reset.UserID.String(), cooldownCutoff,
	)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset request")
	}

	if len(res) == 0 {
		return nil, nil
	}

	return res[0], nil
}

// ConsumeTx atomically marks the matching request consumed. The update is
// conditioned on "not yet consumed AND not expired AND code matches", so
// of two concurrent attempts exactly one sees an affected row. It returns
// false when the condition did not hold, without distinguishing why.
func (r *passwordResets) ConsumeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, code string, now time.Time) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*PasswordReset)(nil)).
		Set("consumed = ?", true).
		Set("verified_at = ?", now).
		Where("user_id = ?", userID).
		Where("code = ?", code).
		Where("consumed = ?", false).
		Where("expires_at > ?", now).
		Exec(ctx)

	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to consume password reset request")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read consume result")
	}

	return affected == 1, nil
}
