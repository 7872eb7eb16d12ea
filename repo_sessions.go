package authkit

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// revokeAllAttempts bounds the RevokeAll verification loop. A silently
// missed session is a security leak, so we re-check after every sweep.
const revokeAllAttempts = 3

// Sessions is the durable table of refresh-token hashes. Point lookups go
// by hash; revocation is conditional so repeats are no-ops.
type Sessions interface {
	repository.Repository[*RefreshSession]

	Save(ctx context.Context, session *RefreshSession) (*RefreshSession, error)
	SaveTx(ctx context.Context, tx bun.IDB, session *RefreshSession) (*RefreshSession, error)

	GetByHash(ctx context.Context, tokenHash string) (*RefreshSession, error)
	GetByHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*RefreshSession, error)

	Revoke(ctx context.Context, userID uuid.UUID, tokenHash string) error
	RevokeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenHash string) error

	RevokeAll(ctx context.Context, userID uuid.UUID) error
	RevokeAllTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error

	CountLive(ctx context.Context, userID uuid.UUID) (int, error)
}

type sessions struct {
	repository.Repository[*RefreshSession]
	db *bun.DB
}

var (
	_ Sessions                               = (*sessions)(nil)
	_ repository.Repository[*RefreshSession] = (*sessions)(nil)
)

func NewSessionsRepository(db *bun.DB) Sessions {
	repo := repository.NewRepository[*RefreshSession](db, repository.ModelHandlers[*RefreshSession]{
		NewRecord: func() *RefreshSession { return &RefreshSession{} },
		GetID: func(s *RefreshSession) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *RefreshSession, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &sessions{
		Repository: repo,
		db:         db,
	}
}

func (r *sessions) Save(ctx context.Context, session *RefreshSession) (*RefreshSession, error) {
	return r.SaveTx(ctx, r.db, session)
}

// SaveTx persists a session. A token_hash collision is a fatal integrity
// violation: with 64 bytes of entropy it cannot happen by chance, so it
// is surfaced loudly and never retried.
func (r *sessions) SaveTx(ctx context.Context, tx bun.IDB, session *RefreshSession) (*RefreshSession, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	record, err := r.Repository.CreateTx(ctx, tx, session)
	if err != nil {
		if _, lookupErr := r.GetByHashTx(ctx, tx, session.TokenHash); lookupErr == nil {
			return nil, ErrTokenHashCollision
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "could not persist refresh session")
	}

	return record, nil
}

func (r *sessions) GetByHash(ctx context.Context, tokenHash string) (*RefreshSession, error) {
	return r.GetByHashTx(ctx, r.db, tokenHash)
}

func (r *sessions) GetByHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*RefreshSession, error) {
	record := &RefreshSession{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token_hash = ?", tokenHash).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (r *sessions) Revoke(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	return r.RevokeTx(ctx, r.db, userID, tokenHash)
}

// RevokeTx marks one session revoked. The update is conditioned on
// `revoked_at IS NULL`, so revoking twice changes nothing.
func (r *sessions) RevokeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenHash string) error {
	_, err := tx.NewUpdate().
		Model((*RefreshSession)(nil)).
		Set("revoked_at = ?", time.Now()).
		Where("user_id = ?", userID).
		Where("token_hash = ?", tokenHash).
		Where("revoked_at IS NULL").
		Exec(ctx)

	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke refresh session")
	}

	return nil
}

func (r *sessions) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return r.RevokeAllTx(ctx, r.db, userID)
}

// RevokeAllTx revokes every live session for the user and verifies none
// remain before reporting success. Leftover sessions after the sweep
// loop are an error the caller must act on, not a warning.
func (r *sessions) RevokeAllTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	for attempt := 0; attempt < revokeAllAttempts; attempt++ {
		_, err := tx.NewUpdate().
			Model((*RefreshSession)(nil)).
			Set("revoked_at = ?", time.Now()).
			Where("user_id = ?", userID).
			Where("revoked_at IS NULL").
			Exec(ctx)

		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke user sessions")
		}

		remaining, err := r.countLiveTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		if remaining == 0 {
			return nil
		}
	}

	return goerrors.New("unrevoked sessions remain after revocation sweep", goerrors.CategoryInternal).
		WithMetadata(map[string]any{
			"user_id": userID.String(),
		})
}

func (r *sessions) CountLive(ctx context.Context, userID uuid.UUID) (int, error) {
	return r.countLiveTx(ctx, r.db, userID)
}

func (r *sessions) countLiveTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (int, error) {
	count, err := tx.NewSelect().
		Model((*RefreshSession)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Where("?TableAlias.revoked_at IS NULL").
		Count(ctx)

	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to count live sessions")
	}

	return count, nil
}
