package accounts

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	PasswordResets() PasswordResets
}

// PasswordResets is the password reset request store
type PasswordResets interface {
	repository.Repository[*PasswordReset]
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PasswordReset, error)
	MarkChangedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	MarkExpiredTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type passwordResets struct {
	repository.Repository[*PasswordReset]
}

func NewPasswordResetsRepository(db *bun.DB) PasswordResets {
	handlers := repository.ModelHandlers[*PasswordReset]{
		NewRecord: func() *PasswordReset {
			return &PasswordReset{}
		},
		GetID: func(record *PasswordReset) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *PasswordReset, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "email"
		},
	}
	return &passwordResets{Repository: repository.NewRepository(db, handlers)}
}

func (p *passwordResets) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*PasswordReset, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"token": token,
			})
	}

	record := &PasswordReset{}
	if err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"token": token,
				})
		}
		return nil, err
	}

	return record, nil
}

// MarkChangedTx consumes a requested reset. A reset that already left the
// requested state yields ErrResetAlreadyUsed.
func (p *passwordResets) MarkChangedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	r := MarkPasswordAsReseted(id)
	return p.transition(ctx, tx, r, "status", "reseted_at", "updated_at")
}

// MarkExpiredTx moves a requested reset past its TTL to expired
func (p *passwordResets) MarkExpiredTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	return p.transition(ctx, tx, &PasswordReset{ID: id, Status: ResetExpiredStatus}, "status", "updated_at")
}

func (p *passwordResets) transition(ctx context.Context, tx bun.IDB, r *PasswordReset, columns ...string) error {
	now := time.Now()
	r.UpdatedAt = &now

	res, err := tx.NewUpdate().
		Model(r).
		Column(columns...).
		WherePK().
		Where("?TableAlias.status = ?", ResetRequestedStatus).
		Exec(ctx)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return ErrResetAlreadyUsed
	}

	return nil
}

type mngr struct {
	db             *bun.DB
	accounts       Accounts
	passwordResets PasswordResets
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:             db,
		accounts:       NewAccountsRepository(db),
		passwordResets: NewPasswordResetsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.passwordResets == nil {
		return errors.New("repository passwordResets should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) PasswordResets() PasswordResets {
	return m.passwordResets
}
