package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

const pgUniqueViolation = "23505"

// Accounts is the account store
type Accounts interface {
	repository.Repository[*Account]

	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByConfirmationCodeTx(ctx context.Context, tx bun.IDB, code string) (*Account, error)
	GetByVerificationCodeTx(ctx context.Context, tx bun.IDB, code string) (*Account, error)
	ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error)
	ExistsByPhoneTx(ctx context.Context, tx bun.IDB, phone string) (bool, error)
	CodeInUseTx(ctx context.Context, tx bun.IDB, channel Channel, code string) (bool, error)

	Register(ctx context.Context, account *Account) (*Account, error)
	RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	ConfirmTx(ctx context.Context, tx bun.IDB, account *Account) error
	SetConfirmationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string) error
	SetVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type accountsRepo struct {
	repository.Repository[*Account]
	db *bun.DB
}

var (
	_ Accounts                        = (*accountsRepo)(nil)
	_ repository.Repository[*Account] = (*accountsRepo)(nil)
)

// NewAccountsRepository returns the bun backed account store
func NewAccountsRepository(db *bun.DB) Accounts {
	repo := repository.NewRepository[*Account](db, repository.ModelHandlers[*Account]{
		NewRecord: func() *Account { return &Account{} },
		GetID: func(a *Account) uuid.UUID {
			if a == nil {
				return uuid.Nil
			}
			return a.ID
		},
		SetID: func(a *Account, id uuid.UUID) {
			if a != nil {
				a.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &accountsRepo{
		Repository: repo,
		db:         db,
	}
}

func (a *accountsRepo) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.findOneBy(ctx, tx, "email", normalizeEmail(email))
}

func (a *accountsRepo) GetByConfirmationCodeTx(ctx context.Context, tx bun.IDB, code string) (*Account, error) {
	return a.findOneBy(ctx, tx, "confirmation_code", code)
}

func (a *accountsRepo) GetByVerificationCodeTx(ctx context.Context, tx bun.IDB, code string) (*Account, error) {
	return a.findOneBy(ctx, tx, "verification_code", code)
}

func (a *accountsRepo) ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	return tx.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Exists(ctx)
}

func (a *accountsRepo) ExistsByPhoneTx(ctx context.Context, tx bun.IDB, phone string) (bool, error) {
	return tx.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.phone_number = ?", strings.TrimSpace(phone)).
		Exists(ctx)
}

// CodeInUseTx reports whether the code is outstanding on any account for
// the given channel
func (a *accountsRepo) CodeInUseTx(ctx context.Context, tx bun.IDB, channel Channel, code string) (bool, error) {
	column := "confirmation_code"
	if channel == ChannelSMS {
		column = "verification_code"
	}

	return tx.NewSelect().
		Model((*Account)(nil)).
		Where("?TableAlias.? = ?", bun.Ident(column), code).
		Exists(ctx)
}

func (a *accountsRepo) Register(ctx context.Context, account *Account) (*Account, error) {
	return a.RegisterTx(ctx, a.db, account)
}

// RegisterTx inserts the account. Unique violations on email or phone are
// reported as validation errors.
func (a *accountsRepo) RegisterTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	prepareAccountDefaults(account)

	created, err := a.Repository.CreateTx(ctx, tx, account)
	if err != nil {
		if field, ok := uniqueViolationField(err); ok {
			return nil, NewValidationError("validation failed", map[string]string{
				field: fmt.Sprintf("The %s has already been taken.", strings.ReplaceAll(field, "_", " ")),
			})
		}
		return nil, err
	}

	return created, nil
}

// ConfirmTx marks the account confirmed and clears both code columns. The
// write only applies while the account is unconfirmed and still holds the
// code it was loaded with, otherwise a not found error is returned.
func (a *accountsRepo) ConfirmTx(ctx context.Context, tx bun.IDB, account *Account) error {
	q := tx.NewUpdate().
		Model(account).
		Column("confirmed", "confirmation_code", "verification_code", "updated_at").
		WherePK().
		Where("?TableAlias.confirmed = ?", false)

	if account.ConfirmationCode != nil {
		q = q.Where("?TableAlias.confirmation_code = ?", *account.ConfirmationCode)
	}
	if account.VerificationCode != nil {
		q = q.Where("?TableAlias.verification_code = ?", *account.VerificationCode)
	}

	account.MarkConfirmed()
	now := time.Now()
	account.UpdatedAt = &now

	return a.exec(ctx, q, account.ID)
}

// SetConfirmationCodeTx replaces the outstanding email confirmation code
func (a *accountsRepo) SetConfirmationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string) error {
	return a.setCode(ctx, tx, id, "confirmation_code", code)
}

// SetVerificationCodeTx replaces the outstanding SMS verification code
func (a *accountsRepo) SetVerificationCodeTx(ctx context.Context, tx bun.IDB, id uuid.UUID, code string) error {
	return a.setCode(ctx, tx, id, "verification_code", code)
}

func (a *accountsRepo) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	return a.exec(ctx, tx.NewUpdate().
		Model((*Account)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", time.Now()).
		Where("?TableAlias.id = ?", id), id)
}

func (a *accountsRepo) setCode(ctx context.Context, tx bun.IDB, id uuid.UUID, column, code string) error {
	return a.exec(ctx, tx.NewUpdate().
		Model((*Account)(nil)).
		Set("? = ?", bun.Ident(column), code).
		Set("updated_at = ?", time.Now()).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.confirmed = ?", false), id)
}

func (a *accountsRepo) exec(ctx context.Context, q *bun.UpdateQuery, id uuid.UUID) error {
	res, err := q.Exec(ctx)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *accountsRepo) findOneBy(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				column: value,
			})
	}

	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					column: value,
				})
		}
		return nil, err
	}

	return record, nil
}

func prepareAccountDefaults(record *Account) {
	if record == nil {
		return
	}

	record.Email = normalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := time.Now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.UpdatedAt == nil {
		record.UpdatedAt = &now
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// uniqueViolationField returns the account column behind a unique
// constraint failure, for both postgres and sqlite drivers
func uniqueViolationField(err error) (string, bool) {
	var msg string

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return "", false
		}
		msg = pgErr.ConstraintName + " " + pgErr.Detail
	} else {
		msg = err.Error()
		if !strings.Contains(strings.ToUpper(msg), "UNIQUE") {
			return "", false
		}
	}

	switch {
	case strings.Contains(msg, "phone_number"):
		return "phone_number", true
	case strings.Contains(msg, "email"):
		return "email", true
	default:
		return "", false
	}
}
