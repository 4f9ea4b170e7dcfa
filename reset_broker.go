package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultResetTTL is how long a password reset link stays valid
const DefaultResetTTL = 24 * time.Hour

// DefaultResetSubject is the subject of the password reset email
const DefaultResetSubject = "Your Password Reset Link"

// ResetBroker issues and redeems single use password reset tokens
type ResetBroker struct {
	repo       RepositoryManager
	dispatcher NotificationDispatcher
	hasher     CredentialHasher
	baseURL    string
	ttl        time.Duration
	logger     Logger
}

var _ PasswordBroker = (*ResetBroker)(nil)

func NewResetBroker(repo RepositoryManager, dispatcher NotificationDispatcher) *ResetBroker {
	return &ResetBroker{
		repo:       repo,
		dispatcher: dispatcher,
		hasher:     BcryptHasher{},
		ttl:        DefaultResetTTL,
		logger:     defLogger{},
	}
}

// WithBaseURL sets the public URL reset links are built from
func (b *ResetBroker) WithBaseURL(url string) *ResetBroker {
	b.baseURL = strings.TrimRight(url, "/")
	return b
}

func (b *ResetBroker) WithTTL(ttl time.Duration) *ResetBroker {
	if ttl > 0 {
		b.ttl = ttl
	}
	return b
}

func (b *ResetBroker) WithHasher(hasher CredentialHasher) *ResetBroker {
	if hasher != nil {
		b.hasher = hasher
	}
	return b
}

func (b *ResetBroker) WithLogger(logger Logger) *ResetBroker {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// LinkFor returns the reset URL for a token
func (b *ResetBroker) LinkFor(token string) string {
	return b.baseURL + "/password/reset/" + token
}

// SendResetLink records a reset request for the account and emails the link
func (b *ResetBroker) SendResetLink(ctx context.Context, email, subject string) error {
	if subject == "" {
		subject = DefaultResetSubject
	}

	var (
		account *Account
		reset   *PasswordReset
	)

	err := b.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = b.repo.Accounts().GetByEmailTx(ctx, tx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrEmailNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
		}

		now := time.Now()
		record := &PasswordReset{
			ID:        uuid.New(),
			AccountID: account.ID,
			Email:     account.Email,
			Status:    ResetRequestedStatus,
			CreatedAt: &now,
			UpdatedAt: &now,
		}

		reset, err = b.repo.PasswordResets().CreateTx(ctx, tx, record)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create password reset record")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	token := reset.ID.String()
	link := PasswordResetLink{
		Subject: subject,
		Token:   token,
		URL:     b.LinkFor(token),
		Expires: reset.CreatedAt.Add(b.ttl),
	}

	if err := b.dispatcher.SendPasswordResetEmail(ctx, account, link); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send password reset email")
	}

	return nil
}

// Reset redeems a reset token and stores the new password
func (b *ResetBroker) Reset(ctx context.Context, token, password string) error {
	hash, err := b.hasher.HashPassword(password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid new password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	expired := false
	err = b.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		reset, err := b.repo.PasswordResets().GetByTokenTx(ctx, tx, token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrResetNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not retrieve password reset request")
		}

		switch reset.Status {
		case ResetRequestedStatus:
		case ResetExpiredStatus:
			return ErrResetExpired
		default:
			return ErrResetAlreadyUsed
		}

		if reset.CreatedAt == nil {
			return goerrors.New("password reset record is missing creation date", goerrors.CategoryInternal)
		}

		if !IsWithin(*reset.CreatedAt, b.ttl) {
			// commit the expired status, the caller still gets ErrResetExpired
			expired = true
			if err := b.repo.PasswordResets().MarkExpiredTx(ctx, tx, reset.ID); err != nil && !goerrors.Is(err, ErrResetAlreadyUsed) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to expire password reset")
			}
			return nil
		}

		// the guarded status write runs first so a concurrent redeem of the
		// same token fails before touching the password
		if err := b.repo.PasswordResets().MarkChangedTx(ctx, tx, reset.ID); err != nil {
			if goerrors.Is(err, ErrResetAlreadyUsed) {
				return err
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password reset status")
		}

		if err := b.repo.Accounts().UpdatePasswordTx(ctx, tx, reset.AccountID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update account password in database")
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

	if expired {
		return ErrResetExpired
	}

	b.logger.Info("password reset completed", "token", token)
	return nil
}
