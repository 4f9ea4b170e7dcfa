package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// InitializePasswordResetMessage starts password recovery for an email
type InitializePasswordResetMessage struct {
	Email   string `json:"email" form:"email" example:"pepe.rone@example.com" doc:"Account email."`
	Subject string `json:"-" form:"-"`
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset" }

// InitializePasswordResetHandler checks the account exists and hands off to
// the PasswordBroker. Delivery failures are logged and not returned.
type InitializePasswordResetHandler struct {
	repo   RepositoryManager
	broker PasswordBroker
	logger Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, broker PasswordBroker) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:   repo,
		broker: broker,
		logger: defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var account *Account

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrEmailNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for password reset")
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

	subject := event.Subject
	if subject == "" {
		subject = DefaultResetSubject
	}

	if err := h.broker.SendResetLink(ctx, account.Email, subject); err != nil {
		h.logger.Error("password reset link not delivered", "email", account.Email, "error", err)
	}

	return nil
}
