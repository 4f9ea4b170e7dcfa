package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// VerifyAccountMessage carries the channel and code from a verification link
type VerifyAccountMessage struct {
	Channel    string `json:"type" example:"email" doc:"Verification channel, email or sms"`
	Code       string `json:"code" example:"q8Xb2..." doc:"Confirmation or verification code"`
	OnResponse func(resp *VerifyAccountResponse) `json:"-"`
}

func (e VerifyAccountMessage) Type() string { return "account.verify" }

// VerifyAccountResponse is reported through OnResponse
type VerifyAccountResponse struct {
	Account *Account
	Channel Channel
}

// VerifyAccountHandler consumes a verification code and confirms the account
type VerifyAccountHandler struct {
	repo       RepositoryManager
	dispatcher NotificationDispatcher
	logger     Logger
}

func NewVerifyAccountHandler(repo RepositoryManager, dispatcher NotificationDispatcher) *VerifyAccountHandler {
	return &VerifyAccountHandler{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     defLogger{},
	}
}

func (h *VerifyAccountHandler) WithLogger(logger Logger) *VerifyAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *VerifyAccountHandler) Execute(ctx context.Context, event VerifyAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyAccountHandler) execute(ctx context.Context, event VerifyAccountMessage) error {
	code := strings.TrimSpace(event.Code)
	if code == "" {
		return ErrInvalidCode
	}

	channel, err := ParseChannel(event.Channel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var account *Account

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		switch channel {
		case ChannelEmail:
			account, err = h.repo.Accounts().GetByConfirmationCodeTx(ctx, tx, code)
		case ChannelSMS:
			account, err = h.repo.Accounts().GetByVerificationCodeTx(ctx, tx, code)
		}

		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for verification")
		}

		if err := h.repo.Accounts().ConfirmTx(ctx, tx, account); err != nil {
			// the code was consumed between lookup and update
			if repository.IsRecordNotFound(err) {
				return ErrAccountNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm account")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to execute account verification")
	}

	if channel == ChannelEmail {
		if err := h.dispatcher.SendWelcomeEmail(ctx, account); err != nil {
			h.logger.Warn("failed to send welcome email", "account", account.ID, "error", err)
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyAccountResponse{
			Account: account,
			Channel: channel,
		})
	}

	return nil
}
