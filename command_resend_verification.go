package accounts

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ResendVerificationMessage requests a fresh verification artifact
type ResendVerificationMessage struct {
	Email      string `json:"email" form:"email" example:"pepe.rone@example.com" doc:"Account email"`
	OnResponse func(resp *ResendVerificationResponse) `json:"-" form:"-"`
}

func (e ResendVerificationMessage) Type() string { return "account.verification.resend" }

// ResendVerificationResponse is reported through OnResponse
type ResendVerificationResponse struct {
	Account *Account
	Channel Channel
	SMS     *SMSResult
}

// ResendVerificationHandler replaces the outstanding code of an unconfirmed
// account, in the channel the account registered with
type ResendVerificationHandler struct {
	repo       RepositoryManager
	dispatcher NotificationDispatcher
	issuer     CodeIssuer
	logger     Logger
}

func NewResendVerificationHandler(repo RepositoryManager, dispatcher NotificationDispatcher) *ResendVerificationHandler {
	return &ResendVerificationHandler{
		repo:       repo,
		dispatcher: dispatcher,
		issuer:     IssueCode,
		logger:     defLogger{},
	}
}

func (h *ResendVerificationHandler) WithCodeIssuer(issuer CodeIssuer) *ResendVerificationHandler {
	if issuer != nil {
		h.issuer = issuer
	}
	return h
}

func (h *ResendVerificationHandler) WithLogger(logger Logger) *ResendVerificationHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ResendVerificationHandler) Execute(ctx context.Context, event ResendVerificationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification resend")
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendVerificationHandler) execute(ctx context.Context, event ResendVerificationMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var (
		account *Account
		channel Channel
		code    string
	)

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = h.repo.Accounts().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrEmailNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account for verification resend")
		}

		if account.Confirmed {
			return ErrAlreadyVerified
		}

		channel = account.VerificationChannel
		if channel != ChannelSMS {
			channel = ChannelEmail
		}

		code, err = issueUniqueCodeTx(ctx, tx, h.repo.Accounts(), channel, h.issuer)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
		}

		switch channel {
		case ChannelSMS:
			err = h.repo.Accounts().SetVerificationCodeTx(ctx, tx, account.ID, code)
			account.VerificationCode = &code
		default:
			err = h.repo.Accounts().SetConfirmationCodeTx(ctx, tx, account.ID, code)
			account.ConfirmationCode = &code
		}

		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification code")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resend verification")
	}

	resp := &ResendVerificationResponse{
		Account: account,
		Channel: channel,
	}

	switch channel {
	case ChannelSMS:
		result, err := h.dispatcher.SendVerificationSMS(ctx, account, code)
		if err != nil {
			h.logger.Error("failed to resend verification sms", "account", account.ID, "error", err)
			return asDeliveryError(err, "failed to send verification sms")
		}
		resp.SMS = result
	default:
		if err := h.dispatcher.SendVerificationEmail(ctx, account, code); err != nil {
			h.logger.Error("failed to resend verification email", "account", account.ID, "error", err)
			return asDeliveryError(err, "failed to send verification email")
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
