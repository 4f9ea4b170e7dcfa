package accounts

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token                string `json:"token" form:"token" example:"350399bc-c095-4bdc-a59c-3352d44848e4" doc:"Reset password token"`
	Password             string `json:"password" form:"password" example:"some_secret_word" doc:"Password"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation" doc:"Password confirmation"`
}

func (e FinalizePasswordResetMessage) Type() string { return "account.password_reset.finalize" }

// Validate checks the new password and its confirmation
func (e FinalizePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required),
		validation.Field(&e.Password, validation.Required, validation.Length(minPasswordLength, 0)),
		validation.Field(
			&e.PasswordConfirmation,
			validation.Required,
			validation.By(ValidateStringEquals(e.Password)),
		),
	)
}

type FinalizePasswordResetHandler struct {
	broker PasswordBroker
	logger Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(broker PasswordBroker) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		broker: broker,
		logger: defLogger{},
	}
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	if err := event.Validate(); err != nil {
		return NewValidationError("validation failed", FormatValidationErrorToMap(err))
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.broker.Reset(ctx, event.Token, event.Password); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	return nil
}
