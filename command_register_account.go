package accounts

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

// RegisterAccountMessage is the registration payload
type RegisterAccountMessage struct {
	Name                 string `json:"name" form:"name" example:"Pepe Rone" doc:"Display name"`
	Email                string `json:"email" form:"email" example:"pepe.rone@example.com" doc:"Account email"`
	Phone                string `json:"phone_number" form:"phone_number" example:"+16502530000" doc:"Account phone number"`
	Password             string `json:"password" form:"password" example:"some_secret_word" doc:"Password"`
	PasswordConfirmation string `json:"password_confirmation" form:"password_confirmation" doc:"Password confirmation"`
	VType                string `json:"v_type" form:"v_type" example:"email" doc:"Verification channel, email or sms"`
	UseHashid            bool   `json:"-" form:"-"`
	OnResponse           func(resp *RegisterAccountResponse) `json:"-" form:"-"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate checks the payload shape. Uniqueness is checked by the
// InputValidator and enforced by the store.
func (e RegisterAccountMessage) Validate(region string) error {
	return validation.ValidateStruct(&e, registrationRules(&e, region)...)
}

// RegisterAccountResponse is reported through OnResponse
type RegisterAccountResponse struct {
	Account *Account
	Channel Channel
	SMS     *SMSResult
}

// RegisterAccountHandler creates unconfirmed accounts and dispatches the
// verification artifact for the chosen channel
type RegisterAccountHandler struct {
	repo       RepositoryManager
	validator  InputValidator
	hasher     CredentialHasher
	dispatcher NotificationDispatcher
	issuer     CodeIssuer
	hashidOpts []hashid.Option
	region     string
	logger     Logger
}

func NewRegisterAccountHandler(repo RepositoryManager, dispatcher NotificationDispatcher) *RegisterAccountHandler {
	return &RegisterAccountHandler{
		repo:       repo,
		validator:  NewRegistrationValidator(repo),
		hasher:     BcryptHasher{},
		dispatcher: dispatcher,
		issuer:     IssueCode,
		region:     DefaultPhoneRegion,
		logger:     defLogger{},
	}
}

func (h *RegisterAccountHandler) WithValidator(v InputValidator) *RegisterAccountHandler {
	if v != nil {
		h.validator = v
	}
	return h
}

func (h *RegisterAccountHandler) WithHasher(hasher CredentialHasher) *RegisterAccountHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *RegisterAccountHandler) WithCodeIssuer(issuer CodeIssuer) *RegisterAccountHandler {
	if issuer != nil {
		h.issuer = issuer
	}
	return h
}

// WithHashidOptions configures the id derivation used when a message sets
// UseHashid, for example an HMAC key
func (h *RegisterAccountHandler) WithHashidOptions(opts ...hashid.Option) *RegisterAccountHandler {
	h.hashidOpts = append(h.hashidOpts, opts...)
	return h
}

// WithPhoneRegion sets the default region for national format numbers. The
// built in RegistrationValidator follows the same region.
func (h *RegisterAccountHandler) WithPhoneRegion(region string) *RegisterAccountHandler {
	if region == "" {
		return h
	}
	h.region = strings.ToUpper(region)
	if v, ok := h.validator.(*RegistrationValidator); ok {
		v.WithPhoneRegion(h.region)
	}
	return h
}

func (h *RegisterAccountHandler) WithLogger(logger Logger) *RegisterAccountHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.validator.ValidateRegistration(ctx, &event); err != nil {
		return err
	}

	channel, err := ParseChannel(event.VType)
	if err != nil {
		return err
	}

	phone, err := NormalizePhone(event.Phone, h.region)
	if err != nil {
		return NewValidationError("validation failed", map[string]string{
			"phone_number": "The phone number is not valid.",
		})
	}

	hash, err := h.hasher.HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	account := &Account{
		Name:                event.Name,
		Email:               normalizeEmail(event.Email),
		Phone:               phone,
		PasswordHash:        hash,
		VerificationChannel: channel,
	}

	if event.UseHashid {
		id, err := hashid.NewUUID(account.Email, h.hashidOpts...)
		if err != nil {
			h.logger.Error("failed to generate hashid for account", "email", account.Email, "error", err)
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate account id")
		}
		account.ID = id
	}

	var code string
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		code, err = issueUniqueCodeTx(ctx, tx, h.repo.Accounts(), channel, h.issuer)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification code")
		}

		switch channel {
		case ChannelSMS:
			account.VerificationCode = &code
		case ChannelEmail:
			account.ConfirmationCode = &code
		}

		created, err := h.repo.Accounts().RegisterTx(ctx, tx, account)
		if err != nil {
			return err
		}
		account = created
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	resp := &RegisterAccountResponse{
		Account: account,
		Channel: channel,
	}

	switch channel {
	case ChannelSMS:
		result, err := h.dispatcher.SendVerificationSMS(ctx, account, code)
		if err != nil {
			h.logger.Error("failed to send verification sms", "account", account.ID, "error", err)
			return asDeliveryError(err, "failed to send verification sms")
		}
		resp.SMS = result
	case ChannelEmail:
		if err := h.dispatcher.SendVerificationEmail(ctx, account, code); err != nil {
			h.logger.Error("failed to send verification email", "account", account.ID, "error", err)
			return asDeliveryError(err, "failed to send verification email")
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func asDeliveryError(err error, msg string) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
