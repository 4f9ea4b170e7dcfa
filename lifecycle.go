package accounts

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	MessageRegistered         = "Thanks for signing up! Please check your email."
	MessageVerified           = "You have successfully verified your account."
	MessageVerificationResent = "A new verification email has been sent! Please check your email."
	MessageResetSent          = "A reset email has been sent! Please check your email."
	MessagePasswordReset      = "Your password has been reset."
	MessageLoggedOut          = "You have successfully logged out."
)

// Result is the outcome of a lifecycle operation
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func success(message string) *Result {
	return &Result{Success: true, Message: message}
}

// Lifecycle runs account registration, verification, password recovery and
// session issuance. Each operation returns a Result or a rich error.
type Lifecycle struct {
	register    *RegisterAccountHandler
	verify      *VerifyAccountHandler
	resend      *ResendVerificationHandler
	recovery    *InitializePasswordResetHandler
	finalize    *FinalizePasswordResetHandler
	resetStatus *PasswordResetStatusHandler
	tokens      TokenAuthority
	logger      Logger
}

// NewLifecycle wires the command handlers around the given collaborators
func NewLifecycle(repo RepositoryManager, dispatcher NotificationDispatcher, tokens TokenAuthority, broker PasswordBroker) *Lifecycle {
	return &Lifecycle{
		register:    NewRegisterAccountHandler(repo, dispatcher),
		verify:      NewVerifyAccountHandler(repo, dispatcher),
		resend:      NewResendVerificationHandler(repo, dispatcher),
		recovery:    NewInitializePasswordResetHandler(repo, broker),
		finalize:    NewFinalizePasswordResetHandler(broker),
		resetStatus: NewPasswordResetStatusHandler(repo),
		tokens:      tokens,
		logger:      defLogger{},
	}
}

func (l *Lifecycle) WithLogger(logger Logger) *Lifecycle {
	if logger == nil {
		return l
	}
	l.logger = logger
	l.register.WithLogger(logger)
	l.verify.WithLogger(logger)
	l.resend.WithLogger(logger)
	l.recovery.WithLogger(logger)
	l.finalize.WithLogger(logger)
	return l
}

func (l *Lifecycle) WithValidator(v InputValidator) *Lifecycle {
	l.register.WithValidator(v)
	return l
}

func (l *Lifecycle) WithHasher(hasher CredentialHasher) *Lifecycle {
	l.register.WithHasher(hasher)
	return l
}

func (l *Lifecycle) WithPhoneRegion(region string) *Lifecycle {
	l.register.WithPhoneRegion(region)
	return l
}

// WithCodeIssuer replaces the verification code generator for register and
// resend
func (l *Lifecycle) WithCodeIssuer(issuer CodeIssuer) *Lifecycle {
	l.register.WithCodeIssuer(issuer)
	l.resend.WithCodeIssuer(issuer)
	return l
}

func (l *Lifecycle) WithResetTTL(ttl time.Duration) *Lifecycle {
	l.resetStatus.WithTTL(ttl)
	return l
}

// Register creates an unconfirmed account and sends its verification artifact
func (l *Lifecycle) Register(ctx context.Context, msg RegisterAccountMessage) (*Result, error) {
	var resp *RegisterAccountResponse
	msg.OnResponse = func(r *RegisterAccountResponse) { resp = r }

	if err := l.register.Execute(ctx, msg); err != nil {
		return nil, err
	}

	if resp != nil && resp.SMS != nil {
		return &Result{Success: resp.SMS.Success, Message: resp.SMS.Message}, nil
	}

	return success(MessageRegistered), nil
}

// Verify consumes a confirmation or verification code
func (l *Lifecycle) Verify(ctx context.Context, channel, code string) (*Result, error) {
	if err := l.verify.Execute(ctx, VerifyAccountMessage{Channel: channel, Code: code}); err != nil {
		return nil, err
	}
	return success(MessageVerified), nil
}

// ResendVerification issues a new code for an unconfirmed account
func (l *Lifecycle) ResendVerification(ctx context.Context, email string) (*Result, error) {
	var resp *ResendVerificationResponse
	msg := ResendVerificationMessage{
		Email:      email,
		OnResponse: func(r *ResendVerificationResponse) { resp = r },
	}

	if err := l.resend.Execute(ctx, msg); err != nil {
		return nil, err
	}

	if resp != nil && resp.SMS != nil {
		return &Result{Success: resp.SMS.Success, Message: resp.SMS.Message}, nil
	}

	return success(MessageVerificationResent), nil
}

// RecoverPassword sends a password reset link
func (l *Lifecycle) RecoverPassword(ctx context.Context, email string) (*Result, error) {
	msg := InitializePasswordResetMessage{
		Email:   email,
		Subject: DefaultResetSubject,
	}

	if err := l.recovery.Execute(ctx, msg); err != nil {
		return nil, err
	}

	return success(MessageResetSent), nil
}

// ResetPassword redeems a reset token
func (l *Lifecycle) ResetPassword(ctx context.Context, msg FinalizePasswordResetMessage) (*Result, error) {
	if err := l.finalize.Execute(ctx, msg); err != nil {
		return nil, err
	}
	return success(MessagePasswordReset), nil
}

// PasswordResetStatus reports whether a reset token can still be redeemed
func (l *Lifecycle) PasswordResetStatus(ctx context.Context, token string) (*PasswordResetStatusResponse, error) {
	resp := &PasswordResetStatusResponse{}
	msg := PasswordResetStatusMessage{
		Token:      token,
		OnResponse: func(r *PasswordResetStatusResponse) { resp = r },
	}

	if err := l.resetStatus.Execute(ctx, msg); err != nil {
		return nil, err
	}

	return resp, nil
}

// Login exchanges credentials of a confirmed account for a session token
func (l *Lifecycle) Login(ctx context.Context, email, password string) (string, error) {
	token, err := l.tokens.Attempt(ctx, Credentials{
		Email:     email,
		Password:  password,
		Confirmed: true,
	})

	if err == nil {
		return token, nil
	}

	if IsUnauthorizedError(err) {
		return "", ErrInvalidCredentials
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode == TextCodeCouldNotCreateToken {
		return "", richErr
	}

	l.logger.Error("login failed to issue token", "error", err)
	return "", ErrCouldNotCreateToken
}

// Logout invalidates the session token
func (l *Lifecycle) Logout(ctx context.Context, token string) (*Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrTokenMissing
	}

	if err := l.tokens.Invalidate(ctx, token); err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to invalidate token")
	}

	return success(MessageLoggedOut), nil
}
