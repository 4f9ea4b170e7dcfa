package accounts

import (
	"fmt"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidationFailed    = "VALIDATION_FAILED"
	TextCodeInvalidChannel      = "INVALID_CHANNEL"
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeAlreadyVerified     = "ACCOUNT_ALREADY_VERIFIED"
	TextCodeInvalidCreds        = "INVALID_CREDENTIALS"
	TextCodeCouldNotCreateToken = "COULD_NOT_CREATE_TOKEN"
	TextCodeTokenMissing        = "TOKEN_MISSING"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeTokenRevoked        = "TOKEN_REVOKED"
	TextCodeResetNotFound       = "RESET_NOT_FOUND"
	TextCodeResetUsed           = "RESET_ALREADY_USED"
	TextCodeSMSGateway          = "SMS_GATEWAY_ERROR"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
)

// ErrInvalidChannel is returned for a verification channel other than email or sms
var ErrInvalidChannel = goerrors.New("verification type must be either sms or email", goerrors.CategoryBadInput).
	WithCode(http.StatusBadRequest).
	WithTextCode(TextCodeInvalidChannel)

// ErrAccountNotFound is returned when no account matches a lookup key
var ErrAccountNotFound = goerrors.New("User Not Found", goerrors.CategoryNotFound).
	WithCode(http.StatusNotFound).
	WithTextCode(TextCodeAccountNotFound)

// ErrInvalidCode is returned when verification is attempted without a code
var ErrInvalidCode = goerrors.New("Invalid link/code", goerrors.CategoryNotFound).
	WithCode(http.StatusNotFound).
	WithTextCode(TextCodeAccountNotFound)

// ErrEmailNotFound is returned by the email keyed operations
var ErrEmailNotFound = goerrors.New("Your email address was not found.", goerrors.CategoryNotFound).
	WithCode(http.StatusNotFound).
	WithTextCode(TextCodeAccountNotFound)

// ErrAlreadyVerified is returned when resending a code for a confirmed account
var ErrAlreadyVerified = goerrors.New("Your account has already been verified.", goerrors.CategoryConflict).
	WithCode(http.StatusConflict).
	WithTextCode(TextCodeAlreadyVerified)

// ErrInvalidCredentials covers wrong passwords, unknown emails and unconfirmed accounts
var ErrInvalidCredentials = goerrors.New(
	"Invalid Credentials. Please make sure you entered the right information and you have verified your account.",
	goerrors.CategoryAuth,
).WithCode(http.StatusUnauthorized).WithTextCode(TextCodeInvalidCreds)

// ErrTokenMissing is returned by logout when no token was presented
var ErrTokenMissing = goerrors.New("validation failed", goerrors.CategoryValidation).
	WithCode(http.StatusBadRequest).
	WithTextCode(TextCodeTokenMissing).
	WithMetadata(map[string]any{"token": "The token field is required."})

// ErrCouldNotCreateToken is returned when the token can not be signed
var ErrCouldNotCreateToken = goerrors.New("could_not_create_token", goerrors.CategoryInternal).
	WithCode(http.StatusInternalServerError).
	WithTextCode(TextCodeCouldNotCreateToken)

// ErrTokenExpired is returned for expired session tokens
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithCode(http.StatusUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed is returned for tokens we can not parse or verify
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithCode(http.StatusUnauthorized).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenRevoked is returned for tokens invalidated by logout
var ErrTokenRevoked = goerrors.New("token has been invalidated", goerrors.CategoryAuth).
	WithCode(http.StatusUnauthorized).
	WithTextCode(TextCodeTokenRevoked)

// ErrResetNotFound is returned for unknown password reset tokens
var ErrResetNotFound = goerrors.New("invalid or expired password reset token", goerrors.CategoryNotFound).
	WithCode(http.StatusNotFound).
	WithTextCode(TextCodeResetNotFound)

// ErrResetExpired is returned for password reset tokens past their TTL
var ErrResetExpired = goerrors.New("password reset token has expired", goerrors.CategoryValidation).
	WithCode(http.StatusBadRequest).
	WithTextCode(TextCodeTokenExpired)

// ErrResetAlreadyUsed is returned for password reset tokens that were consumed
var ErrResetAlreadyUsed = goerrors.New("password reset token has already been used", goerrors.CategoryConflict).
	WithCode(http.StatusConflict).
	WithTextCode(TextCodeResetUsed)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithCode(http.StatusBadRequest).
	WithTextCode(TextCodeEmptyPassword)

// NewValidationError builds a validation error carrying a field -> message map
func NewValidationError(message string, fields map[string]string) *goerrors.Error {
	if message == "" {
		message = "validation failed"
	}

	metadata := make(map[string]any, len(fields))
	for k, v := range fields {
		metadata[k] = v
	}

	return goerrors.New(message, goerrors.CategoryValidation).
		WithCode(http.StatusBadRequest).
		WithTextCode(TextCodeValidationFailed).
		WithMetadata(metadata)
}

// ValidationFields returns the field map carried by a validation error
func ValidationFields(err error) map[string]string {
	richErr, ok := asRichError(err)
	if !ok || richErr.Category != goerrors.CategoryValidation {
		return nil
	}

	out := make(map[string]string, len(richErr.Metadata))
	for k, v := range richErr.Metadata {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// NewGatewayError is returned when the SMS provider rejects a message
func NewGatewayError(status, text string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("Error %s %s", status, text), goerrors.CategoryOperation).
		WithCode(http.StatusBadGateway).
		WithTextCode(TextCodeSMSGateway).
		WithMetadata(map[string]any{
			"status":     status,
			"error_text": text,
		})
}

// FormatValidationErrorToMap flattens ozzo validation errors
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	errs, ok := err.(validation.Errors)
	if !ok {
		out["form"] = err.Error()
		return out
	}

	for field, fieldErr := range errs {
		if fieldErr == nil {
			continue
		}
		out[field] = fieldErr.Error()
	}

	return out
}

// IsValidationError reports validation and bad input failures
func IsValidationError(err error) bool {
	richErr, ok := asRichError(err)
	return ok && (richErr.Category == goerrors.CategoryValidation || richErr.Category == goerrors.CategoryBadInput)
}

// IsNotFoundError reports lookups that matched nothing
func IsNotFoundError(err error) bool {
	richErr, ok := asRichError(err)
	return ok && richErr.Category == goerrors.CategoryNotFound
}

// IsUnauthorizedError reports credential and token failures
func IsUnauthorizedError(err error) bool {
	richErr, ok := asRichError(err)
	return ok && richErr.Category == goerrors.CategoryAuth
}

// IsGatewayError reports SMS gateway failures
func IsGatewayError(err error) bool {
	richErr, ok := asRichError(err)
	return ok && richErr.TextCode == TextCodeSMSGateway
}

func asRichError(err error) (*goerrors.Error, bool) {
	var richErr *goerrors.Error
	if err == nil || !goerrors.As(err, &richErr) {
		return nil, false
	}
	return richErr, true
}
