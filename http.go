package accounts

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success    bool              `json:"success"`
	Error      string            `json:"error"`
	TextCode   string            `json:"code,omitempty"`
	Validation map[string]string `json:"validation,omitempty"`
}

// NewErrorResponse renders an error in the response shape shared by all endpoints
func NewErrorResponse(err error) ErrorResponse {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	resp := ErrorResponse{
		Success:  false,
		Error:    richErr.Message,
		TextCode: richErr.TextCode,
	}

	if fields := ValidationFields(richErr); len(fields) > 0 {
		resp.Validation = fields
	}

	return resp
}

// StatusFromError maps the error category to an HTTP status
func StatusFromError(err error) int {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if richErr.TextCode == TextCodeSMSGateway {
		return http.StatusBadGateway
	}

	switch richErr.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
