package accounts

import (
	"strings"

	"github.com/goliatone/go-router"
)

const (
	bearerScheme    = "Bearer"
	tokenQueryParam = "token"
)

// TokenFromRequest looks up a session token in the Authorization header
// (Bearer scheme) and then in the token query parameter
func TokenFromRequest(ctx router.Context) string {
	if token := bearerToken(ctx.Header(router.HeaderAuthorization)); token != "" {
		return token
	}
	return strings.TrimSpace(ctx.Query(tokenQueryParam, ""))
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	l := len(bearerScheme)
	if len(header) > l+1 && strings.EqualFold(header[:l], bearerScheme) && header[l] == ' ' {
		return strings.TrimSpace(header[l:])
	}
	return ""
}
