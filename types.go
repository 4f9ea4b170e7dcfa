package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated account
type Identity interface {
	ID() string
	Name() string
	Email() string
}

// Config holds token options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() time.Duration
	GetIssuer() string
	GetAudience() []string
}

// CredentialHasher hashes and compares passwords
type CredentialHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// NotificationDispatcher delivers verification artifacts and account
// notifications over email or SMS.
type NotificationDispatcher interface {
	SendVerificationEmail(ctx context.Context, account *Account, confirmationCode string) error
	SendWelcomeEmail(ctx context.Context, account *Account) error
	SendVerificationSMS(ctx context.Context, account *Account, verificationCode string) (*SMSResult, error)
	SendPasswordResetEmail(ctx context.Context, account *Account, link PasswordResetLink) error
}

// SMSResult is the outcome reported by the SMS gateway
type SMSResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// PasswordResetLink is the payload of a password reset notification
type PasswordResetLink struct {
	Subject string
	Token   string
	URL     string
	Expires time.Time
}

// InputValidator checks registration input before anything is persisted
type InputValidator interface {
	ValidateRegistration(ctx context.Context, msg *RegisterAccountMessage) error
}

// Credentials is what login presents to the TokenAuthority
type Credentials struct {
	Email     string
	Password  string
	Confirmed bool
}

// TokenAuthority signs, validates and invalidates session tokens
type TokenAuthority interface {
	Attempt(ctx context.Context, creds Credentials) (string, error)
	Validate(ctx context.Context, token string) (*AccountClaims, error)
	Invalidate(ctx context.Context, token string) error
}

// PasswordBroker owns password reset tokens
type PasswordBroker interface {
	SendResetLink(ctx context.Context, email, subject string) error
	Reset(ctx context.Context, token, password string) error
}

// CredentialVerifier resolves an identity from credentials
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, creds Credentials) (Identity, error)
}

// RevocationStore keeps the ids of invalidated tokens until they expire
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Print("[ERR] ACCOUNTS " + render(format, args...))
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Print("[WRN] ACCOUNTS " + render(format, args...))
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Print("[INF] ACCOUNTS " + render(format, args...))
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Print("[DBG] ACCOUNTS " + render(format, args...))
}

// render accepts both printf style calls and message + key/value pairs
func render(format string, args ...any) string {
	if len(args) == 0 {
		return newline(format)
	}

	if strings.Contains(format, "%") {
		return newline(fmt.Sprintf(format, args...))
	}

	var b strings.Builder
	b.WriteString(format)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return newline(b.String())
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
