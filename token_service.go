package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenExpiration is used when the config does not set one
const DefaultTokenExpiration = 24 * time.Hour

// TokenService issues HS256 session tokens and implements TokenAuthority
type TokenService struct {
	signingKey []byte
	expiration time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	verifier   CredentialVerifier
	revoked    RevocationStore
	logger     Logger
	now        func() time.Time
}

var _ TokenAuthority = (*TokenService)(nil)

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, verifier CredentialVerifier) *TokenService {
	expiration := cfg.GetTokenExpiration()
	if expiration <= 0 {
		expiration = DefaultTokenExpiration
	}

	return &TokenService{
		signingKey: []byte(cfg.GetSigningKey()),
		expiration: expiration,
		issuer:     cfg.GetIssuer(),
		audience:   jwt.ClaimStrings(cfg.GetAudience()),
		verifier:   verifier,
		revoked:    NewMemoryRevocationStore(),
		logger:     defLogger{},
		now:        time.Now,
	}
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithRevocationStore replaces the in memory revocation list
func (ts *TokenService) WithRevocationStore(store RevocationStore) *TokenService {
	if store != nil {
		ts.revoked = store
	}
	return ts
}

func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// Attempt verifies the credentials and issues a token for the account
func (ts *TokenService) Attempt(ctx context.Context, creds Credentials) (string, error) {
	if ts.verifier == nil {
		return "", goerrors.New("token service has no credential verifier", goerrors.CategoryInternal)
	}

	identity, err := ts.verifier.VerifyCredentials(ctx, creds)
	if err != nil {
		return "", err
	}

	token, err := ts.Generate(identity)
	if err != nil {
		ts.logger.Error("token service failed to sign token", "error", err)
		return "", ErrCouldNotCreateToken
	}

	return token, nil
}

// Generate creates a token for the given identity
func (ts *TokenService) Generate(identity Identity) (string, error) {
	if identity == nil {
		return "", goerrors.New("identity must not be nil", goerrors.CategoryInternal)
	}

	now := ts.now()
	claims := &AccountClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.expiration)),
		},
		UID:   identity.ID(),
		Email: identity.Email(),
	}

	ensureTokenID(&claims.RegisteredClaims)

	return ts.SignClaims(claims)
}

// SignClaims signs arbitrary claims using the configured signing key.
func (ts *TokenService) SignClaims(claims *AccountClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	if len(ts.signingKey) == 0 {
		return "", goerrors.New("signing key is empty", goerrors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Validate parses and validates a token string, returning its claims
func (ts *TokenService) Validate(ctx context.Context, tokenString string) (*AccountClaims, error) {
	if tokenString == "" {
		return nil, ErrTokenMalformed
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccountClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token service validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, ErrTokenMalformed.Message).
			WithCode(ErrTokenMalformed.Code).
			WithTextCode(ErrTokenMalformed.TextCode)
	}

	claims, ok := token.Claims.(*AccountClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	if claims.ID != "" {
		revoked, err := ts.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check token revocation")
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// Invalidate revokes a valid token until it would have expired
func (ts *TokenService) Invalidate(ctx context.Context, tokenString string) error {
	claims, err := ts.Validate(ctx, tokenString)
	if err != nil {
		return err
	}

	if claims.ID == "" {
		return goerrors.New("token has no id and can not be invalidated", goerrors.CategoryAuth).
			WithCode(ErrTokenMalformed.Code).
			WithTextCode(TextCodeTokenMalformed)
	}

	if err := ts.revoked.Revoke(ctx, claims.ID, claims.Expires()); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to revoke token")
	}

	ts.logger.Debug("token invalidated", "jti", claims.ID, "sub", claims.Subject)
	return nil
}
