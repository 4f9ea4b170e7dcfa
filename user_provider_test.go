package accounts_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountProviderVerifyCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.Register(ctx, registration("provider@example.com", testPhone, "email"))
	require.NoError(t, err)

	provider := accounts.NewAccountProvider(f.repo).WithLogger(nopLogger{})

	t.Run("unconfirmed account rejected when confirmation is required", func(t *testing.T) {
		_, err := provider.VerifyCredentials(ctx, accounts.Credentials{
			Email:     "provider@example.com",
			Password:  testPassword,
			Confirmed: true,
		})
		assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
	})

	t.Run("unconfirmed account accepted without the flag", func(t *testing.T) {
		identity, err := provider.VerifyCredentials(ctx, accounts.Credentials{
			Email:    "provider@example.com",
			Password: testPassword,
		})
		require.NoError(t, err)
		assert.Equal(t, "provider@example.com", identity.Email())
		assert.Equal(t, "Pepe Rone", identity.Name())
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := provider.VerifyCredentials(ctx, accounts.Credentials{
			Email:    "provider@example.com",
			Password: "nope",
		})
		assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := provider.VerifyCredentials(ctx, accounts.Credentials{
			Email:    "ghost@example.com",
			Password: testPassword,
		})
		assert.ErrorIs(t, err, accounts.ErrInvalidCredentials)
	})
}

func TestIdentityFromAccount(t *testing.T) {
	assert.Nil(t, accounts.NewIdentityFromAccount(nil))

	identity := accounts.AccountIdentity{}
	assert.Empty(t, identity.ID())
	assert.Empty(t, identity.Name())
	assert.Empty(t, identity.Email())
}
