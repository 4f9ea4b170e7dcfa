package accounts_test

import (
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	hash, err := fastHasher.HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.NoError(t, fastHasher.ComparePasswordAndHash("s3cret-pass", hash))
	assert.Equal(t, accounts.ErrMismatchedHashAndPassword, fastHasher.ComparePasswordAndHash("guess", hash))

	err = fastHasher.ComparePasswordAndHash("s3cret-pass", "not-a-bcrypt-hash")
	assert.Error(t, err)
	assert.NotEqual(t, accounts.ErrMismatchedHashAndPassword, err)
}

func TestBcryptHasherRejectsEmptyPassword(t *testing.T) {
	_, err := accounts.HashPassword("")
	require.Error(t, err)
	assert.True(t, accounts.IsValidationError(err))
}

func TestBcryptHasherCost(t *testing.T) {
	hash, err := fastHasher.HashPassword("password123")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	// package level helpers use the build default
	hash, err = accounts.HashPassword("password123")
	require.NoError(t, err)
	assert.NoError(t, accounts.ComparePasswordAndHash("password123", hash))

	cost, err = bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, cost, bcrypt.DefaultCost)
}
