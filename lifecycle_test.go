package accounts_test

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/goliatone/go-accounts"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestLifecycleRegisterEmail(t *testing.T) {
	f := newFixture(t)

	res, err := f.lifecycle.Register(context.Background(), registration("Pepe@Example.com", testPhone, "email"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, accounts.MessageRegistered, res.Message)

	account := f.account(t, "pepe@example.com")
	assert.False(t, account.Confirmed)
	assert.Equal(t, "pepe@example.com", account.Email)
	assert.Equal(t, testPhoneE164, account.Phone)
	assert.Equal(t, accounts.ChannelEmail, account.VerificationChannel)
	require.NotNil(t, account.ConfirmationCode)
	assert.Len(t, *account.ConfirmationCode, accounts.ConfirmationCodeLength)
	assert.Nil(t, account.VerificationCode)
	assert.NotEqual(t, testPassword, account.PasswordHash)
	assert.NoError(t, fastHasher.ComparePasswordAndHash(testPassword, account.PasswordHash))

	assert.Equal(t, *account.ConfirmationCode, f.dispatcher.lastEmailCode(t))
	assert.Empty(t, f.dispatcher.sms)
}

func TestLifecycleRegisterSMS(t *testing.T) {
	f := newFixture(t)

	res, err := f.lifecycle.Register(context.Background(), registration("sms@example.com", testPhone, "sms"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Verification code sent to "+testPhoneE164+".", res.Message)

	account := f.account(t, "sms@example.com")
	assert.False(t, account.Confirmed)
	assert.Nil(t, account.ConfirmationCode)
	require.NotNil(t, account.VerificationCode)

	code, err := strconv.Atoi(*account.VerificationCode)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, code, accounts.VerificationCodeMin)
	assert.LessOrEqual(t, code, accounts.VerificationCodeMax)

	assert.Equal(t, *account.VerificationCode, f.dispatcher.lastSMSCode(t))
	assert.Empty(t, f.dispatcher.emails)
}

func TestLifecycleRegisterInvalidChannel(t *testing.T) {
	f := newFixture(t)

	_, err := f.lifecycle.Register(context.Background(), registration("pigeon@example.com", testPhone, "pigeon"))
	require.Error(t, err)
	assert.True(t, accounts.IsValidationError(err))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeInvalidChannel, richErr.TextCode)

	assert.Zero(t, f.countAccounts(t))
	assert.Empty(t, f.dispatcher.emails)
	assert.Empty(t, f.dispatcher.sms)
}

func TestLifecycleRegisterValidation(t *testing.T) {
	f := newFixture(t)

	msg := accounts.RegisterAccountMessage{
		Email:                "not-an-email",
		Phone:                "123",
		Password:             "abc",
		PasswordConfirmation: "xyz",
		VType:                "email",
	}

	_, err := f.lifecycle.Register(context.Background(), msg)
	require.Error(t, err)
	assert.True(t, accounts.IsValidationError(err))

	fields := accounts.ValidationFields(err)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "phone_number")
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "password_confirmation")

	assert.Zero(t, f.countAccounts(t))
}

func TestLifecycleRegisterDuplicates(t *testing.T) {
	tests := []struct {
		name  string
		email string
		phone string
		field string
	}{
		{name: "duplicate email", email: "TAKEN@example.com", phone: otherPhone, field: "email"},
		{name: "duplicate phone", email: "other@example.com", phone: testPhoneE164, field: "phone_number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			_, err := f.lifecycle.Register(ctx, registration("taken@example.com", testPhone, "email"))
			require.NoError(t, err)
			require.Equal(t, 1, f.countAccounts(t))

			_, err = f.lifecycle.Register(ctx, registration(tt.email, tt.phone, "sms"))
			require.Error(t, err)
			assert.True(t, accounts.IsValidationError(err))
			assert.Contains(t, accounts.ValidationFields(err), tt.field)

			assert.Equal(t, 1, f.countAccounts(t))
			assert.Empty(t, f.dispatcher.sms)
		})
	}
}

func TestLifecycleRegisterPhoneRegion(t *testing.T) {
	f := newFixture(t)
	f.lifecycle.WithPhoneRegion("gb")

	_, err := f.lifecycle.Register(context.Background(), registration("uk@example.com", "07400 123456", "email"))
	require.NoError(t, err)

	account := f.account(t, "uk@example.com")
	assert.Equal(t, "+447400123456", account.Phone)
}

func TestLifecycleRegisterSkipsCodesInUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.Accounts().Register(ctx, newAccount("first@example.com", otherPhoneE164, accounts.ChannelSMS, "123456"))
	require.NoError(t, err)

	codes := []string{"123456", "654321"}
	f.lifecycle.WithCodeIssuer(func(accounts.Channel) (string, error) {
		code := codes[0]
		if len(codes) > 1 {
			codes = codes[1:]
		}
		return code, nil
	})

	_, err = f.lifecycle.Register(ctx, registration("second@example.com", testPhone, "sms"))
	require.NoError(t, err)

	second := f.account(t, "second@example.com")
	require.NotNil(t, second.VerificationCode)
	assert.Equal(t, "654321", *second.VerificationCode)
	assert.Equal(t, "654321", f.dispatcher.lastSMSCode(t))

	_, err = f.lifecycle.Verify(ctx, "sms", "123456")
	require.NoError(t, err)
	assert.True(t, f.account(t, "first@example.com").Confirmed)
	assert.False(t, f.account(t, "second@example.com").Confirmed)
}

func TestLifecycleRegisterCodeExhaustion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.repo.Accounts().Register(ctx, newAccount("first@example.com", otherPhoneE164, accounts.ChannelSMS, "123456"))
	require.NoError(t, err)

	f.lifecycle.WithCodeIssuer(func(accounts.Channel) (string, error) {
		return "123456", nil
	})

	_, err = f.lifecycle.Register(ctx, registration("second@example.com", testPhone, "sms"))
	require.Error(t, err)
	assert.Equal(t, 1, f.countAccounts(t))
	assert.Empty(t, f.dispatcher.sms)
}

func TestLifecycleRegisterSMSGatewayFailure(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.smsErr = accounts.NewGatewayError("2", "Missing to param")

	_, err := f.lifecycle.Register(context.Background(), registration("sms@example.com", testPhone, "sms"))
	require.Error(t, err)
	assert.True(t, accounts.IsGatewayError(err))

	// the account stays so the code can be resent
	account := f.account(t, "sms@example.com")
	assert.False(t, account.Confirmed)
}

func TestLifecycleVerifyEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.Register(ctx, registration("verify@example.com", testPhone, "email"))
	require.NoError(t, err)
	code := f.dispatcher.lastEmailCode(t)

	res, err := f.lifecycle.Verify(ctx, "email", code)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, accounts.MessageVerified, res.Message)

	account := f.account(t, "verify@example.com")
	assert.True(t, account.Confirmed)
	assert.Nil(t, account.ConfirmationCode)
	assert.Nil(t, account.VerificationCode)
	require.Len(t, f.dispatcher.welcome, 1)
	assert.Equal(t, account.ID, f.dispatcher.welcome[0].ID)

	_, err = f.lifecycle.Verify(ctx, "email", code)
	require.Error(t, err)
	assert.True(t, accounts.IsNotFoundError(err))
}

func TestLifecycleVerifySMS(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.Register(ctx, registration("sms@example.com", testPhone, "sms"))
	require.NoError(t, err)
	code := f.dispatcher.lastSMSCode(t)

	// codes are looked up in the column of the requested channel
	_, err = f.lifecycle.Verify(ctx, "email", code)
	assert.True(t, accounts.IsNotFoundError(err))

	_, err = f.lifecycle.Verify(ctx, "sms", code)
	require.NoError(t, err)

	account := f.account(t, "sms@example.com")
	assert.True(t, account.Confirmed)
	assert.Nil(t, account.VerificationCode)
	assert.Empty(t, f.dispatcher.welcome)

	_, err = f.lifecycle.Verify(ctx, "sms", code)
	assert.True(t, accounts.IsNotFoundError(err))
}

func TestLifecycleVerifyEmptyCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.Register(ctx, registration("empty@example.com", testPhone, "email"))
	require.NoError(t, err)

	for _, channel := range []string{"email", "sms", "unknown", ""} {
		_, err := f.lifecycle.Verify(ctx, channel, "  ")
		require.Error(t, err, channel)
		assert.True(t, accounts.IsNotFoundError(err), channel)
	}

	assert.False(t, f.account(t, "empty@example.com").Confirmed)
}

func TestLifecycleVerifyInvalidChannel(t *testing.T) {
	f := newFixture(t)

	_, err := f.lifecycle.Verify(context.Background(), "fax", "123456")
	require.Error(t, err)
	assert.True(t, accounts.IsValidationError(err))
}

func TestLifecycleResendVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.Register(ctx, registration("resend@example.com", testPhone, "email"))
	require.NoError(t, err)
	first := f.dispatcher.lastEmailCode(t)

	res, err := f.lifecycle.ResendVerification(ctx, "resend@example.com")
	require.NoError(t, err)
	assert.Equal(t, accounts.MessageVerificationResent, res.Message)

	second := f.dispatcher.lastEmailCode(t)
	assert.NotEqual(t, first, second)

	account := f.account(t, "resend@example.com")
	require.NotNil(t, account.ConfirmationCode)
	assert.Equal(t, second, *account.ConfirmationCode)

	_, err = f.lifecycle.Verify(ctx, "email", first)
	assert.True(t, accounts.IsNotFoundError(err))

	_, err = f.lifecycle.Verify(ctx, "email", second)
	require.NoError(t, err)

	_, err = f.lifecycle.ResendVerification(ctx, "resend@example.com")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeAlreadyVerified, richErr.TextCode)
}

func TestLifecycleResendVerificationKeepsChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.Register(ctx, registration("sms@example.com", testPhone, "sms"))
	require.NoError(t, err)
	first := f.dispatcher.lastSMSCode(t)

	res, err := f.lifecycle.ResendVerification(ctx, "sms@example.com")
	require.NoError(t, err)
	assert.True(t, res.Success)

	require.Len(t, f.dispatcher.sms, 2)
	assert.Empty(t, f.dispatcher.emails)

	account := f.account(t, "sms@example.com")
	require.NotNil(t, account.VerificationCode)
	assert.Equal(t, f.dispatcher.lastSMSCode(t), *account.VerificationCode)
	assert.Nil(t, account.ConfirmationCode)

	// a collision between two six digit codes is possible, only assert when they differ
	if first != *account.VerificationCode {
		_, err = f.lifecycle.Verify(ctx, "sms", first)
		assert.True(t, accounts.IsNotFoundError(err))
	}
}

func TestLifecycleResendVerificationUnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.lifecycle.ResendVerification(context.Background(), "ghost@example.com")
	require.Error(t, err)
	assert.True(t, accounts.IsNotFoundError(err))
	assert.Empty(t, f.dispatcher.emails)
}

func TestLifecycleRecoverPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registerConfirmed(t, "recover@example.com", testPhone)

	res, err := f.lifecycle.RecoverPassword(ctx, "recover@example.com")
	require.NoError(t, err)
	assert.Equal(t, accounts.MessageResetSent, res.Message)

	require.Len(t, f.dispatcher.resets, 1)
	link := f.dispatcher.resets[0]
	assert.Equal(t, accounts.DefaultResetSubject, link.Subject)
	assert.Equal(t, "https://accounts.example.com/password/reset/"+link.Token, link.URL)

	_, err = f.lifecycle.RecoverPassword(ctx, "ghost@example.com")
	assert.True(t, accounts.IsNotFoundError(err))
}

func TestLifecycleRecoverPasswordIgnoresDeliveryErrors(t *testing.T) {
	f := newFixture(t)
	f.registerConfirmed(t, "recover@example.com", testPhone)
	f.dispatcher.resetErr = errors.New("smtp down")

	res, err := f.lifecycle.RecoverPassword(context.Background(), "recover@example.com")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestLifecycleResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.registerConfirmed(t, "reset@example.com", testPhone)

	_, err := f.lifecycle.RecoverPassword(ctx, "reset@example.com")
	require.NoError(t, err)
	token := f.dispatcher.resets[0].Token

	status, err := f.lifecycle.PasswordResetStatus(ctx, token)
	require.NoError(t, err)
	assert.True(t, status.Found)
	assert.False(t, status.Expired)

	_, err = f.lifecycle.ResetPassword(ctx, accounts.FinalizePasswordResetMessage{
		Token:                token,
		Password:             "new-secret",
		PasswordConfirmation: "different",
	})
	assert.True(t, accounts.IsValidationError(err))

	res, err := f.lifecycle.ResetPassword(ctx, accounts.FinalizePasswordResetMessage{
		Token:                token,
		Password:             "new-secret",
		PasswordConfirmation: "new-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, accounts.MessagePasswordReset, res.Message)

	_, err = f.lifecycle.Login(ctx, "reset@example.com", testPassword)
	assert.True(t, accounts.IsUnauthorizedError(err))

	token2, err := f.lifecycle.Login(ctx, "reset@example.com", "new-secret")
	require.NoError(t, err)
	assert.NotEmpty(t, token2)

	status, err = f.lifecycle.PasswordResetStatus(ctx, token)
	require.NoError(t, err)
	assert.True(t, status.Found)
	assert.True(t, status.Expired)

	_, err = f.lifecycle.ResetPassword(ctx, accounts.FinalizePasswordResetMessage{
		Token:                token,
		Password:             "another-secret",
		PasswordConfirmation: "another-secret",
	})
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, accounts.TextCodeResetUsed, richErr.TextCode)
}

func TestLifecyclePasswordResetStatusUnknownToken(t *testing.T) {
	f := newFixture(t)

	status, err := f.lifecycle.PasswordResetStatus(context.Background(), "not-a-token")
	require.NoError(t, err)
	assert.False(t, status.Found)
}

func TestLifecycleLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.Register(ctx, registration("login@example.com", testPhone, "email"))
	require.NoError(t, err)

	_, err = f.lifecycle.Login(ctx, "login@example.com", testPassword)
	require.Error(t, err)
	assert.True(t, accounts.IsUnauthorizedError(err))
	assert.Equal(t, accounts.ErrInvalidCredentials.Message, errMessage(err))

	_, err = f.lifecycle.Verify(ctx, "email", f.dispatcher.lastEmailCode(t))
	require.NoError(t, err)

	_, err = f.lifecycle.Login(ctx, "login@example.com", "wrong-password")
	assert.True(t, accounts.IsUnauthorizedError(err))

	_, err = f.lifecycle.Login(ctx, "ghost@example.com", testPassword)
	assert.True(t, accounts.IsUnauthorizedError(err))

	token, err := f.lifecycle.Login(ctx, "login@example.com", testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := f.tokens.Validate(ctx, token)
	require.NoError(t, err)
	account := f.account(t, "login@example.com")
	assert.Equal(t, account.ID.String(), claims.UserID())
	assert.Equal(t, "login@example.com", claims.Email)
}

func TestLifecycleLoginSigningFailure(t *testing.T) {
	tokens := new(MockTokenAuthority)
	tokens.On("Attempt", mock.Anything, mock.Anything).Return("", errors.New("boom"))

	lc := accounts.NewLifecycle(nil, &recordingDispatcher{}, tokens, nil).WithLogger(nopLogger{})

	_, err := lc.Login(context.Background(), "login@example.com", testPassword)
	require.Error(t, err)
	assert.Equal(t, "could_not_create_token", errMessage(err))
	assert.Equal(t, 500, accounts.StatusFromError(err))
}

func TestLifecycleLoginPresentsConfirmedCredentials(t *testing.T) {
	tokens := new(MockTokenAuthority)
	tokens.On("Attempt", mock.Anything, accounts.Credentials{
		Email:     "login@example.com",
		Password:  testPassword,
		Confirmed: true,
	}).Return("signed", nil).Once()

	lc := accounts.NewLifecycle(nil, &recordingDispatcher{}, tokens, nil).WithLogger(nopLogger{})

	token, err := lc.Login(context.Background(), "login@example.com", testPassword)
	require.NoError(t, err)
	assert.Equal(t, "signed", token)
	tokens.AssertExpectations(t)
}

func TestLifecycleLogout(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		tokens := new(MockTokenAuthority)
		lc := accounts.NewLifecycle(nil, &recordingDispatcher{}, tokens, nil).WithLogger(nopLogger{})

		_, err := lc.Logout(context.Background(), "")
		require.Error(t, err)
		assert.True(t, accounts.IsValidationError(err))
		assert.Contains(t, accounts.ValidationFields(err), "token")
		tokens.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	})

	t.Run("invalidates once", func(t *testing.T) {
		tokens := new(MockTokenAuthority)
		tokens.On("Invalidate", mock.Anything, "session-token").Return(nil).Once()
		lc := accounts.NewLifecycle(nil, &recordingDispatcher{}, tokens, nil).WithLogger(nopLogger{})

		res, err := lc.Logout(context.Background(), "session-token")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, accounts.MessageLoggedOut, res.Message)

		tokens.AssertNumberOfCalls(t, "Invalidate", 1)
	})

	t.Run("revokes issued token", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		f.registerConfirmed(t, "logout@example.com", testPhone)

		token, err := f.lifecycle.Login(ctx, "logout@example.com", testPassword)
		require.NoError(t, err)

		_, err = f.lifecycle.Logout(ctx, token)
		require.NoError(t, err)

		_, err = f.tokens.Validate(ctx, token)
		assert.ErrorIs(t, err, accounts.ErrTokenRevoked)

		_, err = f.lifecycle.Logout(ctx, token)
		assert.True(t, accounts.IsUnauthorizedError(err))
	})
}

func errMessage(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.Message
	}
	return err.Error()
}
