package accounts_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		region  string
		want    string
		wantErr bool
	}{
		{name: "international", raw: "+1 650-253-0000", want: "+16502530000"},
		{name: "national with default region", raw: "(201) 555-0123", want: "+12015550123"},
		{name: "other region", raw: "07400 123456", region: "GB", want: "+447400123456"},
		{name: "too short", raw: "12345", wantErr: true},
		{name: "letters", raw: "call me", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := accounts.NormalizePhone(tt.raw, tt.region)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegisterAccountMessageValidate(t *testing.T) {
	valid := registration("jane@example.com", testPhone, "email")
	assert.NoError(t, valid.Validate(accounts.DefaultPhoneRegion))

	tests := []struct {
		name   string
		mutate func(m *accounts.RegisterAccountMessage)
		field  string
	}{
		{name: "missing name", mutate: func(m *accounts.RegisterAccountMessage) { m.Name = "" }, field: "name"},
		{name: "bad email", mutate: func(m *accounts.RegisterAccountMessage) { m.Email = "jane" }, field: "email"},
		{name: "short phone", mutate: func(m *accounts.RegisterAccountMessage) { m.Phone = "1234" }, field: "phone_number"},
		{name: "short password", mutate: func(m *accounts.RegisterAccountMessage) {
			m.Password = "abc"
			m.PasswordConfirmation = "abc"
		}, field: "password"},
		{name: "confirmation mismatch", mutate: func(m *accounts.RegisterAccountMessage) { m.PasswordConfirmation = "other123" }, field: "password_confirmation"},
		{name: "missing channel", mutate: func(m *accounts.RegisterAccountMessage) { m.VType = "" }, field: "v_type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := registration("jane@example.com", testPhone, "email")
			tt.mutate(&msg)

			err := msg.Validate(accounts.DefaultPhoneRegion)
			require.Error(t, err)
			assert.Contains(t, accounts.FormatValidationErrorToMap(err), tt.field)
		})
	}
}

func TestRegistrationValidatorUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.lifecycle.Register(ctx, registration("jane@example.com", testPhone, "email"))
	require.NoError(t, err)

	validator := accounts.NewRegistrationValidator(f.repo).WithPhoneRegion("us")

	msg := registration("JANE@example.com", testPhoneE164, "sms")
	err = validator.ValidateRegistration(ctx, &msg)
	require.Error(t, err)

	fields := accounts.ValidationFields(err)
	assert.Equal(t, "The email has already been taken.", fields["email"])
	assert.Equal(t, "The phone number has already been taken.", fields["phone_number"])

	fresh := registration("john@example.com", otherPhone, "sms")
	assert.NoError(t, validator.ValidateRegistration(ctx, &fresh))

	assert.True(t, accounts.IsValidationError(validator.ValidateRegistration(ctx, nil)))
}
