package accounts

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
	"github.com/uptrace/bun"
)

// DefaultPhoneRegion is used to parse numbers given without a country prefix
const DefaultPhoneRegion = "US"

const (
	minPhoneLength    = 9
	minPasswordLength = 6
	maxFieldLength    = 255
)

// ErrPasswordMismatch is reported when the confirmation differs from the password
var ErrPasswordMismatch = errors.New("The password confirmation does not match.")

// RegistrationValidator checks registration payloads, including email and
// phone uniqueness against the account store
type RegistrationValidator struct {
	repo   RepositoryManager
	region string
}

var _ InputValidator = (*RegistrationValidator)(nil)

func NewRegistrationValidator(repo RepositoryManager) *RegistrationValidator {
	return &RegistrationValidator{
		repo:   repo,
		region: DefaultPhoneRegion,
	}
}

// WithPhoneRegion sets the region used for numbers without a country prefix
func (v *RegistrationValidator) WithPhoneRegion(region string) *RegistrationValidator {
	if region != "" {
		v.region = strings.ToUpper(region)
	}
	return v
}

// ValidateRegistration returns a validation error carrying a field map, or nil
func (v *RegistrationValidator) ValidateRegistration(ctx context.Context, msg *RegisterAccountMessage) error {
	if msg == nil {
		return NewValidationError("validation failed", map[string]string{"form": "payload is required"})
	}

	fields := map[string]string{}
	if err := msg.Validate(v.region); err != nil {
		fields = FormatValidationErrorToMap(err)
	}

	if v.repo != nil {
		if err := v.checkUniqueness(ctx, msg, fields); err != nil {
			return err
		}
	}

	if len(fields) > 0 {
		return NewValidationError("validation failed", fields)
	}

	return nil
}

func (v *RegistrationValidator) checkUniqueness(ctx context.Context, msg *RegisterAccountMessage, fields map[string]string) error {
	checkEmail := fields["email"] == ""
	checkPhone := fields["phone_number"] == ""
	if !checkEmail && !checkPhone {
		return nil
	}

	phone, _ := NormalizePhone(msg.Phone, v.region)

	return v.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if checkEmail {
			taken, err := v.repo.Accounts().ExistsByEmailTx(ctx, tx, msg.Email)
			if err != nil {
				return err
			}
			if taken {
				fields["email"] = "The email has already been taken."
			}
		}

		if checkPhone {
			taken, err := v.repo.Accounts().ExistsByPhoneTx(ctx, tx, phone)
			if err != nil {
				return err
			}
			if taken {
				fields["phone_number"] = "The phone number has already been taken."
			}
		}

		return nil
	})
}

// NormalizePhone parses a phone number and returns it in E.164 format
func NormalizePhone(raw, region string) (string, error) {
	if region == "" {
		region = DefaultPhoneRegion
	}

	num, err := phonenumbers.Parse(strings.TrimSpace(raw), region)
	if err != nil {
		return "", err
	}

	if !phonenumbers.IsValidNumber(num) {
		return "", errors.New("The phone number is not valid.")
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// ValidatePhone returns a rule that accepts numbers NormalizePhone can parse
func ValidatePhone(region string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		if _, err := NormalizePhone(s, region); err != nil {
			return errors.New("The phone number is not valid.")
		}
		return nil
	}
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return ErrPasswordMismatch
		}
		return nil
	}
}

func registrationRules(m *RegisterAccountMessage, region string) []*validation.FieldRules {
	return []*validation.FieldRules{
		validation.Field(&m.Name, validation.Required, validation.Length(1, maxFieldLength)),
		validation.Field(&m.Email, validation.Required, validation.Length(3, maxFieldLength), is.Email),
		validation.Field(
			&m.Phone,
			validation.Required,
			validation.Length(minPhoneLength, 0),
			validation.By(ValidatePhone(region)),
		),
		validation.Field(&m.Password, validation.Required, validation.Length(minPasswordLength, 0)),
		validation.Field(
			&m.PasswordConfirmation,
			validation.Required,
			validation.By(ValidateStringEquals(m.Password)),
		),
		validation.Field(&m.VType, validation.Required),
	}
}
