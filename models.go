package accounts

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Channel is the verification channel chosen at registration
type Channel string

const (
	// ChannelEmail verifies the account with a confirmation link
	ChannelEmail Channel = "email"
	// ChannelSMS verifies the account with a 6 digit code
	ChannelSMS Channel = "sms"
)

// ParseChannel maps a raw selector to a Channel. Unknown values fail with
// ErrInvalidChannel.
func ParseChannel(raw string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(raw))) {
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelSMS:
		return ChannelSMS, nil
	default:
		return "", ErrInvalidChannel
	}
}

func (c Channel) String() string { return string(c) }

// Account is the account model
type Account struct {
	bun.BaseModel       `bun:"table:accounts,alias:acc"`
	ID                  uuid.UUID  `bun:"id,pk" json:"id,omitempty"`
	Name                string     `bun:"name,notnull" json:"name,omitempty"`
	Email               string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone               string     `bun:"phone_number,notnull,unique" json:"phone_number,omitempty"`
	PasswordHash        string     `bun:"password_hash,notnull" json:"-"`
	Confirmed           bool       `bun:"confirmed,notnull" json:"confirmed"`
	ConfirmationCode    *string    `bun:"confirmation_code" json:"-"`
	VerificationCode    *string    `bun:"verification_code" json:"-"`
	VerificationChannel Channel    `bun:"verification_channel,notnull" json:"verification_channel,omitempty"`
	CreatedAt           *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt           *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// HasPendingCode reports whether a verification artifact is outstanding
func (a *Account) HasPendingCode() bool {
	return a.ConfirmationCode != nil || a.VerificationCode != nil
}

// MarkConfirmed flips the account to confirmed and clears both codes
func (a *Account) MarkConfirmed() *Account {
	a.Confirmed = true
	a.ConfirmationCode = nil
	a.VerificationCode = nil
	return a
}

// PasswordResetStatus is the status of a reset request
type PasswordResetStatus = string

const (
	// ResetRequestedStatus is the requested status
	ResetRequestedStatus PasswordResetStatus = "requested"
	// ResetExpiredStatus is the expired status
	ResetExpiredStatus PasswordResetStatus = "expired"
	// ResetChangedStatus is the changed status
	ResetChangedStatus PasswordResetStatus = "changed"
)

// PasswordReset is a single use reset request. The ID is the token sent in
// the reset link.
type PasswordReset struct {
	bun.BaseModel `bun:"table:password_resets,alias:pwdr"`
	ID            uuid.UUID  `bun:"id,pk" json:"id,omitempty"`
	AccountID     uuid.UUID  `bun:"account_id,notnull" json:"account_id,omitempty"`
	Status        string     `bun:"status,notnull" json:"status,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	ResetedAt     *time.Time `bun:"reseted_at,nullzero" json:"reseted_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// MarkPasswordAsReseted will create a new instance
func MarkPasswordAsReseted(id uuid.UUID) *PasswordReset {
	r := &PasswordReset{}
	r.ID = id
	r.Status = ResetChangedStatus
	n := time.Now()
	r.ResetedAt = &n
	return r
}
