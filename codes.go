package accounts

import (
	"context"
	"crypto/rand"
	"math/big"
	"strconv"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

const (
	// VerificationCodeMin is the smallest SMS verification code
	VerificationCodeMin = 100000
	// VerificationCodeMax is the largest SMS verification code
	VerificationCodeMax = 999999
	// ConfirmationCodeLength is the length of email confirmation codes
	ConfirmationCodeLength = 40

	maxCodeAttempts = 10
)

// CodeIssuer generates the verification artifact for a channel
type CodeIssuer func(channel Channel) (string, error)

const confirmationAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewVerificationCode returns a uniformly random code in
// [VerificationCodeMin, VerificationCodeMax]
func NewVerificationCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(VerificationCodeMax-VerificationCodeMin+1))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + VerificationCodeMin, nil
}

// NewConfirmationCode returns a random alphanumeric token that is safe to
// use as a URL path segment
func NewConfirmationCode() (string, error) {
	max := big.NewInt(int64(len(confirmationAlphabet)))
	out := make([]byte, ConfirmationCodeLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = confirmationAlphabet[n.Int64()]
	}
	return string(out), nil
}

// IssueCode generates the verification artifact for the given channel
func IssueCode(channel Channel) (string, error) {
	switch channel {
	case ChannelSMS:
		code, err := NewVerificationCode()
		if err != nil {
			return "", err
		}
		return strconv.Itoa(code), nil
	case ChannelEmail:
		return NewConfirmationCode()
	default:
		return "", ErrInvalidChannel
	}
}

// issueUniqueCodeTx draws codes until one is not held by another pending
// account. SMS codes are short enough to collide.
func issueUniqueCodeTx(ctx context.Context, tx bun.IDB, repo Accounts, channel Channel, issue CodeIssuer) (string, error) {
	for range maxCodeAttempts {
		code, err := issue(channel)
		if err != nil {
			return "", err
		}

		taken, err := repo.CodeInUseTx(ctx, tx, channel, code)
		if err != nil {
			return "", err
		}

		if !taken {
			return code, nil
		}
	}

	return "", goerrors.New("could not issue an unused verification code", goerrors.CategoryInternal)
}
