package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// AccountProvider resolves identities from email and password
type AccountProvider struct {
	repo   RepositoryManager
	hasher CredentialHasher
	logger Logger
}

var _ CredentialVerifier = (*AccountProvider)(nil)

// NewAccountProvider will create a new AccountProvider
func NewAccountProvider(repo RepositoryManager) *AccountProvider {
	return &AccountProvider{
		repo:   repo,
		hasher: BcryptHasher{},
		logger: defLogger{},
	}
}

func (p *AccountProvider) WithHasher(hasher CredentialHasher) *AccountProvider {
	if hasher != nil {
		p.hasher = hasher
	}
	return p
}

func (p *AccountProvider) WithLogger(l Logger) *AccountProvider {
	if l != nil {
		p.logger = l
	}
	return p
}

// VerifyCredentials will find the account, compare the password, and return
// its identity. Unknown emails, wrong passwords and, when requested,
// unconfirmed accounts all fail with ErrInvalidCredentials.
func (p *AccountProvider) VerifyCredentials(ctx context.Context, creds Credentials) (Identity, error) {
	var account *Account

	err := p.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = p.repo.Accounts().GetByEmailTx(ctx, tx, creds.Email)
		return err
	})

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve account during verification")
	}

	if creds.Confirmed && !account.Confirmed {
		p.logger.Debug("login rejected for unconfirmed account", "account", account.ID)
		return nil, ErrInvalidCredentials
	}

	if err := p.hasher.ComparePasswordAndHash(creds.Password, account.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	return NewIdentityFromAccount(account), nil
}
