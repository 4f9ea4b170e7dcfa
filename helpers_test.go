package accounts_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

const (
	testPhone      = "+1 650-253-0000"
	testPhoneE164  = "+16502530000"
	otherPhone     = "201-555-0123"
	otherPhoneE164 = "+12015550123"
	testPassword   = "secret123"
)

var fastHasher = accounts.BcryptHasher{Cost: bcrypt.MinCost}

type testConfig struct {
	key      string
	ttl      time.Duration
	issuer   string
	audience []string
}

func (c testConfig) GetSigningKey() string             { return c.key }
func (c testConfig) GetTokenExpiration() time.Duration { return c.ttl }
func (c testConfig) GetIssuer() string                 { return c.issuer }
func (c testConfig) GetAudience() []string             { return c.audience }

func defaultTestConfig() testConfig {
	return testConfig{
		key:      "test-signing-key",
		ttl:      time.Hour,
		issuer:   "go-accounts-test",
		audience: []string{"accounts"},
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	require.NoError(t, accounts.Migrate(context.Background(), sqldb, "sqlite3"))

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	return db
}

type sentCode struct {
	Account *accounts.Account
	Code    string
}

// recordingDispatcher captures every notification
type recordingDispatcher struct {
	mu sync.Mutex

	emails  []sentCode
	sms     []sentCode
	welcome []*accounts.Account
	resets  []accounts.PasswordResetLink

	smsResult *accounts.SMSResult
	smsErr    error
	emailErr  error
	resetErr  error
}

var _ accounts.NotificationDispatcher = (*recordingDispatcher)(nil)

func (d *recordingDispatcher) SendVerificationEmail(ctx context.Context, account *accounts.Account, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, sentCode{Account: account, Code: code})
	return d.emailErr
}

func (d *recordingDispatcher) SendWelcomeEmail(ctx context.Context, account *accounts.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.welcome = append(d.welcome, account)
	return nil
}

func (d *recordingDispatcher) SendVerificationSMS(ctx context.Context, account *accounts.Account, code string) (*accounts.SMSResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sms = append(d.sms, sentCode{Account: account, Code: code})
	if d.smsErr != nil {
		return nil, d.smsErr
	}
	if d.smsResult != nil {
		return d.smsResult, nil
	}
	return &accounts.SMSResult{Success: true, Message: "Verification code sent to " + account.Phone + "."}, nil
}

func (d *recordingDispatcher) SendPasswordResetEmail(ctx context.Context, account *accounts.Account, link accounts.PasswordResetLink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets = append(d.resets, link)
	return d.resetErr
}

func (d *recordingDispatcher) lastEmailCode(t *testing.T) string {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.emails)
	return d.emails[len(d.emails)-1].Code
}

func (d *recordingDispatcher) lastSMSCode(t *testing.T) string {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.sms)
	return d.sms[len(d.sms)-1].Code
}

// MockTokenAuthority implements accounts.TokenAuthority
type MockTokenAuthority struct {
	mock.Mock
}

func (m *MockTokenAuthority) Attempt(ctx context.Context, creds accounts.Credentials) (string, error) {
	args := m.Called(ctx, creds)
	return args.String(0), args.Error(1)
}

func (m *MockTokenAuthority) Validate(ctx context.Context, token string) (*accounts.AccountClaims, error) {
	args := m.Called(ctx, token)
	claims, _ := args.Get(0).(*accounts.AccountClaims)
	return claims, args.Error(1)
}

func (m *MockTokenAuthority) Invalidate(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type fixture struct {
	db         *bun.DB
	repo       accounts.RepositoryManager
	dispatcher *recordingDispatcher
	tokens     *accounts.TokenService
	broker     *accounts.ResetBroker
	lifecycle  *accounts.Lifecycle
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := newTestDB(t)
	repo := accounts.NewRepositoryManager(db)
	dispatcher := &recordingDispatcher{}

	provider := accounts.NewAccountProvider(repo).
		WithHasher(fastHasher).
		WithLogger(nopLogger{})

	tokens := accounts.NewTokenService(defaultTestConfig(), provider).
		WithLogger(nopLogger{})

	broker := accounts.NewResetBroker(repo, dispatcher).
		WithBaseURL("https://accounts.example.com").
		WithHasher(fastHasher).
		WithLogger(nopLogger{})

	lifecycle := accounts.NewLifecycle(repo, dispatcher, tokens, broker).
		WithHasher(fastHasher).
		WithLogger(nopLogger{})

	return &fixture{
		db:         db,
		repo:       repo,
		dispatcher: dispatcher,
		tokens:     tokens,
		broker:     broker,
		lifecycle:  lifecycle,
	}
}

func registration(email, phone, channel string) accounts.RegisterAccountMessage {
	return accounts.RegisterAccountMessage{
		Name:                 "Pepe Rone",
		Email:                email,
		Phone:                phone,
		Password:             testPassword,
		PasswordConfirmation: testPassword,
		VType:                channel,
	}
}

func (f *fixture) account(t *testing.T, email string) *accounts.Account {
	t.Helper()
	var account *accounts.Account
	err := f.repo.RunInTx(context.Background(), nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		account, err = f.repo.Accounts().GetByEmailTx(ctx, tx, email)
		return err
	})
	require.NoError(t, err)
	return account
}

func (f *fixture) countAccounts(t *testing.T) int {
	t.Helper()
	n, err := f.db.NewSelect().Model((*accounts.Account)(nil)).Count(context.Background())
	require.NoError(t, err)
	return n
}

// registerConfirmed registers an email account and verifies it
func (f *fixture) registerConfirmed(t *testing.T, email, phone string) *accounts.Account {
	t.Helper()
	ctx := context.Background()

	_, err := f.lifecycle.Register(ctx, registration(email, phone, "email"))
	require.NoError(t, err)

	_, err = f.lifecycle.Verify(ctx, "email", f.dispatcher.lastEmailCode(t))
	require.NoError(t, err)

	return f.account(t, email)
}
