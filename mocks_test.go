package authkit_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/fairwaylabs/authkit"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockUsers implements authkit.Users. The embedded repository interface
// covers the generic CRUD surface the tests never touch.
type MockUsers struct {
	mock.Mock
	repository.Repository[*authkit.User]
}

func (m *MockUsers) Register(ctx context.Context, user *authkit.User) (*authkit.User, error) {
	args := m.Called(ctx, user)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *authkit.User) (*authkit.User, error) {
	args := m.Called(ctx, tx, user)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) Create(ctx context.Context, record *authkit.User, criteria ...repository.InsertCriteria) (*authkit.User, error) {
	args := m.Called(ctx, record)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *authkit.User, criteria ...repository.InsertCriteria) (*authkit.User, error) {
	args := m.Called(ctx, tx, record)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*authkit.User, error) {
	args := m.Called(ctx, email)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*authkit.User, error) {
	args := m.Called(ctx, tx, email)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) GetActiveByID(ctx context.Context, id uuid.UUID) (*authkit.User, error) {
	args := m.Called(ctx, id)
	return userArg(args, 0), args.Error(1)
}

func (m *MockUsers) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *MockUsers) SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) error {
	args := m.Called(ctx, tx, id, active)
	return args.Error(0)
}

func (m *MockUsers) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, id, passwordHash)
	return args.Error(0)
}

func (m *MockUsers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	args := m.Called(ctx, tx, id, passwordHash)
	return args.Error(0)
}

// MockSessions implements authkit.Sessions.
type MockSessions struct {
	mock.Mock
	repository.Repository[*authkit.RefreshSession]
}

func (m *MockSessions) Save(ctx context.Context, session *authkit.RefreshSession) (*authkit.RefreshSession, error) {
	args := m.Called(ctx, session)
	return sessionArg(args, 0), args.Error(1)
}

func (m *MockSessions) SaveTx(ctx context.Context, tx bun.IDB, session *authkit.RefreshSession) (*authkit.RefreshSession, error) {
	args := m.Called(ctx, tx, session)
	return sessionArg(args, 0), args.Error(1)
}

func (m *MockSessions) GetByHash(ctx context.Context, tokenHash string) (*authkit.RefreshSession, error) {
	args := m.Called(ctx, tokenHash)
	return sessionArg(args, 0), args.Error(1)
}

func (m *MockSessions) GetByHashTx(ctx context.Context, tx bun.IDB, tokenHash string) (*authkit.RefreshSession, error) {
	args := m.Called(ctx, tx, tokenHash)
	return sessionArg(args, 0), args.Error(1)
}

func (m *MockSessions) Revoke(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	args := m.Called(ctx, userID, tokenHash)
	return args.Error(0)
}

func (m *MockSessions) RevokeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, tokenHash string) error {
	args := m.Called(ctx, tx, userID, tokenHash)
	return args.Error(0)
}

func (m *MockSessions) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockSessions) RevokeAllTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	args := m.Called(ctx, tx, userID)
	return args.Error(0)
}

func (m *MockSessions) CountLive(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

// MockPasswordResets implements authkit.PasswordResets. guardTrips makes
// the superseding create behave as if it lost the conditioned-insert
// race: no record, no error.
type MockPasswordResets struct {
	mock.Mock
	repository.Repository[*authkit.PasswordReset]
	guardTrips bool
}

func (m *MockPasswordResets) LatestForUser(ctx context.Context, userID uuid.UUID) (*authkit.PasswordReset, error) {
	args := m.Called(ctx, userID)
	return resetArg(args, 0), args.Error(1)
}

func (m *MockPasswordResets) LatestForUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*authkit.PasswordReset, error) {
	args := m.Called(ctx, tx, userID)
	return resetArg(args, 0), args.Error(1)
}

// CreateSupersedingTx echoes the input record back when the test did not
// configure an explicit return, mirroring the real insert.
func (m *MockPasswordResets) CreateSupersedingTx(ctx context.Context, tx bun.IDB, reset *authkit.PasswordReset, cooldownCutoff time.Time) (*authkit.PasswordReset, error) {
	args := m.Called(ctx, tx, reset, cooldownCutoff)
	if m.guardTrips {
		return nil, args.Error(1)
	}
	if record := resetArg(args, 0); record != nil {
		return record, args.Error(1)
	}
	if args.Error(1) == nil {
		return reset, nil
	}
	return nil, args.Error(1)
}

func (m *MockPasswordResets) ConsumeTx(ctx context.Context, tx bun.IDB, userID uuid.UUID, code string, now time.Time) (bool, error) {
	args := m.Called(ctx, tx, userID, code, now)
	return args.Bool(0), args.Error(1)
}

// MockRepositoryManager wires the three mocks together. RunInTx executes
// the callback directly; the mocks ignore the transaction handle.
type MockRepositoryManager struct {
	users          *MockUsers
	sessions       *MockSessions
	passwordResets *MockPasswordResets
}

func newMockRepoManager() *MockRepositoryManager {
	return &MockRepositoryManager{
		users:          new(MockUsers),
		sessions:       new(MockSessions),
		passwordResets: new(MockPasswordResets),
	}
}

func (m *MockRepositoryManager) Validate() error { return nil }
func (m *MockRepositoryManager) MustValidate()   {}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}

func (m *MockRepositoryManager) Users() authkit.Users                   { return m.users }
func (m *MockRepositoryManager) Sessions() authkit.Sessions             { return m.sessions }
func (m *MockRepositoryManager) PasswordResets() authkit.PasswordResets { return m.passwordResets }

// testConfig is a plain Config for tests; zero fields fall back to the
// package defaults the same way EnvConfig does.
type testConfig struct {
	signingKey      string
	accessTTL       time.Duration
	refreshTTL      time.Duration
	resetTTL        time.Duration
	resetCooldown   time.Duration
	rotateOnRefresh bool
	revokeOnReset   bool
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey:      "test-signing-key",
		accessTTL:       time.Minute * 15,
		refreshTTL:      time.Hour * 24,
		resetTTL:        time.Minute * 10,
		resetCooldown:   time.Minute * 5,
		rotateOnRefresh: true,
		revokeOnReset:   true,
	}
}

func (c *testConfig) GetSigningKey() string             { return c.signingKey }
func (c *testConfig) GetSigningMethod() string          { return "HS256" }
func (c *testConfig) GetContextKey() string             { return "user" }
func (c *testConfig) GetTokenLookup() string            { return "header:Authorization" }
func (c *testConfig) GetAuthScheme() string             { return "Bearer" }
func (c *testConfig) GetIssuer() string                 { return "test-issuer" }
func (c *testConfig) GetAudience() []string             { return []string{"test:audience"} }
func (c *testConfig) GetAccessTokenTTL() time.Duration  { return c.accessTTL }
func (c *testConfig) GetRefreshTokenTTL() time.Duration { return c.refreshTTL }
func (c *testConfig) GetResetCodeTTL() time.Duration    { return c.resetTTL }
func (c *testConfig) GetResetCooldown() time.Duration   { return c.resetCooldown }
func (c *testConfig) GetRefreshRotationEnabled() bool   { return c.rotateOnRefresh }
func (c *testConfig) GetRevokeSessionsOnReset() bool    { return c.revokeOnReset }

func userArg(args mock.Arguments, i int) *authkit.User {
	if v := args.Get(i); v != nil {
		return v.(*authkit.User)
	}
	return nil
}

func sessionArg(args mock.Arguments, i int) *authkit.RefreshSession {
	if v := args.Get(i); v != nil {
		return v.(*authkit.RefreshSession)
	}
	return nil
}

func resetArg(args mock.Arguments, i int) *authkit.PasswordReset {
	if v := args.Get(i); v != nil {
		return v.(*authkit.PasswordReset)
	}
	return nil
}
