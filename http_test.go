package authkit_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fairwaylabs/authkit"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeContext is a minimal router.Context for handler tests. Only the
// methods the handlers touch are implemented; the embedded interface
// covers the rest.
type embeddedRouterContext = router.Context

type fakeContext struct {
	embeddedRouterContext
	body     []byte
	headers  map[string]string
	jsonCode int
	jsonBody any
	stdCtx   context.Context
}

func newFakeContext(payload any) *fakeContext {
	f := &fakeContext{
		headers: map[string]string{},
		stdCtx:  context.Background(),
	}
	if payload != nil {
		data, _ := json.Marshal(payload)
		f.body = data
	}
	return f
}

func (f *fakeContext) Bind(i any) error {
	if len(f.body) == 0 {
		return nil
	}
	return json.Unmarshal(f.body, i)
}

func (f *fakeContext) GetString(key string, def string) string {
	if val, ok := f.headers[key]; ok {
		return val
	}
	return def
}

func (f *fakeContext) Context() context.Context {
	return f.stdCtx
}

func (f *fakeContext) SetContext(ctx context.Context) {
	f.stdCtx = ctx
}

func (f *fakeContext) JSON(code int, val any) error {
	f.jsonCode = code
	f.jsonBody = val
	return nil
}

func errorField(t *testing.T, body any, field string) any {
	t.Helper()
	m, ok := body.(map[string]any)
	require.True(t, ok, "body is not a map")
	errMap, ok := m["error"].(map[string]any)
	require.True(t, ok, "body has no error object")
	return errMap[field]
}

func TestWriteErrorMapsTaxonomy(t *testing.T) {
	ctx := newFakeContext(nil)

	err := authkit.WriteError(ctx, nil, authkit.ErrDuplicateEmail)
	require.NoError(t, err)

	assert.Equal(t, 409, ctx.jsonCode)
	assert.Equal(t, authkit.TextCodeDuplicateEmail, errorField(t, ctx.jsonBody, "text_code"))
}

func TestWriteErrorHidesInternals(t *testing.T) {
	ctx := newFakeContext(nil)
	logger := &recordingLogger{}

	err := authkit.WriteError(ctx, logger, errors.New("pq: connection refused host=10.0.0.5"))
	require.NoError(t, err)

	assert.Equal(t, router.StatusInternalServerError, ctx.jsonCode)
	assert.Equal(t, authkit.TextCodeUnexpected, errorField(t, ctx.jsonBody, "text_code"))
	assert.NotContains(t, errorField(t, ctx.jsonBody, "message"), "10.0.0.5")

	// the detail lands in the logs instead
	assert.NotEmpty(t, logger.lines)
}

func TestWriteErrorRateLimit(t *testing.T) {
	ctx := newFakeContext(nil)

	err := authkit.WriteError(ctx, nil, authkit.RateLimitedError(77))
	require.NoError(t, err)

	assert.Equal(t, 429, ctx.jsonCode)
	assert.Equal(t, authkit.TextCodeResetCooldown, errorField(t, ctx.jsonBody, "text_code"))
	assert.Equal(t, int64(77), errorField(t, ctx.jsonBody, "retry_after_seconds"))
}

func TestFormatValidationErrorToMap(t *testing.T) {
	verrs := validation.Errors{
		"email":    errors.New("must be a valid email address"),
		"password": errors.New("the length must be between 8 and 100"),
	}

	out := authkit.FormatValidationErrorToMap(verrs)
	assert.Equal(t, "must be a valid email address", out["email"])
	assert.Equal(t, "the length must be between 8 and 100", out["password"])

	assert.Empty(t, authkit.FormatValidationErrorToMap(nil))
	assert.Equal(t, map[string]string{"payload": "boom"}, authkit.FormatValidationErrorToMap(errors.New("boom")))
}

func TestLoginPostValidation(t *testing.T) {
	controller := authkit.NewAuthController()

	ctx := newFakeContext(map[string]string{"email": "nope", "password": ""})
	require.NoError(t, controller.LoginPost(ctx))

	assert.Equal(t, router.StatusBadRequest, ctx.jsonCode)
	assert.Equal(t, authkit.TextCodeValidationFailed, errorField(t, ctx.jsonBody, "text_code"))
}

func TestLoginPostSuccess(t *testing.T) {
	repo := newMockRepoManager()
	cfg := newTestConfig()
	auther, err := authkit.NewAuthenticator(repo, cfg)
	require.NoError(t, err)

	hash, err := authkit.HashPassword("password123")
	require.NoError(t, err)

	account := &authkit.User{Email: "alice@example.com", PasswordHash: hash, IsActive: true}
	repo.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(account, nil).Once()
	repo.sessions.On("SaveTx", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Once()

	controller := authkit.NewAuthController(authkit.WithAuther(auther))

	ctx := newFakeContext(map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
	})
	require.NoError(t, controller.LoginPost(ctx))

	assert.Equal(t, router.StatusOK, ctx.jsonCode)
	body, ok := ctx.jsonBody.(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
}

func TestLoginPostBadCredentials(t *testing.T) {
	repo := newMockRepoManager()
	auther, err := authkit.NewAuthenticator(repo, newTestConfig())
	require.NoError(t, err)

	hash, err := authkit.HashPassword("password123")
	require.NoError(t, err)

	account := &authkit.User{Email: "alice@example.com", PasswordHash: hash, IsActive: true}
	repo.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(account, nil).Once()

	controller := authkit.NewAuthController(authkit.WithAuther(auther))

	ctx := newFakeContext(map[string]string{
		"email":    "alice@example.com",
		"password": "wrong password",
	})
	require.NoError(t, controller.LoginPost(ctx))

	assert.Equal(t, 401, ctx.jsonCode)
	assert.Equal(t, authkit.TextCodeInvalidCreds, errorField(t, ctx.jsonBody, "text_code"))
}

func TestForgotPasswordSendPostCooldown(t *testing.T) {
	repo := newMockRepoManager()
	cfg := newTestConfig()

	account := &authkit.User{Email: "alice@example.com", IsActive: true}
	repo.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(account, nil).Once()

	createdAt := time.Now().Add(-time.Minute)
	repo.passwordResets.On("LatestForUser", mock.Anything, mock.Anything).
		Return(&authkit.PasswordReset{CreatedAt: &createdAt}, nil).Once()

	controller := authkit.NewAuthController(
		authkit.WithResetHandlers(
			authkit.NewSendResetCodeHandler(repo, cfg),
			authkit.NewVerifyResetCodeHandler(repo, cfg),
		),
	)

	ctx := newFakeContext(map[string]string{"email": "alice@example.com"})
	require.NoError(t, controller.ForgotPasswordSendPost(ctx))

	assert.Equal(t, 429, ctx.jsonCode)
	assert.Equal(t, authkit.TextCodeResetCooldown, errorField(t, ctx.jsonBody, "text_code"))
	assert.NotNil(t, errorField(t, ctx.jsonBody, "retry_after_seconds"))
}

func TestForgotPasswordVerifyPostValidation(t *testing.T) {
	controller := authkit.NewAuthController()

	// code must be exactly six digits
	ctx := newFakeContext(map[string]string{
		"email":        "alice@example.com",
		"code":         "12ab56",
		"new_password": "password123",
	})
	require.NoError(t, controller.ForgotPasswordVerifyPost(ctx))

	assert.Equal(t, router.StatusBadRequest, ctx.jsonCode)
	assert.Equal(t, authkit.TextCodeValidationFailed, errorField(t, ctx.jsonBody, "text_code"))
}

func TestLogoutPostIsIdempotent(t *testing.T) {
	repo := newMockRepoManager()
	auther, err := authkit.NewAuthenticator(repo, newTestConfig())
	require.NoError(t, err)

	repo.sessions.On("GetByHash", mock.Anything, mock.AnythingOfType("string")).
		Return(nil, repository.NewRecordNotFound()).Once()

	controller := authkit.NewAuthController(authkit.WithAuther(auther))

	ctx := newFakeContext(map[string]string{"refresh_token": "already-revoked"})
	require.NoError(t, controller.LogoutPost(ctx))

	assert.Equal(t, router.StatusOK, ctx.jsonCode)
}

func TestLogoutPostBearerFallback(t *testing.T) {
	repo := newMockRepoManager()
	cfg := newTestConfig()
	auther, err := authkit.NewAuthenticator(repo, cfg)
	require.NoError(t, err)

	hash, err := authkit.HashPassword("password123")
	require.NoError(t, err)

	account := &authkit.User{Email: "alice@example.com", PasswordHash: hash, IsActive: true}
	repo.users.On("GetByEmail", mock.Anything, "alice@example.com").Return(account, nil).Once()
	repo.sessions.On("SaveTx", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil).Once()

	_, pair, err := auther.Login(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)

	// the access token is not a refresh session hash
	repo.sessions.On("GetByHash", mock.Anything, mock.AnythingOfType("string")).
		Return(nil, repository.NewRecordNotFound()).Once()

	controller := authkit.NewAuthController(authkit.WithAuther(auther))

	ctx := newFakeContext(nil)
	ctx.headers[router.HeaderAuthorization] = "Bearer " + pair.AccessToken
	require.NoError(t, controller.LogoutPost(ctx))

	assert.Equal(t, router.StatusOK, ctx.jsonCode)
	body, ok := ctx.jsonBody.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, body["success"])

	// an access token names no refresh session, so nothing is revoked
	repo.sessions.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogoutPostRequiresACredential(t *testing.T) {
	controller := authkit.NewAuthController()

	ctx := newFakeContext(nil)
	require.NoError(t, controller.LogoutPost(ctx))

	assert.Equal(t, router.StatusBadRequest, ctx.jsonCode)
	assert.Equal(t, authkit.TextCodeValidationFailed, errorField(t, ctx.jsonBody, "text_code"))
}
