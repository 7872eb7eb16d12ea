package authkit

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-router"
)

// RegisterAuthRoutes mounts the JSON auth surface on the given router.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Register, controller.RegisterPost).
		SetName("auth.register.post")

	app.Post(controller.Routes.Login, controller.LoginPost).
		SetName("auth.login.post")

	app.Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("auth.refresh.post")

	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("auth.logout.post")

	app.Post(controller.Routes.ForgotSend, controller.ForgotPasswordSendPost).
		SetName("auth.forgot-password.send.post")

	app.Post(controller.Routes.ForgotVerify, controller.ForgotPasswordVerifyPost).
		SetName("auth.forgot-password.verify.post")
}

type AuthControllerRoutes struct {
	Register     string
	Login        string
	Refresh      string
	Logout       string
	ForgotSend   string
	ForgotVerify string
}

type AuthController struct {
	Debug         bool
	Logger        Logger
	Routes        *AuthControllerRoutes
	Auther        Authenticator
	SendHandler   *SendResetCodeHandler
	VerifyHandler *VerifyResetCodeHandler
	ErrorHandler  router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:     "/auth/register",
			Login:        "/auth/login",
			Refresh:      "/auth/refresh-token",
			Logout:       "/auth/logout",
			ForgotSend:   "/auth/forgot-password/send",
			ForgotVerify: "/auth/forgot-password/verify",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.ErrorHandler == nil {
		logger := c.Logger
		c.ErrorHandler = func(ctx router.Context, err error) error {
			return WriteError(ctx, logger, err)
		}
	}

	return c
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func WithAuther(auther Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

func WithResetHandlers(send *SendResetCodeHandler, verify *VerifyResetCodeHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.SendHandler = send
		c.VerifyHandler = verify
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func WithErrorHandler(handler router.ErrorHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.ErrorHandler = handler
		return c
	}
}

// RegisterPost provisions a new identity and answers 201 with a fresh
// token pair, so clients land signed-in after sign-up.
func (a *AuthController) RegisterPost(ctx router.Context) error {
	payload := RegisterUserMessage{}
	if err := ctx.Bind(&payload); err != nil {
		a.Logger.Error("error binding registration payload", "error", err)
		return WriteValidationError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(ctx, err)
	}

	user, pair, err := a.Auther.Register(ctx.Context(), payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, tokenPairBody(user, pair))
}

type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(1, 100)),
	)
}

// LoginPost exchanges credentials for a token pair. Unknown email and
// wrong password produce the same response.
func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := LoginRequest{}
	if err := ctx.Bind(&payload); err != nil {
		a.Logger.Error("error binding login payload", "error", err)
		return WriteValidationError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(ctx, err)
	}

	user, pair, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, tokenPairBody(user, pair))
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

// Validate will run validation rules
func (r RefreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

// RefreshPost exchanges a live refresh token for a new pair.
func (a *AuthController) RefreshPost(ctx router.Context) error {
	payload := RefreshRequest{}
	if err := ctx.Bind(&payload); err != nil {
		a.Logger.Error("error binding refresh payload", "error", err)
		return WriteValidationError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(ctx, err)
	}

	pair, err := a.Auther.Refresh(ctx.Context(), payload.RefreshToken)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, pair)
}

// LogoutPost revokes the presented credential: the refresh_token body
// field when present, otherwise the Authorization bearer token. Revoking
// a credential that is already gone still answers 200.
func (a *AuthController) LogoutPost(ctx router.Context) error {
	payload := RefreshRequest{}
	if err := ctx.Bind(&payload); err != nil {
		a.Logger.Info("logout payload bind failed, using bearer credential", "error", err)
	}

	credential := payload.RefreshToken
	if credential == "" {
		credential = BearerCredential(ctx)
	}

	if credential == "" {
		return WriteValidationError(ctx, validation.Errors{
			"refresh_token": errors.New("either refresh_token or an Authorization bearer token is required"),
		})
	}

	if err := a.Auther.Logout(ctx.Context(), credential); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true})
}

// BearerCredential extracts the raw token from the Authorization header.
// Returns "" when the header is absent or carries another scheme.
func BearerCredential(ctx router.Context) string {
	header := strings.TrimSpace(ctx.GetString(router.HeaderAuthorization, ""))
	const scheme = "Bearer "
	if len(header) > len(scheme) && strings.EqualFold(header[:len(scheme)], scheme) {
		return strings.TrimSpace(header[len(scheme):])
	}
	return ""
}

type ForgotPasswordSendRequest struct {
	Email string `json:"email" form:"email"`
}

// Validate will run validation rules
func (r ForgotPasswordSendRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
	)
}

// ForgotPasswordSendPost issues a reset code for the account behind the
// email. Unknown accounts answer 404 and requests inside the cooldown
// window answer 429 with retry_after_seconds.
func (a *AuthController) ForgotPasswordSendPost(ctx router.Context) error {
	payload := ForgotPasswordSendRequest{}
	if err := ctx.Bind(&payload); err != nil {
		a.Logger.Error("error binding forgot-password payload", "error", err)
		return WriteValidationError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(ctx, err)
	}

	var resp *SendResetCodeResponse
	err := a.SendHandler.Execute(ctx.Context(), SendResetCodeMessage{
		Email: payload.Email,
		OnResponse: func(r *SendResetCodeResponse) {
			resp = r
		},
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	body := map[string]any{"success": true}
	if resp != nil && !resp.ExpiresAt.IsZero() {
		body["expires_at"] = resp.ExpiresAt
	}

	return ctx.JSON(router.StatusOK, body)
}

type ForgotPasswordVerifyRequest struct {
	Email       string `json:"email" form:"email"`
	Code        string `json:"code" form:"code"`
	NewPassword string `json:"new_password" form:"new_password"`
}

// Validate will run validation rules
func (r ForgotPasswordVerifyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Code, validation.Required, validation.Length(resetCodeDigits, resetCodeDigits), is.Digit),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(8, 100)),
	)
}

// ForgotPasswordVerifyPost consumes a reset code and rewrites the
// password. Wrong, expired, and reused codes all answer 400.
func (a *AuthController) ForgotPasswordVerifyPost(ctx router.Context) error {
	payload := ForgotPasswordVerifyRequest{}
	if err := ctx.Bind(&payload); err != nil {
		a.Logger.Error("error binding reset-verify payload", "error", err)
		return WriteValidationError(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return WriteValidationError(ctx, err)
	}

	err := a.VerifyHandler.Execute(ctx.Context(), VerifyResetCodeMessage{
		Email:       payload.Email,
		Code:        payload.Code,
		NewPassword: payload.NewPassword,
	})
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{"success": true})
}

func tokenPairBody(user *User, pair *TokenPair) map[string]any {
	return map[string]any{
		"identity": map[string]any{
			"id":       user.ID.String(),
			"email":    user.Email,
			"nickname": user.Nickname,
		},
		"access_token":       pair.AccessToken,
		"access_expires_at":  pair.AccessExpiresAt,
		"refresh_token":      pair.RefreshToken,
		"refresh_expires_at": pair.RefreshExpiresAt,
	}
}
