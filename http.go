package authkit

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/fairwaylabs/authkit/middleware/jwtware"
)

// RouteAuthorizer wires the stateless per-request check: token signature
// and expiry first, then the identity gate against the credential store.
type RouteAuthorizer struct {
	validator    TokenValidator
	repo         RepositoryManager
	cfg          Config
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

// NewRouteAuthorizer builds the authorizer used by ProtectedRoute.
func NewRouteAuthorizer(validator TokenValidator, repo RepositoryManager, cfg Config) *RouteAuthorizer {
	a := &RouteAuthorizer{
		validator: validator,
		repo:      repo,
		cfg:       cfg,
		Logger:    defLogger{},
	}

	a.ErrorHandler = a.defaultErrHandler

	return a
}

// ProtectedRoute denies requests without a valid bearer token (401) or
// whose account is gone/disabled (403), and attaches the identity context
// for downstream handlers. It never mutates state.
func (a *RouteAuthorizer) ProtectedRoute() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		ErrorHandler:     a.ErrorHandler,
		ForbiddenHandler: a.ErrorHandler,
		SigningKey: jwtware.SigningKey{
			Key:    []byte(a.cfg.GetSigningKey()),
			JWTAlg: a.cfg.GetSigningMethod(),
		},
		AuthScheme:     a.cfg.GetAuthScheme(),
		ContextKey:     a.cfg.GetContextKey(),
		TokenLookup:    a.cfg.GetTokenLookup(),
		TokenValidator: adaptTokenValidator(a.validator),
		IdentityGate:   a.identityGate,
		ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
			if ac, ok := claims.(AuthClaims); ok {
				return WithClaimsContext(ctx, ac)
			}
			return ctx
		},
	})
}

// identityGate confirms the token's subject still maps to an active
// account. The token being valid is not enough: withdrawn accounts must
// be rejected with 403.
func (a *RouteAuthorizer) identityGate(ctx context.Context, claims jwtware.AuthClaims) error {
	session := &SessionObject{UserID: claims.UserID()}

	id, err := session.GetUserUUID()
	if err != nil {
		return ErrUnableToMapClaims
	}

	if _, err := a.repo.Users().GetActiveByID(ctx, id); err != nil {
		return ErrAccountInactive
	}

	return nil
}

func (a *RouteAuthorizer) defaultErrHandler(c router.Context, err error) error {
	return WriteError(c, a.Logger, err)
}

// WriteError renders the structured error body clients receive. Taxonomy
// errors pass through verbatim; anything else is logged with context and
// collapsed to a generic 500 so internals never leak.
func WriteError(c router.Context, logger Logger, err error) error {
	if logger == nil {
		logger = defLogger{}
	}

	richErr := WrapUnexpected(err, "An unexpected error occurred")

	if richErr.Category == goerrors.CategoryInternal {
		logger.Error(
			"request failed",
			"error", err.Error(),
			"category", richErr.Category,
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)
		return c.JSON(router.StatusInternalServerError, errorBody(
			"An unexpected error occurred", TextCodeUnexpected, nil,
		))
	}

	status := richErr.Code
	if status == 0 {
		status = router.StatusInternalServerError
	}

	return c.JSON(status, errorBody(richErr.Message, richErr.TextCode, richErr.Metadata))
}

// WriteValidationError maps ozzo validation failures to a 400 with a
// field → message breakdown.
func WriteValidationError(c router.Context, err error) error {
	return c.JSON(router.StatusBadRequest, errorBody(
		"validation failed", TextCodeValidationFailed, map[string]any{
			"fields": FormatValidationErrorToMap(err),
		},
	))
}

func errorBody(message, textCode string, metadata map[string]any) map[string]any {
	body := map[string]any{
		"message":   message,
		"text_code": textCode,
	}

	for k, v := range metadata {
		body[k] = v
	}

	return map[string]any{"error": body}
}

// FormatValidationErrorToMap flattens ozzo's validation.Errors into
// simple field → message pairs.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["payload"] = err.Error()
	return out
}

func adaptTokenValidator(v TokenValidator) jwtware.TokenValidator {
	return validatorAdapter{v: v}
}

type validatorAdapter struct {
	v TokenValidator
}

func (a validatorAdapter) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := a.v.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
