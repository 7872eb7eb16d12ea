// Package authkit is the authentication and session-lifecycle core for a
// multi-tenant mobile-backend API: account registration, credential
// verification, access/refresh token issuance and rotation, logout and
// revocation, plus a time-boxed password-reset flow with a per-user
// cooldown.
//
// Building blocks:
//   - Users, Sessions, and PasswordResets are Bun-backed repositories
//     exposed through a RepositoryManager so multi-row state transitions
//     run inside one transaction.
//   - TokenService signs and validates short-lived JWT access tokens.
//     Refresh tokens are opaque random strings; the server persists only
//     their SHA-256 hash, so a raw token can never be reconstructed from
//     storage.
//   - Auther is the orchestrator that composes the repositories and the
//     token service and owns the register/login/refresh/logout/withdraw
//     state machine.
//   - SendResetCodeHandler and VerifyResetCodeHandler implement the
//     password-reset coordinator. Code consumption is conditioned at the
//     write (`consumed = FALSE AND expires_at > now`) so two concurrent
//     verifications cannot both succeed.
//   - middleware/jwtware guards protected routes: it verifies the bearer
//     token, then confirms the referenced account is still active before
//     attaching the identity to the request context.
package authkit
