// Package middleware exposes HTTP middleware adapters for JWT-only, hybrid, and strict
// authorization enforcement modes built on top of authgate.Gate validation.
//
// # Guards
//
//   - [Guard] — auto-selects enforcement mode from Gate config.
//   - [RequireJWTOnly] — stateless JWT verification, no Redis call.
//   - [RequireHybrid] — JWT + denylist verification.
//   - [RequireStrict] — JWT + denylist + security-version verification.
//
// Each guard reads the Authorization header, calls Gate.Validate, and injects
// the validated result into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Gate calls. It does NOT implement
// authentication logic itself — all decisions are delegated to Gate.Validate.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Gate).
//   - Access Redis (Gate handles I/O).
//   - Make authorization decisions beyond pass/reject from Gate.Validate.
package middleware
