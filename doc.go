// Package authgate provides a token lifecycle core with JWT access tokens,
// rotating single-use opaque refresh tokens, Redis-backed revocation state,
// and fixed-window admission throttling.
//
// The package is designed for concurrent server workloads: Gate methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Gate], [Builder], [Config], and
// value types (TokenPair, AuthResult, MetricsSnapshot, etc.). All internal
// coordination — flow orchestration, refresh record encoding, rate limiting —
// lives under internal/ and is never exported. The token, refresh, and
// security subpackages are importable for callers that only need one layer.
//
// # What this package must NOT do
//
//   - Store or verify raw credentials. Credential verification is delegated
//     to the caller's [CredentialVerifier]; the gate only polices admission,
//     classifies outcomes, and manages token state.
//   - Expose Redis clients, internal stores, or record encoding details in
//     its public API.
//   - Perform I/O outside of Gate methods (construction via Builder is
//     allocation-only until Build).
//
// # Performance contract
//
// Validate is the hot path. In ModeJWTOnly it must complete without Redis
// round-trips and without allocating beyond the returned AuthResult.
// Authenticate, Rotate, and revocation operations are allowed one Redis
// round-trip per backing concern.
package authgate
