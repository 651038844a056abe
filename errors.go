package authgate

import "errors"

// Sentinel errors returned by Gate operations. Callers match them with
// errors.Is; wrapped causes carry backend detail.
var (
	// ErrUnauthorized means the credential or token failed verification.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials means the principal/secret pair did not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited means the admission limiter rejected the attempt.
	ErrRateLimited = errors.New("rate limited")
	// ErrAccountDisabled means the principal is administratively disabled.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountLocked means repeated failures tripped the lockout window.
	ErrAccountLocked = errors.New("account locked")
	// ErrTokenExpired means the token's lifetime has elapsed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked means the token was explicitly revoked.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenReplayed means an already-rotated refresh token was presented.
	ErrTokenReplayed = errors.New("refresh token replay detected")
	// ErrSecurityVersionMismatch means the token's security version is stale.
	ErrSecurityVersionMismatch = errors.New("security version mismatch")
	// ErrMalformedToken means the token could not be parsed at all.
	ErrMalformedToken = errors.New("malformed token")
	// ErrConfiguration means the Gate was built from an invalid Config.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrStoreUnavailable means the backing store could not be reached.
	ErrStoreUnavailable = errors.New("backend store unavailable")
	// ErrGateNotReady means a method was called on a nil or unbuilt Gate.
	ErrGateNotReady = errors.New("gate not initialized")
	// ErrInvalidRouteMode means a route asked for an unknown validation mode.
	ErrInvalidRouteMode = errors.New("invalid route validation mode")
	// ErrPrincipalRequired means an operation was called with an empty
	// principal id.
	ErrPrincipalRequired = errors.New("principal id required")
)
