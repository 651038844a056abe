package flows

import (
	"context"
	"errors"
	"time"

	"github.com/mwalden07/authgate/refresh"
)

// RevokeFailureKind classifies revocation flow failures.
type RevokeFailureKind int

const (
	RevokeFailureNone RevokeFailureKind = iota
	RevokeFailureDecode
	RevokeFailureNotFound
	RevokeFailureStore
)

// RevokeResult reports the outcome of a revocation flow.
type RevokeResult struct {
	Failure     RevokeFailureKind
	Err         error
	PrincipalID string
	Revoked     int
}

// RevokeDeps groups the three revocation flows.
type RevokeDeps struct {
	Refresh RevokeRefreshDeps
	Access  RevokeAccessDeps
	All     RevokeAllDeps
}

// RevokeRefreshDeps captures dependencies for revoking one refresh record.
type RevokeRefreshDeps struct {
	DecodeSecret func(string) ([32]byte, error)
	HashSecret   func([32]byte) [32]byte
	Revoke       func(ctx context.Context, secretHash [32]byte) error
}

// RunRevokeRefresh revokes the refresh record behind rawToken. Already
// terminal records count as success so retries stay idempotent.
func RunRevokeRefresh(ctx context.Context, rawToken string, deps RevokeRefreshDeps) RevokeResult {
	secret, err := deps.DecodeSecret(rawToken)
	if err != nil {
		return RevokeResult{Failure: RevokeFailureDecode, Err: err}
	}
	if err := deps.Revoke(ctx, deps.HashSecret(secret)); err != nil {
		switch {
		case errors.Is(err, refresh.ErrRecordNotFound), errors.Is(err, refresh.ErrRecordExpired):
			return RevokeResult{Failure: RevokeFailureNotFound, Err: err}
		default:
			return RevokeResult{Failure: RevokeFailureStore, Err: err}
		}
	}
	return RevokeResult{Failure: RevokeFailureNone, Revoked: 1}
}

// RevokeAccessDeps captures dependencies for denylisting one access token.
type RevokeAccessDeps struct {
	ParseUnverifiedID func(token string) (jti string, exp time.Time, err error)
	Denylist          func(ctx context.Context, jti string, ttl time.Duration) error
	Now               func() time.Time
}

// RunRevokeAccess denylists the access token's ID until its natural expiry.
// Expired tokens are a no-op success: the verifier already rejects them.
func RunRevokeAccess(ctx context.Context, token string, deps RevokeAccessDeps) RevokeResult {
	jti, exp, err := deps.ParseUnverifiedID(token)
	if err != nil {
		return RevokeResult{Failure: RevokeFailureDecode, Err: err}
	}
	ttl := exp.Sub(deps.Now())
	if ttl <= 0 {
		return RevokeResult{Failure: RevokeFailureNone}
	}
	if err := deps.Denylist(ctx, jti, ttl); err != nil {
		return RevokeResult{Failure: RevokeFailureStore, Err: err}
	}
	return RevokeResult{Failure: RevokeFailureNone, Revoked: 1}
}

// RevokeAllDeps captures dependencies for principal-wide revocation.
type RevokeAllDeps struct {
	RevokeAll   func(ctx context.Context, principalID string) (int, error)
	BumpVersion func(ctx context.Context, principalID string) (uint32, error)
}

// RunRevokeAll revokes every live refresh record for the principal and bumps
// the security version so outstanding access tokens stop validating too.
func RunRevokeAll(ctx context.Context, principalID string, deps RevokeAllDeps) RevokeResult {
	n, err := deps.RevokeAll(ctx, principalID)
	if err != nil {
		return RevokeResult{Failure: RevokeFailureStore, Err: err, PrincipalID: principalID, Revoked: n}
	}
	if deps.BumpVersion != nil {
		if _, err := deps.BumpVersion(ctx, principalID); err != nil {
			return RevokeResult{Failure: RevokeFailureStore, Err: err, PrincipalID: principalID, Revoked: n}
		}
	}
	return RevokeResult{Failure: RevokeFailureNone, PrincipalID: principalID, Revoked: n}
}
