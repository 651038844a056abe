package flows

import (
	"context"

	"github.com/mwalden07/authgate/token"
)

// ValidateFailureKind classifies access validation failures.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureParse
	ValidateFailureDenylisted
	ValidateFailureVersionMismatch
	ValidateFailureStore
)

// ValidateResult carries the verified claims or failure metadata.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  *token.AccessClaims
}

// ValidateDeps captures access validation dependencies.
type ValidateDeps struct {
	Parse          func(token string) (*token.AccessClaims, error)
	IsDenylisted   func(ctx context.Context, jti string) (bool, error)
	CurrentVersion func(ctx context.Context, principalID string) (uint32, error)

	// CheckVersion gates the per-request version lookup. When false the
	// signature and expiry checks alone decide validity.
	CheckVersion  bool
	CheckDenylist bool
}

// RunValidate verifies an access token: signature and time claims first,
// then denylist membership, then security-version freshness.
func RunValidate(ctx context.Context, rawToken string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Parse(rawToken)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureParse, Err: err}
	}

	if deps.CheckDenylist && deps.IsDenylisted != nil {
		denied, err := deps.IsDenylisted(ctx, claims.ID)
		if err != nil {
			return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
		}
		if denied {
			return ValidateResult{Failure: ValidateFailureDenylisted, Claims: claims}
		}
	}

	if deps.CheckVersion && deps.CurrentVersion != nil {
		current, err := deps.CurrentVersion(ctx, claims.Subject)
		if err != nil {
			return ValidateResult{Failure: ValidateFailureStore, Err: err, Claims: claims}
		}
		if claims.SecurityVersion != current {
			return ValidateResult{Failure: ValidateFailureVersionMismatch, Claims: claims}
		}
	}

	return ValidateResult{Failure: ValidateFailureNone, Claims: claims}
}
