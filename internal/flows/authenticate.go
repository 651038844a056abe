package flows

import (
	"context"
	"time"
)

// AuthenticateFailureKind classifies authentication flow failures for
// root-level mapping.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureRateLimited
	AuthenticateFailureAdmission
	AuthenticateFailureCredentials
	AuthenticateFailureStatus
	AuthenticateFailureIssue
)

// AuthenticateResult carries either the issued token pair or failure metadata.
type AuthenticateResult struct {
	Failure      AuthenticateFailureKind
	Err          error
	PrincipalID  string
	Address      string
	AccessToken  string
	RefreshToken string
	AccessID     string
	RecordID     string
}

// AuthenticateDeps captures authentication flow dependencies. Credential
// verification itself is a collaborator: the flow only polices admission,
// classifies the outcome, and turns success into a token pair.
type AuthenticateDeps struct {
	AddressFromContext func(context.Context) string
	DeviceFromContext  func(context.Context) string

	Limiter         AdmissionLimiter
	LimiterEnabled  bool
	ThrottleAddress bool
	MaxAttempts     int
	Window          time.Duration
	IdentifierKey   func(string) string
	AddressKey      func(string) string

	VerifyCredentials func(ctx context.Context, identifier, credential string) (PrincipalInfo, error)
	StatusError       func(uint8) error
	IssuePair         func(ctx context.Context, principal PrincipalInfo, device, address string) (IssueOutcome, error)

	Warn func(string, ...any)
}

// RunAuthenticate executes admission, credential verification, and issuance.
// Both admission dimensions are checked before reporting a denial so the
// result never reveals whether the identifier or the address tripped.
func RunAuthenticate(ctx context.Context, identifier, credential string, deps AuthenticateDeps) AuthenticateResult {
	address := deps.AddressFromContext(ctx)
	device := deps.DeviceFromContext(ctx)

	identifierKey := deps.IdentifierKey(identifier)
	addressKey := ""
	if deps.ThrottleAddress && address != "" {
		addressKey = deps.AddressKey(address)
	}

	if deps.LimiterEnabled && deps.Limiter != nil {
		admitted := true

		allowed, err := deps.Limiter.Allow(ctx, identifierKey, deps.MaxAttempts, deps.Window)
		if err != nil {
			return AuthenticateResult{Failure: AuthenticateFailureAdmission, Err: err, Address: address}
		}
		admitted = admitted && allowed

		if addressKey != "" {
			allowed, err = deps.Limiter.Allow(ctx, addressKey, deps.MaxAttempts, deps.Window)
			if err != nil {
				return AuthenticateResult{Failure: AuthenticateFailureAdmission, Err: err, Address: address}
			}
			admitted = admitted && allowed
		}

		if !admitted {
			return AuthenticateResult{Failure: AuthenticateFailureRateLimited, Address: address}
		}
	}

	principal, err := deps.VerifyCredentials(ctx, identifier, credential)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureCredentials, Err: err, Address: address}
	}

	if statusErr := deps.StatusError(principal.Status); statusErr != nil {
		return AuthenticateResult{
			Failure:     AuthenticateFailureStatus,
			Err:         statusErr,
			PrincipalID: principal.PrincipalID,
			Address:     address,
		}
	}

	if deps.LimiterEnabled && deps.Limiter != nil {
		keys := []string{identifierKey}
		if addressKey != "" {
			keys = append(keys, addressKey)
		}
		if err := deps.Limiter.Reset(ctx, keys...); err != nil && deps.Warn != nil {
			deps.Warn("authgate: admission counter reset failed after login")
		}
	}

	outcome, err := deps.IssuePair(ctx, principal, device, address)
	if err != nil {
		return AuthenticateResult{
			Failure:     AuthenticateFailureIssue,
			Err:         err,
			PrincipalID: principal.PrincipalID,
			Address:     address,
		}
	}

	return AuthenticateResult{
		Failure:      AuthenticateFailureNone,
		PrincipalID:  principal.PrincipalID,
		Address:      address,
		AccessToken:  outcome.AccessToken,
		RefreshToken: outcome.RefreshToken,
		AccessID:     outcome.AccessID,
		RecordID:     outcome.RecordID,
	}
}
