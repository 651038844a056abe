package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mwalden07/authgate/internal"
	internalflows "github.com/mwalden07/authgate/internal/flows"
	"github.com/mwalden07/authgate/internal/rate"
	"github.com/mwalden07/authgate/refresh"
	"github.com/mwalden07/authgate/security"
	"github.com/mwalden07/authgate/token"
)

// Gate defines a public type used by authgate APIs.
//
// Gate instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Gate struct {
	config       Config
	tokenManager *token.Manager
	refreshStore *refresh.Store
	versions     *security.Versions
	rateLimiter  *rate.Limiter
	verifier     CredentialVerifier
	audit        *auditDispatcher
	metrics      *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) Close() {
	if g == nil {
		return
	}
	if g.audit != nil {
		g.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) AuditDropped() uint64 {
	if g == nil || g.audit == nil {
		return 0
	}
	return g.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) MetricsSnapshot() MetricsSnapshot {
	if g == nil || g.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return g.metrics.Snapshot()
}

func (g *Gate) metricInc(id MetricID) {
	if g == nil || g.metrics == nil {
		return
	}
	g.metrics.Inc(id)
}

func accountStatusToError(status AccountStatus) error {
	switch status {
	case AccountActive:
		return nil
	case AccountDisabled:
		return ErrAccountDisabled
	case AccountLocked:
		return ErrAccountLocked
	case AccountDeleted:
		// Deleted accounts are indistinguishable from unknown identifiers.
		return ErrInvalidCredentials
	default:
		return ErrInvalidCredentials
	}
}

/*
====================================
AUTHENTICATE
====================================
*/

// Authenticate describes the authenticate operation and its observable behavior.
//
// Authenticate may return an error when input validation, dependency calls, or security checks fail.
// Authenticate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) Authenticate(ctx context.Context, identifier, credential string) (*TokenPair, error) {
	if g == nil || g.verifier == nil || g.tokenManager == nil {
		return nil, ErrGateNotReady
	}
	if identifier == "" || credential == "" {
		g.metricInc(MetricLoginFailure)
		g.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"reason": "empty_input",
			}
		})
		return nil, ErrInvalidCredentials
	}

	result := internalflows.RunAuthenticate(ctx, identifier, credential, g.authenticateFlowDeps())

	switch result.Failure {
	case internalflows.AuthenticateFailureNone:
		g.metricInc(MetricLoginSuccess)
		g.metricInc(MetricTokenIssued)
		g.emitAudit(ctx, auditEventLoginSuccess, true, result.PrincipalID, result.RecordID, nil, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		return &TokenPair{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			AccessID:     result.AccessID,
			RecordID:     result.RecordID,
		}, nil

	case internalflows.AuthenticateFailureRateLimited:
		g.metricInc(MetricLoginRateLimited)
		g.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrRateLimited, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		g.emitRateLimit(ctx, "login", func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		return nil, ErrRateLimited

	case internalflows.AuthenticateFailureAdmission:
		g.metricInc(MetricLoginFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)

	case internalflows.AuthenticateFailureCredentials:
		g.metricInc(MetricLoginFailure)
		g.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "credential_mismatch",
			}
		})
		return nil, ErrInvalidCredentials

	case internalflows.AuthenticateFailureStatus:
		g.metricInc(MetricLoginFailure)
		g.emitAudit(ctx, auditEventLoginFailure, false, result.PrincipalID, "", result.Err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "account_status",
			}
		})
		return nil, result.Err

	default:
		g.metricInc(MetricLoginFailure)
		g.emitAudit(ctx, auditEventLoginFailure, false, result.PrincipalID, "", result.Err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     "issue_failed",
			}
		})
		return nil, result.Err
	}
}

func (g *Gate) authenticateFlowDeps() internalflows.AuthenticateDeps {
	cfg := g.config

	return internalflows.AuthenticateDeps{
		AddressFromContext: clientAddressFromContext,
		DeviceFromContext:  deviceInfoFromContext,

		Limiter:         g.rateLimiter,
		LimiterEnabled:  cfg.RateLimit.Enabled && g.rateLimiter != nil,
		ThrottleAddress: cfg.RateLimit.ThrottleAddress,
		MaxAttempts:     cfg.RateLimit.MaxLoginAttempts,
		Window:          cfg.RateLimit.LoginWindow,
		IdentifierKey:   rate.LoginIdentifierKey,
		AddressKey:      rate.LoginAddressKey,

		VerifyCredentials: func(ctx context.Context, identifier, credential string) (internalflows.PrincipalInfo, error) {
			principal, err := g.verifier.VerifyCredentials(ctx, identifier, credential)
			if err != nil {
				return internalflows.PrincipalInfo{}, err
			}
			return internalflows.PrincipalInfo{
				PrincipalID: principal.PrincipalID,
				Roles:       principal.Roles,
				Status:      uint8(principal.Status),
			}, nil
		},
		StatusError: func(status uint8) error {
			return accountStatusToError(AccountStatus(status))
		},
		IssuePair: g.issuePair,

		Warn: log.Printf,
	}
}

/*
====================================
ROTATE
====================================
*/

// Rotate describes the rotate operation and its observable behavior.
//
// Rotate may return an error when input validation, dependency calls, or security checks fail.
// Rotate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if g == nil || g.refreshStore == nil || g.tokenManager == nil {
		return nil, ErrGateNotReady
	}

	result := internalflows.RunRotate(ctx, refreshToken, g.rotateFlowDeps())

	recordID := ""
	if result.Record != nil {
		recordID = result.Record.IDString()
	}

	switch result.Failure {
	case internalflows.RotateFailureNone:
		g.metricInc(MetricRotateSuccess)
		g.metricInc(MetricTokenIssued)
		g.emitAudit(ctx, auditEventRotateSuccess, true, result.PrincipalID, result.RecordID, nil, nil)
		return &TokenPair{
			AccessToken:  result.AccessToken,
			RefreshToken: result.RefreshToken,
			AccessID:     result.AccessID,
			RecordID:     result.RecordID,
		}, nil

	case internalflows.RotateFailureDecode:
		g.metricInc(MetricRotateFailure)
		g.emitAudit(ctx, auditEventRotateInvalid, false, "", "", ErrMalformedToken, func() map[string]string {
			return map[string]string{
				"reason": "decode_failed",
			}
		})
		return nil, ErrMalformedToken

	case internalflows.RotateFailureRateLimited:
		g.metricInc(MetricRotateRateLimited)
		g.emitAudit(ctx, auditEventRotateRateLimited, false, "", "", ErrRateLimited, nil)
		g.emitRateLimit(ctx, "rotate", nil)
		return nil, ErrRateLimited

	case internalflows.RotateFailureAdmission:
		g.metricInc(MetricRotateFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)

	case internalflows.RotateFailureNotFound:
		g.metricInc(MetricRotateFailure)
		g.emitAudit(ctx, auditEventRotateInvalid, false, "", "", ErrUnauthorized, func() map[string]string {
			return map[string]string{
				"reason": "record_not_found",
			}
		})
		return nil, ErrUnauthorized

	case internalflows.RotateFailureExpired:
		g.metricInc(MetricRotateFailure)
		g.emitAudit(ctx, auditEventRotateInvalid, false, "", "", ErrTokenExpired, func() map[string]string {
			return map[string]string{
				"reason": "record_expired",
			}
		})
		return nil, ErrTokenExpired

	case internalflows.RotateFailureReplay:
		g.metricInc(MetricReplayDetected)
		g.metricInc(MetricRotateFailure)
		g.emitAudit(ctx, auditEventReplayDetected, false, "", "", ErrTokenReplayed, nil)
		return nil, ErrTokenReplayed

	case internalflows.RotateFailureRevoked:
		g.metricInc(MetricRotateFailure)
		g.emitAudit(ctx, auditEventRotateInvalid, false, "", "", ErrTokenRevoked, func() map[string]string {
			return map[string]string{
				"reason": "record_revoked",
			}
		})
		return nil, ErrTokenRevoked

	case internalflows.RotateFailureVersionMismatch:
		g.metricInc(MetricVersionMismatch)
		g.metricInc(MetricRotateFailure)
		g.emitAudit(ctx, auditEventVersionMismatch, false, result.PrincipalID, recordID, ErrSecurityVersionMismatch, nil)
		return nil, ErrSecurityVersionMismatch

	default:
		g.metricInc(MetricRotateFailure)
		g.emitAudit(ctx, auditEventRotateInvalid, false, result.PrincipalID, recordID, result.Err, func() map[string]string {
			return map[string]string{
				"reason": "rotate_failed",
			}
		})
		return nil, result.Err
	}
}

// Refresh is an alias for [Gate.Rotate] kept for callers that think in
// token-refresh terms.
func (g *Gate) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	return g.Rotate(ctx, refreshToken)
}

func (g *Gate) rotateFlowDeps() internalflows.RotateDeps {
	cfg := g.config

	return internalflows.RotateDeps{
		AddressFromContext: clientAddressFromContext,
		DeviceFromContext:  deviceInfoFromContext,

		DecodeSecret: internal.DecodeRefreshSecret,
		HashSecret:   internal.HashRefreshSecret,
		NewRecordID: func() ([16]byte, error) {
			id, err := internal.NewTokenID()
			return [16]byte(id), err
		},

		Limiter:        g.rateLimiter,
		LimiterEnabled: cfg.RateLimit.Enabled && cfg.RateLimit.EnableRotateGuard && g.rateLimiter != nil,
		MaxAttempts:    cfg.RateLimit.MaxRotateAttempts,
		Window:         cfg.RateLimit.RotateWindow,
		RotateKey:      rate.RotateKey,

		Consume:        g.refreshStore.Consume,
		CurrentVersion: g.versions.Current,

		IssuePairFor: g.issuePairFor,

		EnableReplayTracking: cfg.Security.EnableReplayTracking,
		TrackReplay:          g.refreshStore.TrackReplayAnomaly,
		RecordLifetime:       func() time.Duration { return cfg.Refresh.TTL },
		Warn:                 log.Printf,
	}
}

/*
====================================
ISSUANCE
====================================
*/

func (g *Gate) issuePair(ctx context.Context, principal internalflows.PrincipalInfo, device, address string) (internalflows.IssueOutcome, error) {
	current, err := g.versions.Current(ctx, principal.PrincipalID)
	if err != nil {
		return internalflows.IssueOutcome{}, err
	}

	rec := &refresh.Record{
		PrincipalID:     principal.PrincipalID,
		Roles:           principal.Roles,
		SecurityVersion: current,
		Device:          device,
		Address:         address,
	}

	recordID, err := internal.NewTokenID()
	if err != nil {
		return internalflows.IssueOutcome{}, err
	}
	rec.ID = recordID

	return g.persistPair(ctx, rec)
}

// issuePairFor creates the successor record during rotation. recordID must be
// the successor id already written into the consumed record.
func (g *Gate) issuePairFor(ctx context.Context, prev *refresh.Record, recordID [16]byte, device, address string) (internalflows.IssueOutcome, error) {
	rec := &refresh.Record{
		ID:              recordID,
		PrincipalID:     prev.PrincipalID,
		Roles:           prev.Roles,
		SecurityVersion: prev.SecurityVersion,
		Device:          device,
		Address:         address,
	}
	if rec.Device == "" {
		rec.Device = prev.Device
	}
	if rec.Address == "" {
		rec.Address = prev.Address
	}

	return g.persistPair(ctx, rec)
}

func (g *Gate) persistPair(ctx context.Context, rec *refresh.Record) (internalflows.IssueOutcome, error) {
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return internalflows.IssueOutcome{}, err
	}

	now := time.Now()
	rec.State = refresh.StateIssued
	rec.IssuedAt = now.Unix()
	rec.ExpiresAt = now.Add(g.config.Refresh.TTL).Unix()

	if err := g.refreshStore.Save(ctx, rec, internal.HashRefreshSecret(secret)); err != nil {
		return internalflows.IssueOutcome{}, err
	}

	jti := uuid.NewString()
	access, err := g.tokenManager.CreateAccess(rec.PrincipalID, jti, rec.Roles, rec.SecurityVersion)
	if err != nil {
		return internalflows.IssueOutcome{}, err
	}

	return internalflows.IssueOutcome{
		AccessToken:  access,
		RefreshToken: internal.EncodeRefreshSecret(secret),
		AccessID:     jti,
		RecordID:     rec.IDString(),
	}, nil
}

/*
====================================
VALIDATE
====================================
*/

// ValidateAccess describes the validateaccess operation and its observable behavior.
//
// ValidateAccess may return an error when input validation, dependency calls, or security checks fail.
// ValidateAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) ValidateAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	return g.Validate(ctx, tokenStr, ModeInherit)
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) Validate(ctx context.Context, tokenStr string, routeMode RouteMode) (*AuthResult, error) {
	if g == nil || g.tokenManager == nil {
		return nil, ErrGateNotReady
	}
	if g.metrics != nil && g.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() {
			g.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	effectiveMode, err := g.resolveRouteMode(routeMode)
	if err != nil {
		return nil, err
	}

	result := internalflows.RunValidate(ctx, tokenStr, internalflows.ValidateDeps{
		Parse:          g.tokenManager.ParseAccess,
		IsDenylisted:   g.refreshStore.IsAccessIDDenylisted,
		CurrentVersion: g.versions.Current,
		CheckDenylist:  effectiveMode >= ModeHybrid,
		CheckVersion:   effectiveMode >= ModeStrict,
	})

	switch result.Failure {
	case internalflows.ValidateFailureNone:
		g.metricInc(MetricValidateSuccess)
		return buildAuthResult(result.Claims), nil

	case internalflows.ValidateFailureParse:
		g.metricInc(MetricValidateFailure)
		if errors.Is(result.Err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrUnauthorized

	case internalflows.ValidateFailureDenylisted:
		g.metricInc(MetricValidateDenylisted)
		g.metricInc(MetricValidateFailure)
		return nil, ErrTokenRevoked

	case internalflows.ValidateFailureVersionMismatch:
		g.metricInc(MetricVersionMismatch)
		g.metricInc(MetricValidateFailure)
		return nil, ErrSecurityVersionMismatch

	default:
		// Backend faults fail closed.
		g.metricInc(MetricValidateFailure)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}
}

func (g *Gate) resolveRouteMode(routeMode RouteMode) (ValidationMode, error) {
	if routeMode == ModeInherit {
		return g.config.ValidationMode, nil
	}
	switch routeMode {
	case ModeJWTOnly, ModeHybrid, ModeStrict:
		return routeMode, nil
	default:
		return 0, ErrInvalidRouteMode
	}
}

func buildAuthResult(claims *token.AccessClaims) *AuthResult {
	res := &AuthResult{
		PrincipalID:     claims.Subject,
		Roles:           claims.Roles,
		SecurityVersion: claims.SecurityVersion,
		TokenID:         claims.ID,
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	return res
}

/*
====================================
REVOCATION
====================================
*/

// RevokeAccess describes the revokeaccess operation and its observable behavior.
//
// RevokeAccess may return an error when input validation, dependency calls, or security checks fail.
// RevokeAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) RevokeAccess(ctx context.Context, tokenStr string) error {
	if g == nil || g.refreshStore == nil || g.tokenManager == nil {
		return ErrGateNotReady
	}

	result := internalflows.RunRevokeAccess(ctx, tokenStr, internalflows.RevokeAccessDeps{
		ParseUnverifiedID: g.tokenManager.ExtractID,
		Denylist:          g.refreshStore.DenylistAccessID,
		Now:               time.Now,
	})

	switch result.Failure {
	case internalflows.RevokeFailureNone:
		if result.Revoked > 0 {
			g.metricInc(MetricTokenRevoked)
		}
		g.emitAudit(ctx, auditEventTokenRevoked, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"kind": "access",
			}
		})
		return nil
	case internalflows.RevokeFailureDecode:
		return ErrMalformedToken
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}
}

// RevokeRefresh describes the revokerefresh operation and its observable behavior.
//
// RevokeRefresh may return an error when input validation, dependency calls, or security checks fail.
// RevokeRefresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) RevokeRefresh(ctx context.Context, refreshToken string) error {
	if g == nil || g.refreshStore == nil {
		return ErrGateNotReady
	}

	result := internalflows.RunRevokeRefresh(ctx, refreshToken, internalflows.RevokeRefreshDeps{
		DecodeSecret: internal.DecodeRefreshSecret,
		HashSecret:   internal.HashRefreshSecret,
		Revoke:       g.refreshStore.Revoke,
	})

	switch result.Failure {
	case internalflows.RevokeFailureNone:
		g.metricInc(MetricTokenRevoked)
		g.emitAudit(ctx, auditEventTokenRevoked, true, "", "", nil, func() map[string]string {
			return map[string]string{
				"kind": "refresh",
			}
		})
		return nil
	case internalflows.RevokeFailureDecode:
		return ErrMalformedToken
	case internalflows.RevokeFailureNotFound:
		// Unknown or expired records revoke to the same end state.
		return nil
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, result.Err)
	}
}

// RevokeAllForPrincipal describes the revokeallforprincipal operation and its observable behavior.
//
// RevokeAllForPrincipal may return an error when input validation, dependency calls, or security checks fail.
// RevokeAllForPrincipal does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) RevokeAllForPrincipal(ctx context.Context, principalID string) (int, error) {
	if g == nil || g.refreshStore == nil {
		return 0, ErrGateNotReady
	}
	if principalID == "" {
		return 0, ErrPrincipalRequired
	}

	n, err := g.refreshStore.RevokeAllForPrincipal(ctx, principalID)
	if err == nil {
		g.metricInc(MetricRevokeAll)
	}
	g.emitAudit(ctx, auditEventRevokeAll, err == nil, principalID, "", err, nil)
	return n, err
}

// BumpSecurity describes the bumpsecurity operation and its observable behavior.
//
// BumpSecurity may return an error when input validation, dependency calls, or security checks fail.
// BumpSecurity does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) BumpSecurity(ctx context.Context, principalID string) (uint32, error) {
	if g == nil || g.versions == nil {
		return 0, ErrGateNotReady
	}
	if principalID == "" {
		return 0, ErrPrincipalRequired
	}

	version, err := g.versions.Bump(ctx, principalID)
	if err == nil {
		g.metricInc(MetricSecurityBump)
	}
	g.emitAudit(ctx, auditEventSecurityBump, err == nil, principalID, "", err, nil)
	return version, err
}

// LogoutEverywhere revokes every live refresh record for the principal and
// then bumps the security version, cutting off outstanding access tokens in
// strict validation without waiting for them to expire.
//
// LogoutEverywhere may return an error when input validation, dependency calls, or security checks fail.
func (g *Gate) LogoutEverywhere(ctx context.Context, principalID string) (int, error) {
	if g == nil || g.refreshStore == nil || g.versions == nil {
		return 0, ErrGateNotReady
	}
	if principalID == "" {
		return 0, ErrPrincipalRequired
	}

	result := internalflows.RunRevokeAll(ctx, principalID, internalflows.RevokeAllDeps{
		RevokeAll:   g.refreshStore.RevokeAllForPrincipal,
		BumpVersion: g.versions.Bump,
	})

	if result.Failure == internalflows.RevokeFailureNone {
		g.metricInc(MetricRevokeAll)
		g.metricInc(MetricSecurityBump)
		g.emitAudit(ctx, auditEventRevokeAll, true, principalID, "", nil, func() map[string]string {
			return map[string]string{
				"bumped": "true",
			}
		})
		return result.Revoked, nil
	}

	g.emitAudit(ctx, auditEventRevokeAll, false, principalID, "", result.Err, nil)
	return result.Revoked, result.Err
}
