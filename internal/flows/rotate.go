package flows

import (
	"context"
	"errors"
	"time"

	"github.com/mwalden07/authgate/refresh"
)

// RotateFailureKind classifies rotation flow failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureDecode
	RotateFailureRateLimited
	RotateFailureAdmission
	RotateFailureNextSecret
	RotateFailureNotFound
	RotateFailureExpired
	RotateFailureReplay
	RotateFailureRevoked
	RotateFailureVersionMismatch
	RotateFailureConsume
	RotateFailureIssue
)

// RotateResult carries either the fresh token pair or failure metadata.
type RotateResult struct {
	Failure      RotateFailureKind
	Err          error
	PrincipalID  string
	Address      string
	Record       *refresh.Record
	AccessToken  string
	RefreshToken string
	AccessID     string
	RecordID     string
}

// RotateDeps captures rotation flow dependencies.
type RotateDeps struct {
	AddressFromContext func(context.Context) string
	DeviceFromContext  func(context.Context) string

	DecodeSecret func(string) ([32]byte, error)
	HashSecret   func([32]byte) [32]byte
	NewRecordID  func() ([16]byte, error)

	Limiter        AdmissionLimiter
	LimiterEnabled bool
	MaxAttempts    int
	Window         time.Duration
	RotateKey      func(string) string

	Consume        func(ctx context.Context, secretHash [32]byte, successor [16]byte) (*refresh.Record, error)
	CurrentVersion func(ctx context.Context, principalID string) (uint32, error)

	// IssuePairFor must create the successor record under recordID so the
	// consumed record's successor pointer stays truthful.
	IssuePairFor func(ctx context.Context, rec *refresh.Record, recordID [16]byte, device, address string) (IssueOutcome, error)

	EnableReplayTracking bool
	TrackReplay          func(ctx context.Context, recordID string, ttl time.Duration) error
	RecordLifetime       func() time.Duration
	Warn                 func(string, ...any)
}

// RunRotate executes refresh rotation: decode, admission, atomic consume,
// security-version check, and issuance of the successor pair.
func RunRotate(ctx context.Context, rawToken string, deps RotateDeps) RotateResult {
	address := deps.AddressFromContext(ctx)
	device := deps.DeviceFromContext(ctx)

	secret, err := deps.DecodeSecret(rawToken)
	if err != nil {
		return RotateResult{Failure: RotateFailureDecode, Err: err, Address: address}
	}
	secretHash := deps.HashSecret(secret)

	if deps.LimiterEnabled && deps.Limiter != nil {
		key := deps.RotateKey(string(secretHash[:8]))
		allowed, err := deps.Limiter.Allow(ctx, key, deps.MaxAttempts, deps.Window)
		if err != nil {
			return RotateResult{Failure: RotateFailureAdmission, Err: err, Address: address}
		}
		if !allowed {
			return RotateResult{Failure: RotateFailureRateLimited, Address: address}
		}
	}

	successorID, err := deps.NewRecordID()
	if err != nil {
		return RotateResult{Failure: RotateFailureNextSecret, Err: err, Address: address}
	}

	rec, err := deps.Consume(ctx, secretHash, successorID)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrRecordNotFound):
			return RotateResult{Failure: RotateFailureNotFound, Err: err, Address: address}
		case errors.Is(err, refresh.ErrRecordExpired):
			return RotateResult{Failure: RotateFailureExpired, Err: err, Address: address}
		case errors.Is(err, refresh.ErrRecordRotated):
			if deps.EnableReplayTracking && deps.TrackReplay != nil {
				if trackErr := deps.TrackReplay(ctx, recordIDKey(secretHash), deps.RecordLifetime()); trackErr != nil && deps.Warn != nil {
					deps.Warn("authgate: replay anomaly tracking failed")
				}
			}
			return RotateResult{Failure: RotateFailureReplay, Err: err, Address: address}
		case errors.Is(err, refresh.ErrRecordRevoked):
			return RotateResult{Failure: RotateFailureRevoked, Err: err, Address: address}
		default:
			return RotateResult{Failure: RotateFailureConsume, Err: err, Address: address}
		}
	}

	current, err := deps.CurrentVersion(ctx, rec.PrincipalID)
	if err != nil {
		return RotateResult{
			Failure:     RotateFailureConsume,
			Err:         err,
			PrincipalID: rec.PrincipalID,
			Address:     address,
			Record:      rec,
		}
	}
	if rec.SecurityVersion != current {
		// The consumed record is already terminal; a stale snapshot never
		// yields a new pair. The successor id stored by Consume points at a
		// record that is never persisted, so a later presentation of the same
		// secret reports the rotated state, not the version mismatch.
		return RotateResult{
			Failure:     RotateFailureVersionMismatch,
			PrincipalID: rec.PrincipalID,
			Address:     address,
			Record:      rec,
		}
	}

	outcome, err := deps.IssuePairFor(ctx, rec, successorID, device, address)
	if err != nil {
		return RotateResult{
			Failure:     RotateFailureIssue,
			Err:         err,
			PrincipalID: rec.PrincipalID,
			Address:     address,
			Record:      rec,
		}
	}

	return RotateResult{
		Failure:      RotateFailureNone,
		PrincipalID:  rec.PrincipalID,
		Address:      address,
		Record:       rec,
		AccessToken:  outcome.AccessToken,
		RefreshToken: outcome.RefreshToken,
		AccessID:     outcome.AccessID,
		RecordID:     outcome.RecordID,
	}
}

// recordIDKey derives a stable anomaly-tracking key from the secret hash
// without persisting the full hash under a guessable name.
func recordIDKey(secretHash [32]byte) string {
	const hexdigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 0; i < 8; i++ {
		out[2*i] = hexdigits[secretHash[i]>>4]
		out[2*i+1] = hexdigits[secretHash[i]&0x0F]
	}
	return string(out)
}
