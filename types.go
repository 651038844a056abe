package authgate

import (
	"context"
	"time"
)

// AccountStatus represents the lifecycle state of a principal's account.
type AccountStatus uint8

const (
	// AccountActive is an exported constant or variable used by the admission gate.
	AccountActive AccountStatus = iota
	// AccountDisabled is an exported constant or variable used by the admission gate.
	AccountDisabled
	// AccountLocked is an exported constant or variable used by the admission gate.
	AccountLocked
	// AccountDeleted is an exported constant or variable used by the admission gate.
	AccountDeleted
)

// PrincipalRecord is the verified identity returned by a
// [CredentialVerifier]. It carries everything the gate needs to issue a
// token pair; the gate never sees raw credentials or their hashes.
type PrincipalRecord struct {
	PrincipalID string
	Roles       []string
	Status      AccountStatus
}

// CredentialVerifier is the primary interface that callers must implement
// to integrate authgate with their identity database. VerifyCredentials
// must return an error for unknown identifiers as well as wrong
// credentials; the gate maps both to [ErrInvalidCredentials] so responses
// never reveal which one failed.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, identifier, credential string) (PrincipalRecord, error)
}

// TokenPair is returned by [Gate.Authenticate] and [Gate.Rotate]: a signed
// access token plus the opaque single-use refresh token that replaces it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string

	// AccessID is the access token's jti; RecordID identifies the refresh
	// record. Both are safe to log.
	AccessID string
	RecordID string
}

// AuthResult is returned by [Gate.Validate] and [Gate.ValidateAccess].
// It contains the authenticated principal's ID, role set, and the
// security-version snapshot baked into the token.
type AuthResult struct {
	PrincipalID     string
	Roles           []string
	SecurityVersion uint32
	TokenID         string
	ExpiresAt       time.Time
}

// RefreshTokenInfo is the safe introspection view for one refresh record.
// It intentionally excludes the secret hash and any token material.
type RefreshTokenInfo struct {
	RecordID  string
	Device    string
	Address   string
	IssuedAt  int64
	ExpiresAt int64
}

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}
