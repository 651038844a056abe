package flows

import (
	"context"
	"time"
)

// AdmissionLimiter is the rate-limiting surface flows need: one Allow per
// admission dimension, Reset after success.
type AdmissionLimiter interface {
	Allow(ctx context.Context, key string, maxRequests int, window time.Duration) (bool, error)
	Reset(ctx context.Context, keys ...string) error
}

// PrincipalInfo carries the verified identity a flow issues tokens for.
type PrincipalInfo struct {
	PrincipalID string
	Roles       []string
	Status      uint8
}

// IssueOutcome is the token pair produced by an issuance, plus the ids needed
// for audit trails.
type IssueOutcome struct {
	AccessToken  string
	RefreshToken string
	AccessID     string
	RecordID     string
}

// Deps groups flow dependency sets. The root gate builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Authenticate AuthenticateDeps
	Rotate       RotateDeps
	Revoke       RevokeDeps
	Validate     ValidateDeps
}
