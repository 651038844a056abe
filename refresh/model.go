package refresh

import "encoding/base64"

// State is the lifecycle state of a refresh-token record.
type State uint8

const (
	// StateIssued is the only non-terminal state.
	StateIssued State = iota
	// StateRotated marks a record consumed by rotation; its successor field
	// links to the replacing record.
	StateRotated
	// StateRevoked marks a record explicitly revoked.
	StateRevoked
)

// Terminal reports whether no further transition may leave this state.
func (s State) Terminal() bool {
	return s != StateIssued
}

// Record is one persisted refresh token. The store keys records by the
// SHA-256 hash of the raw secret; the record itself never carries the secret.
type Record struct {
	ID          [16]byte
	Successor   [16]byte
	PrincipalID string
	Device      string
	Address     string

	Roles []string

	SecurityVersion uint32
	State           State

	IssuedAt  int64
	ExpiresAt int64
}

// IDString returns the record id in compact base64url form.
func (r *Record) IDString() string {
	return base64.RawURLEncoding.EncodeToString(r.ID[:])
}

// SuccessorString returns the successor id in compact base64url form, or ""
// when the record was never rotated.
func (r *Record) SuccessorString() string {
	if r.Successor == ([16]byte{}) {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(r.Successor[:])
}
