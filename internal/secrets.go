package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// TokenID is the opaque per-record identifier embedded in refresh records.
// It is never derived from the secret and exists so rotation can link a
// consumed record to its successor without exposing either secret.
type TokenID [16]byte

const refreshSecretSize = 32

func NewTokenID() (TokenID, error) {
	var id TokenID
	_, err := rand.Read(id[:])
	return id, err
}

func (t TokenID) Bytes() []byte {
	return t[:]
}

func (t TokenID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(t[:])
}

func (t TokenID) IsZero() bool {
	return t == TokenID{}
}

func ParseTokenID(id string) (TokenID, error) {
	var tid TokenID

	raw, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil {
		return tid, err
	}
	if len(raw) != len(tid) {
		return tid, errors.New("invalid token id size")
	}

	copy(tid[:], raw)
	return tid, nil
}

// NewRefreshSecret returns the raw secret handed to the client exactly once.
// Only its SHA-256 hash is ever persisted.
func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

func EncodeRefreshSecret(secret [refreshSecretSize]byte) string {
	return base64.RawURLEncoding.EncodeToString(secret[:])
}

func DecodeRefreshSecret(token string) ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return secret, err
	}
	if len(raw) != refreshSecretSize {
		return secret, errors.New("invalid refresh secret size")
	}

	copy(secret[:], raw)
	return secret, nil
}
