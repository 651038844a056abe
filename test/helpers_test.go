//go:build integration
// +build integration

package test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mwalden07/authgate/refresh"
)

// newIntegrationStore creates a refresh.Store backed by miniredis.
// The cleanup func closes both the client and the server.
func newIntegrationStore(t *testing.T) (*refresh.Store, *redis.Client, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := refresh.NewStore(rdb, "grt")

	return store, rdb, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

// hashByte returns a deterministic secret hash whose bytes are all b.
func hashByte(b byte) [32]byte {
	var h [32]byte
	for i := range h {
		h[i] = b
	}
	return h
}

// idByte returns a deterministic record id whose bytes are all b.
func idByte(b byte) [16]byte {
	var id [16]byte
	for i := range id {
		id[i] = b
	}
	return id
}

// makeRecord builds an issued record for principalID with a one-hour lifetime.
func makeRecord(principalID string, id [16]byte) *refresh.Record {
	now := time.Now()
	return &refresh.Record{
		ID:              id,
		PrincipalID:     principalID,
		Device:          "integration-test",
		Address:         "127.0.0.1",
		Roles:           []string{"user"},
		SecurityVersion: 1,
		State:           refresh.StateIssued,
		IssuedAt:        now.Unix(),
		ExpiresAt:       now.Add(time.Hour).Unix(),
	}
}
