package authgate

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// newBenchGate builds a gate over miniredis with rate limiting disabled so
// the benchmarks measure the token path, not admission counters.
func newBenchGate(b *testing.B) (*Gate, func()) {
	b.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		b.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := gateTestConfig()
	cfg.RateLimit.Enabled = false

	gate, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialVerifier(defaultVerifier()).
		Build()
	if err != nil {
		b.Fatalf("Build failed: %v", err)
	}

	return gate, func() {
		gate.Close()
		_ = client.Close()
		mr.Close()
	}
}

func BenchmarkValidateJWTOnly(b *testing.B) {
	gate, cleanup := newBenchGate(b)
	defer cleanup()

	ctx := context.Background()
	pair, err := gate.Authenticate(ctx, "alice", "correct-horse-battery")
	if err != nil {
		b.Fatalf("Authenticate failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := gate.Validate(ctx, pair.AccessToken, ModeJWTOnly); err != nil {
			b.Fatalf("Validate failed: %v", err)
		}
	}
}

func BenchmarkValidateStrict(b *testing.B) {
	gate, cleanup := newBenchGate(b)
	defer cleanup()

	ctx := context.Background()
	pair, err := gate.Authenticate(ctx, "alice", "correct-horse-battery")
	if err != nil {
		b.Fatalf("Authenticate failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := gate.Validate(ctx, pair.AccessToken, ModeStrict); err != nil {
			b.Fatalf("Validate failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	gate, cleanup := newBenchGate(b)
	defer cleanup()

	ctx := context.Background()
	pair, err := gate.Authenticate(ctx, "alice", "correct-horse-battery")
	if err != nil {
		b.Fatalf("Authenticate failed: %v", err)
	}

	refreshToken := pair.RefreshToken

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next, err := gate.Rotate(ctx, refreshToken)
		if err != nil {
			b.Fatalf("Rotate failed: %v", err)
		}
		refreshToken = next.RefreshToken
	}
}
