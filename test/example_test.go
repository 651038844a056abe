package test

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	authgate "github.com/mwalden07/authgate"
)

// ExampleNew demonstrates gate construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	verifier := &exampleVerifier{}

	gate, _ := authgate.New().
		WithConfig(authgate.DefaultConfig()).
		WithRedis(rdb).
		WithCredentialVerifier(verifier).
		Build()
	_ = gate
}

// ExampleGate_Authenticate shows a typical login entrypoint call and
// structured error handling.
func ExampleGate_Authenticate() {
	var gate *authgate.Gate
	pair, err := gate.Authenticate(context.Background(), "alice@example.com", "credential")
	if err != nil {
		switch {
		case errors.Is(err, authgate.ErrInvalidCredentials):
			// respond 401
		case errors.Is(err, authgate.ErrRateLimited):
			// respond 429
		default:
			// respond 503
		}
		return
	}
	_ = pair.AccessToken
	_ = pair.RefreshToken
}

// ExampleGate_MetricsSnapshot shows how to read in-process metrics counters.
func ExampleGate_MetricsSnapshot() {
	var gate *authgate.Gate
	snapshot := gate.MetricsSnapshot()
	_ = snapshot
}

type exampleVerifier struct{}

func (e *exampleVerifier) VerifyCredentials(ctx context.Context, identifier, credential string) (authgate.PrincipalRecord, error) {
	return authgate.PrincipalRecord{PrincipalID: "principal-1", Status: authgate.AccountActive}, nil
}
