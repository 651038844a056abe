package authgate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

type mockVerifier struct {
	principals map[string]PrincipalRecord
	credential string
	calls      int
}

func (m *mockVerifier) VerifyCredentials(_ context.Context, identifier, credential string) (PrincipalRecord, error) {
	m.calls++
	rec, ok := m.principals[identifier]
	if !ok {
		return PrincipalRecord{}, errors.New("principal not found")
	}
	if credential != m.credential {
		return PrincipalRecord{}, errors.New("credential mismatch")
	}
	return rec, nil
}

func gateTestConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.SigningMethod = "hs256"
	cfg.JWT.PrivateKey = []byte("gate-test-secret-key-256-bits!!!")
	cfg.JWT.AccessTTL = time.Minute
	cfg.Refresh.TTL = time.Hour
	cfg.RateLimit.MaxLoginAttempts = 3
	cfg.RateLimit.LoginWindow = time.Minute
	return cfg
}

func newTestGate(t *testing.T, cfg Config, verifier CredentialVerifier) (*Gate, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	gate, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialVerifier(verifier).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return gate, mr, func() {
		gate.Close()
		mr.Close()
	}
}

func defaultVerifier() *mockVerifier {
	return &mockVerifier{
		principals: map[string]PrincipalRecord{
			"alice": {PrincipalID: "p-alice", Roles: []string{"member"}, Status: AccountActive},
			"bob":   {PrincipalID: "p-bob", Roles: []string{"member", "admin"}, Status: AccountActive},
			"carol": {PrincipalID: "p-carol", Roles: []string{"member"}, Status: AccountLocked},
			"dave":  {PrincipalID: "p-dave", Roles: []string{"member"}, Status: AccountDisabled},
		},
		credential: "correct-horse-battery",
	}
}

func TestAuthenticateIssuesValidPair(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	ctx := WithClientAddress(context.Background(), "198.51.100.7")
	pair, err := gate.Authenticate(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}
	if pair.AccessID == "" || pair.RecordID == "" {
		t.Fatal("expected token ids in the pair")
	}

	res, err := gate.ValidateAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if res.PrincipalID != "p-alice" {
		t.Fatalf("expected principal p-alice, got %s", res.PrincipalID)
	}
	if len(res.Roles) != 1 || res.Roles[0] != "member" {
		t.Fatalf("unexpected roles: %v", res.Roles)
	}
	if res.TokenID != pair.AccessID {
		t.Fatalf("expected token id %s, got %s", pair.AccessID, res.TokenID)
	}
}

func TestAuthenticateUnknownAndWrongCredentialIndistinguishable(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	_, errUnknown := gate.Authenticate(context.Background(), "nobody", "correct-horse-battery")
	_, errWrong := gate.Authenticate(context.Background(), "alice", "wrong-credential")

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("unknown identifier: expected ErrInvalidCredentials, got %v", errUnknown)
	}
	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Fatalf("wrong credential: expected ErrInvalidCredentials, got %v", errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Fatal("expected identical errors for unknown identifier and wrong credential")
	}
}

func TestAuthenticateAccountStatus(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	if _, err := gate.Authenticate(context.Background(), "carol", "correct-horse-battery"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
	if _, err := gate.Authenticate(context.Background(), "dave", "correct-horse-battery"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestAuthenticateRateLimitsIdentifier(t *testing.T) {
	verifier := defaultVerifier()
	gate, _, done := newTestGate(t, gateTestConfig(), verifier)
	defer done()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := gate.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	callsBefore := verifier.calls
	if _, err := gate.Authenticate(ctx, "alice", "correct-horse-battery"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if verifier.calls != callsBefore {
		t.Fatal("verifier must not be called once admission denies")
	}
}

func TestAuthenticateSuccessResetsCounters(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _ = gate.Authenticate(ctx, "alice", "wrong")
	}
	if _, err := gate.Authenticate(ctx, "alice", "correct-horse-battery"); err != nil {
		t.Fatalf("expected success before the budget is spent, got %v", err)
	}

	// Counters were reset; the full budget is available again.
	for i := 0; i < 2; i++ {
		_, _ = gate.Authenticate(ctx, "alice", "wrong")
	}
	if _, err := gate.Authenticate(ctx, "alice", "correct-horse-battery"); err != nil {
		t.Fatalf("expected success after reset, got %v", err)
	}
}

func TestRotateReturnsFreshPairAndDetectsReplay(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	ctx := context.Background()
	pair, err := gate.Authenticate(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	next, err := gate.Rotate(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Rotate failed: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("rotation must issue a new refresh token")
	}
	if next.RecordID == pair.RecordID {
		t.Fatal("rotation must issue a new record id")
	}

	// Presenting the consumed token again is a replay.
	if _, err := gate.Rotate(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenReplayed) {
		t.Fatalf("expected ErrTokenReplayed, got %v", err)
	}

	// The successor stays valid.
	if _, err := gate.Rotate(ctx, next.RefreshToken); err != nil {
		t.Fatalf("successor rotation failed: %v", err)
	}
}

func TestRotateMalformedToken(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	if _, err := gate.Rotate(context.Background(), "!!not-base64!!"); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestRotateUnknownToken(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	// Well-formed but never issued.
	bogus := "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	if _, err := gate.Rotate(context.Background(), bogus); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestRotateAfterBumpFailsVersionCheck(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	ctx := context.Background()
	pair, err := gate.Authenticate(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if _, err := gate.BumpSecurity(ctx, "p-alice"); err != nil {
		t.Fatalf("BumpSecurity failed: %v", err)
	}

	if _, err := gate.Rotate(ctx, pair.RefreshToken); !errors.Is(err, ErrSecurityVersionMismatch) {
		t.Fatalf("expected ErrSecurityVersionMismatch, got %v", err)
	}

	// The failed rotation still consumed the record, so presenting the same
	// token again looks like a replay rather than a second version mismatch.
	if _, err := gate.Rotate(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenReplayed) {
		t.Fatalf("expected ErrTokenReplayed on second presentation, got %v", err)
	}
}

func TestValidateAfterBumpStrictMode(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	ctx := context.Background()
	pair, err := gate.Authenticate(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if _, err := gate.ValidateAccess(ctx, pair.AccessToken); err != nil {
		t.Fatalf("expected valid access before bump, got %v", err)
	}

	if _, err := gate.BumpSecurity(ctx, "p-alice"); err != nil {
		t.Fatalf("BumpSecurity failed: %v", err)
	}

	if _, err := gate.ValidateAccess(ctx, pair.AccessToken); !errors.Is(err, ErrSecurityVersionMismatch) {
		t.Fatalf("expected ErrSecurityVersionMismatch, got %v", err)
	}

	// JWTOnly route override skips the version check by design of the mode.
	if _, err := gate.Validate(ctx, pair.AccessToken, ModeJWTOnly); err != nil {
		t.Fatalf("expected JWTOnly validation to pass, got %v", err)
	}
}

func TestRevokeAccessDenylistsUntilExpiry(t *testing.T) {
	gate, mr, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	ctx := context.Background()
	pair, err := gate.Authenticate(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if err := gate.RevokeAccess(ctx, pair.AccessToken); err != nil {
		t.Fatalf("RevokeAccess failed: %v", err)
	}
	if _, err := gate.ValidateAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	// Denylist entries carry only the token's remaining lifetime. Once Redis
	// reclaims the entry the signature and expiry checks are the sole guards.
	mr.FastForward(2 * time.Minute)
	if _, err := gate.ValidateAccess(ctx, pair.AccessToken); err != nil {
		t.Fatalf("expected validation to fall through to expiry checks, got %v", err)
	}
}

func TestRevokeAccessGarbageRejected(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	if err := gate.RevokeAccess(context.Background(), "not.a.jwt"); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken, got %v", err)
	}
}

func TestRevokeRefreshIsIdempotent(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	ctx := context.Background()
	pair, err := gate.Authenticate(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	if err := gate.RevokeRefresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("first RevokeRefresh failed: %v", err)
	}
	if err := gate.RevokeRefresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("second RevokeRefresh must be a no-op success, got %v", err)
	}

	if _, err := gate.Rotate(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
}

func TestLogoutEverywhere(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	ctx := context.Background()
	var pairs []*TokenPair
	for i := 0; i < 3; i++ {
		pair, err := gate.Authenticate(ctx, "alice", "correct-horse-battery")
		if err != nil {
			t.Fatalf("Authenticate %d failed: %v", i, err)
		}
		pairs = append(pairs, pair)
	}

	n, err := gate.LogoutEverywhere(ctx, "p-alice")
	if err != nil {
		t.Fatalf("LogoutEverywhere failed: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 revoked records, got %d", n)
	}

	for i, pair := range pairs {
		if _, err := gate.Rotate(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("pair %d: expected ErrTokenRevoked, got %v", i, err)
		}
		if _, err := gate.ValidateAccess(ctx, pair.AccessToken); !errors.Is(err, ErrSecurityVersionMismatch) {
			t.Fatalf("pair %d: expected ErrSecurityVersionMismatch, got %v", i, err)
		}
	}
}

func TestActiveRefreshTokens(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	ctx := WithDeviceInfo(WithClientAddress(context.Background(), "203.0.113.9"), "cli/1.0")
	pair, err := gate.Authenticate(ctx, "bob", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	count, err := gate.ActiveRefreshTokenCount(ctx, "p-bob")
	if err != nil {
		t.Fatalf("ActiveRefreshTokenCount failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 active token, got %d", count)
	}

	infos, err := gate.ActiveRefreshTokens(ctx, "p-bob")
	if err != nil {
		t.Fatalf("ActiveRefreshTokens failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expected 1 info, got %d", len(infos))
	}
	if infos[0].RecordID != pair.RecordID {
		t.Fatalf("expected record %s, got %s", pair.RecordID, infos[0].RecordID)
	}
	if infos[0].Device != "cli/1.0" || infos[0].Address != "203.0.113.9" {
		t.Fatalf("unexpected introspection view: %+v", infos[0])
	}

	if err := gate.RevokeRefresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("RevokeRefresh failed: %v", err)
	}
	count, err = gate.ActiveRefreshTokenCount(ctx, "p-bob")
	if err != nil {
		t.Fatalf("ActiveRefreshTokenCount failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 active tokens after revoke, got %d", count)
	}
}

func TestRefreshTokenExpiresWithTTL(t *testing.T) {
	cfg := gateTestConfig()
	cfg.Refresh.TTL = 5 * time.Minute
	gate, mr, done := newTestGate(t, cfg, defaultVerifier())
	defer done()

	ctx := context.Background()
	pair, err := gate.Authenticate(ctx, "alice", "correct-horse-battery")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	mr.FastForward(6 * time.Minute)

	if _, err := gate.Rotate(ctx, pair.RefreshToken); !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expiry classification, got %v", err)
	}
}

func TestValidateInvalidRouteMode(t *testing.T) {
	gate, _, done := newTestGate(t, gateTestConfig(), defaultVerifier())
	defer done()

	if _, err := gate.Validate(context.Background(), "x", RouteMode(42)); !errors.Is(err, ErrInvalidRouteMode) {
		t.Fatalf("expected ErrInvalidRouteMode, got %v", err)
	}
}

func TestGateNotReady(t *testing.T) {
	var gate *Gate

	if _, err := gate.Authenticate(context.Background(), "a", "b"); !errors.Is(err, ErrGateNotReady) {
		t.Fatalf("expected ErrGateNotReady, got %v", err)
	}
	if _, err := gate.Rotate(context.Background(), "t"); !errors.Is(err, ErrGateNotReady) {
		t.Fatalf("expected ErrGateNotReady, got %v", err)
	}
	if _, err := gate.ValidateAccess(context.Background(), "t"); !errors.Is(err, ErrGateNotReady) {
		t.Fatalf("expected ErrGateNotReady, got %v", err)
	}
}
