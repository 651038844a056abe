package authgate

import (
	"context"
)

// ActiveRefreshTokenCount describes the activerefreshtokencount operation and its observable behavior.
//
// ActiveRefreshTokenCount may return an error when input validation, dependency calls, or security checks fail.
// ActiveRefreshTokenCount does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) ActiveRefreshTokenCount(ctx context.Context, principalID string) (int, error) {
	if g == nil || g.refreshStore == nil {
		return 0, ErrGateNotReady
	}
	if principalID == "" {
		return 0, ErrPrincipalRequired
	}

	return g.refreshStore.ActiveCount(ctx, principalID)
}

// ActiveRefreshTokens describes the activerefreshtokens operation and its observable behavior.
//
// ActiveRefreshTokens may return an error when input validation, dependency calls, or security checks fail.
// ActiveRefreshTokens does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) ActiveRefreshTokens(ctx context.Context, principalID string) ([]RefreshTokenInfo, error) {
	if g == nil || g.refreshStore == nil {
		return nil, ErrGateNotReady
	}
	if principalID == "" {
		return nil, ErrPrincipalRequired
	}

	records, err := g.refreshStore.ListForPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}

	out := make([]RefreshTokenInfo, 0, len(records))
	for _, rec := range records {
		out = append(out, RefreshTokenInfo{
			RecordID:  rec.IDString(),
			Device:    rec.Device,
			Address:   rec.Address,
			IssuedAt:  rec.IssuedAt,
			ExpiresAt: rec.ExpiresAt,
		})
	}

	return out, nil
}

// SweepRefreshIndex removes dangling index entries left behind by expired
// records. Housekeeping only; correctness never depends on it running.
//
// SweepRefreshIndex may return an error when input validation, dependency calls, or security checks fail.
func (g *Gate) SweepRefreshIndex(ctx context.Context, principalID string) (int, error) {
	if g == nil || g.refreshStore == nil {
		return 0, ErrGateNotReady
	}
	if principalID == "" {
		return 0, ErrPrincipalRequired
	}

	return g.refreshStore.SweepIndex(ctx, principalID)
}

// Ping describes the ping operation and its observable behavior.
//
// Ping does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (g *Gate) Ping(ctx context.Context) HealthStatus {
	if g == nil || g.refreshStore == nil {
		return HealthStatus{}
	}

	latency, err := g.refreshStore.Ping(ctx)
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   latency,
	}
}
