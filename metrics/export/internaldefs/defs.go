package internaldefs

import (
	"github.com/mwalden07/authgate"
)

// CounterDef defines a public type used by authgate APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authgate APIs.
//
// HistogramDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the admission gate.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful login attempts."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed login attempts."},
	{ID: authgate.MetricLoginRateLimited, Name: "authgate_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authgate.MetricRotateSuccess, Name: "authgate_rotate_success_total", Help: "Successful refresh-token rotations."},
	{ID: authgate.MetricRotateFailure, Name: "authgate_rotate_failure_total", Help: "Failed refresh-token rotations."},
	{ID: authgate.MetricRotateRateLimited, Name: "authgate_rotate_rate_limited_total", Help: "Rate-limited rotation attempts."},
	{ID: authgate.MetricReplayDetected, Name: "authgate_replay_detected_total", Help: "Detected refresh-token replays."},
	{ID: authgate.MetricVersionMismatch, Name: "authgate_version_mismatch_total", Help: "Tokens rejected by the security-version check."},
	{ID: authgate.MetricValidateSuccess, Name: "authgate_validate_success_total", Help: "Successful access-token validations."},
	{ID: authgate.MetricValidateFailure, Name: "authgate_validate_failure_total", Help: "Failed access-token validations."},
	{ID: authgate.MetricValidateDenylisted, Name: "authgate_validate_denylisted_total", Help: "Validations rejected by the access denylist."},
	{ID: authgate.MetricTokenIssued, Name: "authgate_token_issued_total", Help: "Issued token pairs."},
	{ID: authgate.MetricTokenRevoked, Name: "authgate_token_revoked_total", Help: "Single-token revocations."},
	{ID: authgate.MetricRevokeAll, Name: "authgate_revoke_all_total", Help: "Revoke-all operations per principal."},
	{ID: authgate.MetricSecurityBump, Name: "authgate_security_bump_total", Help: "Security-version bump operations."},
	{ID: authgate.MetricRateLimitHit, Name: "authgate_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
}

// HistogramDefs is an exported constant or variable used by the admission gate.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricValidateLatency, Name: "authgate_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the admission gate.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the admission gate.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets may return an error when input validation, dependency calls, or security checks fail.
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets may return an error when input validation, dependency calls, or security checks fail.
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
