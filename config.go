package authgate

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"time"
)

// Config defines a public type used by authgate APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT            JWTConfig
	Refresh        RefreshConfig
	RateLimit      RateLimitConfig
	Security       SecurityConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
	ValidationMode ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by authgate APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	AccessTTL     time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	RequireIAT    bool
	MaxFutureIAT  time.Duration

	// KeyID is stamped into minted token headers; VerifyKeys maps key ids
	// to public keys accepted during verification, enabling signing-key
	// rotation without invalidating outstanding tokens.
	KeyID      string
	VerifyKeys map[string][]byte
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by authgate APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	TTL         time.Duration
	RedisPrefix string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig defines a public type used by authgate APIs.
//
// RateLimitConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RateLimitConfig struct {
	Enabled           bool
	ThrottleAddress   bool
	MaxLoginAttempts  int
	LoginWindow       time.Duration
	EnableRotateGuard bool
	MaxRotateAttempts int
	RotateWindow      time.Duration
}

// SecurityConfig defines a public type used by authgate APIs.
//
// SecurityConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SecurityConfig struct {
	ProductionMode       bool
	EnableReplayTracking bool
	VersionRedisPrefix   string
}

// AuditConfig defines a public type used by authgate APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authgate APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ValidationMode defines a public type used by authgate APIs.
//
// ValidationMode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type ValidationMode int

const (
	// ModeInherit is an exported constant or variable used by the admission gate.
	ModeInherit ValidationMode = -1

	// ModeJWTOnly is an exported constant or variable used by the admission gate.
	ModeJWTOnly ValidationMode = iota
	// ModeHybrid is an exported constant or variable used by the admission gate.
	ModeHybrid
	// ModeStrict is an exported constant or variable used by the admission gate.
	ModeStrict
)

// RouteMode is the per-route override mode for Gate.Validate.
// It intentionally reuses the same constants (ModeInherit/ModeStrict/ModeJWTOnly).
type RouteMode = ValidationMode

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     5 * time.Minute,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
			RequireIAT:    true,
			MaxFutureIAT:  2 * time.Minute,
		},
		Refresh: RefreshConfig{
			TTL:         7 * 24 * time.Hour,
			RedisPrefix: "grt",
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			ThrottleAddress:   true,
			MaxLoginAttempts:  5,
			LoginWindow:       15 * time.Minute,
			EnableRotateGuard: true,
			MaxRotateAttempts: 20,
			RotateWindow:      1 * time.Minute,
		},
		Security: SecurityConfig{
			ProductionMode:       false,
			EnableReplayTracking: true,
			VersionRedisPrefix:   "gsv",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		ValidationMode: ModeStrict,
	}
}

// DefaultConfig returns a ready-to-run development preset: strict validation,
// rate limiting and replay tracking enabled, and a freshly generated ed25519
// keypair. Production deployments supply their own key material and set
// Security.ProductionMode.
func DefaultConfig() Config {
	cfg := defaultConfig()

	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err == nil {
		cfg.JWT.PrivateKey = private
		cfg.JWT.PublicKey = public
	}

	return cfg
}

// HighSecurityConfig returns a production-leaning preset: strict validation,
// short token lifetimes, tighter admission windows, and the audit trail
// enabled. Key material is generated the same way [DefaultConfig] does it.
func HighSecurityConfig() Config {
	cfg := DefaultConfig()

	cfg.Security.ProductionMode = true
	cfg.ValidationMode = ModeStrict

	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.Refresh.TTL = 24 * time.Hour

	cfg.RateLimit.MaxLoginAttempts = 3
	cfg.RateLimit.LoginWindow = 15 * time.Minute
	cfg.RateLimit.MaxRotateAttempts = 10
	cfg.RateLimit.RotateWindow = 1 * time.Minute

	cfg.Audit.Enabled = true

	return cfg
}

// HighThroughputConfig returns a preset tuned for hot validation paths:
// hybrid validation (denylist check, no per-request version read), longer
// access tokens, address throttling off, and metrics enabled.
func HighThroughputConfig() Config {
	cfg := DefaultConfig()

	cfg.Security.ProductionMode = true
	cfg.ValidationMode = ModeHybrid

	cfg.JWT.AccessTTL = 15 * time.Minute

	cfg.RateLimit.ThrottleAddress = false
	cfg.RateLimit.MaxRotateAttempts = 100

	cfg.Metrics.Enabled = true

	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}

	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}

	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}
	if c.JWT.MaxFutureIAT < 0 {
		return errors.New("JWT MaxFutureIAT must be >= 0")
	}
	if len(c.JWT.VerifyKeys) > 0 && c.JWT.KeyID == "" {
		return errors.New("JWT VerifyKeys requires KeyID for minted tokens")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return errors.New("Refresh TTL must exceed JWT AccessTTL")
	}
	if c.Refresh.RedisPrefix == "" {
		return errors.New("Refresh RedisPrefix is required")
	}

	// Rate limiting
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxLoginAttempts <= 0 {
			return errors.New("RateLimit MaxLoginAttempts must be > 0")
		}
		if c.RateLimit.LoginWindow <= 0 {
			return errors.New("RateLimit LoginWindow must be > 0")
		}
		if c.RateLimit.EnableRotateGuard {
			if c.RateLimit.MaxRotateAttempts <= 0 {
				return errors.New("RateLimit MaxRotateAttempts must be > 0 when rotate guard is enabled")
			}
			if c.RateLimit.RotateWindow <= 0 {
				return errors.New("RateLimit RotateWindow must be > 0 when rotate guard is enabled")
			}
		}
	}

	// Security
	if c.Security.VersionRedisPrefix == "" {
		return errors.New("Security VersionRedisPrefix is required")
	}

	// Audit
	if c.Audit.Enabled {
		if c.Audit.BufferSize <= 0 {
			return errors.New("Audit BufferSize must be > 0 when audit is enabled")
		}
	}

	switch c.ValidationMode {
	case ModeJWTOnly, ModeHybrid, ModeStrict:
		// valid
	default:
		return errors.New("invalid ValidationMode")
	}

	if c.Security.ProductionMode {
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.Refresh.TTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires Refresh TTL <= 30d")
		}
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32 {
			return errors.New("ProductionMode requires hs256 key length >= 256 bits")
		}
		if !c.RateLimit.Enabled {
			return errors.New("ProductionMode requires rate limiting")
		}
		if !c.Security.EnableReplayTracking {
			return errors.New("ProductionMode requires replay tracking")
		}
		if c.ValidationMode == ModeJWTOnly {
			return errors.New("ProductionMode cannot default to JWTOnly validation")
		}
	}

	return nil
}
