package test

import (
	"testing"

	authgate "github.com/mwalden07/authgate"
)

func TestDefaultConfigPresetValidates(t *testing.T) {
	cfg := authgate.DefaultConfig()

	if cfg.ValidationMode != authgate.ModeStrict {
		t.Fatalf("expected ModeStrict, got %v", cfg.ValidationMode)
	}
	if !cfg.RateLimit.Enabled || !cfg.Security.EnableReplayTracking {
		t.Fatal("expected rate limiting and replay tracking to stay enabled")
	}
	if len(cfg.JWT.PrivateKey) == 0 || len(cfg.JWT.PublicKey) == 0 {
		t.Fatal("expected preset to include generated ed25519 keys")
	}
	if cfg.Security.ProductionMode {
		t.Fatal("expected production mode disabled in the development baseline")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected preset to validate, got %v", err)
	}
}

func TestHighSecurityConfigPresetValidates(t *testing.T) {
	cfg := authgate.HighSecurityConfig()

	if cfg.ValidationMode != authgate.ModeStrict {
		t.Fatalf("expected ModeStrict, got %v", cfg.ValidationMode)
	}
	if !cfg.Security.ProductionMode {
		t.Fatal("expected production mode enabled")
	}
	if !cfg.JWT.RequireIAT {
		t.Fatal("expected RequireIAT=true")
	}
	if !cfg.Audit.Enabled {
		t.Fatal("expected audit trail enabled")
	}
	if cfg.RateLimit.MaxLoginAttempts >= authgate.DefaultConfig().RateLimit.MaxLoginAttempts {
		t.Fatal("expected tighter login window than the default preset")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected high security preset to validate, got %v", err)
	}
}

func TestHighThroughputConfigPresetValidates(t *testing.T) {
	cfg := authgate.HighThroughputConfig()

	if cfg.ValidationMode != authgate.ModeHybrid {
		t.Fatalf("expected ModeHybrid, got %v", cfg.ValidationMode)
	}
	if !cfg.Security.ProductionMode {
		t.Fatal("expected production mode enabled")
	}
	if cfg.JWT.AccessTTL <= 0 || cfg.Refresh.TTL <= 0 {
		t.Fatal("expected positive token ttls")
	}
	if cfg.RateLimit.ThrottleAddress {
		t.Fatal("expected address throttling disabled for throughput preset")
	}
	if !cfg.Metrics.Enabled {
		t.Fatal("expected metrics enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected high throughput preset to validate, got %v", err)
	}
}
