package middleware

import (
	"net/http"

	"github.com/mwalden07/authgate"
)

func RequireStrict(gate *authgate.Gate) func(http.Handler) http.Handler {
	return Guard(gate, authgate.ModeStrict)
}

// RequireHybrid returns middleware that checks the signature and the access
// denylist but skips the per-principal security-version lookup.
func RequireHybrid(gate *authgate.Gate) func(http.Handler) http.Handler {
	return Guard(gate, authgate.ModeHybrid)
}
