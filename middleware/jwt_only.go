package middleware

import (
	"net/http"

	"github.com/mwalden07/authgate"
)

// RequireJWTOnly returns middleware that overrides the validation mode to
// [authgate.ModeJWTOnly] for the wrapped handler, skipping Redis entirely.
func RequireJWTOnly(gate *authgate.Gate) func(http.Handler) http.Handler {
	return Guard(gate, authgate.ModeJWTOnly)
}
