// Package rate provides internal primitives used to build fixed-window rate limit
// counters, errors, and limiter behavior for security-sensitive token operations.
//
// # Window semantics
//
// Fixed-window counters: atomic increment + window start on first hit. The
// window boundary admits up to 2x the nominal rate across an edge; this is an
// accepted approximation (O(1) memory and time per check), not a bug. Key
// prefixes:
//   - gl:  — login per-identifier
//   - gli: — login per-address
//   - gr:  — rotation per-token
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (those live in the root package).
//   - Be imported outside the authgate module.
package rate
