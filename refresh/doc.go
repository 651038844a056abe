// Package refresh is the Redis-backed store of issued refresh-token records and
// the short-lived denylist of revoked access-token ids.
//
// # Record lifecycle
//
// Issued -> Rotated (terminal, successor recorded) | Revoked (terminal) |
// Expired (terminal, time-based). No transition leaves a terminal state.
// Records are keyed by the SHA-256 hash of the raw client secret; the raw
// value is never stored. Expired records are treated as terminal lazily at
// lookup time — physical deletion is housekeeping, not a correctness
// requirement.
//
// # Rotation protocol
//
// Consume is a Lua compare-and-swap: lookup and the Issued -> Rotated
// transition happen as one atomic step, so two concurrent presentations of
// the same secret yield exactly one winner. The loser observes the terminal
// state and is classified as a replay.
//
// # What this package must NOT do
//
//   - Mint or parse access tokens (package token owns that).
//   - Decide admission policy (package internal/rate owns that).
//   - Return raw secrets: only hashes ever reach this package.
package refresh
