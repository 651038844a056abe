// Package security tracks the per-principal security version counter.
//
// Every access token embeds the counter value current at issuance; bumping the
// counter therefore invalidates every previously issued access token for that
// principal in O(1), with no per-token denylist entry. Refresh records snapshot
// the same counter and are rejected on rotation when the snapshot is stale.
//
// # What this package must NOT do
//
//   - Cache versions in process memory (the counter must be shared across instances).
//   - Be bypassed on the validation path.
package security
