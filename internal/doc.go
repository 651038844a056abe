// Package internal contains helper utilities that are intentionally private to authgate,
// including secure random generation and refresh secret encoding.
//
// # Sub-packages
//
//   - flows — pure-function flow orchestrators for every Gate operation
//   - rate — core fixed-window rate limit primitives and counter stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public authgate API.
//   - Be imported by any package outside the authgate module.
package internal
