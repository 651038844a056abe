// Package flows contains the pure orchestration logic behind every Gate
// operation. Each flow takes a Deps struct of narrow function fields and small
// interfaces, performs no sentinel mapping of its own, and returns a Result
// carrying a FailureKind plus the underlying error for root-level mapping.
//
// # What this package must NOT do
//
//   - Import the root authgate package (the dependency points the other way).
//   - Emit metrics or audit events (root owns observability).
//   - Hold state: flows are stateless functions over their Deps.
package flows
