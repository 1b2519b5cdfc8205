// Package storage defines persistence contracts for the game service.
//
// It covers entity records with their essences and resource pools,
// placements that point back at entities, status effects, and the resolution
// ledger that makes batch resolution replay-safe. Implementations (SQLite and
// in-memory) live in subpackages.
//
// Common error types:
//   - ErrNotFound: requested record is missing
//   - ErrAlreadyApplied: a resolution payload id was already claimed
package storage
