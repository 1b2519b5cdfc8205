// Package sqlite implements the game persistence contracts on SQLite.
//
// Entities, essences, placements, statuses, and the resolution ledger live in
// one database file. Every mutator call is a single short statement or
// transaction, so a batch resolution issues its writes one at a time in the
// order the processor awaits them.
package sqlite
