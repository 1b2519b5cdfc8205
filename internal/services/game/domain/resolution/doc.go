// Package resolution decodes and applies batch resolution commands.
//
// A command charges an attacker's essence (attrition), damages each target's
// hit points in payload order, and marks targets that reach zero as defeated.
// Writes go through an EntityMutator one at a time, each awaited before the
// next. A malformed or replayed payload fails before any write; every other
// failure is recorded as a warning on the Report and processing continues.
package resolution
