// Package narequenta implements the Narequenta essence rules: per-essence tier
// derivation, the entity-wide capability tier, the roll-data projection, and
// the initiative tie-breaker input.
//
// Derivation is a pure transform. DeriveEntity never mutates its input; it
// returns a Sheet that composes the stored base records with derived fields.
package narequenta
