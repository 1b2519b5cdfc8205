package resolution

import (
	"time"

	apperrors "github.com/cortonemo/narequenta-vtt/internal/platform/errors"
)

// WarningKind classifies a soft failure for notification rendering.
type WarningKind string

const (
	WarningAttackerNotFound       WarningKind = "attacker_not_found"
	WarningAttackerEssenceMissing WarningKind = "attacker_essence_missing"
	WarningTargetNotFound         WarningKind = "target_not_found"
	WarningMutationFailed         WarningKind = "mutation_failed"
	WarningLookupFailed           WarningKind = "lookup_failed"
)

// Warning is one recorded soft failure.
type Warning struct {
	Kind     WarningKind    `json:"kind"`
	Code     apperrors.Code `json:"code"`
	Ref      string         `json:"ref,omitempty"`
	EntityID string         `json:"entityId,omitempty"`
	Path     string         `json:"path,omitempty"`
	Message  string         `json:"message"`
}

// Attrition is the outcome of charging the attacker.
type Attrition struct {
	Ref        string  `json:"ref"`
	EntityID   string  `json:"entityId,omitempty"`
	EssenceKey string  `json:"essenceKey"`
	Cost       float64 `json:"cost"`
	Before     float64 `json:"before"`
	After      float64 `json:"after"`
	Applied    bool    `json:"applied"`
}

// TargetResult is the outcome for one payload target.
type TargetResult struct {
	Ref             string  `json:"ref"`
	EntityID        string  `json:"entityId,omitempty"`
	Found           bool    `json:"found"`
	Damage          float64 `json:"damage"`
	HPBefore        float64 `json:"hpBefore"`
	HPAfter         float64 `json:"hpAfter"`
	Damaged         bool    `json:"damaged"`
	Defeated        bool    `json:"defeated"`
	AlreadyDefeated bool    `json:"alreadyDefeated"`
}

// Report summarizes one applied resolution.
type Report struct {
	PayloadID        string         `json:"payloadId"`
	Fingerprint      string         `json:"fingerprint"`
	Attrition        Attrition      `json:"attrition"`
	AttritionApplied bool           `json:"attritionApplied"`
	Targets          []TargetResult `json:"targets"`
	TargetsDamaged   int            `json:"targetsDamaged"`
	Defeated         []string       `json:"defeated"`
	Warnings         []Warning      `json:"warnings"`
	// Completed is set once every step has run; callers disable the command
	// affordance on it.
	Completed  bool      `json:"completed"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// WarningsOf returns the warnings of one kind.
func (r Report) WarningsOf(kind WarningKind) []Warning {
	var out []Warning
	for _, warning := range r.Warnings {
		if warning.Kind == kind {
			out = append(out, warning)
		}
	}
	return out
}
