package domain

import (
	"sort"

	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
)

// EssenceInput is one essence pool supplied by a tool caller.
type EssenceInput struct {
	Key   string  `json:"key" jsonschema:"essence key, e.g. vitalis"`
	Value float64 `json:"value" jsonschema:"current essence value"`
	Max   float64 `json:"max" jsonschema:"essence maximum before clamping"`
}

// ResourceInput is a bounded pool such as hit points.
type ResourceInput struct {
	Value float64 `json:"value" jsonschema:"current value"`
	Max   float64 `json:"max" jsonschema:"maximum value"`
}

// EssenceResult is one derived essence.
type EssenceResult struct {
	Key        string  `json:"key" jsonschema:"essence key"`
	Value      float64 `json:"value" jsonschema:"current essence value"`
	Max        float64 `json:"max" jsonschema:"clamped maximum"`
	Tier       int     `json:"tier" jsonschema:"proficiency tier 0-5"`
	Dice       string  `json:"dice" jsonschema:"damage dice, e.g. 3d10"`
	Mitigation float64 `json:"mitigation" jsonschema:"damage mitigation granted by the tier"`
}

// ResourceResult is a resource pool on a sheet.
type ResourceResult struct {
	Value float64 `json:"value" jsonschema:"current value"`
	Max   float64 `json:"max" jsonschema:"maximum value"`
}

// SheetResult is the derived sheet of an entity.
type SheetResult struct {
	ID           string          `json:"id" jsonschema:"entity identifier"`
	Name         string          `json:"name,omitempty" jsonschema:"display name"`
	Kind         string          `json:"kind" jsonschema:"entity kind (character, npc, ...)"`
	Derived      bool            `json:"derived" jsonschema:"false when the entity has no essences"`
	Tier         int             `json:"tier" jsonschema:"highest essence tier"`
	Essences     []EssenceResult `json:"essences" jsonschema:"derived essences ordered by key"`
	HP           *ResourceResult `json:"hp,omitempty" jsonschema:"hit points"`
	ActionSurges *ResourceResult `json:"action_surges,omitempty" jsonschema:"action surges"`
	Statuses     []string        `json:"statuses,omitempty" jsonschema:"active statuses"`
}

// WarningResult is a soft failure recorded during a resolution.
type WarningResult struct {
	Kind    string `json:"kind" jsonschema:"warning category"`
	Code    string `json:"code" jsonschema:"error code"`
	Ref     string `json:"ref,omitempty" jsonschema:"reference that failed"`
	Message string `json:"message" jsonschema:"diagnostic message"`
}

// TargetOutcome is the outcome for one target.
type TargetOutcome struct {
	Ref      string  `json:"ref" jsonschema:"target reference"`
	EntityID string  `json:"entity_id,omitempty" jsonschema:"resolved entity id"`
	Found    bool    `json:"found" jsonschema:"whether the reference resolved"`
	HPBefore float64 `json:"hp_before" jsonschema:"hit points before damage"`
	HPAfter  float64 `json:"hp_after" jsonschema:"hit points after damage"`
	Defeated bool    `json:"defeated" jsonschema:"whether this resolution defeated the target"`
}

// ReportResult summarizes an applied resolution.
type ReportResult struct {
	PayloadID        string          `json:"payload_id" jsonschema:"payload identifier"`
	Fingerprint      string          `json:"fingerprint" jsonschema:"sha-256 of the canonical payload"`
	AttritionApplied bool            `json:"attrition_applied" jsonschema:"whether the attacker paid the attrition cost"`
	AttritionAfter   float64         `json:"attrition_after" jsonschema:"attacker essence value after attrition"`
	Targets          []TargetOutcome `json:"targets" jsonschema:"per-target outcomes"`
	TargetsDamaged   int             `json:"targets_damaged" jsonschema:"targets whose hit points were written"`
	Defeated         []string        `json:"defeated" jsonschema:"entities newly marked defeated"`
	Warnings         []WarningResult `json:"warnings" jsonschema:"soft failures"`
	Completed        bool            `json:"completed" jsonschema:"whether every step ran"`
}

func essencesFromInput(in []EssenceInput) map[string]narequenta.Essence {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]narequenta.Essence, len(in))
	for _, essence := range in {
		out[essence.Key] = narequenta.Essence{Value: essence.Value, Max: essence.Max}
	}
	return out
}

func sheetResult(sheet narequenta.Sheet) SheetResult {
	out := SheetResult{
		ID:       sheet.ID,
		Name:     sheet.Name,
		Kind:     string(sheet.Kind),
		Derived:  sheet.Derived,
		Tier:     sheet.Tier,
		Essences: make([]EssenceResult, 0, len(sheet.Essences)),
		Statuses: sheet.Statuses,
	}
	keys := make([]string, 0, len(sheet.Essences))
	for key := range sheet.Essences {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		derived := sheet.Essences[key]
		out.Essences = append(out.Essences, EssenceResult{
			Key:        key,
			Value:      derived.Value,
			Max:        derived.Max,
			Tier:       derived.Tier,
			Dice:       derived.DiceString,
			Mitigation: derived.Mitigation,
		})
	}
	if sheet.Resources != nil {
		out.HP = &ResourceResult{Value: sheet.Resources.HP.Value, Max: sheet.Resources.HP.Max}
		out.ActionSurges = &ResourceResult{Value: sheet.Resources.ActionSurges.Value, Max: sheet.Resources.ActionSurges.Max}
	}
	return out
}

func reportResult(report resolution.Report) ReportResult {
	out := ReportResult{
		PayloadID:        report.PayloadID,
		Fingerprint:      report.Fingerprint,
		AttritionApplied: report.AttritionApplied,
		AttritionAfter:   report.Attrition.After,
		Targets:          make([]TargetOutcome, 0, len(report.Targets)),
		TargetsDamaged:   report.TargetsDamaged,
		Defeated:         report.Defeated,
		Warnings:         make([]WarningResult, 0, len(report.Warnings)),
		Completed:        report.Completed,
	}
	if out.Defeated == nil {
		out.Defeated = []string{}
	}
	for _, target := range report.Targets {
		out.Targets = append(out.Targets, TargetOutcome{
			Ref:      target.Ref,
			EntityID: target.EntityID,
			Found:    target.Found,
			HPBefore: target.HPBefore,
			HPAfter:  target.HPAfter,
			Defeated: target.Defeated,
		})
	}
	for _, warning := range report.Warnings {
		out.Warnings = append(out.Warnings, WarningResult{
			Kind:    string(warning.Kind),
			Code:    string(warning.Code),
			Ref:     warning.Ref,
			Message: warning.Message,
		})
	}
	return out
}
