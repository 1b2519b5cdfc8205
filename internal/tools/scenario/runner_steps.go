package scenario

import (
	"context"
	"fmt"
	"sort"

	apperrors "github.com/cortonemo/narequenta-vtt/internal/platform/errors"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
)

type scenarioState struct {
	lastReport *resolution.Report
}

func (r *Runner) runStep(ctx context.Context, state *scenarioState, step Step) error {
	switch step.Kind {
	case "entity":
		return r.runEntityStep(ctx, step.Args)
	case "placement":
		return r.runPlacementStep(ctx, step.Args)
	case "resolve":
		return r.runResolveStep(ctx, state, step.Args)
	case "expect_essence":
		return r.runExpectEssenceStep(ctx, step.Args)
	case "expect_sheet":
		return r.runExpectSheetStep(ctx, step.Args)
	case "expect_hp":
		return r.runExpectHPStep(ctx, step.Args)
	case "expect_status":
		return r.runExpectStatusStep(ctx, step.Args)
	case "expect_report":
		return r.runExpectReportStep(state, step.Args)
	default:
		return r.failf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) runEntityStep(ctx context.Context, args map[string]any) error {
	id, err := r.requireString(args, "id")
	if err != nil {
		return err
	}
	kind, err := narequenta.ParseKind(optionalString(args, "kind", ""))
	if err != nil {
		return err
	}
	entity := narequenta.Entity{
		ID:   id,
		Name: optionalString(args, "name", id),
		Kind: kind,
	}

	essences, err := r.optionalMap(args, "essences")
	if err != nil {
		return err
	}
	if len(essences) > 0 {
		entity.Essences = make(map[string]narequenta.Essence, len(essences))
		for key, raw := range essences {
			pool, ok := raw.(map[string]any)
			if !ok {
				return r.failf("essence %s must be a table", key)
			}
			value, max, err := r.readPool(pool, "essence "+key)
			if err != nil {
				return err
			}
			entity.Essences[key] = narequenta.Essence{Value: value, Max: max}
		}
	}

	hp, err := r.optionalMap(args, "hp")
	if err != nil {
		return err
	}
	surges, err := r.optionalMap(args, "action_surges")
	if err != nil {
		return err
	}
	if hp != nil || surges != nil {
		entity.Resources = &narequenta.Resources{}
		if hp != nil {
			value, max, err := r.readPool(hp, "hp")
			if err != nil {
				return err
			}
			entity.Resources.HP = narequenta.Resource{Value: value, Max: max}
		}
		if surges != nil {
			value, max, err := r.readPool(surges, "action_surges")
			if err != nil {
				return err
			}
			entity.Resources.ActionSurges = narequenta.Resource{Value: value, Max: max}
		}
	}

	statuses, _, err := r.optionalStrings(args, "statuses")
	if err != nil {
		return err
	}
	entity.Statuses = statuses

	if err := r.store.PutEntity(ctx, entity); err != nil {
		return fmt.Errorf("put entity %s: %w", id, err)
	}
	return nil
}

// readPool reads {value = n, max = m}; value defaults to max.
func (r *Runner) readPool(pool map[string]any, label string) (float64, float64, error) {
	max, err := r.requireNumber(pool, "max")
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", label, err)
	}
	value, err := r.optionalNumber(pool, "value", max)
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", label, err)
	}
	return value, max, nil
}

func (r *Runner) runPlacementStep(ctx context.Context, args map[string]any) error {
	id, err := r.requireString(args, "id")
	if err != nil {
		return err
	}
	entityID, err := r.requireString(args, "entity")
	if err != nil {
		return err
	}
	placement := narequenta.Placement{
		ID:       id,
		EntityID: entityID,
		Label:    optionalString(args, "label", ""),
	}
	if err := r.store.PutPlacement(ctx, placement); err != nil {
		return fmt.Errorf("put placement %s: %w", id, err)
	}
	return nil
}

func (r *Runner) runResolveStep(ctx context.Context, state *scenarioState, args map[string]any) error {
	state.lastReport = nil

	payload, err := r.resolvePayload(args)
	var report resolution.Report
	if err == nil {
		report, err = r.processor.Resolve(ctx, payload)
	}

	if want := optionalString(args, "expect_error", ""); want != "" {
		if err == nil {
			return r.assertf("resolve succeeded, want error %s", want)
		}
		if got := apperrors.GetCode(err); string(got) != want {
			return r.assertf("resolve error code = %s, want %s (%v)", got, want, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	state.lastReport = &report
	if r.journal != nil {
		if err := r.journal.Append(ctx, payload, report); err != nil {
			return fmt.Errorf("journal resolution: %w", err)
		}
	}
	r.logf("resolved %s: %d/%d targets damaged, defeated %v",
		report.PayloadID, report.TargetsDamaged, len(report.Targets), report.Defeated)
	return nil
}

// resolvePayload builds a payload from a raw JSON string or from table
// fields. Decode errors are returned as the processor would return them.
func (r *Runner) resolvePayload(args map[string]any) (resolution.Payload, error) {
	if hasArg(args, "raw") {
		return resolution.Decode(optionalString(args, "raw", ""))
	}

	cost, err := r.optionalNumber(args, "cost", 0)
	if err != nil {
		return resolution.Payload{}, err
	}
	payload := resolution.Payload{
		PayloadID:     optionalString(args, "id", ""),
		AttackerRef:   optionalString(args, "attacker", ""),
		EssenceKey:    optionalString(args, "essence", ""),
		AttritionCost: cost,
	}

	targets, _, err := r.optionalList(args, "targets")
	if err != nil {
		return resolution.Payload{}, err
	}
	for i, raw := range targets {
		entry, ok := raw.(map[string]any)
		if !ok {
			return resolution.Payload{}, r.failf("target %d must be a table", i+1)
		}
		ref, err := r.requireString(entry, "ref")
		if err != nil {
			return resolution.Payload{}, fmt.Errorf("target %d: %w", i+1, err)
		}
		damage, err := r.optionalNumber(entry, "damage", 0)
		if err != nil {
			return resolution.Payload{}, fmt.Errorf("target %d: %w", i+1, err)
		}
		payload.Targets = append(payload.Targets, resolution.Target{Ref: ref, Damage: damage})
	}
	return payload, nil
}

func (r *Runner) loadSheet(ctx context.Context, args map[string]any) (narequenta.Sheet, error) {
	ref, err := r.requireString(args, "entity")
	if err != nil {
		return narequenta.Sheet{}, err
	}
	entity, err := r.store.ResolveRef(ctx, ref)
	if err != nil {
		return narequenta.Sheet{}, fmt.Errorf("resolve %s: %w", ref, err)
	}
	return narequenta.DeriveEntity(entity), nil
}

func (r *Runner) runExpectEssenceStep(ctx context.Context, args map[string]any) error {
	sheet, err := r.loadSheet(ctx, args)
	if err != nil {
		return err
	}
	key, err := r.requireString(args, "essence")
	if err != nil {
		return err
	}
	derived, ok := sheet.Essence(key)
	if !ok {
		return r.assertf("%s has no essence %s", sheet.ID, key)
	}

	if hasArg(args, "value") {
		want, err := r.requireNumber(args, "value")
		if err != nil {
			return err
		}
		if !floatsEqual(derived.Value, want) {
			return r.assertf("%s %s value = %v, want %v", sheet.ID, key, derived.Value, want)
		}
	}
	if hasArg(args, "max") {
		want, err := r.requireNumber(args, "max")
		if err != nil {
			return err
		}
		if !floatsEqual(derived.Max, want) {
			return r.assertf("%s %s max = %v, want %v", sheet.ID, key, derived.Max, want)
		}
	}
	if hasArg(args, "tier") {
		want, err := r.requireNumber(args, "tier")
		if err != nil {
			return err
		}
		if float64(derived.Tier) != want {
			return r.assertf("%s %s tier = %d, want %v", sheet.ID, key, derived.Tier, want)
		}
	}
	if hasArg(args, "dice") {
		if want := optionalString(args, "dice", ""); derived.DiceString != want {
			return r.assertf("%s %s dice = %q, want %q", sheet.ID, key, derived.DiceString, want)
		}
	}
	if hasArg(args, "mitigation") {
		want, err := r.requireNumber(args, "mitigation")
		if err != nil {
			return err
		}
		if !floatsEqual(derived.Mitigation, want) {
			return r.assertf("%s %s mitigation = %v, want %v", sheet.ID, key, derived.Mitigation, want)
		}
	}
	return nil
}

func (r *Runner) runExpectSheetStep(ctx context.Context, args map[string]any) error {
	sheet, err := r.loadSheet(ctx, args)
	if err != nil {
		return err
	}
	if hasArg(args, "derived") {
		want, err := r.optionalBool(args, "derived", false)
		if err != nil {
			return err
		}
		if sheet.Derived != want {
			return r.assertf("%s derived = %v, want %v", sheet.ID, sheet.Derived, want)
		}
	}
	if hasArg(args, "tier") {
		want, err := r.requireNumber(args, "tier")
		if err != nil {
			return err
		}
		if float64(sheet.Tier) != want {
			return r.assertf("%s tier = %d, want %v", sheet.ID, sheet.Tier, want)
		}
	}
	if hasArg(args, "action_surges_max") {
		want, err := r.requireNumber(args, "action_surges_max")
		if err != nil {
			return err
		}
		got := 0.0
		if sheet.Resources != nil {
			got = sheet.Resources.ActionSurges.Max
		}
		if !floatsEqual(got, want) {
			return r.assertf("%s action surges max = %v, want %v", sheet.ID, got, want)
		}
	}
	return nil
}

func (r *Runner) runExpectHPStep(ctx context.Context, args map[string]any) error {
	sheet, err := r.loadSheet(ctx, args)
	if err != nil {
		return err
	}
	want, err := r.requireNumber(args, "value")
	if err != nil {
		return err
	}
	got := 0.0
	if sheet.Resources != nil {
		got = sheet.Resources.HP.Value
	}
	if !floatsEqual(got, want) {
		return r.assertf("%s hp = %v, want %v", sheet.ID, got, want)
	}
	return nil
}

func (r *Runner) runExpectStatusStep(ctx context.Context, args map[string]any) error {
	ref, err := r.requireString(args, "entity")
	if err != nil {
		return err
	}
	status, err := r.requireString(args, "status")
	if err != nil {
		return err
	}
	want, err := r.optionalBool(args, "present", true)
	if err != nil {
		return err
	}
	entity, err := r.store.ResolveRef(ctx, ref)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", ref, err)
	}
	got, err := r.store.HasStatus(ctx, entity.ID, status)
	if err != nil {
		return fmt.Errorf("has status %s: %w", status, err)
	}
	if got != want {
		return r.assertf("%s has %s = %v, want %v", entity.ID, status, got, want)
	}
	return nil
}

func (r *Runner) runExpectReportStep(state *scenarioState, args map[string]any) error {
	report := state.lastReport
	if report == nil {
		return r.failf("expect_report requires a successful resolve before it")
	}

	if hasArg(args, "damaged") {
		want, err := r.requireNumber(args, "damaged")
		if err != nil {
			return err
		}
		if float64(report.TargetsDamaged) != want {
			return r.assertf("targets damaged = %d, want %v", report.TargetsDamaged, want)
		}
	}
	if hasArg(args, "attrition_applied") {
		want, err := r.optionalBool(args, "attrition_applied", false)
		if err != nil {
			return err
		}
		if report.AttritionApplied != want {
			return r.assertf("attrition applied = %v, want %v", report.AttritionApplied, want)
		}
	}
	if hasArg(args, "completed") {
		want, err := r.optionalBool(args, "completed", false)
		if err != nil {
			return err
		}
		if report.Completed != want {
			return r.assertf("completed = %v, want %v", report.Completed, want)
		}
	}
	if hasArg(args, "payload_id") {
		if want := optionalString(args, "payload_id", ""); report.PayloadID != want {
			return r.assertf("payload id = %q, want %q", report.PayloadID, want)
		}
	}

	defeated, ok, err := r.optionalStrings(args, "defeated")
	if err != nil {
		return err
	}
	if ok && !sameStringSet(report.Defeated, defeated) {
		return r.assertf("defeated = %v, want %v", report.Defeated, defeated)
	}

	warnings, ok, err := r.optionalStrings(args, "warnings")
	if err != nil {
		return err
	}
	if ok {
		got := make([]string, 0, len(report.Warnings))
		for _, warning := range report.Warnings {
			got = append(got, string(warning.Kind))
		}
		sort.Strings(got)
		if !sameStringSet(got, warnings) {
			return r.assertf("warnings = %v, want %v", got, warnings)
		}
	}
	return nil
}
