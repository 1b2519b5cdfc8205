package narequenta

// reservedRollKeys are top-level roll-data keys an essence shorthand never
// replaces.
var reservedRollKeys = map[string]struct{}{
	"id":         {},
	"name":       {},
	"kind":       {},
	"tier":       {},
	"essences":   {},
	"resources":  {},
	"statuses":   {},
	"initiative": {},
}

// RollData projects a sheet into the nested map dice formulas read from.
// With essence shorthand enabled each essence map is also reachable under its
// own key; both paths share the same map value.
func RollData(sheet Sheet, rules Ruleset) map[string]any {
	data := map[string]any{
		"id":   sheet.ID,
		"name": sheet.Name,
		"kind": string(sheet.Kind),
	}
	if sheet.Derived {
		data["tier"] = sheet.Tier
	}

	statuses := make([]any, 0, len(sheet.Statuses))
	for _, status := range sheet.Statuses {
		statuses = append(statuses, status)
	}
	data["statuses"] = statuses

	if sheet.Resources != nil {
		data["resources"] = map[string]any{
			"hp": map[string]any{
				"value": sheet.Resources.HP.Value,
				"max":   sheet.Resources.HP.Max,
			},
			"actionSurges": map[string]any{
				"value": sheet.Resources.ActionSurges.Value,
				"max":   sheet.Resources.ActionSurges.Max,
			},
		}
	}

	essences := make(map[string]any, len(sheet.Essences))
	for key, derived := range sheet.Essences {
		entry := map[string]any{
			"value":      derived.Value,
			"max":        derived.Max,
			"tier":       derived.Tier,
			"diceCount":  derived.DiceCount,
			"diceString": derived.DiceString,
			"mitigation": derived.Mitigation,
		}
		essences[key] = entry
		if !rules.RollData.EssenceShorthand {
			continue
		}
		if _, reserved := reservedRollKeys[key]; reserved {
			continue
		}
		data[key] = entry
	}
	data["essences"] = essences
	return data
}
