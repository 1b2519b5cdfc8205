package narequenta

import "testing"

func rollSheet() Sheet {
	return DeriveEntity(Entity{
		ID:   "hero",
		Name: "Aria",
		Kind: KindCharacter,
		Essences: map[string]Essence{
			"vitalis": {Value: 85, Max: 60},
			"motus":   {Value: 40, Max: 92},
		},
		Resources: &Resources{HP: Resource{Value: 9, Max: 12}},
		Statuses:  []string{"blessed"},
	})
}

func TestRollDataShorthandSharesEssenceMap(t *testing.T) {
	data := RollData(rollSheet(), DefaultRuleset())

	essences := data["essences"].(map[string]any)
	nested := essences["vitalis"].(map[string]any)
	short, ok := data["vitalis"].(map[string]any)
	if !ok {
		t.Fatal("expected vitalis shorthand")
	}
	if nested["value"] != 85.0 || short["value"] != 85.0 {
		t.Fatalf("value nested=%v short=%v, want 85", nested["value"], short["value"])
	}

	nested["value"] = 1.0
	if short["value"] != 1.0 {
		t.Fatal("expected shorthand to alias the nested essence map")
	}

	if data["tier"] != 4 {
		t.Fatalf("tier = %v, want 4", data["tier"])
	}
	if got := short["diceString"]; got != "4d10" {
		t.Fatalf("diceString = %v, want 4d10", got)
	}
	resources := data["resources"].(map[string]any)
	if resources["actionSurges"].(map[string]any)["max"] != 4.0 {
		t.Fatalf("action surges = %v", resources["actionSurges"])
	}
}

func TestRollDataShorthandDisabled(t *testing.T) {
	rules := DefaultRuleset()
	rules.RollData.EssenceShorthand = false
	data := RollData(rollSheet(), rules)
	if _, ok := data["vitalis"]; ok {
		t.Fatal("expected no shorthand keys")
	}
	if _, ok := data["essences"].(map[string]any)["vitalis"]; !ok {
		t.Fatal("expected nested essence")
	}
}

func TestRollDataShorthandNeverReplacesReservedKeys(t *testing.T) {
	sheet := DeriveEntity(Entity{
		ID:       "odd",
		Kind:     KindNPC,
		Essences: map[string]Essence{"tier": {Value: 10, Max: 100}},
	})
	data := RollData(sheet, DefaultRuleset())
	if data["tier"] != 0 {
		t.Fatalf("tier = %v, want entity tier 0", data["tier"])
	}
}

func TestRollDataShorthandLeavesInitiativeKeyFree(t *testing.T) {
	sheet := DeriveEntity(Entity{
		ID:       "odd",
		Kind:     KindNPC,
		Essences: map[string]Essence{"initiative": {Value: 10, Max: 60}},
	})
	data := RollData(sheet, DefaultRuleset())
	if _, ok := data["initiative"]; ok {
		t.Fatalf("initiative = %v, want the key left for the initiative expression", data["initiative"])
	}
	if _, ok := data["essences"].(map[string]any)["initiative"]; !ok {
		t.Fatal("expected the essence under essences")
	}
}

func TestRollDataUnderivedOmitsTier(t *testing.T) {
	data := RollData(DeriveEntity(Entity{ID: "bare", Kind: KindNPC}), DefaultRuleset())
	if _, ok := data["tier"]; ok {
		t.Fatal("expected no tier for underived sheet")
	}
	if _, ok := data["resources"]; ok {
		t.Fatal("expected no resources")
	}
}
