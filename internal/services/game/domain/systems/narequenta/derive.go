package narequenta

import "strconv"

const (
	// EssenceMaxFloor and EssenceMaxCeiling bound a derived essence max.
	EssenceMaxFloor   = 50.0
	EssenceMaxCeiling = 100.0

	// MitigationPerTier is the damage mitigation granted per tier.
	MitigationPerTier = 5.5

	// MaxTier is the highest tier an essence can reach.
	MaxTier = 5
)

// tierBands maps an inclusive upper bound on the clamped max to a tier.
// Anything above the last bound, NaN included, is tier 0.
var tierBands = []struct {
	upTo float64
	tier int
}{
	{50, 5},
	{60, 4},
	{70, 3},
	{80, 2},
	{90, 1},
}

// DerivedEssence is an essence with its derived fields.
type DerivedEssence struct {
	Key        string  `json:"key"`
	Value      float64 `json:"value"`
	Max        float64 `json:"max"`
	Tier       int     `json:"tier"`
	DiceCount  int     `json:"diceCount"`
	DiceString string  `json:"diceString"`
	Mitigation float64 `json:"mitigation"`
}

// Sheet is the result of deriving an entity. It never aliases the input.
type Sheet struct {
	ID        string                    `json:"id"`
	Name      string                    `json:"name"`
	Kind      Kind                      `json:"kind"`
	Essences  map[string]DerivedEssence `json:"essences,omitempty"`
	Resources *Resources                `json:"resources,omitempty"`
	Statuses  []string                  `json:"statuses,omitempty"`
	// Tier is the highest essence tier. It is only meaningful when Derived.
	Tier int `json:"tier"`
	// Derived is false for entities without essence data; such sheets carry
	// the base record untouched.
	Derived bool `json:"derived"`
}

// ClampMax bounds max to [50, 100]. NaN is returned unchanged.
func ClampMax(max float64) float64 {
	if max < EssenceMaxFloor {
		return EssenceMaxFloor
	}
	if max > EssenceMaxCeiling {
		return EssenceMaxCeiling
	}
	return max
}

// TierForMax maps a clamped max to its tier. Bands are inclusive on their
// upper bound, so 60 is tier 4 and 50 is tier 5.
func TierForMax(max float64) int {
	for _, band := range tierBands {
		if max <= band.upTo {
			return band.tier
		}
	}
	return 0
}

// DiceString renders the dice pool for a tier, or "0" when there is none.
func DiceString(tier int) string {
	if tier <= 0 {
		return "0"
	}
	return strconv.Itoa(tier) + "d10"
}

// Mitigation returns the damage mitigation for a tier.
func Mitigation(tier int) float64 {
	return float64(tier) * MitigationPerTier
}

// DeriveEssence computes the derived fields for one essence.
func DeriveEssence(key string, essence Essence) DerivedEssence {
	max := ClampMax(essence.Max)
	tier := TierForMax(max)
	return DerivedEssence{
		Key:        key,
		Value:      essence.Value,
		Max:        max,
		Tier:       tier,
		DiceCount:  tier,
		DiceString: DiceString(tier),
		Mitigation: Mitigation(tier),
	}
}

// DeriveEntity derives every essence of subject and the entity-wide tier.
// Characters with resources get ActionSurges.Max set to that tier. Subjects
// without essences come back underived with their base data copied.
func DeriveEntity(subject Subject) Sheet {
	sheet := Sheet{
		ID:       subject.EntityID(),
		Name:     subject.EntityName(),
		Kind:     subject.EntityKind(),
		Statuses: append([]string(nil), subject.EntityStatuses()...),
	}
	if pools := subject.ResourcePools(); pools != nil {
		res := *pools
		sheet.Resources = &res
	}

	essences := subject.EssenceRecords()
	if len(essences) == 0 {
		return sheet
	}

	sheet.Essences = make(map[string]DerivedEssence, len(essences))
	maxTier := 0
	for key, essence := range essences {
		derived := DeriveEssence(key, essence)
		sheet.Essences[key] = derived
		if derived.Tier > maxTier {
			maxTier = derived.Tier
		}
	}

	if sheet.Kind.IsCharacter() && sheet.Resources != nil {
		sheet.Resources.ActionSurges.Max = float64(maxTier)
	}
	sheet.Tier = maxTier
	sheet.Derived = true
	return sheet
}

// Base rebuilds a storable entity from the sheet, keeping clamped max values
// and derived resource ceilings.
func (s Sheet) Base() Entity {
	entity := Entity{
		ID:   s.ID,
		Name: s.Name,
		Kind: s.Kind,
	}
	if s.Essences != nil {
		entity.Essences = make(map[string]Essence, len(s.Essences))
		for key, derived := range s.Essences {
			entity.Essences[key] = Essence{Value: derived.Value, Max: derived.Max}
		}
	}
	if s.Resources != nil {
		res := *s.Resources
		entity.Resources = &res
	}
	if s.Statuses != nil {
		entity.Statuses = append([]string(nil), s.Statuses...)
	}
	return entity
}

// Essence returns the derived essence for key.
func (s Sheet) Essence(key string) (DerivedEssence, bool) {
	derived, ok := s.Essences[key]
	return derived, ok
}
