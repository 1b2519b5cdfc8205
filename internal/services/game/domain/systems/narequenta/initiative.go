package narequenta

import (
	"math"
	"strconv"
)

// InitiativeInput is what the engine contributes to an initiative roll.
type InitiativeInput struct {
	Formula       string  `json:"formula"`
	TieBreaker    float64 `json:"tieBreaker"`
	HasTieBreaker bool    `json:"hasTieBreaker"`
}

// Initiative computes the initiative formula and numeric tie-breaker. The
// tie-breaker is the highest current essence value divided by 100, rounded
// to two decimals.
func Initiative(sheet Sheet, rules Ruleset) InitiativeInput {
	input := InitiativeInput{Formula: rules.Initiative.Formula}
	if input.Formula == "" {
		input.Formula = builtinRuleset().Initiative.Formula
	}
	if !rules.Initiative.TieBreaker || len(sheet.Essences) == 0 {
		return input
	}

	highest := math.Inf(-1)
	for _, derived := range sheet.Essences {
		if derived.Value > highest {
			highest = derived.Value
		}
	}
	if math.IsInf(highest, -1) {
		return input
	}
	input.TieBreaker = math.Round(highest) / 100
	input.HasTieBreaker = true
	return input
}

// Expression renders the roll expression, e.g. "1d20 + 0.85".
func (i InitiativeInput) Expression() string {
	if !i.HasTieBreaker {
		return i.Formula
	}
	return i.Formula + " + " + strconv.FormatFloat(i.TieBreaker, 'f', 2, 64)
}
