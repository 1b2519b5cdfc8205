package narequenta

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/cortonemo/narequenta-vtt/internal/platform/errors"
	"gopkg.in/yaml.v3"
)

//go:embed ruleset.yaml
var defaultRulesetYAML []byte

// Ruleset carries the table options that would otherwise be ambient settings.
type Ruleset struct {
	Initiative InitiativeRules `yaml:"initiative" json:"initiative"`
	RollData   RollDataRules   `yaml:"roll_data" json:"rollData"`
	Statuses   StatusRules     `yaml:"statuses" json:"statuses"`
}

// InitiativeRules configures the initiative roll input.
type InitiativeRules struct {
	Formula    string `yaml:"formula" json:"formula"`
	TieBreaker bool   `yaml:"tie_breaker" json:"tieBreaker"`
}

// RollDataRules configures the roll-data projection.
type RollDataRules struct {
	EssenceShorthand bool `yaml:"essence_shorthand" json:"essenceShorthand"`
}

// StatusRules names the status ids the processor applies.
type StatusRules struct {
	Defeated string `yaml:"defeated" json:"defeated"`
}

// DefaultRuleset returns the embedded default rules.
func DefaultRuleset() Ruleset {
	rules, err := ParseRuleset(defaultRulesetYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded ruleset: %v", err))
	}
	return rules
}

func builtinRuleset() Ruleset {
	return Ruleset{
		Initiative: InitiativeRules{Formula: "1d20", TieBreaker: true},
		RollData:   RollDataRules{EssenceShorthand: true},
		Statuses:   StatusRules{Defeated: StatusDefeated},
	}
}

// ParseRuleset decodes YAML over the built-in defaults. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func ParseRuleset(data []byte) (Ruleset, error) {
	rules := builtinRuleset()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil && !errors.Is(err, io.EOF) {
		return Ruleset{}, invalidRuleset(err.Error(), err)
	}
	if err := rules.Validate(); err != nil {
		return Ruleset{}, err
	}
	return rules, nil
}

// LoadRuleset reads a ruleset file, or returns the defaults when path is empty.
func LoadRuleset(path string) (Ruleset, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRuleset(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Ruleset{}, fmt.Errorf("read ruleset %s: %w", path, err)
	}
	return ParseRuleset(data)
}

// Validate checks that required rule values are present.
func (r Ruleset) Validate() error {
	if strings.TrimSpace(r.Initiative.Formula) == "" {
		return invalidRuleset("initiative formula is required", nil)
	}
	if NormalizeStatus(r.Statuses.Defeated) == "" {
		return invalidRuleset("defeated status is required", nil)
	}
	return nil
}

// DefeatedStatus returns the normalized defeated status id.
func (r Ruleset) DefeatedStatus() string {
	if status := NormalizeStatus(r.Statuses.Defeated); status != "" {
		return status
	}
	return StatusDefeated
}

func invalidRuleset(reason string, cause error) error {
	return apperrors.WrapWithMetadata(
		apperrors.CodeRulesetInvalid,
		"invalid ruleset: "+reason,
		map[string]string{"Reason": reason},
		cause,
	)
}
