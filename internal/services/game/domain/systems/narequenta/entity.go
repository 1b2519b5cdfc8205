package narequenta

import (
	"math"
	"sort"
	"strings"

	apperrors "github.com/cortonemo/narequenta-vtt/internal/platform/errors"
)

// Kind identifies the variant of an entity.
type Kind string

const (
	KindCharacter Kind = "character"
	KindNPC       Kind = "npc"
)

// ParseKind normalizes a kind string. Empty input defaults to character; any
// other non-empty value is kept as an opaque non-character kind.
func ParseKind(value string) (Kind, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return KindCharacter, nil
	}
	for _, r := range trimmed {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' && r != '-' {
			return "", apperrors.WithMetadata(
				apperrors.CodeEntityInvalidKind,
				"entity kind contains invalid characters",
				map[string]string{"Kind": value},
			)
		}
	}
	return Kind(trimmed), nil
}

// IsCharacter reports whether the kind receives action surge derivation.
func (k Kind) IsCharacter() bool {
	return k == KindCharacter
}

// Essence is one named resource pool as stored by the host.
type Essence struct {
	Value float64 `json:"value"`
	Max   float64 `json:"max"`
}

// Resource is a bounded numeric pool such as hit points.
type Resource struct {
	Value float64 `json:"value"`
	Max   float64 `json:"max"`
}

// Resources groups the pools an entity may expose.
type Resources struct {
	HP           Resource `json:"hp"`
	ActionSurges Resource `json:"actionSurges"`
}

// Subject is the capability set derivation and resolution read from an entity.
type Subject interface {
	EntityID() string
	EntityName() string
	EntityKind() Kind
	EssenceRecords() map[string]Essence
	ResourcePools() *Resources
	EntityStatuses() []string
}

// Entity is a character or non-player entity record.
type Entity struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Kind      Kind               `json:"kind"`
	Essences  map[string]Essence `json:"essences,omitempty"`
	Resources *Resources         `json:"resources,omitempty"`
	Statuses  []string           `json:"statuses,omitempty"`
}

func (e Entity) EntityID() string                   { return e.ID }
func (e Entity) EntityName() string                 { return e.Name }
func (e Entity) EntityKind() Kind                   { return e.Kind }
func (e Entity) EssenceRecords() map[string]Essence { return e.Essences }
func (e Entity) ResourcePools() *Resources          { return e.Resources }
func (e Entity) EntityStatuses() []string           { return e.Statuses }

// Validate checks the fields a store requires before persisting an entity.
func (e Entity) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return apperrors.New(apperrors.CodeEntityEmptyID, "entity id is required")
	}
	if _, err := ParseKind(string(e.Kind)); err != nil {
		return err
	}
	for key, essence := range e.Essences {
		if strings.TrimSpace(key) == "" || !finite(essence.Value) || !finite(essence.Max) {
			return apperrors.WithMetadata(
				apperrors.CodeEntityInvalidEssence,
				"essence must have a key and finite value and max",
				map[string]string{"Key": key},
			)
		}
	}
	return nil
}

// Clone returns a deep copy of the entity.
func (e Entity) Clone() Entity {
	out := e
	if e.Essences != nil {
		out.Essences = make(map[string]Essence, len(e.Essences))
		for key, essence := range e.Essences {
			out.Essences[key] = essence
		}
	}
	if e.Resources != nil {
		res := *e.Resources
		out.Resources = &res
	}
	if e.Statuses != nil {
		out.Statuses = append([]string(nil), e.Statuses...)
	}
	return out
}

// EssenceKeys returns the entity's essence keys in sorted order.
func EssenceKeys(essences map[string]Essence) []string {
	keys := make([]string, 0, len(essences))
	for key := range essences {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Placement is a placed instance of an entity on a scene.
type Placement struct {
	ID       string `json:"id"`
	EntityID string `json:"entityId"`
	Label    string `json:"label,omitempty"`
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
