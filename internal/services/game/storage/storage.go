package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/cortonemo/narequenta-vtt/internal/platform/errors"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrAlreadyApplied indicates a resolution payload id has already been claimed.
var ErrAlreadyApplied = apperrors.New(apperrors.CodeResolutionPayloadReplayed, "resolution payload already applied")

// StatusOptions configures how a status effect is applied.
type StatusOptions struct {
	// Overlay marks the status as the entity's prominent, overlaid effect.
	Overlay bool
}

// LedgerRecord is one claimed resolution payload.
type LedgerRecord struct {
	PayloadID   string
	Fingerprint string
	AppliedAt   time.Time
}

// EntityStore persists entity records.
type EntityStore interface {
	// PutEntity creates or replaces an entity with its essences and statuses.
	PutEntity(ctx context.Context, entity narequenta.Entity) error
	GetEntity(ctx context.Context, id string) (narequenta.Entity, error)
	// ListEntities returns every entity ordered by id.
	ListEntities(ctx context.Context) ([]narequenta.Entity, error)
	// DeleteEntity removes an entity and every placement pointing at it.
	DeleteEntity(ctx context.Context, id string) error
}

// PlacementStore persists placed instances of entities.
type PlacementStore interface {
	PutPlacement(ctx context.Context, placement narequenta.Placement) error
	GetPlacement(ctx context.Context, id string) (narequenta.Placement, error)
}

// EntityResolver maps a reference to a live entity, following placements.
type EntityResolver interface {
	ResolveRef(ctx context.Context, ref string) (narequenta.Entity, error)
}

// EntityMutator persists single-field updates and status effects.
type EntityMutator interface {
	// UpdateField writes one numeric field addressed by a field path such as
	// "essences.vitalis.value" or "resources.hp.value".
	UpdateField(ctx context.Context, entityID, path string, value float64) error
	ApplyStatus(ctx context.Context, entityID, status string, opts StatusOptions) error
	HasStatus(ctx context.Context, entityID, status string) (bool, error)
}

// ResolutionLedger records which resolution payloads have been applied.
type ResolutionLedger interface {
	// ClaimPayload records the payload id, or returns ErrAlreadyApplied.
	ClaimPayload(ctx context.Context, record LedgerRecord) error
	GetClaim(ctx context.Context, payloadID string) (LedgerRecord, error)
}

// Store is the full persistence surface the game service needs.
type Store interface {
	EntityStore
	PlacementStore
	EntityResolver
	EntityMutator
	ResolutionLedger
	Close() error
}

// FieldTarget names the record a field path addresses.
type FieldTarget int

const (
	FieldEssence FieldTarget = iota + 1
	FieldHP
)

// FieldPath is a parsed mutator field path.
type FieldPath struct {
	Target FieldTarget
	// Key is the essence key for FieldEssence paths.
	Key string
	// Max selects the max column instead of the value column.
	Max bool
}

// EssenceValuePath returns the field path for an essence's current value.
func EssenceValuePath(key string) string {
	return "essences." + key + ".value"
}

// HPValuePath is the field path for current hit points.
const HPValuePath = "resources.hp.value"

// ParseFieldPath parses essences.<key>.value|max and resources.hp.value|max.
func ParseFieldPath(path string) (FieldPath, error) {
	trimmed := strings.TrimSpace(path)
	attr := trimmed[strings.LastIndex(trimmed, ".")+1:]
	if attr != "value" && attr != "max" {
		return FieldPath{}, fmt.Errorf("field path %q must end in .value or .max", path)
	}
	head := strings.TrimSuffix(trimmed, "."+attr)

	switch {
	case head == "resources.hp":
		return FieldPath{Target: FieldHP, Max: attr == "max"}, nil
	case strings.HasPrefix(head, "essences."):
		key := strings.TrimPrefix(head, "essences.")
		if strings.TrimSpace(key) == "" || strings.Contains(key, ".") {
			return FieldPath{}, fmt.Errorf("field path %q has an invalid essence key", path)
		}
		return FieldPath{Target: FieldEssence, Key: key, Max: attr == "max"}, nil
	default:
		return FieldPath{}, fmt.Errorf("field path %q is not supported", path)
	}
}

// EntityGetter and PlacementGetter are the lookups ResolveRef needs.
type EntityGetter interface {
	GetEntity(ctx context.Context, id string) (narequenta.Entity, error)
}

type PlacementGetter interface {
	GetPlacement(ctx context.Context, id string) (narequenta.Placement, error)
}

// ResolveRef resolves an entity, placement, or bare reference. Bare ids are
// tried as entity ids first, then as placement ids.
func ResolveRef(ctx context.Context, raw string, entities EntityGetter, placements PlacementGetter) (narequenta.Entity, error) {
	ref, err := narequenta.ParseRef(raw)
	if err != nil {
		return narequenta.Entity{}, ErrNotFound
	}

	followPlacement := func(id string) (narequenta.Entity, error) {
		placement, err := placements.GetPlacement(ctx, id)
		if err != nil {
			return narequenta.Entity{}, err
		}
		return entities.GetEntity(ctx, placement.EntityID)
	}

	switch ref.Kind {
	case narequenta.RefEntity:
		return entities.GetEntity(ctx, ref.ID)
	case narequenta.RefPlacement:
		return followPlacement(ref.ID)
	default:
		entity, err := entities.GetEntity(ctx, ref.ID)
		if err == nil || !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return entity, err
		}
		return followPlacement(ref.ID)
	}
}

// EssenceNotFound builds the error returned when a field path names an
// essence the entity does not carry.
func EssenceNotFound(entityID, key string) error {
	return apperrors.WithMetadata(
		apperrors.CodeEssenceNotFound,
		fmt.Sprintf("entity %s has no essence %s", entityID, key),
		map[string]string{"EntityID": entityID, "Key": key},
	)
}
