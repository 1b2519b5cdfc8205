// Package memory provides an in-process implementation of the game storage
// contracts for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/storage"
)

// Store keeps game state in maps guarded by a mutex. Records are cloned on the
// way in and out so callers never share state with the store.
type Store struct {
	mu         sync.Mutex
	entities   map[string]narequenta.Entity
	placements map[string]narequenta.Placement
	overlays   map[string]map[string]bool
	ledger     map[string]storage.LedgerRecord
	now        func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		entities:   map[string]narequenta.Entity{},
		placements: map[string]narequenta.Placement{},
		overlays:   map[string]map[string]bool{},
		ledger:     map[string]storage.LedgerRecord{},
		now:        time.Now,
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// PutEntity creates or replaces an entity.
func (s *Store) PutEntity(ctx context.Context, entity narequenta.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := entity.Validate(); err != nil {
		return err
	}
	kind, _ := narequenta.ParseKind(string(entity.Kind))
	stored := entity.Clone()
	stored.ID = strings.TrimSpace(entity.ID)
	stored.Kind = kind
	stored.Statuses = normalizeStatuses(entity.Statuses)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[stored.ID] = stored
	delete(s.overlays, stored.ID)
	return nil
}

// GetEntity returns a copy of one entity.
func (s *Store) GetEntity(ctx context.Context, id string) (narequenta.Entity, error) {
	if err := ctx.Err(); err != nil {
		return narequenta.Entity{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entity, ok := s.entities[strings.TrimSpace(id)]
	if !ok {
		return narequenta.Entity{}, storage.ErrNotFound
	}
	return entity.Clone(), nil
}

// ListEntities returns copies of every entity ordered by id.
func (s *Store) ListEntities(ctx context.Context) ([]narequenta.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]narequenta.Entity, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.entities[id].Clone())
	}
	return out, nil
}

// DeleteEntity removes an entity and its placements.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.entities, id)
	delete(s.overlays, id)
	for placementID, placement := range s.placements {
		if placement.EntityID == id {
			delete(s.placements, placementID)
		}
	}
	return nil
}

// PutPlacement creates or replaces a placement of an existing entity.
func (s *Store) PutPlacement(ctx context.Context, placement narequenta.Placement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	placement.ID = strings.TrimSpace(placement.ID)
	placement.EntityID = strings.TrimSpace(placement.EntityID)
	placement.Label = strings.TrimSpace(placement.Label)
	if placement.ID == "" {
		return fmt.Errorf("placement id is required")
	}
	if placement.EntityID == "" {
		return fmt.Errorf("placement entity id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[placement.EntityID]; !ok {
		return storage.ErrNotFound
	}
	s.placements[placement.ID] = placement
	return nil
}

// GetPlacement returns one placement.
func (s *Store) GetPlacement(ctx context.Context, id string) (narequenta.Placement, error) {
	if err := ctx.Err(); err != nil {
		return narequenta.Placement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	placement, ok := s.placements[strings.TrimSpace(id)]
	if !ok {
		return narequenta.Placement{}, storage.ErrNotFound
	}
	return placement, nil
}

// ResolveRef resolves an entity or placement reference to its entity.
func (s *Store) ResolveRef(ctx context.Context, ref string) (narequenta.Entity, error) {
	return storage.ResolveRef(ctx, ref, s, s)
}

// UpdateField writes one numeric field addressed by a mutator field path.
func (s *Store) UpdateField(ctx context.Context, entityID, path string, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	field, err := storage.ParseFieldPath(path)
	if err != nil {
		return err
	}
	entityID = strings.TrimSpace(entityID)

	s.mu.Lock()
	defer s.mu.Unlock()
	entity, ok := s.entities[entityID]
	if !ok {
		return storage.ErrNotFound
	}

	switch field.Target {
	case storage.FieldEssence:
		essence, ok := entity.Essences[field.Key]
		if !ok {
			return storage.EssenceNotFound(entityID, field.Key)
		}
		if field.Max {
			essence.Max = value
		} else {
			essence.Value = value
		}
		entity.Essences[field.Key] = essence
	case storage.FieldHP:
		if entity.Resources == nil {
			entity.Resources = &narequenta.Resources{}
		}
		if field.Max {
			entity.Resources.HP.Max = value
		} else {
			entity.Resources.HP.Value = value
		}
	}
	s.entities[entityID] = entity
	return nil
}

// ApplyStatus adds a status once; re-applying only refreshes the overlay flag.
func (s *Store) ApplyStatus(ctx context.Context, entityID, status string, opts storage.StatusOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	normalized := narequenta.NormalizeStatus(status)
	if normalized == "" {
		return fmt.Errorf("status is required")
	}
	entityID = strings.TrimSpace(entityID)

	s.mu.Lock()
	defer s.mu.Unlock()
	entity, ok := s.entities[entityID]
	if !ok {
		return storage.ErrNotFound
	}
	if !narequenta.HasStatus(entity.Statuses, normalized) {
		entity.Statuses = append(entity.Statuses, normalized)
		s.entities[entityID] = entity
	}
	if s.overlays[entityID] == nil {
		s.overlays[entityID] = map[string]bool{}
	}
	s.overlays[entityID][normalized] = opts.Overlay
	return nil
}

// HasStatus reports whether the entity carries status.
func (s *Store) HasStatus(ctx context.Context, entityID, status string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entity, ok := s.entities[strings.TrimSpace(entityID)]
	if !ok {
		return false, storage.ErrNotFound
	}
	return narequenta.HasStatus(entity.Statuses, status), nil
}

// Overlay reports whether a status was applied as an overlay.
func (s *Store) Overlay(entityID, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlays[strings.TrimSpace(entityID)][narequenta.NormalizeStatus(status)]
}

// ClaimPayload records a payload id or returns storage.ErrAlreadyApplied.
func (s *Store) ClaimPayload(ctx context.Context, record storage.LedgerRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	record.PayloadID = strings.TrimSpace(record.PayloadID)
	if record.PayloadID == "" {
		return fmt.Errorf("payload id is required")
	}
	if record.AppliedAt.IsZero() {
		record.AppliedAt = s.now()
	}
	record.AppliedAt = record.AppliedAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ledger[record.PayloadID]; ok {
		return storage.ErrAlreadyApplied
	}
	s.ledger[record.PayloadID] = record
	return nil
}

// GetClaim returns the ledger record for a payload id.
func (s *Store) GetClaim(ctx context.Context, payloadID string) (storage.LedgerRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.LedgerRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.ledger[strings.TrimSpace(payloadID)]
	if !ok {
		return storage.LedgerRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func normalizeStatuses(statuses []string) []string {
	var out []string
	for _, status := range statuses {
		normalized := narequenta.NormalizeStatus(status)
		if normalized == "" || narequenta.HasStatus(out, normalized) {
			continue
		}
		out = append(out, normalized)
	}
	return out
}

var _ storage.Store = (*Store)(nil)
