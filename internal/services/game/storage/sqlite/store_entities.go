package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/storage"
)

// PutEntity creates or replaces an entity, its essences, and its statuses.
func (s *Store) PutEntity(ctx context.Context, entity narequenta.Entity) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := entity.Validate(); err != nil {
		return err
	}
	kind, _ := narequenta.ParseKind(string(entity.Kind))
	now := toMillis(s.now())

	var res narequenta.Resources
	if entity.Resources != nil {
		res = *entity.Resources
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO entities (
			   id, name, kind, has_resources,
			   hp_value, hp_max, surges_value, surges_max,
			   created_at, updated_at
			 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name,
			   kind = excluded.kind,
			   has_resources = excluded.has_resources,
			   hp_value = excluded.hp_value,
			   hp_max = excluded.hp_max,
			   surges_value = excluded.surges_value,
			   surges_max = excluded.surges_max,
			   updated_at = excluded.updated_at`,
			strings.TrimSpace(entity.ID),
			strings.TrimSpace(entity.Name),
			string(kind),
			boolToInt(entity.Resources != nil),
			res.HP.Value,
			res.HP.Max,
			res.ActionSurges.Value,
			res.ActionSurges.Max,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("put entity: %w", err)
		}

		id := strings.TrimSpace(entity.ID)
		if _, err := tx.ExecContext(ctx, `DELETE FROM essences WHERE entity_id = ?`, id); err != nil {
			return fmt.Errorf("clear essences: %w", err)
		}
		for _, key := range narequenta.EssenceKeys(entity.Essences) {
			essence := entity.Essences[key]
			if _, err := tx.ExecContext(
				ctx,
				`INSERT INTO essences (entity_id, key, value, max) VALUES (?, ?, ?, ?)`,
				id, key, essence.Value, essence.Max,
			); err != nil {
				return fmt.Errorf("put essence %s: %w", key, err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM entity_statuses WHERE entity_id = ?`, id); err != nil {
			return fmt.Errorf("clear statuses: %w", err)
		}
		for i, status := range entity.Statuses {
			normalized := narequenta.NormalizeStatus(status)
			if normalized == "" {
				continue
			}
			if _, err := tx.ExecContext(
				ctx,
				`INSERT OR IGNORE INTO entity_statuses (entity_id, status, overlay, applied_at) VALUES (?, ?, 0, ?)`,
				id, normalized, now+int64(i),
			); err != nil {
				return fmt.Errorf("put status %s: %w", normalized, err)
			}
		}
		return nil
	})
}

// GetEntity returns one entity with its essences and statuses.
func (s *Store) GetEntity(ctx context.Context, id string) (narequenta.Entity, error) {
	if err := s.ready(ctx); err != nil {
		return narequenta.Entity{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return narequenta.Entity{}, storage.ErrNotFound
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, name, kind, has_resources, hp_value, hp_max, surges_value, surges_max
		   FROM entities
		  WHERE id = ?`,
		id,
	)
	entity, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return narequenta.Entity{}, storage.ErrNotFound
		}
		return narequenta.Entity{}, fmt.Errorf("get entity: %w", err)
	}
	if err := s.loadEntityChildren(ctx, &entity); err != nil {
		return narequenta.Entity{}, err
	}
	return entity, nil
}

// ListEntities returns every entity ordered by id.
func (s *Store) ListEntities(ctx context.Context) ([]narequenta.Entity, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, name, kind, has_resources, hp_value, hp_max, surges_value, surges_max
		   FROM entities
		  ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	var entities []narequenta.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("list entities: %w", err)
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("list entities: %w", err)
	}
	// Children are loaded after the cursor closes; the store holds a single
	// connection.
	_ = rows.Close()

	for i := range entities {
		if err := s.loadEntityChildren(ctx, &entities[i]); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

// DeleteEntity removes an entity; essences, statuses, and placements cascade.
func (s *Store) DeleteEntity(ctx context.Context, id string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete entity: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PutPlacement creates or replaces a placement. The entity must exist.
func (s *Store) PutPlacement(ctx context.Context, placement narequenta.Placement) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	id := strings.TrimSpace(placement.ID)
	entityID := strings.TrimSpace(placement.EntityID)
	if id == "" {
		return fmt.Errorf("placement id is required")
	}
	if entityID == "" {
		return fmt.Errorf("placement entity id is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO placements (id, entity_id, label) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET entity_id = excluded.entity_id, label = excluded.label`,
		id, entityID, strings.TrimSpace(placement.Label),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("put placement: %w", err)
	}
	return nil
}

// GetPlacement returns one placement by id.
func (s *Store) GetPlacement(ctx context.Context, id string) (narequenta.Placement, error) {
	if err := s.ready(ctx); err != nil {
		return narequenta.Placement{}, err
	}
	var placement narequenta.Placement
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, entity_id, label FROM placements WHERE id = ?`,
		strings.TrimSpace(id),
	).Scan(&placement.ID, &placement.EntityID, &placement.Label)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return narequenta.Placement{}, storage.ErrNotFound
		}
		return narequenta.Placement{}, fmt.Errorf("get placement: %w", err)
	}
	return placement, nil
}

// ResolveRef resolves an entity or placement reference to its entity.
func (s *Store) ResolveRef(ctx context.Context, ref string) (narequenta.Entity, error) {
	return storage.ResolveRef(ctx, ref, s, s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (narequenta.Entity, error) {
	var (
		entity       narequenta.Entity
		kind         string
		hasResources int
		res          narequenta.Resources
	)
	if err := row.Scan(
		&entity.ID,
		&entity.Name,
		&kind,
		&hasResources,
		&res.HP.Value,
		&res.HP.Max,
		&res.ActionSurges.Value,
		&res.ActionSurges.Max,
	); err != nil {
		return narequenta.Entity{}, err
	}
	entity.Kind = narequenta.Kind(kind)
	if hasResources != 0 {
		entity.Resources = &res
	}
	return entity, nil
}

func (s *Store) loadEntityChildren(ctx context.Context, entity *narequenta.Entity) error {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT key, value, max FROM essences WHERE entity_id = ? ORDER BY key ASC`,
		entity.ID,
	)
	if err != nil {
		return fmt.Errorf("load essences: %w", err)
	}
	for rows.Next() {
		var key string
		var essence narequenta.Essence
		if err := rows.Scan(&key, &essence.Value, &essence.Max); err != nil {
			_ = rows.Close()
			return fmt.Errorf("load essences: %w", err)
		}
		if entity.Essences == nil {
			entity.Essences = map[string]narequenta.Essence{}
		}
		entity.Essences[key] = essence
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("load essences: %w", err)
	}
	_ = rows.Close()

	statuses, err := s.listStatuses(ctx, entity.ID)
	if err != nil {
		return err
	}
	entity.Statuses = statuses
	return nil
}
