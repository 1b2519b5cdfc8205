package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/storage"
)

// UpdateField writes one numeric field addressed by a mutator field path.
func (s *Store) UpdateField(ctx context.Context, entityID, path string, value float64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	field, err := storage.ParseFieldPath(path)
	if err != nil {
		return err
	}
	entityID = strings.TrimSpace(entityID)
	now := toMillis(s.now())

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var result sql.Result
		switch field.Target {
		case storage.FieldEssence:
			column := "value"
			if field.Max {
				column = "max"
			}
			result, err = tx.ExecContext(
				ctx,
				`UPDATE essences SET `+column+` = ? WHERE entity_id = ? AND key = ?`,
				value, entityID, field.Key,
			)
		case storage.FieldHP:
			column := "hp_value"
			if field.Max {
				column = "hp_max"
			}
			result, err = tx.ExecContext(
				ctx,
				`UPDATE entities SET `+column+` = ?, has_resources = 1, updated_at = ? WHERE id = ?`,
				value, now, entityID,
			)
		}
		if err != nil {
			return fmt.Errorf("update %s: %w", path, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("update %s: %w", path, err)
		}
		if affected > 0 {
			if field.Target == storage.FieldEssence {
				if _, err := tx.ExecContext(ctx, `UPDATE entities SET updated_at = ? WHERE id = ?`, now, entityID); err != nil {
					return fmt.Errorf("touch entity: %w", err)
				}
			}
			return nil
		}
		if err := entityExists(ctx, tx, entityID); err != nil {
			return err
		}
		return storage.EssenceNotFound(entityID, field.Key)
	})
}

// ApplyStatus adds a status to an entity. Re-applying refreshes the overlay
// flag without duplicating the status.
func (s *Store) ApplyStatus(ctx context.Context, entityID, status string, opts storage.StatusOptions) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	normalized := narequenta.NormalizeStatus(status)
	if normalized == "" {
		return fmt.Errorf("status is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO entity_statuses (entity_id, status, overlay, applied_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(entity_id, status) DO UPDATE SET overlay = excluded.overlay`,
		strings.TrimSpace(entityID), normalized, boolToInt(opts.Overlay), toMillis(s.now()),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("apply status: %w", err)
	}
	return nil
}

// HasStatus reports whether the entity carries status.
func (s *Store) HasStatus(ctx context.Context, entityID, status string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	entityID = strings.TrimSpace(entityID)
	var found int
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM entity_statuses WHERE entity_id = ? AND status = ?`,
		entityID, narequenta.NormalizeStatus(status),
	).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("has status: %w", err)
	}
	if found > 0 {
		return true, nil
	}
	if err := entityExists(ctx, s.sqlDB, entityID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) listStatuses(ctx context.Context, entityID string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT status FROM entity_statuses WHERE entity_id = ? ORDER BY applied_at ASC, status ASC`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []string
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return nil, fmt.Errorf("list statuses: %w", err)
		}
		statuses = append(statuses, status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	return statuses, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func entityExists(ctx context.Context, q queryRower, entityID string) error {
	var found int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities WHERE id = ?`, entityID).Scan(&found)
	if err != nil {
		return fmt.Errorf("check entity: %w", err)
	}
	if found == 0 {
		return storage.ErrNotFound
	}
	return nil
}
