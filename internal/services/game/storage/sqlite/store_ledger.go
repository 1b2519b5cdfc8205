package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/cortonemo/narequenta-vtt/internal/services/game/storage"
)

// ClaimPayload records a resolution payload id. A second claim for the same id
// returns storage.ErrAlreadyApplied.
func (s *Store) ClaimPayload(ctx context.Context, record storage.LedgerRecord) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	payloadID := strings.TrimSpace(record.PayloadID)
	if payloadID == "" {
		return fmt.Errorf("payload id is required")
	}
	appliedAt := record.AppliedAt
	if appliedAt.IsZero() {
		appliedAt = s.now()
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO resolution_ledger (payload_id, fingerprint, applied_at) VALUES (?, ?, ?)`,
		payloadID, record.Fingerprint, toMillis(appliedAt),
	)
	if err != nil {
		if isUniqueViolation(err, "resolution_ledger") {
			return storage.ErrAlreadyApplied
		}
		return fmt.Errorf("claim payload: %w", err)
	}
	return nil
}

// GetClaim returns the ledger record for a payload id.
func (s *Store) GetClaim(ctx context.Context, payloadID string) (storage.LedgerRecord, error) {
	if err := s.ready(ctx); err != nil {
		return storage.LedgerRecord{}, err
	}
	var record storage.LedgerRecord
	var appliedAt int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT payload_id, fingerprint, applied_at FROM resolution_ledger WHERE payload_id = ?`,
		strings.TrimSpace(payloadID),
	).Scan(&record.PayloadID, &record.Fingerprint, &appliedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.LedgerRecord{}, storage.ErrNotFound
		}
		return storage.LedgerRecord{}, fmt.Errorf("get claim: %w", err)
	}
	record.AppliedAt = fromMillis(appliedAt)
	return record, nil
}
