package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// ResetAll wipes every pipeline table except the grid intensity reference
// data, returning the store to a freshly migrated state.
func (s *SQLiteStorage) ResetAll(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	tables := []string{
		"rankings",
		"monthly_rollups",
		"processing_log",
		"normalized_records",
		"raw_records",
	}
	for _, table := range tables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sqlite_sequence WHERE name IN ('raw_records', 'normalized_records', 'processing_log', 'monthly_rollups', 'rankings')`); err != nil {
		return fmt.Errorf("failed to reset sequences: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}

	s.cacheMutex.Lock()
	s.gridCache = make(map[string]float64)
	s.cacheMutex.Unlock()

	slog.Info("Reset all pipeline data", "tables", len(tables))
	return nil
}
