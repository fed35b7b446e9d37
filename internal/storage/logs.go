package storage

import (
	"context"
	"fmt"

	"github.com/sustainops/carbon-ranker/internal/model"
	"github.com/sustainops/carbon-ranker/internal/service"
)

// AppendProcessingLog writes one audit-trail entry.
func (s *SQLiteStorage) AppendProcessingLog(ctx context.Context, entry *model.ProcessingLogEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if err := validateString(entry.Stage, "stage"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO processing_log (run_id, vendor, month, stage, action, details, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.RunID, entry.Vendor, entry.Month, entry.Stage, entry.Action, entry.Details, entry.RetryCount)
	if err != nil {
		return fmt.Errorf("failed to append processing log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get log entry ID: %w", err)
	}
	entry.ID = id
	return nil
}

const logColumns = `id, run_id, vendor, month, stage, action, details, retry_count, created_at`

// GetProcessingLog returns the audit trail for one vendor and month,
// oldest first so the decision sequence reads top to bottom.
func (s *SQLiteStorage) GetProcessingLog(ctx context.Context, vendor, month string, limit int) ([]model.ProcessingLogEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(vendor, "vendor"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+logColumns+` FROM processing_log
		WHERE vendor = ? AND (? = '' OR month = ?)
		ORDER BY id LIMIT ?`,
		vendor, month, month, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query processing log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanLogEntries(rows)
}

// GetRecentProcessingLog returns the newest entries across all records.
func (s *SQLiteStorage) GetRecentProcessingLog(ctx context.Context, limit int) ([]model.ProcessingLogEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+logColumns+` FROM processing_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent processing log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanLogEntries(rows)
}

// GetProcessingStats summarizes the audit trail for status reporting.
func (s *SQLiteStorage) GetProcessingStats(ctx context.Context) (service.ProcessingStats, error) {
	var stats service.ProcessingStats
	if err := validateContext(ctx); err != nil {
		return stats, err
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN retry_count > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN stage = 'error' THEN 1 ELSE 0 END), 0)
		FROM processing_log
	`).Scan(&stats.TotalEntries, &stats.RetryEntries, &stats.ErrorEntries)
	if err != nil {
		return stats, fmt.Errorf("failed to compute processing stats: %w", err)
	}
	return stats, nil
}

func scanLogEntries(rows rowScanner) ([]model.ProcessingLogEntry, error) {
	var entries []model.ProcessingLogEntry
	for rows.Next() {
		var entry model.ProcessingLogEntry
		if err := rows.Scan(
			&entry.ID, &entry.RunID, &entry.Vendor, &entry.Month,
			&entry.Stage, &entry.Action, &entry.Details,
			&entry.RetryCount, &entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log entries: %w", err)
	}
	return entries, nil
}
