package storage

import (
	"context"
	"fmt"

	"github.com/sustainops/carbon-ranker/internal/model"
)

// SaveRawRecords inserts a batch of ingested records in one transaction.
func (s *SQLiteStorage) SaveRawRecords(ctx context.Context, records []model.RawRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRawRecords(records); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO raw_records (vendor, month, region, gpu_hours_raw, energy_raw,
			tokens_raw, api_calls_raw, pue_raw, utilization_raw, processed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range records {
		record := &records[i]
		if _, err := stmt.ExecContext(ctx,
			record.Vendor, record.Month, record.Region,
			record.GPUHoursRaw, record.EnergyRaw, record.TokensRaw,
			record.APICallsRaw, record.PUERaw, record.UtilizationRaw,
		); err != nil {
			return fmt.Errorf("failed to insert raw record for %s %s: %w", record.Vendor, record.Month, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit raw records: %w", err)
	}
	return nil
}

// GetUnprocessedRecords returns all raw records not yet marked processed,
// oldest first so re-runs pick up where they left off.
func (s *SQLiteStorage) GetUnprocessedRecords(ctx context.Context) ([]model.RawRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vendor, month, region, gpu_hours_raw, energy_raw,
			tokens_raw, api_calls_raw, pue_raw, utilization_raw, processed, created_at
		FROM raw_records
		WHERE processed = 0
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query unprocessed records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanRawRecords(rows)
}

// MarkRawProcessed flags a raw record as handled by a terminal attempt.
func (s *SQLiteStorage) MarkRawProcessed(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `UPDATE raw_records SET processed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark record %d processed: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("raw record %d not found", id)
	}
	return nil
}

// GetRawRecordCount returns the total number of ingested records.
func (s *SQLiteStorage) GetRawRecordCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM raw_records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count raw records: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
	Next() bool
	Err() error
}

func scanRawRecords(rows rowScanner) ([]model.RawRecord, error) {
	var records []model.RawRecord
	for rows.Next() {
		var record model.RawRecord
		if err := rows.Scan(
			&record.ID, &record.Vendor, &record.Month, &record.Region,
			&record.GPUHoursRaw, &record.EnergyRaw, &record.TokensRaw,
			&record.APICallsRaw, &record.PUERaw, &record.UtilizationRaw,
			&record.Processed, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan raw record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating raw records: %w", err)
	}
	return records, nil
}
