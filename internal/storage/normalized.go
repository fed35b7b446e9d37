package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sustainops/carbon-ranker/internal/model"
)

// SaveNormalized persists the normalized output of one terminal attempt.
// A prior row for the same raw record is replaced so re-runs never leave
// two normalized rows behind one input.
func (s *SQLiteStorage) SaveNormalized(ctx context.Context, record *model.NormalizedRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateNormalized(record); err != nil {
		return err
	}

	logJSON, err := json.Marshal(record.Log)
	if err != nil {
		return fmt.Errorf("failed to marshal imputation log: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM normalized_records WHERE raw_id = ?`, record.RawID); err != nil {
		return fmt.Errorf("failed to clear prior normalized row: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO normalized_records (raw_id, vendor, month, region, gpu_hours,
			utilization, it_kwh, total_kwh, grid_intensity, tco2e, tokens,
			api_calls, pue_used, data_quality, imputation_log)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.RawID, record.Vendor, record.Month, record.Region,
		record.GPUHours, record.Utilization, record.ITKWh, record.TotalKWh,
		record.GridIntensity, record.TCO2e, record.Tokens,
		record.APICalls, record.PUEUsed, record.DataQuality, string(logJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert normalized record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get normalized record ID: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit normalized record: %w", err)
	}

	record.ID = id
	return nil
}

const normalizedColumns = `id, raw_id, vendor, month, region, gpu_hours,
	utilization, it_kwh, total_kwh, grid_intensity, tco2e, tokens,
	api_calls, pue_used, data_quality, imputation_log, created_at`

// GetNormalizedRecords returns every normalized record, ordered for stable
// rollup grouping.
func (s *SQLiteStorage) GetNormalizedRecords(ctx context.Context) ([]model.NormalizedRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+normalizedColumns+` FROM normalized_records ORDER BY month, vendor, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query normalized records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanNormalizedRecords(rows)
}

// GetRecentNormalized returns the most recent normalized records for one
// vendor and month, newest first.
func (s *SQLiteStorage) GetRecentNormalized(ctx context.Context, vendor, month string, limit int) ([]model.NormalizedRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(vendor, "vendor"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+normalizedColumns+` FROM normalized_records
		WHERE vendor = ? AND (? = '' OR month = ?)
		ORDER BY id DESC LIMIT ?`,
		vendor, month, month, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent normalized records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanNormalizedRecords(rows)
}

func scanNormalizedRecords(rows rowScanner) ([]model.NormalizedRecord, error) {
	var records []model.NormalizedRecord
	for rows.Next() {
		var record model.NormalizedRecord
		var logJSON string
		if err := rows.Scan(
			&record.ID, &record.RawID, &record.Vendor, &record.Month, &record.Region,
			&record.GPUHours, &record.Utilization, &record.ITKWh, &record.TotalKWh,
			&record.GridIntensity, &record.TCO2e, &record.Tokens,
			&record.APICalls, &record.PUEUsed, &record.DataQuality,
			&logJSON, &record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan normalized record: %w", err)
		}
		if err := json.Unmarshal([]byte(logJSON), &record.Log); err != nil {
			return nil, fmt.Errorf("failed to unmarshal imputation log: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating normalized records: %w", err)
	}
	return records, nil
}
