package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sustainops/carbon-ranker/internal/common"
	"github.com/sustainops/carbon-ranker/internal/model"
)

// ReplaceRollups atomically swaps the rollup table for a fresh aggregation.
// Rollups are always regenerated in full, so partial updates never happen.
func (s *SQLiteStorage) ReplaceRollups(ctx context.Context, rollups []model.MonthlyRollup) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM monthly_rollups`); err != nil {
		return fmt.Errorf("failed to clear rollups: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO monthly_rollups (vendor, month, total_kwh, tco2e, total_tokens,
			total_api_calls, utilization_avg, pue_avg, data_quality,
			g_per_1k_tokens, g_per_call, tokens_per_tco2e)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare rollup insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range rollups {
		rollup := &rollups[i]
		if _, err := stmt.ExecContext(ctx,
			rollup.Vendor, rollup.Month, rollup.TotalKWh, rollup.TCO2e,
			rollup.TotalTokens, rollup.TotalAPICalls, rollup.UtilizationAvg,
			rollup.PUEAvg, rollup.DataQuality,
			rollup.GPer1kTokens, rollup.GPerCall, rollup.TokensPerTCO2e,
		); err != nil {
			return fmt.Errorf("failed to insert rollup for %s %s: %w", rollup.Vendor, rollup.Month, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rollups: %w", err)
	}
	return nil
}

const rollupColumns = `id, vendor, month, total_kwh, tco2e, total_tokens,
	total_api_calls, utilization_avg, pue_avg, data_quality,
	g_per_1k_tokens, g_per_call, tokens_per_tco2e, created_at`

// GetRollups returns the rollups for one month, or all months when month
// is empty, ordered by month then vendor.
func (s *SQLiteStorage) GetRollups(ctx context.Context, month string) ([]model.MonthlyRollup, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rollupColumns+` FROM monthly_rollups
		WHERE (? = '' OR month = ?)
		ORDER BY month, vendor`,
		month, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query rollups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rollups []model.MonthlyRollup
	for rows.Next() {
		rollup, err := scanRollup(rows)
		if err != nil {
			return nil, err
		}
		rollups = append(rollups, rollup)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rollups: %w", err)
	}
	return rollups, nil
}

// GetRollup returns the rollup for one vendor and month.
func (s *SQLiteStorage) GetRollup(ctx context.Context, vendor, month string) (*model.MonthlyRollup, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(vendor, "vendor"); err != nil {
		return nil, err
	}
	if err := validateMonth(month); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+rollupColumns+` FROM monthly_rollups WHERE vendor = ? AND month = ?`,
		vendor, month)

	rollup, err := scanRollup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rollup for %s %s: %w", vendor, month, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rollup, nil
}

// LatestRollupMonth returns the most recent month with a rollup, or "" when
// there are none.
func (s *SQLiteStorage) LatestRollupMonth(ctx context.Context) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	var month sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(month) FROM monthly_rollups`).Scan(&month)
	if err != nil {
		return "", fmt.Errorf("failed to find latest rollup month: %w", err)
	}
	return month.String, nil
}

type singleRowScanner interface {
	Scan(dest ...any) error
}

func scanRollup(row singleRowScanner) (model.MonthlyRollup, error) {
	var rollup model.MonthlyRollup
	err := row.Scan(
		&rollup.ID, &rollup.Vendor, &rollup.Month, &rollup.TotalKWh,
		&rollup.TCO2e, &rollup.TotalTokens, &rollup.TotalAPICalls,
		&rollup.UtilizationAvg, &rollup.PUEAvg, &rollup.DataQuality,
		&rollup.GPer1kTokens, &rollup.GPerCall, &rollup.TokensPerTCO2e,
		&rollup.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return rollup, err
	}
	if err != nil {
		return rollup, fmt.Errorf("failed to scan rollup: %w", err)
	}
	return rollup, nil
}
