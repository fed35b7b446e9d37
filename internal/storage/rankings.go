package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sustainops/carbon-ranker/internal/common"
	"github.com/sustainops/carbon-ranker/internal/model"
)

// ReplaceRankings atomically swaps the rankings table for a fresh scoring
// pass over the latest month.
func (s *SQLiteStorage) ReplaceRankings(ctx context.Context, rankings []model.Ranking) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rankings`); err != nil {
		return fmt.Errorf("failed to clear rankings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rankings (vendor, month, green_score, overall_rank,
			tco2e_rank, intensity_rank, efficiency_rank, utilization_rank,
			total_kwh, tco2e, g_per_1k_tokens, tokens_per_tco2e,
			utilization_avg, data_quality)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare ranking insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range rankings {
		ranking := &rankings[i]
		if _, err := stmt.ExecContext(ctx,
			ranking.Vendor, ranking.Month, ranking.GreenScore, ranking.OverallRank,
			ranking.TCO2eRank, ranking.IntensityRank, ranking.EfficiencyRank,
			ranking.UtilizationRank, ranking.TotalKWh, ranking.TCO2e,
			ranking.GPer1kTokens, ranking.TokensPerTCO2e,
			ranking.UtilizationAvg, ranking.DataQuality,
		); err != nil {
			return fmt.Errorf("failed to insert ranking for %s %s: %w", ranking.Vendor, ranking.Month, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rankings: %w", err)
	}
	return nil
}

const rankingColumns = `id, vendor, month, green_score, overall_rank,
	tco2e_rank, intensity_rank, efficiency_rank, utilization_rank,
	total_kwh, tco2e, g_per_1k_tokens, tokens_per_tco2e,
	utilization_avg, data_quality, created_at`

// GetRankings returns the leaderboard for one month, best score first.
// An empty month returns all stored rankings.
func (s *SQLiteStorage) GetRankings(ctx context.Context, month string) ([]model.Ranking, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+rankingColumns+` FROM rankings
		WHERE (? = '' OR month = ?)
		ORDER BY overall_rank`,
		month, month)
	if err != nil {
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rankings []model.Ranking
	for rows.Next() {
		ranking, err := scanRanking(rows)
		if err != nil {
			return nil, err
		}
		rankings = append(rankings, ranking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rankings: %w", err)
	}
	return rankings, nil
}

// GetRanking returns one vendor's position for a month.
func (s *SQLiteStorage) GetRanking(ctx context.Context, vendor, month string) (*model.Ranking, error) {
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
		`SELECT `+rankingColumns+` FROM rankings WHERE vendor = ? AND month = ?`,
		vendor, month)

	ranking, err := scanRanking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("ranking for %s %s: %w", vendor, month, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ranking, nil
}

// LatestRankingMonth returns the month the current leaderboard covers, or
// "" when no rankings exist yet.
func (s *SQLiteStorage) LatestRankingMonth(ctx context.Context) (string, error) {
	if err := validateContext(ctx); err != nil {
		return "", err
	}

	var month sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT MAX(month) FROM rankings`).Scan(&month)
	if err != nil {
		return "", fmt.Errorf("failed to find latest ranking month: %w", err)
	}
	return month.String, nil
}

func scanRanking(row singleRowScanner) (model.Ranking, error) {
	var ranking model.Ranking
	err := row.Scan(
		&ranking.ID, &ranking.Vendor, &ranking.Month, &ranking.GreenScore,
		&ranking.OverallRank, &ranking.TCO2eRank, &ranking.IntensityRank,
		&ranking.EfficiencyRank, &ranking.UtilizationRank,
		&ranking.TotalKWh, &ranking.TCO2e,
		&ranking.GPer1kTokens, &ranking.TokensPerTCO2e,
		&ranking.UtilizationAvg, &ranking.DataQuality, &ranking.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ranking, err
	}
	if err != nil {
		return ranking, fmt.Errorf("failed to scan ranking: %w", err)
	}
	return ranking, nil
}
