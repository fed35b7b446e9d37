package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sustainops/carbon-ranker/internal/model"
)

// MarketAverageIntensity is the last-resort grid intensity in g CO2/kWh,
// used only if the fallback row is missing from the reference table.
const MarketAverageIntensity = 400.0

// GetGridIntensity looks up the carbon intensity for a region. Unknown or
// empty regions fall back to the UNKNOWN row's market average; the lookup
// never fails a pipeline run over a missing region.
func (s *SQLiteStorage) GetGridIntensity(ctx context.Context, region string) (float64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	if region == "" {
		region = model.UnknownRegion
	}

	s.cacheMutex.RLock()
	if intensity, ok := s.gridCache[region]; ok {
		s.cacheMutex.RUnlock()
		return intensity, nil
	}
	s.cacheMutex.RUnlock()

	var intensity float64
	err := s.db.QueryRowContext(ctx,
		`SELECT g_per_kwh FROM grid_intensity WHERE region = ?`, region).Scan(&intensity)
	if errors.Is(err, sql.ErrNoRows) && region != model.UnknownRegion {
		return s.GetGridIntensity(ctx, model.UnknownRegion)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return MarketAverageIntensity, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up grid intensity for %s: %w", region, err)
	}

	s.cacheMutex.Lock()
	s.gridCache[region] = intensity
	s.cacheMutex.Unlock()

	return intensity, nil
}

// GetGridIntensities returns the full reference table, ordered by region.
func (s *SQLiteStorage) GetGridIntensities(ctx context.Context) ([]model.GridIntensity, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT region, g_per_kwh, description FROM grid_intensity ORDER BY region`)
	if err != nil {
		return nil, fmt.Errorf("failed to query grid intensities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var intensities []model.GridIntensity
	for rows.Next() {
		var gi model.GridIntensity
		if err := rows.Scan(&gi.Region, &gi.GPerKWh, &gi.Description); err != nil {
			return nil, fmt.Errorf("failed to scan grid intensity: %w", err)
		}
		intensities = append(intensities, gi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grid intensities: %w", err)
	}
	return intensities, nil
}
