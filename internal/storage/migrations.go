package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS raw_records (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					vendor TEXT NOT NULL,
					month TEXT NOT NULL,
					region TEXT NOT NULL DEFAULT '',
					gpu_hours_raw TEXT NOT NULL DEFAULT '',
					energy_raw TEXT NOT NULL DEFAULT '',
					tokens_raw TEXT NOT NULL DEFAULT '',
					api_calls_raw TEXT NOT NULL DEFAULT '',
					pue_raw TEXT NOT NULL DEFAULT '',
					utilization_raw TEXT NOT NULL DEFAULT '',
					processed INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_raw_records_processed ON raw_records(processed)`,
				`CREATE INDEX idx_raw_records_vendor_month ON raw_records(vendor, month)`,

				`CREATE TABLE IF NOT EXISTS normalized_records (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					raw_id INTEGER NOT NULL,
					vendor TEXT NOT NULL,
					month TEXT NOT NULL,
					region TEXT NOT NULL DEFAULT '',
					gpu_hours REAL NOT NULL DEFAULT 0,
					utilization REAL NOT NULL DEFAULT 0,
					it_kwh REAL NOT NULL DEFAULT 0,
					total_kwh REAL NOT NULL DEFAULT 0,
					grid_intensity REAL NOT NULL DEFAULT 0,
					tco2e REAL NOT NULL DEFAULT 0,
					tokens REAL NOT NULL DEFAULT 0,
					api_calls INTEGER NOT NULL DEFAULT 0,
					pue_used REAL NOT NULL DEFAULT 0,
					data_quality REAL NOT NULL DEFAULT 0,
					imputation_log TEXT NOT NULL DEFAULT '{}',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (raw_id) REFERENCES raw_records(id)
				)`,
				`CREATE UNIQUE INDEX idx_normalized_raw_id ON normalized_records(raw_id)`,
				`CREATE INDEX idx_normalized_vendor_month ON normalized_records(vendor, month)`,

				`CREATE TABLE IF NOT EXISTS processing_log (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL DEFAULT '',
					vendor TEXT NOT NULL,
					month TEXT NOT NULL,
					stage TEXT NOT NULL,
					action TEXT NOT NULL,
					details TEXT NOT NULL DEFAULT '',
					retry_count INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_processing_log_vendor_month ON processing_log(vendor, month)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add rollup and ranking tables",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS monthly_rollups (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					vendor TEXT NOT NULL,
					month TEXT NOT NULL,
					total_kwh REAL NOT NULL DEFAULT 0,
					tco2e REAL NOT NULL DEFAULT 0,
					total_tokens REAL NOT NULL DEFAULT 0,
					total_api_calls INTEGER NOT NULL DEFAULT 0,
					utilization_avg REAL NOT NULL DEFAULT 0,
					pue_avg REAL NOT NULL DEFAULT 0,
					data_quality REAL NOT NULL DEFAULT 0,
					g_per_1k_tokens REAL,
					g_per_call REAL,
					tokens_per_tco2e REAL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(vendor, month)
				)`,
				`CREATE INDEX idx_rollups_month ON monthly_rollups(month)`,

				`CREATE TABLE IF NOT EXISTS rankings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					vendor TEXT NOT NULL,
					month TEXT NOT NULL,
					green_score REAL NOT NULL DEFAULT 0,
					overall_rank INTEGER NOT NULL DEFAULT 0,
					tco2e_rank INTEGER NOT NULL DEFAULT 0,
					intensity_rank INTEGER NOT NULL DEFAULT 0,
					efficiency_rank INTEGER NOT NULL DEFAULT 0,
					utilization_rank INTEGER NOT NULL DEFAULT 0,
					total_kwh REAL NOT NULL DEFAULT 0,
					tco2e REAL NOT NULL DEFAULT 0,
					g_per_1k_tokens REAL,
					tokens_per_tco2e REAL,
					utilization_avg REAL NOT NULL DEFAULT 0,
					data_quality REAL NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(vendor, month)
				)`,
				`CREATE INDEX idx_rankings_month ON rankings(month)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Add grid intensity reference data",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS grid_intensity (
					region TEXT PRIMARY KEY,
					g_per_kwh REAL NOT NULL,
					description TEXT NOT NULL DEFAULT ''
				)
			`); err != nil {
				return fmt.Errorf("failed to create grid_intensity table: %w", err)
			}

			seed := []struct {
				region      string
				description string
				gPerKWh     float64
			}{
				{"US-East", "US East Coast grid mix", 350},
				{"US-West", "US West Coast grid mix", 180},
				{"CA-QC", "Quebec hydroelectric", 25},
				{"EU-NL", "Netherlands grid mix", 420},
				{"EU-NO", "Norway hydroelectric", 15},
				{"AP-SG", "Singapore grid mix", 480},
				{"AP-AU", "Australia coal-heavy grid", 750},
				{"UNKNOWN", "Market average fallback", 400},
			}

			for _, row := range seed {
				if _, err := tx.Exec(
					`INSERT OR IGNORE INTO grid_intensity (region, g_per_kwh, description) VALUES (?, ?, ?)`,
					row.region, row.gPerKWh, row.description,
				); err != nil {
					return fmt.Errorf("failed to seed grid intensity for %s: %w", row.region, err)
				}
			}

			slog.Info("Seeded grid intensity reference data", "regions", len(seed))
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
