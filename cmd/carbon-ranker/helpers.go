package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sustainops/carbon-ranker/internal/cleaner"
	"github.com/sustainops/carbon-ranker/internal/service"
	"github.com/sustainops/carbon-ranker/internal/storage"
)

// initStorage opens the database and brings the schema up to date.
func initStorage(ctx context.Context) (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, ".local", "share", "carbon-ranker", "carbon.db")
	}
	dbPath = expandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initCleaner builds the optional external cleaner from config. A missing
// provider just means no cleaning pass.
func initCleaner() (cleaner.Cleaner, error) {
	provider := viper.GetString("cleaner.provider")
	if provider == "" {
		return nil, nil
	}

	return cleaner.New(cleaner.Config{
		Provider:    provider,
		APIKey:      viper.GetString("cleaner.api_key"),
		Model:       viper.GetString("cleaner.model"),
		Temperature: viper.GetFloat64("cleaner.temperature"),
		MaxTokens:   viper.GetInt("cleaner.max_tokens"),
		BatchSize:   viper.GetInt("cleaner.batch_size"),
	})
}

// expandPath expands $HOME, other environment variables, and a leading tilde.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}
