package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/vendor-lens/internal/config"
	"github.com/Veraticus/vendor-lens/internal/oracle"
	"github.com/Veraticus/vendor-lens/internal/storage"

	"github.com/spf13/viper"
)

// initStorage initializes the mapping store with proper path expansion.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/vlens/vlens.db"
	}

	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initOracle builds the oracle resolver from configuration.
func initOracle(logger *slog.Logger) (*oracle.Resolver, error) {
	cfg := oracle.Config{
		Provider:       viper.GetString("oracle.provider"),
		APIKey:         viper.GetString("oracle.api_key"),
		Model:          viper.GetString("oracle.model"),
		SearchEngineID: viper.GetString("oracle.search_engine_id"),
		MaxRetries:     viper.GetInt("oracle.max_retries"),
		RetryDelay:     viper.GetDuration("oracle.retry_delay"),
		CacheTTL:       viper.GetDuration("oracle.cache_ttl"),
		RateLimit:      viper.GetInt("oracle.rate_limit"),
		Temperature:    viper.GetFloat64("oracle.temperature"),
		MaxTokens:      viper.GetInt("oracle.max_tokens"),
	}
	if cfg.Provider == "" {
		cfg.Provider = "anthropic"
	}

	return oracle.NewResolver(cfg, logger)
}

// oracleTimeout returns the bounded per-call oracle timeout.
func oracleTimeout() time.Duration {
	timeout := viper.GetDuration("oracle.timeout")
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return timeout
}
