package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Veraticus/vendor-lens/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the service.MappingStore interface using SQLite.
type SQLiteStorage struct {
	cacheExpiry  time.Time
	db           *sql.DB
	mappingCache map[string]*model.VendorMapping
	dbPath       string
	cacheMutex   sync.RWMutex
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:           db,
		dbPath:       dbPath,
		mappingCache: make(map[string]*model.VendorMapping),
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// cacheKey scopes cached lookups by caller so a user override and the
// global row never shadow each other.
func cacheKey(normalizedText, userID string) string {
	return userID + "\x00" + normalizedText
}

// getCachedMapping retrieves a lookup result from the cache.
func (s *SQLiteStorage) getCachedMapping(normalizedText, userID string) *model.VendorMapping {
	s.cacheMutex.RLock()

	if time.Now().After(s.cacheExpiry) {
		s.cacheMutex.RUnlock()
		s.cacheMutex.Lock()
		defer s.cacheMutex.Unlock()

		// Double-check after acquiring write lock
		if time.Now().After(s.cacheExpiry) {
			s.mappingCache = make(map[string]*model.VendorMapping)
		}
		return nil
	}

	mapping := s.mappingCache[cacheKey(normalizedText, userID)]
	s.cacheMutex.RUnlock()
	return mapping
}

// cacheMapping stores a lookup result in the cache.
func (s *SQLiteStorage) cacheMapping(userID string, mapping *model.VendorMapping) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if len(s.mappingCache) == 0 {
		s.cacheExpiry = time.Now().Add(5 * time.Minute)
	}
	s.mappingCache[cacheKey(mapping.NormalizedText, userID)] = mapping
}

// invalidateMapping drops all cached lookups for a normalized key.
// Lookups are cached per caller, so a mutation must clear every scope.
func (s *SQLiteStorage) invalidateMapping(normalizedText string) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	for key := range s.mappingCache {
		if m := s.mappingCache[key]; m != nil && m.NormalizedText == normalizedText {
			delete(s.mappingCache, key)
		}
	}
}
